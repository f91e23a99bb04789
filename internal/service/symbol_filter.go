package service

import "github.com/alanyoungcy/alphagate/internal/domain"

// SymbolFilter admits or rejects symbols against a blacklist and an optional
// whitelist. Both lists are normalised once at construction.
type SymbolFilter struct {
	blacklist map[string]struct{}
	whitelist map[string]struct{}
}

// NewSymbolFilter builds a filter. An empty whitelist admits every symbol
// that is not blacklisted.
func NewSymbolFilter(blacklist, whitelist []string) *SymbolFilter {
	return &SymbolFilter{
		blacklist: symbolSet(blacklist),
		whitelist: symbolSet(whitelist),
	}
}

// Admit reports whether symbol may be traded. The blacklist always wins.
func (f *SymbolFilter) Admit(symbol string) bool {
	s := domain.NormalizeSymbol(symbol)
	if _, blocked := f.blacklist[s]; blocked {
		return false
	}
	if len(f.whitelist) == 0 {
		return true
	}
	_, ok := f.whitelist[s]
	return ok
}

func symbolSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if n := domain.NormalizeSymbol(s); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
