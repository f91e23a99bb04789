package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Venue.APIKey)
	redact(&out.Venue.SecretKey)
	redact(&out.Venue.Passphrase)
	redact(&out.Venue.CredentialsPassword)

	redact(&out.Security.HMACSecret)
	redact(&out.Security.AdminSecret)

	redact(&out.Redis.Password)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Trading.SymbolBlacklist = cloneStrings(cfg.Trading.SymbolBlacklist)
	out.Trading.SymbolWhitelist = cloneStrings(cfg.Trading.SymbolWhitelist)
	out.Notify.Levels = cloneStrings(cfg.Notify.Levels)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
