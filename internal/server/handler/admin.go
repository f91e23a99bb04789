package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/alphagate/internal/service"
)

// KillSwitcher halts and resumes trading.
type KillSwitcher interface {
	Activate(ctx context.Context) (service.KillReport, error)
	Resume(ctx context.Context) service.ResumeReport
}

// AccountReader serves live account views.
type AccountReader interface {
	Status(ctx context.Context) (service.StatusReport, error)
	Report(ctx context.Context, days int) (service.PnLReport, error)
}

// AdminHandler serves the operator endpoints. Authentication is applied by
// middleware in front of it.
type AdminHandler struct {
	kill    KillSwitcher
	account AccountReader
	logger  *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(kill KillSwitcher, account AccountReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		kill:    kill,
		account: account,
		logger:  logHandler(logger, "admin"),
	}
}

// Status reports balance, open positions and the gate.
// GET /status
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.account.Status(r.Context())
	if err != nil {
		h.logger.Error("status failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch account status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Report returns approximate realized PnL.
// GET /report?days=N
func (h *AdminHandler) Report(w http.ResponseWriter, r *http.Request) {
	days := service.ClampReportDays(queryInt(r, "days", 0))
	rep, err := h.account.Report(r.Context(), days)
	if err != nil {
		h.logger.Error("report failed", slog.Int("days", days), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Kill activates the kill switch.
// POST /kill
func (h *AdminHandler) Kill(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("kill switch requested", slog.String("remote_addr", r.RemoteAddr))
	rep, err := h.kill.Activate(r.Context())
	if err != nil {
		h.logger.Error("kill switch incomplete", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":          "kill switch incomplete: " + err.Error(),
			"action":         rep.Action,
			"log":            rep.Log,
			"trading_status": rep.TradingStatus,
		})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Resume re-enables trading.
// POST /resume
func (h *AdminHandler) Resume(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.kill.Resume(r.Context()))
}
