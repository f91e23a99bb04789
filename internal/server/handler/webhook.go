package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/alphagate/internal/crypto"
	"github.com/alanyoungcy/alphagate/internal/domain"
)

const maxWebhookBody = 64 << 10

// SignalHandler processes an authenticated webhook body.
type SignalHandler interface {
	Handle(ctx context.Context, body []byte) domain.Outcome
}

// WebhookHandler verifies the signature on inbound signals and maps the
// intake outcome onto the HTTP response.
type WebhookHandler struct {
	secret  string
	signals SignalHandler
	logger  *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. secret is the shared HMAC key.
func NewWebhookHandler(secret string, signals SignalHandler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		signals: signals,
		logger:  logHandler(logger, "webhook"),
	}
}

// Receive handles one signal.
// POST /webhook
//
// Probing noise (bad signature, malformed or stale body) gets an empty 200 so
// the caller learns nothing.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("read webhook body failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusOK)
		return
	}

	if !crypto.VerifySignature(body, r.Header.Get(crypto.SignatureHeader), h.secret) {
		h.logger.Warn("webhook signature rejected", slog.String("remote_addr", r.RemoteAddr))
		w.WriteHeader(http.StatusOK)
		return
	}

	out := h.signals.Handle(r.Context(), body)
	switch out.Kind {
	case domain.OutcomeExecuted:
		resp := map[string]any{"status": "ok"}
		if out.Order != nil {
			resp["order_id"] = out.Order.ID
			resp["dry_run"] = out.Order.DryRun
		}
		writeJSON(w, http.StatusOK, resp)
	case domain.OutcomeHeartbeat, domain.OutcomeFiltered:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case domain.OutcomeIgnored:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": out.Reason})
	case domain.OutcomeDropped:
		w.WriteHeader(http.StatusOK)
	case domain.OutcomeRejected:
		writeError(w, http.StatusBadRequest, out.Reason)
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
