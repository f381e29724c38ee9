package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/quietpage/reflectd/app"
)

// maxWebhookBody bounds webhook payloads (Stripe events are small).
const maxWebhookBody = 1 << 20

// handleStripeWebhook verifies and ingests a provider event. A bad signature
// is the caller's fault (400); a processing failure is ours (500) so the
// provider retries; everything else acks with 200.
func (h *Handler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	event, err := h.provider.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("webhook signature verification failed")
		writeError(w, http.StatusBadRequest, "invalid_signature")
		return
	}

	if err := h.webhooks.Process(r.Context(), event); err != nil {
		h.logger.Error().Err(err).
			Str("type", event.Type).
			Msg("webhook processing failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) handleSyncSubscriptions(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.SyncAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("subscription sync failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type backfillRequest struct {
	DryRun     bool `json:"dryRun"`
	BatchSize  int  `json:"batchSize"`
	MaxBatches int  `json:"maxBatches"`
}

func (h *Handler) handleBackfillTitles(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if r.Body != nil {
		// An empty body means run with defaults.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid_payload")
			return
		}
	}

	result, err := h.backfill.Run(r.Context(), app.BackfillOptions{
		DryRun:     req.DryRun,
		BatchSize:  req.BatchSize,
		MaxBatches: req.MaxBatches,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("title backfill failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
