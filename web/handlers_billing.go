package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/quietpage/reflectd/app"
	"github.com/quietpage/reflectd/domain/billing"
	"github.com/quietpage/reflectd/ports"
)

type invoiceResponse struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	AmountPaid int64     `json:"amount_paid"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	HostedURL  string    `json:"hosted_url,omitempty"`
	PDFURL     string    `json:"pdf_url,omitempty"`
	Number     string    `json:"number,omitempty"`
}

func (h *Handler) handleBillingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.billing.Status(r.Context(), claimsFrom(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("billing status failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	invoices := make([]invoiceResponse, 0, len(status.Invoices))
	for _, inv := range status.Invoices {
		invoices = append(invoices, invoiceResponse{
			ID:         inv.ID,
			Date:       inv.Date,
			AmountPaid: inv.AmountPaid,
			Currency:   inv.Currency,
			Status:     inv.Status,
			HostedURL:  inv.HostedURL,
			PDFURL:     inv.PDFURL,
			Number:     inv.Number,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tier":                 status.Tier,
		"status":               string(status.Status),
		"current_period_end":   status.CurrentPeriodEnd,
		"cancel_at_period_end": status.CancelAtPeriodEnd,
		"unit_amount":          status.UnitAmount,
		"currency":             status.Currency,
		"interval":             status.Interval,
		"invoices":             invoices,
	})
}

func subscriptionResponse(sub billing.ProviderSubscription) map[string]any {
	return map[string]any{
		"id":                   sub.ID,
		"status":               string(sub.Status),
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
		"current_period_end":   sub.CurrentPeriodEnd,
	}
}

type cancelRequest struct {
	CancelAtPeriodEnd *bool `json:"cancel_at_period_end"`
}

func (h *Handler) handleBillingCancel(w http.ResponseWriter, r *http.Request) {
	// An empty body means the default: cancel at the period boundary.
	var req cancelRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid_payload")
			return
		}
	}

	cancel := h.billing.Cancel
	if req.CancelAtPeriodEnd != nil && !*req.CancelAtPeriodEnd {
		cancel = h.billing.CancelImmediately
	}

	sub, err := cancel(r.Context(), claimsFrom(r))
	if err != nil {
		h.respondSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscription": subscriptionResponse(sub)})
}

func (h *Handler) handleBillingReactivate(w http.ResponseWriter, r *http.Request) {
	sub, err := h.billing.Reactivate(r.Context(), claimsFrom(r))
	if err != nil {
		h.respondSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscription": subscriptionResponse(sub)})
}

func (h *Handler) respondSubscriptionError(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrNoSubscription) {
		writeError(w, http.StatusNotFound, "no_subscription")
		return
	}
	h.logger.Error().Err(err).Msg("subscription update failed")
	writeError(w, http.StatusInternalServerError, "internal_error")
}

func (h *Handler) handleBillingUpcoming(w http.ResponseWriter, r *http.Request) {
	inv, err := h.billing.Upcoming(r.Context(), claimsFrom(r))
	if errors.Is(err, ports.ErrNoUpcomingInvoice) {
		writeError(w, http.StatusNotFound, "no_upcoming_invoice")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("upcoming invoice failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	lines := make([]map[string]any, 0, len(inv.Lines))
	for _, line := range inv.Lines {
		lines = append(lines, map[string]any{
			"description": line.Description,
			"amount":      line.Amount,
			"currency":    line.Currency,
			"quantity":    line.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"amount_due":   inv.AmountDue,
		"currency":     inv.Currency,
		"period_start": inv.PeriodStart,
		"period_end":   inv.PeriodEnd,
		"lines":        lines,
	})
}

func (h *Handler) handleBillingPortal(w http.ResponseWriter, r *http.Request) {
	url, err := h.billing.Portal(r.Context(), claimsFrom(r))
	if errors.Is(err, app.ErrCustomerReconciliation) {
		writeError(w, http.StatusServiceUnavailable, "customer_reconciliation_failed")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("portal session failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
