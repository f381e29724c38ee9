package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/quietpage/reflectd/app"
	"github.com/quietpage/reflectd/domain/entitlement"
	"github.com/quietpage/reflectd/domain/journal"
)

type entitlementResponse struct {
	Entitled          bool       `json:"entitled"`
	CanCreateJournals bool       `json:"can_create_journals"`
	CanViewJournals   bool       `json:"can_view_journals"`
	Reason            string     `json:"reason"`
	PlanName          string     `json:"plan_name"`
	JournalsRemaining *int       `json:"journals_remaining,omitempty"`
	TotalJournals     int        `json:"total_journals"`
	Status            string     `json:"status,omitempty"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end,omitempty"`
}

func verdictResponse(v entitlement.Verdict) entitlementResponse {
	return entitlementResponse{
		Entitled:          v.Entitled,
		CanCreateJournals: v.CanCreateJournals,
		CanViewJournals:   v.CanViewJournals,
		Reason:            v.Reason,
		PlanName:          v.PlanName,
		JournalsRemaining: v.JournalsRemaining,
		TotalJournals:     v.TotalJournals,
		Status:            string(v.Status),
		CurrentPeriodEnd:  v.CurrentPeriodEnd,
		CancelAtPeriodEnd: v.CancelAtPeriodEnd,
	}
}

func (h *Handler) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	verdict, err := h.entitlements.Evaluate(r.Context(), claimsFrom(r))
	if err != nil {
		h.respondEvaluationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdictResponse(verdict))
}

func (h *Handler) respondEvaluationError(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrCountUnavailable) {
		writeError(w, http.StatusInternalServerError, "count_unavailable")
		return
	}
	h.logger.Error().Err(err).Msg("entitlement evaluation failed")
	writeError(w, http.StatusInternalServerError, "internal_error")
}

type journalResponse struct {
	ID             string     `json:"id"`
	Summary        string     `json:"summary"`
	ReflectionType string     `json:"reflection_type"`
	Saved          bool       `json:"saved"`
	Title          string     `json:"title"`
	TitleSource    string     `json:"title_source"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toJournalResponse(j journal.Journal) journalResponse {
	return journalResponse{
		ID:             j.ID,
		Summary:        j.Summary,
		ReflectionType: string(j.ReflectionType),
		Saved:          j.Saved,
		Title:          j.Title,
		TitleSource:    string(j.TitleSource),
		CreatedAt:      j.CreatedAt,
		CompletedAt:    j.CompletedAt,
	}
}

type saveJournalRequest struct {
	Summary        string `json:"summary"`
	ReflectionType string `json:"reflection_type"`
	Title          string `json:"title,omitempty"`
}

func (h *Handler) handleSaveJournal(w http.ResponseWriter, r *http.Request) {
	var req saveJournalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	result, err := h.journals.Save(r.Context(), claimsFrom(r), app.SaveInput{
		Summary:        req.Summary,
		ReflectionType: journal.ReflectionType(req.ReflectionType),
		Title:          req.Title,
	})
	if err != nil {
		var denied *app.NotEntitledError
		switch {
		case errors.Is(err, app.ErrInvalidPayload):
			writeError(w, http.StatusBadRequest, "invalid_payload")
		case errors.As(err, &denied):
			writeDenied(w, denied.Reason)
		default:
			h.respondEvaluationError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"reflection":     toJournalResponse(result.Journal),
		"titleGenerated": result.TitleGenerated,
	})
}

func (h *Handler) handleListJournals(w http.ResponseWriter, r *http.Request) {
	list, err := h.journals.List(r.Context(), claimsFrom(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list journals")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	out := make([]journalResponse, 0, len(list))
	for _, j := range list {
		out = append(out, toJournalResponse(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"journals": out})
}

func (h *Handler) handleCheckSubscription(w http.ResponseWriter, r *http.Request) {
	check, err := h.billing.CheckSubscription(r.Context(), claimsFrom(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("subscription check failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscribed":       check.Subscribed,
		"subscription_end": check.SubscriptionEnd,
	})
}
