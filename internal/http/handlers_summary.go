package http

import (
	"net/http"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
)

type summaryResponse struct {
	MonthlyCents   int64  `json:"monthly_cents"`
	AnnualCents    int64  `json:"annual_cents"`
	Member1Cents   int64  `json:"member1_cents"`
	Member2Cents   int64  `json:"member2_cents"`
	ActiveCount    int    `json:"active_count"`
	SplitFallbacks int    `json:"split_fallbacks"`
	IncomeCents    int64  `json:"income_cents"`
	RemainderCents int64  `json:"remainder_cents"`
	MonthlyDisplay string `json:"monthly_display"`
	AnnualDisplay  string `json:"annual_display"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.summaryCache.Get(summaryKey); ok {
		writeJSON(w, r, http.StatusOK, cached)
		return
	}

	items, err := s.backend.ListItems(r.Context(), "")
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list items for summary", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	h := s.currentHousehold().Household()
	bases := core.ComputeBases(items, h)

	summary, err := core.Summarize(items, bases, h)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to summarize items", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	resp := summaryResponse{
		MonthlyCents:   summary.MonthlyTotal.Cents,
		AnnualCents:    summary.AnnualTotal.Cents,
		Member1Cents:   summary.MemberOne.Cents,
		Member2Cents:   summary.MemberTwo.Cents,
		ActiveCount:    summary.ActiveCount,
		SplitFallbacks: summary.SplitFallbacks,
		IncomeCents:    bases.IncomeCents,
		RemainderCents: bases.RemainderCents,
		MonthlyDisplay: formatEuros(summary.MonthlyTotal.Cents),
		AnnualDisplay:  formatEuros(summary.AnnualTotal.Cents),
	}

	s.summaryCache.Set(summaryKey, resp)
	writeJSON(w, r, http.StatusOK, resp)
}
