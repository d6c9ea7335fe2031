package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
)

type transactionResponse struct {
	ID           int64  `json:"id"`
	Date         string `json:"date"`
	Label        string `json:"label"`
	AmountCents  int64  `json:"amount_cents"`
	Member1Cents int64  `json:"member1_cents"`
	Member2Cents int64  `json:"member2_cents"`
	ItemID       *int64 `json:"item_id,omitempty"`
	ImportRef    string `json:"import_ref,omitempty"`
}

type transactionsResponse struct {
	Year         int                   `json:"year"`
	Month        int                   `json:"month"`
	TotalCents   int64                 `json:"total_cents"`
	TotalDisplay string                `json:"total_display"`
	Transactions []transactionResponse `json:"transactions"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("%d-%d", year, month)
	if cached, ok := s.txnCache.Get(key); ok {
		writeJSON(w, r, http.StatusOK, cached)
		return
	}

	txns, err := s.backend.ListTransactions(r.Context(), year, month)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list transactions",
			"year", year, "month", month, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	total, err := s.backend.MonthTotal(r.Context(), year, month)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to compute month total",
			"year", year, "month", month, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	resp := transactionsResponse{
		Year:         year,
		Month:        month,
		TotalCents:   total.Cents,
		TotalDisplay: formatEuros(total.Cents),
		Transactions: make([]transactionResponse, 0, len(txns)),
	}
	for _, t := range txns {
		resp.Transactions = append(resp.Transactions, transactionToResponse(t))
	}

	s.txnCache.Set(key, resp)
	writeJSON(w, r, http.StatusOK, resp)
}

// parseYearMonth reads the year and month query parameters, defaulting to the
// current month when both are absent.
func parseYearMonth(r *http.Request) (int, int, error) {
	yearStr := r.URL.Query().Get("year")
	monthStr := r.URL.Query().Get("month")

	if yearStr == "" && monthStr == "" {
		now := time.Now().UTC()
		return now.Year(), int(now.Month()), nil
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 2100 {
		return 0, 0, fmt.Errorf("invalid year %q", yearStr)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %q", monthStr)
	}
	return year, month, nil
}

func transactionToResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		Date:         t.Date.Format(dateLayout),
		Label:        t.Label,
		AmountCents:  t.Amount.Cents,
		Member1Cents: t.MemberOne.Cents,
		Member2Cents: t.MemberTwo.Cents,
		ItemID:       t.ItemID,
		ImportRef:    t.ImportRef,
	}
}
