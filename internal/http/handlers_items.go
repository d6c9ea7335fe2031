package http

import (
	"errors"
	"net/http"
	"time"

	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
)

const dateLayout = "2006-01-02"

type itemResponse struct {
	ID               int64   `json:"id"`
	Kind             string  `json:"kind"`
	Label            string  `json:"label"`
	AmountCents      int64   `json:"amount_cents,omitempty"`
	Frequency        string  `json:"frequency,omitempty"`
	BaseCalculation  string  `json:"base_calculation,omitempty"`
	Percentage       float64 `json:"percentage,omitempty"`
	FixedAmountCents *int64  `json:"fixed_amount_cents,omitempty"`
	TargetCents      *int64  `json:"target_cents,omitempty"`
	CurrentCents     int64   `json:"current_cents,omitempty"`
	Progress         float64 `json:"progress,omitempty"`
	SplitMode        string  `json:"split_mode"`
	Active           bool    `json:"active"`
	StartDate        string  `json:"start_date,omitempty"`

	// Derived figures: the monthly-equivalent amount and its member shares
	// under the current household definition.
	MonthlyCents   int64  `json:"monthly_cents"`
	Member1Cents   int64  `json:"member1_cents"`
	Member2Cents   int64  `json:"member2_cents"`
	MonthlyDisplay string `json:"monthly_display"`
	SplitFallback  bool   `json:"split_fallback,omitempty"`
}

type createItemRequest struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	// Amount is a decimal euro string ("12,34" or "12.34"); AmountCents wins
	// when both are set.
	Amount           string  `json:"amount"`
	AmountCents      int64   `json:"amount_cents"`
	Frequency        string  `json:"frequency"`
	BaseCalculation  string  `json:"base_calculation"`
	Percentage       float64 `json:"percentage"`
	FixedAmountCents *int64  `json:"fixed_amount_cents"`
	TargetCents      *int64  `json:"target_cents"`
	SplitMode        string  `json:"split_mode"`
	StartDate        string  `json:"start_date"`
}

type itemListResponse struct {
	Items []itemResponse `json:"items"`
	Count int            `json:"count"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	kind := core.ItemKind(r.URL.Query().Get("kind"))
	if kind != "" {
		if err := kind.Validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, "unknown kind, expected expense or provision")
			return
		}
	}

	key := "items:" + string(kind)
	if cached, ok := s.itemsCache.Get(key); ok {
		writeJSON(w, r, http.StatusOK, itemListResponse{Items: cached, Count: len(cached)})
		return
	}

	items, err := s.backend.ListItems(r.Context(), "")
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list items", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to list items")
		return
	}

	h := s.currentHousehold().Household()
	bases := core.ComputeBases(items, h)

	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		if kind != "" && it.Kind != kind {
			continue
		}
		out = append(out, s.itemToResponse(r, it, bases, h))
	}

	s.itemsCache.Set(key, out)
	writeJSON(w, r, http.StatusOK, itemListResponse{Items: out, Count: len(out)})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	hf := s.currentHousehold()
	it, err := s.itemFromRequest(req, hf)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.backend.SaveItem(r.Context(), it)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to save item",
			"label", it.Label, "kind", it.Kind, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to save item")
		return
	}
	it.ID = id
	s.invalidateItems()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Item created",
		"id", id, "kind", it.Kind, "label", it.Label)

	h := hf.Household()
	bases := s.basesFor(r, h)
	writeJSON(w, r, http.StatusCreated, s.itemToResponse(r, it, bases, h))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.backend.DeleteItem(r.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "item not found")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to delete item", "id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to delete item")
		return
	}
	s.invalidateItems()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Item deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	it, err := s.backend.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "item not found")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load item", "id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to load item")
		return
	}

	if err := s.backend.SetItemActive(r.Context(), id, !it.Active); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to toggle item", "id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to toggle item")
		return
	}
	s.invalidateItems()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Item toggled", "id", id, "active", !it.Active)
	writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "active": !it.Active})
}

// itemFromRequest applies defaults and validates. Missing split mode falls
// back to the household default; missing start date anchors on today.
func (s *Server) itemFromRequest(req createItemRequest, hf config.HouseholdFile) (core.RecurringItem, error) {
	it := core.RecurringItem{
		Kind:            core.ItemKind(req.Kind),
		Label:           req.Label,
		Amount:          core.Money{Cents: req.AmountCents},
		Frequency:       core.Frequency(req.Frequency),
		BaseCalculation: core.BaseCalculation(req.BaseCalculation),
		Percentage:      req.Percentage,
		SplitMode:       core.SplitMode(req.SplitMode),
		Active:          true,
	}
	if req.AmountCents == 0 && req.Amount != "" {
		cents, err := core.ParseDecimalToCents(req.Amount)
		if err != nil {
			return core.RecurringItem{}, errors.New("invalid amount, expected a positive decimal like 12,34")
		}
		it.Amount = core.Money{Cents: cents}
	}
	if it.Kind == "" {
		it.Kind = core.KindExpense
	}
	if it.SplitMode == "" {
		it.SplitMode = hf.SplitMode()
	}
	if req.FixedAmountCents != nil {
		it.FixedAmount = &core.Money{Cents: *req.FixedAmountCents}
	}
	if req.TargetCents != nil {
		it.TargetAmount = &core.Money{Cents: *req.TargetCents}
	}

	if req.StartDate != "" {
		t, err := time.Parse(dateLayout, req.StartDate)
		if err != nil {
			return core.RecurringItem{}, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
		it.StartDate = core.Date{Time: t}
	} else {
		now := time.Now().UTC()
		it.StartDate = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}

	if err := it.Validate(); err != nil {
		return core.RecurringItem{}, err
	}
	return it, nil
}

func (s *Server) itemToResponse(r *http.Request, it core.RecurringItem, bases core.Bases, h core.Household) itemResponse {
	resp := itemResponse{
		ID:              it.ID,
		Kind:            string(it.Kind),
		Label:           it.Label,
		AmountCents:     it.Amount.Cents,
		Frequency:       string(it.Frequency),
		BaseCalculation: string(it.BaseCalculation),
		Percentage:      it.Percentage,
		SplitMode:       string(it.SplitMode),
		Active:          it.Active,
	}
	if !it.StartDate.IsZero() {
		resp.StartDate = it.StartDate.Format(dateLayout)
	}
	if it.FixedAmount != nil {
		resp.FixedAmountCents = &it.FixedAmount.Cents
	}
	if it.TargetAmount != nil {
		resp.TargetCents = &it.TargetAmount.Cents
		resp.Progress = core.Progress(it.CurrentAmount, it.TargetAmount)
	}
	if it.IsProvision() {
		resp.CurrentCents = it.CurrentAmount.Cents
	}

	monthly, err := it.Monthly(bases)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to derive monthly amount",
			"id", it.ID, "error", err)
		return resp
	}
	split, err := core.Split(monthly, it.SplitMode, h)
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to split monthly amount",
			"id", it.ID, "error", err)
		return resp
	}

	resp.MonthlyCents = monthly.Cents
	resp.Member1Cents = split.MemberOne.Cents
	resp.Member2Cents = split.MemberTwo.Cents
	resp.MonthlyDisplay = formatEuros(monthly.Cents)
	resp.SplitFallback = split.Fallback
	return resp
}

// basesFor recomputes the provision bases after a write. On a read failure it
// degrades to income-only bases rather than failing the write response.
func (s *Server) basesFor(r *http.Request, h core.Household) core.Bases {
	items, err := s.backend.ListItems(r.Context(), "")
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to recompute bases", "error", err)
		return core.ComputeBases(nil, h)
	}
	return core.ComputeBases(items, h)
}
