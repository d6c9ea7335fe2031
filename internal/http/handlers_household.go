package http

import (
	"net/http"

	"bilancio/internal/config"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
)

type memberPayload struct {
	Name          string  `json:"name"`
	MonthlyIncome float64 `json:"monthly_income"` // euros
}

type householdPayload struct {
	Members      [2]memberPayload `json:"members"`
	DefaultSplit string           `json:"default_split"`
}

func (s *Server) handleGetHousehold(w http.ResponseWriter, r *http.Request) {
	hf := s.currentHousehold()
	writeJSON(w, r, http.StatusOK, householdToPayload(hf))
}

func (s *Server) handlePutHousehold(w http.ResponseWriter, r *http.Request) {
	var req householdPayload
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	hf := config.HouseholdFile{DefaultSplit: req.DefaultSplit}
	for i, m := range req.Members {
		hf.Members[i] = config.MemberConfig{Name: m.Name, MonthlyIncome: m.MonthlyIncome}
	}

	if err := hf.Household().Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.DefaultSplit != "" {
		if err := core.SplitMode(req.DefaultSplit).Validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, "unknown default_split")
			return
		}
	} else {
		hf.DefaultSplit = string(core.SplitEqual)
	}

	if err := config.SaveHousehold(s.householdPath, hf); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to save household file",
			"path", s.householdPath, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to save household")
		return
	}

	s.hmu.Lock()
	s.household = hf
	s.hmu.Unlock()

	// Incomes drive proportional splits and percentage bases; every derived
	// view is stale now.
	s.invalidateItems()
	s.txnCache.Flush()

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Household updated",
		"member1", hf.Members[0].Name,
		"member2", hf.Members[1].Name,
		"default_split", hf.DefaultSplit)
	writeJSON(w, r, http.StatusOK, householdToPayload(hf))
}

func householdToPayload(hf config.HouseholdFile) householdPayload {
	var p householdPayload
	for i, m := range hf.Members {
		p.Members[i] = memberPayload{Name: m.Name, MonthlyIncome: m.MonthlyIncome}
	}
	p.DefaultSplit = hf.DefaultSplit
	return p
}
