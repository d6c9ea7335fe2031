package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// Store is an in-memory backend for local development and tests. It honors
// the same soft-delete and ordering semantics as the SQLite backend.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	items   map[int64]core.RecurringItem
	deleted map[int64]bool
	txns    []core.Transaction
	rows    []core.Transaction // synthetic ledger, Append target
}

func New() *Store {
	return &Store{
		nextID:  1,
		items:   make(map[int64]core.RecurringItem),
		deleted: make(map[int64]bool),
	}
}

var (
	_ ledger.ItemWriter        = (*Store)(nil)
	_ ledger.ItemReader        = (*Store)(nil)
	_ ledger.TransactionWriter = (*Store)(nil)
	_ ledger.TransactionReader = (*Store)(nil)
	_ ledger.Appender          = (*Store)(nil)
)

func (s *Store) SaveItem(_ context.Context, it core.RecurringItem) (int64, error) {
	if err := it.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	it.ID = s.nextID
	s.nextID++
	s.items[it.ID] = it
	return it.ID, nil
}

func (s *Store) GetItem(_ context.Context, id int64) (core.RecurringItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || s.deleted[id] {
		return core.RecurringItem{}, ledger.ErrNotFound
	}
	return it, nil
}

func (s *Store) ListItems(_ context.Context, kind core.ItemKind) ([]core.RecurringItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringItem
	for id, it := range s.items {
		if s.deleted[id] {
			continue
		}
		if kind != "" && it.Kind != kind {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetItemActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || s.deleted[id] {
		return ledger.ErrNotFound
	}
	it.Active = active
	s.items[id] = it
	return nil
}

func (s *Store) DeleteItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok || s.deleted[id] {
		return ledger.ErrNotFound
	}
	s.deleted[id] = true
	return nil
}

func (s *Store) SaveTransaction(_ context.Context, t core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = int64(len(s.txns) + 1)
	s.txns = append(s.txns, t)
	return t.ID, nil
}

func (s *Store) ListTransactions(_ context.Context, year, month int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txns {
		if t.Date.Year() == year && t.Date.Month() == month {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Day() != out[j].Date.Day() {
			return out[i].Date.Day() < out[j].Date.Day()
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) MonthTotal(_ context.Context, year, month int) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cents int64
	for _, t := range s.txns {
		if t.Date.Year() == year && t.Date.Month() == month {
			cents += t.Amount.Cents
		}
	}
	return core.Money{Cents: cents}, nil
}

// Append stores the transaction in the synthetic ledger and returns a
// row reference in the same shape the real ledger uses.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, t)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the synthetic ledger, for tests.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...)
}
