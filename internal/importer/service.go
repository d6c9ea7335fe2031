package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// BatchRecorder tracks processed import batches. Backends without batch
// bookkeeping pass nil.
type BatchRecorder interface {
	CreateImport(ctx context.Context, ref, filename, format string, rowCount int) error
}

// Service parses statement files and saves them as split transactions.
type Service struct {
	registry  *Registry
	writer    ledger.TransactionWriter
	recorder  BatchRecorder
	household core.Household
	splitMode core.SplitMode
}

// Result summarizes one import batch.
type Result struct {
	Ref      string
	Rows     int
	Fallback bool // proportional split fell back to equal at least once
}

func NewService(registry *Registry, writer ledger.TransactionWriter, recorder BatchRecorder, household core.Household, splitMode core.SplitMode) *Service {
	return &Service{
		registry:  registry,
		writer:    writer,
		recorder:  recorder,
		household: household,
		splitMode: splitMode,
	}
}

// Import parses the file, splits every row with the household's default
// split mode, and saves the resulting transactions under one batch ref.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader) (Result, error) {
	parser, err := s.registry.ForFilename(filename)
	if err != nil {
		return Result{}, err
	}

	rows, err := parser.Parse(r)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", filename, err)
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("no rows found in %s", filename)
	}

	ref := uuid.NewString()
	result := Result{Ref: ref}

	for _, row := range rows {
		split, err := core.Split(core.Money{Cents: row.AmountCents}, s.splitMode, s.household)
		if err != nil {
			return result, fmt.Errorf("split row %q: %w", row.Label, err)
		}
		if split.Fallback {
			result.Fallback = true
		}

		txn := core.Transaction{
			Date:      row.Date,
			Label:     row.Label,
			Amount:    core.Money{Cents: row.AmountCents},
			MemberOne: split.MemberOne,
			MemberTwo: split.MemberTwo,
			ImportRef: ref,
		}
		if _, err := s.writer.SaveTransaction(ctx, txn); err != nil {
			return result, fmt.Errorf("save row %q: %w", row.Label, err)
		}
		result.Rows++
	}

	if s.recorder != nil {
		if err := s.recorder.CreateImport(ctx, ref, filename, parser.Format(), result.Rows); err != nil {
			slog.ErrorContext(ctx, "Failed to record import batch",
				"import_ref", ref, "error", err)
			// Transactions are saved; bookkeeping failure is not fatal.
		}
	}

	slog.InfoContext(ctx, "Imported statement",
		"import_ref", ref,
		"filename", filename,
		"format", parser.Format(),
		"rows", result.Rows)

	return result, nil
}
