package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// CSVParser parses generic bank statement CSV exports with a
// date, description, amount column layout.
type CSVParser struct{}

const (
	csvNumFields = 3
	csvColDate   = 0
	csvColLabel  = 1
	csvColAmount = 2
)

// Italian bank exports use day-first dates; some tools emit ISO.
var csvDateFormats = []string{"02/01/2006", "2006-01-02", "02-01-2006"}

func (p *CSVParser) Format() string { return "csv" }

func (p *CSVParser) Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = csvNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading statement CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var rows []Row
	for i, rec := range records[1:] {
		row, err := parseStatementRow(rec[csvColDate], rec[csvColLabel], rec[csvColAmount])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseStatementRow(dateField, labelField, amountField string) (Row, error) {
	date, err := parseStatementDate(dateField)
	if err != nil {
		return Row{}, err
	}

	cents, err := parseStatementAmount(amountField)
	if err != nil {
		return Row{}, err
	}

	label := strings.TrimSpace(labelField)
	if label == "" {
		return Row{}, fmt.Errorf("empty description")
	}

	return Row{
		Date:        core.NewDate(date.Year(), int(date.Month()), date.Day()),
		Label:       label,
		AmountCents: cents,
	}, nil
}

func parseStatementDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}

// parseStatementAmount accepts both decimal comma and decimal dot, with
// optional thousands separators.
func parseStatementAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		// "1.234,56" -> "1234.56"
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
