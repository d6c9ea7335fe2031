package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bilancio/internal/core"
	"bilancio/internal/ledger/memory"
)

const sampleCSV = `Data,Descrizione,Importo
03/08/2026,ESSELUNGA MILANO,42.50
05/08/2026,RIMBORSO LUCA,-12.00
2026-08-07,"BOLLETTA LUCE, AGOSTO","1.234,56"
`

func TestCSVParser_Parse(t *testing.T) {
	p := &CSVParser{}
	rows, err := p.Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ESSELUNGA MILANO", rows[0].Label)
	assert.Equal(t, int64(4250), rows[0].AmountCents)
	assert.Equal(t, 2026, rows[0].Date.Year())
	assert.Equal(t, 8, rows[0].Date.Month())
	assert.Equal(t, 3, rows[0].Date.Day())

	// Negative amounts survive.
	assert.Equal(t, int64(-1200), rows[1].AmountCents)

	// ISO date and thousands separator with decimal comma.
	assert.Equal(t, 7, rows[2].Date.Day())
	assert.Equal(t, int64(123456), rows[2].AmountCents)
}

func TestCSVParser_HeaderOnly(t *testing.T) {
	p := &CSVParser{}
	rows, err := p.Parse(strings.NewReader("Data,Descrizione,Importo\n"))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestCSVParser_BadDate(t *testing.T) {
	p := &CSVParser{}
	_, err := p.Parse(strings.NewReader("Data,Descrizione,Importo\nNOTADATE,desc,4.00\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing date")
}

func TestCSVParser_BadAmount(t *testing.T) {
	p := &CSVParser{}
	_, err := p.Parse(strings.NewReader("Data,Descrizione,Importo\n03/08/2026,desc,abc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing amount")
}

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, ref, cell))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestXLSXParser_Parse(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"Estratto conto agosto"}, // preamble above the table
		{},
		{"Data", "Descrizione", "Importo"},
		{"03/08/2026", "ESSELUNGA MILANO", "42,50"},
		{"10/08/2026", "BENZINA", "70.00"},
	})

	p := &XLSXParser{}
	rows, err := p.Parse(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "ESSELUNGA MILANO", rows[0].Label)
	assert.Equal(t, int64(4250), rows[0].AmountCents)
	assert.Equal(t, int64(7000), rows[1].AmountCents)
}

func TestXLSXParser_NoHeader(t *testing.T) {
	buf := buildWorkbook(t, [][]any{
		{"just", "some", "cells"},
	})

	p := &XLSXParser{}
	_, err := p.Parse(buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestRegistry_ForFilename(t *testing.T) {
	r := DefaultRegistry()

	p, err := r.ForFilename("agosto.CSV")
	require.NoError(t, err)
	assert.Equal(t, "csv", p.Format())

	p, err = r.ForFilename("agosto.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "xlsx", p.Format())

	_, err = r.ForFilename("agosto.pdf")
	assert.Error(t, err)
}

type recordedBatch struct {
	ref, filename, format string
	rows                  int
}

type fakeRecorder struct {
	batches []recordedBatch
}

func (f *fakeRecorder) CreateImport(_ context.Context, ref, filename, format string, rowCount int) error {
	f.batches = append(f.batches, recordedBatch{ref, filename, format, rowCount})
	return nil
}

func TestService_Import(t *testing.T) {
	store := memory.New()
	recorder := &fakeRecorder{}
	household := core.Household{Members: [2]core.Member{
		{Name: "Anna", IncomeCents: 200000},
		{Name: "Luca", IncomeCents: 100000},
	}}

	svc := NewService(DefaultRegistry(), store, recorder, household, core.SplitEqual)

	result, err := svc.Import(context.Background(), "agosto.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Rows)
	assert.NotEmpty(t, result.Ref)
	assert.False(t, result.Fallback)

	txns, err := store.ListTransactions(context.Background(), 2026, 8)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	for _, txn := range txns {
		assert.Equal(t, result.Ref, txn.ImportRef)
		assert.Equal(t, txn.Amount.Cents, txn.MemberOne.Cents+txn.MemberTwo.Cents,
			"split must reconstruct the amount for %s", txn.Label)
	}

	require.Len(t, recorder.batches, 1)
	assert.Equal(t, "agosto.csv", recorder.batches[0].filename)
	assert.Equal(t, 3, recorder.batches[0].rows)
}

func TestService_UnsupportedFormat(t *testing.T) {
	svc := NewService(DefaultRegistry(), memory.New(), nil, core.Household{}, core.SplitEqual)
	_, err := svc.Import(context.Background(), "estratto.pdf", strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported import format")
}

func TestService_EmptyStatement(t *testing.T) {
	svc := NewService(DefaultRegistry(), memory.New(), nil, core.Household{}, core.SplitEqual)
	_, err := svc.Import(context.Background(), "vuoto.csv", strings.NewReader("Data,Descrizione,Importo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rows")
}
