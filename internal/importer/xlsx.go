package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser parses statement spreadsheets. It scans the first sheet for a
// header row mentioning an amount column, so exports with preamble rows
// above the table still work.
type XLSXParser struct{}

func (p *XLSXParser) Format() string { return "xlsx" }

func (p *XLSXParser) Parse(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	cells, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheetName, err)
	}

	headerIdx := findHeaderRow(cells)
	if headerIdx < 0 {
		return nil, fmt.Errorf("no header row found in sheet %s", sheetName)
	}

	var rows []Row
	for i, rec := range cells[headerIdx+1:] {
		if len(rec) < 3 || allEmpty(rec) {
			continue
		}
		row, err := parseStatementRow(rec[0], rec[1], rec[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", headerIdx+i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func findHeaderRow(cells [][]string) int {
	for i, rec := range cells {
		for _, cell := range rec {
			switch strings.ToLower(strings.TrimSpace(cell)) {
			case "importo", "amount":
				return i
			}
		}
	}
	return -1
}

func allEmpty(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
