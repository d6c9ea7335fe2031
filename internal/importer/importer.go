// Package importer turns bank statement exports into transactions.
package importer

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"bilancio/internal/core"
)

// ErrUnsupportedFormat is returned when no parser matches the file extension.
var ErrUnsupportedFormat = errors.New("unsupported import format")

// Row is one parsed statement line before splitting.
type Row struct {
	Date        core.Date
	Label       string
	AmountCents int64
}

// Parser converts a statement file into rows.
type Parser interface {
	Parse(r io.Reader) ([]Row, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// ForFilename returns the parser matching the file extension, or an error
// for unsupported formats.
func (r *Registry) ForFilename(name string) (Parser, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	p := r.Get(ext)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return p, nil
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CSVParser{})
	r.Register(&XLSXParser{})
	return r
}
