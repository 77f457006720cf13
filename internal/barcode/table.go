// Package barcode assigns reads to sample barcodes found at the start of
// their sequence.
package barcode

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Table is an ordered set of barcodes with their descriptions. Order is
// insertion order, which decides between barcodes that both match a read.
type Table struct {
	codes []string
	desc  map[string]string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{desc: make(map[string]string)}
}

// Add appends a barcode. Codes are upper-cased; an empty, duplicate or
// non-IUPAC code is an error.
func (t *Table) Add(code, desc string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fmt.Errorf("empty barcode")
	}
	if !Valid(code) {
		return fmt.Errorf("barcode %q contains non-IUPAC characters", code)
	}
	if _, ok := t.desc[code]; ok {
		return fmt.Errorf("duplicate barcode %q", code)
	}
	t.codes = append(t.codes, code)
	t.desc[code] = desc
	return nil
}

// Codes returns the barcodes in table order.
func (t *Table) Codes() []string {
	return append([]string(nil), t.codes...)
}

// Description returns the description of code, and whether code is known.
func (t *Table) Description(code string) (string, bool) {
	d, ok := t.desc[code]
	return d, ok
}

// Len returns the number of barcodes.
func (t *Table) Len() int { return len(t.codes) }

// ReadTable loads a delimited barcode file: the first column is the code and
// the remaining columns are concatenated into its description. Blank lines
// and lines starting with '#' are ignored.
func ReadTable(r io.Reader, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	t := NewTable()
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading barcode table: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if err := t.Add(fields[0], strings.Join(fields[1:], "")); err != nil {
			return nil, fmt.Errorf("barcode table line %d: %w", line, err)
		}
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("barcode table is empty")
	}
	return t, nil
}
