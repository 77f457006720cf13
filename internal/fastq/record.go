// Package fastq reads and writes FASTQ records as ordered 4-line groups.
package fastq

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is wrapped by every structural error returned by Reader.
	ErrMalformed = errors.New("malformed FASTQ record")
	// ErrBadShape is wrapped by errors returned when a writer is handed a
	// number of lines that is not a positive multiple of four.
	ErrBadShape = errors.New("bad FASTQ record shape")
)

// A Record is one FASTQ entry: identifier line, sequence, separator line
// ("+", optionally followed by the identifier again) and quality string.
// Fields hold the raw lines without their terminators.
type Record struct {
	ID, Seq, Sep, Qual string
}

// Name returns the identifier without its leading '@'.
func (r Record) Name() string {
	if len(r.ID) > 0 && r.ID[0] == '@' {
		return r.ID[1:]
	}
	return r.ID
}

// Lines returns the four lines of the record.
func (r Record) Lines() []string {
	return []string{r.ID, r.Seq, r.Sep, r.Qual}
}

// Trim cuts the sequence and quality to at most n bases.
func (r *Record) Trim(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(r.Seq) {
		r.Seq = r.Seq[:n]
	}
	if n < len(r.Qual) {
		r.Qual = r.Qual[:n]
	}
}

// TrimPrefix drops the first n bases and their scores.
func (r *Record) TrimPrefix(n int) {
	if n > len(r.Seq) {
		n = len(r.Seq)
	}
	r.Seq = r.Seq[n:]
	if n > len(r.Qual) {
		n = len(r.Qual)
	}
	r.Qual = r.Qual[n:]
}

// Compare orders records by sequence, then identifier, quality and separator.
// Records with identical sequences are therefore adjacent after sorting.
func Compare(a, b Record) int {
	switch {
	case a.Seq != b.Seq:
		return cmpString(a.Seq, b.Seq)
	case a.ID != b.ID:
		return cmpString(a.ID, b.ID)
	case a.Qual != b.Qual:
		return cmpString(a.Qual, b.Qual)
	default:
		return cmpString(a.Sep, b.Sep)
	}
}

func cmpString(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// MalformedRecordError reports a structural violation inside one record.
type MalformedRecordError struct {
	Line   int64  // 1-based line number of the identifier line
	ID     string // identifier line of the offending record
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: record %q: %s", e.Line, e.ID, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformed }

// BadRecordShapeError is returned by Writer.WriteLines.
type BadRecordShapeError struct {
	Lines int
}

func (e *BadRecordShapeError) Error() string {
	return fmt.Sprintf("expected a positive multiple of 4 lines, got %d", e.Lines)
}

func (e *BadRecordShapeError) Unwrap() error { return ErrBadShape }

// RecordReader is implemented by Reader.
type RecordReader interface {
	// Read returns the next record, or io.EOF once the stream is exhausted.
	Read() (Record, error)
	NumReads() int64
}

// RecordWriter is implemented by Writer and FastaWriter.
type RecordWriter interface {
	Write(Record) error
	NumReads() int64
	Close() error
}
