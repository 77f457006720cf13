package fastq

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const bufferSize = 1 << 16

// Reader is a forward-only FASTQ record reader. It is not safe for
// concurrent use and cannot be rewound; open the stream again to restart.
//
// Lines that precede a record and do not begin with '@' (including blank
// lines) are skipped. Within a record the separator must begin with '+' and
// the sequence and quality must have equal lengths; violations are returned
// as *MalformedRecordError and are sticky.
type Reader struct {
	r        *bufio.Reader
	compact  bool
	line     int64
	numReads int64
	err      error
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// CompactSeparators makes the reader replace a separator line that repeats
// the identifier with a bare "+".
func CompactSeparators(on bool) ReaderOption {
	return func(r *Reader) { r.compact = on }
}

// NewReader returns a Reader consuming raw FASTQ text from r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	rd := &Reader{r: bufio.NewReaderSize(r, bufferSize)}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// NumReads returns the number of records returned so far.
func (r *Reader) NumReads() int64 { return r.numReads }

// Read returns the next record. It returns io.EOF when the stream ends
// cleanly between records.
func (r *Reader) Read() (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	rec, err := r.read()
	if err != nil {
		r.err = err
		return Record{}, err
	}
	r.numReads++
	return rec, nil
}

func (r *Reader) read() (Record, error) {
	var rec Record
	for {
		line, err := r.readLine()
		if err == io.EOF {
			return rec, io.EOF
		}
		if err != nil {
			return rec, errors.Wrapf(err, "reading line %d", r.line+1)
		}
		if len(line) > 0 && line[0] == '@' {
			rec.ID = line
			break
		}
	}
	start := r.line
	for _, field := range []*string{&rec.Seq, &rec.Sep, &rec.Qual} {
		line, err := r.readLine()
		if err == io.EOF {
			return rec, &MalformedRecordError{Line: start, ID: rec.ID, Reason: "truncated record"}
		}
		if err != nil {
			return rec, errors.Wrapf(err, "reading record at line %d", start)
		}
		*field = line
	}
	if len(rec.Sep) == 0 || rec.Sep[0] != '+' {
		return rec, &MalformedRecordError{Line: start, ID: rec.ID,
			Reason: fmt.Sprintf("separator line %q does not begin with '+'", rec.Sep)}
	}
	if len(rec.Seq) != len(rec.Qual) {
		return rec, &MalformedRecordError{Line: start, ID: rec.ID,
			Reason: fmt.Sprintf("sequence length %d differs from quality length %d", len(rec.Seq), len(rec.Qual))}
	}
	if r.compact && len(rec.Sep) > 1 && rec.Sep[1:] == rec.ID[1:] {
		rec.Sep = "+"
	}
	return rec, nil
}

// readLine returns the next line without its terminator. A final line
// lacking a newline is still returned.
func (r *Reader) readLine() (string, error) {
	s, err := r.r.ReadString('\n')
	if err == io.EOF && len(s) > 0 {
		err = nil
	}
	if err != nil {
		return "", err
	}
	r.line++
	return strings.TrimRight(s, "\r\n"), nil
}
