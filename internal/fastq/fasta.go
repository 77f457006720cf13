package fastq

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/shenwei356/bio/seq"
)

// FastaWriter converts FASTQ records to FASTA on the fly. Quality strings
// and separator lines are discarded.
type FastaWriter struct {
	w        *bufio.Writer
	c        io.Closer
	width    int
	numbered bool
	numReads int64
	err      error
	closed   bool
}

// NewFastaWriter returns a FastaWriter writing to w. Sequences are wrapped
// at width bases (0 disables wrapping). When numbered is set, headers are
// replaced by the 1-based ordinal of the record in the output.
func NewFastaWriter(w io.Writer, width int, numbered bool) *FastaWriter {
	fw := &FastaWriter{w: bufio.NewWriterSize(w, bufferSize), width: width, numbered: numbered}
	if c, ok := w.(io.Closer); ok {
		fw.c = c
	}
	return fw
}

// Write writes r as a FASTA entry.
func (w *FastaWriter) Write(r Record) error {
	if w.err != nil {
		return w.err
	}
	name := r.Name()
	if w.numbered {
		name = strconv.FormatInt(w.numReads+1, 10)
	}
	s := &seq.Seq{Seq: []byte(r.Seq)}
	body := bytes.TrimRight(s.FormatSeq(w.width), "\n")

	w.w.WriteByte('>')
	w.w.WriteString(name)
	w.w.WriteByte('\n')
	w.w.Write(body)
	if w.err = w.w.WriteByte('\n'); w.err != nil {
		return w.err
	}
	w.numReads++
	return nil
}

// NumReads returns the number of records written.
func (w *FastaWriter) NumReads() int64 { return w.numReads }

// Close flushes the writer and closes the underlying stream.
func (w *FastaWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.err
	if ferr := w.w.Flush(); err == nil {
		err = ferr
	}
	if w.c != nil {
		if cerr := w.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
