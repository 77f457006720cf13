package fastq

import (
	"bufio"
	"io"
)

// Writer writes FASTQ records. Writes are buffered; Close flushes and
// closes the underlying stream if it is an io.Closer.
type Writer struct {
	w        *bufio.Writer
	c        io.Closer
	numReads int64
	err      error
	closed   bool
}

// NewWriter returns a Writer that writes records to w.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{w: bufio.NewWriterSize(w, bufferSize)}
	if c, ok := w.(io.Closer); ok {
		wr.c = c
	}
	return wr
}

// Write writes one record.
func (w *Writer) Write(r Record) error {
	return w.WriteLines(r.ID, r.Seq, r.Sep, r.Qual)
}

// WriteLines writes one record (4 lines) or several records laid out flat
// (4N lines). Any other count fails with *BadRecordShapeError and nothing is
// written.
func (w *Writer) WriteLines(lines ...string) error {
	if len(lines) == 0 || len(lines)%4 != 0 {
		return &BadRecordShapeError{Lines: len(lines)}
	}
	for _, line := range lines {
		w.writeln(line)
	}
	if w.err != nil {
		return w.err
	}
	w.numReads += int64(len(lines) / 4)
	return nil
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	if _, w.err = w.w.WriteString(line); w.err == nil {
		w.err = w.w.WriteByte('\n')
	}
}

// NumReads returns the number of records written.
func (w *Writer) NumReads() int64 { return w.numReads }

// Flush writes any buffered data to the underlying stream.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

// Close flushes the writer and closes the underlying stream. Calling Close
// more than once is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.Flush()
	if w.c != nil {
		if cerr := w.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
