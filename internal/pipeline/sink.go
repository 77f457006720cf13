package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"ngsqc/internal/barcode"
	"ngsqc/internal/fastq"
)

// WriterStats counts what a Sink wrote.
type WriterStats struct {
	NumReads      int64            `json:"num_reads"`
	BarcodeCounts map[string]int64 `json:"barcode_counts,omitempty"`
	Unassigned    int64            `json:"unassigned,omitempty"`
}

// Sink consumes transform results. Write is only ever called from one
// goroutine at a time.
type Sink interface {
	Write(Result) error
	Close() error
	Stats() WriterStats
}

// RecordSink writes kept records to a single writer.
type RecordSink struct {
	w fastq.RecordWriter
}

func NewRecordSink(w fastq.RecordWriter) *RecordSink {
	return &RecordSink{w: w}
}

func (s *RecordSink) Write(res Result) error {
	if !res.Keep {
		return nil
	}
	return s.w.Write(res.Record)
}

func (s *RecordSink) Close() error { return s.w.Close() }

func (s *RecordSink) Stats() WriterStats {
	return WriterStats{NumReads: s.w.NumReads()}
}

// SplitOptions configures a SplitSink.
type SplitOptions struct {
	// Dir receives one file per barcode named <Stem>_<id><Ext>, where id
	// is the barcode's description, or the code itself when the
	// description is empty.
	Dir, Stem, Ext string
	Compression    fastq.Compression
	// Unassigned is the path for reads without a barcode. Empty drops
	// them.
	Unassigned string
}

// SplitNames derives the stem and extension for SplitOptions from an input
// path: everything up to the first '.' of the base name, and the rest.
func SplitNames(input string) (stem, ext string) {
	if input == "" || input == "-" {
		return "reads", ".fastq"
	}
	base := filepath.Base(input)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i], base[i:]
	}
	return base, ""
}

// SplitSink writes each barcode's reads to its own file. Files are created
// on the first read for their path; barcodes resolving to the same path
// share one writer.
type SplitSink struct {
	table     *barcode.Table
	opts      SplitOptions
	writers   map[string]*fastq.Writer
	order     []string
	counts    map[string]int64
	numNoCode int64
}

func NewSplitSink(table *barcode.Table, opts SplitOptions) *SplitSink {
	return &SplitSink{
		table:   table,
		opts:    opts,
		writers: make(map[string]*fastq.Writer),
		counts:  make(map[string]int64),
	}
}

// Path returns the output path used for code.
func (s *SplitSink) Path(code string) string {
	id := code
	if desc, _ := s.table.Description(code); desc != "" {
		id = desc
	}
	id = strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(id)
	return filepath.Join(s.opts.Dir, s.opts.Stem+"_"+id+s.opts.Ext)
}

func (s *SplitSink) Write(res Result) error {
	if !res.Keep {
		return nil
	}
	if res.Barcode == "" {
		s.numNoCode++
		if s.opts.Unassigned == "" {
			return nil
		}
		w, err := s.writer(s.opts.Unassigned)
		if err != nil {
			return err
		}
		return w.Write(res.Record)
	}

	w, err := s.writer(s.Path(res.Barcode))
	if err != nil {
		return err
	}
	if err := w.Write(res.Record); err != nil {
		return err
	}
	s.counts[res.Barcode]++
	return nil
}

// writer returns the open writer for path, creating the file on first use.
func (s *SplitSink) writer(path string) (*fastq.Writer, error) {
	key := filepath.Clean(path)
	if w, ok := s.writers[key]; ok {
		return w, nil
	}
	out, err := fastq.CreateOutput(path, s.opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("barcode output: %w", err)
	}
	w := fastq.NewWriter(out)
	s.writers[key] = w
	s.order = append(s.order, key)
	return w, nil
}

// Close closes every output and returns the first error.
func (s *SplitSink) Close() error {
	var first error
	for _, path := range s.order {
		if err := s.writers[path].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Stats counts assigned reads only in NumReads.
func (s *SplitSink) Stats() WriterStats {
	st := WriterStats{BarcodeCounts: make(map[string]int64, len(s.counts)), Unassigned: s.numNoCode}
	for code, n := range s.counts {
		st.BarcodeCounts[code] = n
		st.NumReads += n
	}
	return st
}
