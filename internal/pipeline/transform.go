package pipeline

import (
	"fmt"

	"ngsqc/internal/barcode"
	"ngsqc/internal/fastq"
	"ngsqc/internal/quality"
)

// Result is the outcome of applying a Transform to one record.
type Result struct {
	Record fastq.Record
	// Keep is false when the record failed QC and must not be written.
	Keep bool
	// Barcode is the matched barcode, or empty if the record was not
	// assigned one.
	Barcode string
}

// Transform is a per-record operation. Apply must not retain or share the
// record it is given; implementations are safe for concurrent use.
type Transform interface {
	Name() string
	Apply(fastq.Record) (Result, error)
	// Ordered reports whether the output depends on records arriving at
	// the sink in input order.
	Ordered() bool
}

// Filter drops reads with too many Ns, too few high-quality bases or too
// many expected errors.
type Filter struct {
	dec       quality.Decoder
	threshold int
	passRate  float64
	maxNs     int
	maxEE     float64
}

// NewFilter returns a Filter keeping reads where at least passRate of the
// bases score threshold or more. maxNs < 0 disables the N count check and
// maxEE <= 0 disables the expected error check.
func NewFilter(dec quality.Decoder, threshold int, passRate float64, maxNs int, maxEE float64) (*Filter, error) {
	if passRate < 0 || passRate > 1 {
		return nil, fmt.Errorf("pass rate %v outside 0..1", passRate)
	}
	if threshold < 0 {
		return nil, fmt.Errorf("invalid quality threshold: %d", threshold)
	}
	return &Filter{dec: dec, threshold: threshold, passRate: passRate, maxNs: maxNs, maxEE: maxEE}, nil
}

func (f *Filter) Name() string  { return "filter" }
func (f *Filter) Ordered() bool { return false }

func (f *Filter) Apply(rec fastq.Record) (Result, error) {
	res := Result{Record: rec}
	if len(rec.Qual) == 0 {
		return res, nil
	}
	// Corrupt qualities are fatal whatever the other checks would decide.
	scores, err := f.dec.Scores(rec.Qual)
	if err != nil {
		return res, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	if f.maxNs >= 0 && countNs(rec.Seq) > f.maxNs {
		return res, nil
	}
	good := 0
	for _, s := range scores {
		if s >= f.threshold {
			good++
		}
	}
	if float64(good)/float64(len(rec.Qual)) < f.passRate {
		return res, nil
	}
	if f.maxEE > 0 && f.dec.MaxEE(rec.Qual) > f.maxEE {
		return res, nil
	}
	res.Keep = true
	return res, nil
}

func countNs(seq string) int {
	n := 0
	for i := 0; i < len(seq); i++ {
		if seq[i] == 'N' || seq[i] == 'n' {
			n++
		}
	}
	return n
}

// QualTrim removes low-quality bases (and optionally Ns) from the 3' end
// and drops reads left shorter than a minimum length.
type QualTrim struct {
	dec        quality.Decoder
	threshold  int
	minLength  int
	trailingNs bool
}

func NewQualTrim(dec quality.Decoder, threshold, minLength int, removeTrailingNs bool) (*QualTrim, error) {
	if threshold < 0 || minLength < 0 {
		return nil, fmt.Errorf("invalid trim settings: threshold %d, min length %d", threshold, minLength)
	}
	return &QualTrim{dec: dec, threshold: threshold, minLength: minLength, trailingNs: removeTrailingNs}, nil
}

func (t *QualTrim) Name() string  { return "trim" }
func (t *QualTrim) Ordered() bool { return false }

func (t *QualTrim) Apply(rec fastq.Record) (Result, error) {
	scores, err := t.dec.Scores(rec.Qual)
	if err != nil {
		return Result{Record: rec}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	end := min(len(rec.Seq), len(scores))
	for end > 0 {
		if c := rec.Seq[end-1]; t.trailingNs && (c == 'N' || c == 'n') {
			end--
			continue
		}
		if scores[end-1] >= t.threshold {
			break
		}
		end--
	}
	rec.Trim(end)
	return Result{Record: rec, Keep: len(rec.Seq) >= t.minLength}, nil
}

// HardTrim cuts every read to a fixed maximum length.
type HardTrim struct {
	length int
}

func NewHardTrim(length int) (*HardTrim, error) {
	if length < 0 {
		return nil, fmt.Errorf("invalid trim length: %d", length)
	}
	return &HardTrim{length: length}, nil
}

func (t *HardTrim) Name() string  { return "hardtrim" }
func (t *HardTrim) Ordered() bool { return false }

func (t *HardTrim) Apply(rec fastq.Record) (Result, error) {
	rec.Trim(t.length)
	return Result{Record: rec, Keep: true}, nil
}

// BarcodeSplit assigns reads to barcodes and strips the matched prefix.
// Unassigned reads are kept with an empty Barcode; the sink decides what to
// do with them.
type BarcodeSplit struct {
	table   *barcode.Table
	matcher *barcode.Matcher
	tag     bool
}

// NewBarcodeSplit returns a BarcodeSplit matching against table. When tag
// is set, " bcd:<code> desc:<description>" is appended to the identifier
// of assigned reads.
func NewBarcodeSplit(table *barcode.Table, mismatches int, ambiguity, tag bool) (*BarcodeSplit, error) {
	m, err := barcode.NewMatcher(table, mismatches, ambiguity)
	if err != nil {
		return nil, err
	}
	return &BarcodeSplit{table: table, matcher: m, tag: tag}, nil
}

func (b *BarcodeSplit) Name() string  { return "split" }
func (b *BarcodeSplit) Ordered() bool { return false }

func (b *BarcodeSplit) Apply(rec fastq.Record) (Result, error) {
	code, n, ok := b.matcher.Match(rec.Seq)
	if !ok {
		return Result{Record: rec, Keep: true}, nil
	}
	rec.TrimPrefix(n)
	if b.tag {
		desc, _ := b.table.Description(code)
		rec.ID += fmt.Sprintf(" bcd:%s desc:%s", code, desc)
	}
	return Result{Record: rec, Keep: true, Barcode: code}, nil
}

// OffsetConvert re-encodes quality strings to another offset.
type OffsetConvert struct {
	from, to quality.Decoder
}

func NewOffsetConvert(from, to quality.Decoder) *OffsetConvert {
	return &OffsetConvert{from: from, to: to}
}

func (c *OffsetConvert) Name() string  { return "convert" }
func (c *OffsetConvert) Ordered() bool { return false }

func (c *OffsetConvert) Apply(rec fastq.Record) (Result, error) {
	q, err := quality.Convert(rec.Qual, c.from, c.to)
	if err != nil {
		return Result{Record: rec}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.Qual = q
	return Result{Record: rec, Keep: true}, nil
}

// Passthrough keeps every record unchanged. It carries format conversions,
// which happen in the sink; set ordered when the sink numbers records.
type Passthrough struct {
	ordered bool
}

func NewPassthrough(ordered bool) *Passthrough { return &Passthrough{ordered: ordered} }

func (p *Passthrough) Name() string  { return "passthrough" }
func (p *Passthrough) Ordered() bool { return p.ordered }

func (p *Passthrough) Apply(rec fastq.Record) (Result, error) {
	return Result{Record: rec, Keep: true}, nil
}
