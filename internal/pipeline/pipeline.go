// Package pipeline connects a record reader, a per-record transform and a
// sink, and runs them sequentially or on a worker pool.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/log"

	"ngsqc/internal/dedup"
	"ngsqc/internal/fastq"
	"ngsqc/internal/parallel"
)

// ctx is polled once per this many reads on the sequential path.
const checkInterval = 4096

// ReaderStats counts what was read.
type ReaderStats struct {
	NumReads int64 `json:"num_reads"`
}

// Stats is the report of one run. Run and RunParallel fill the same
// fields; Runner is set only by RunParallel and Dedup only by Collapse.
type Stats struct {
	Transform string          `json:"transform"`
	Reader    ReaderStats     `json:"reader"`
	Writer    WriterStats     `json:"writer"`
	NumGood   int64           `json:"num_good"`
	NumBad    int64           `json:"num_bad"`
	Runner    *parallel.Stats `json:"runner,omitempty"`
	Dedup     *dedup.Stats    `json:"dedup,omitempty"`
}

// Pipeline reads every record from Reader, applies Transform and passes the
// result to Sink. The Sink is closed when the run ends, whatever the
// outcome.
type Pipeline struct {
	Reader    fastq.RecordReader
	Transform Transform
	Sink      Sink
	// Parallel configures RunParallel. Ordered is forced on when the
	// transform requires it.
	Parallel parallel.Options
}

type counts struct {
	good, bad int64
}

func (c *counts) add(res Result) {
	if res.Keep {
		c.good++
	} else {
		c.bad++
	}
}

// Run processes the stream on the calling goroutine.
func (p *Pipeline) Run(ctx context.Context) (stats *Stats, err error) {
	defer p.closeSink(&err)
	var c counts
	for {
		if (c.good+c.bad)%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := p.Reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		res, err := p.Transform.Apply(rec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Transform.Name(), err)
		}
		c.add(res)
		if err := p.Sink.Write(res); err != nil {
			return nil, err
		}
	}
	return p.stats(c), nil
}

// RunParallel processes the stream with the parallel package. Unless the
// transform is order sensitive or Parallel.Ordered is set, records reach
// the sink in completion order.
func (p *Pipeline) RunParallel(ctx context.Context) (stats *Stats, err error) {
	defer p.closeSink(&err)
	opts := p.Parallel
	opts.Ordered = opts.Ordered || p.Transform.Ordered()

	var c counts
	work := func(rec fastq.Record) (Result, error) {
		res, err := p.Transform.Apply(rec)
		if err != nil {
			return res, fmt.Errorf("%s: %w", p.Transform.Name(), err)
		}
		return res, nil
	}
	runner, err := parallel.Run(ctx, opts, p.Reader.Read, work, func(res Result) error {
		c.add(res)
		return p.Sink.Write(res)
	})
	if err != nil {
		return nil, err
	}
	stats = p.stats(c)
	stats.Runner = &runner
	return stats, nil
}

func (p *Pipeline) stats(c counts) *Stats {
	s := &Stats{
		Transform: p.Transform.Name(),
		Reader:    ReaderStats{NumReads: p.Reader.NumReads()},
		Writer:    p.Sink.Stats(),
		NumGood:   c.good,
		NumBad:    c.bad,
	}
	log.Debug.Printf("%s: read %d, kept %d, dropped %d", s.Transform, s.Reader.NumReads, s.NumGood, s.NumBad)
	return s
}

func (p *Pipeline) closeSink(err *error) {
	if cerr := p.Sink.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// Collapse removes duplicate sequences from r with the dedup engine and
// writes the unique reads to w, which is closed before returning.
func Collapse(ctx context.Context, r fastq.RecordReader, w fastq.RecordWriter, opts dedup.Options) (stats *Stats, err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			stats, err = nil, cerr
		}
	}()
	c, err := dedup.New(opts)
	if err != nil {
		return nil, err
	}
	ds, err := c.Run(ctx, r, w)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Transform: "dedup",
		Reader:    ReaderStats{NumReads: r.NumReads()},
		Writer:    WriterStats{NumReads: w.NumReads()},
		NumGood:   ds.Unique,
		NumBad:    ds.Duplicates,
		Dedup:     &ds,
	}, nil
}
