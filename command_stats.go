// Subcommand (`ngsqc stats`) for per-cycle quality statistics

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ngsqc/internal/fastq"
	"ngsqc/internal/pipeline"
	"ngsqc/internal/quality"
)

// StatsCommand creates the `stats` subcommand which writes one TSV row per
// read position with score quartiles, whiskers and base composition
func StatsCommand() *cobra.Command {
	var (
		opts       ioOptions
		qualOffset int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report per-cycle quality statistics",
		Long: `Summarize quality scores and base composition at every read position (cycle):
minimum, maximum, mean, quartiles, box-plot whiskers, base counts and GC
content. The report is written as tab-separated values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			dec, err := newDecoder(qualOffset)
			if err != nil {
				return err
			}

			in, err := opts.openReader()
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := fastq.CreateOutput(opts.outFile, opts.codec)
			if err != nil {
				return err
			}
			sink := newCycleSink(dec, out)

			stats, err := runTransform(cmd.Context(), &opts, in, pipeline.NewPassthrough(false), sink)
			if err != nil {
				return err
			}
			stats.Transform = "stats"
			return opts.report(cmd, stats)
		},
	}

	addIOFlags(cmd, &opts, true)
	cmd.Flags().IntVarP(&qualOffset, "qual-offset", "Q", DEFAULT_QUAL_OFFSET, "Quality score offset (33 or 64)")

	return cmd
}

// cycleSink feeds every read into a quality.CycleStats and writes the
// summary table when closed. Nothing is written after a failed Write
type cycleSink struct {
	stats  *quality.CycleStats
	out    io.WriteCloser
	failed bool
}

func newCycleSink(dec quality.Decoder, out io.WriteCloser) *cycleSink {
	return &cycleSink{stats: quality.NewCycleStats(dec), out: out}
}

func (s *cycleSink) Write(res pipeline.Result) error {
	if err := s.stats.Add(res.Record.Seq, res.Record.Qual); err != nil {
		s.failed = true
		return fmt.Errorf("record %s: %w", res.Record.ID, err)
	}
	return nil
}

func (s *cycleSink) Close() error {
	var err error
	if !s.failed {
		err = quality.WriteTSV(s.out, s.stats.Summarize())
	}
	if cerr := s.out.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *cycleSink) Stats() pipeline.WriterStats {
	return pipeline.WriterStats{NumReads: s.stats.Reads()}
}
