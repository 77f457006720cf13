// Subcommand (`ngsqc filter`) for quality filtering of FASTQ reads.
// Reads are emitted in input order unless several threads are used.

package main

import (
	"github.com/spf13/cobra"

	"ngsqc/internal/fastq"
	"ngsqc/internal/pipeline"
)

// FilterCommand creates the `filter` subcommand which drops reads with too
// many Ns, too few high-quality bases or too many expected errors.
//
// Kept reads can optionally be annotated with quality metrics in their
// headers. Records are processed in a streaming fashion, so memory use does
// not depend on the input size
func FilterCommand() *cobra.Command {
	var (
		opts          ioOptions
		qualOffset    int
		threshold     int
		passRate      float64
		maxNs         int
		maxEE         float64
		minPhred      int
		headerMetrics string
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Drop low-quality reads",
		Long: `Filter FASTQ reads by the fraction of bases reaching a quality threshold,
by the number of ambiguous bases (N) and by the number of expected errors.
Reads that pass can be annotated with quality metrics in their headers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			parsedHeaderMetrics, err := parseHeaderMetrics(headerMetrics)
			if err != nil {
				return err
			}
			dec, err := newDecoder(qualOffset)
			if err != nil {
				return err
			}
			filter, err := pipeline.NewFilter(dec, threshold, passRate, maxNs, maxEE)
			if err != nil {
				return err
			}

			t := withHeaderMetrics(filter, dec, parsedHeaderMetrics, minPhred)
			return runRecordCommand(cmd, &opts, t, func() (fastq.RecordWriter, error) {
				return opts.createWriter()
			})
		},
	}

	addIOFlags(cmd, &opts, true)
	flags := cmd.Flags()
	flags.IntVarP(&qualOffset, "qual-offset", "Q", DEFAULT_QUAL_OFFSET, "Quality score offset (33 or 64)")
	flags.IntVarP(&threshold, "qual-threshold", "q", DEFAULT_QUAL_THRESHOLD, "Phred score a base must reach to count as high quality")
	flags.Float64VarP(&passRate, "pass-rate", "r", DEFAULT_PASS_RATE, "Minimum fraction of high-quality bases")
	flags.IntVarP(&maxNs, "max-ns", "n", -1, "Maximum number of Ns (negative disables the check)")
	flags.Float64VarP(&maxEE, "max-ee", "e", 0, "Maximum expected errors (0 disables the check)")
	flags.IntVarP(&minPhred, "minphred", "p", DEFAULT_MIN_PHRED, "Quality threshold for 'lqcount' and 'lqpercent' header metrics")
	flags.StringVarP(&headerMetrics, "header", "H", "", "Comma-separated list of metrics to add to headers (e.g., 'avgphred,maxee,length')")

	return cmd
}
