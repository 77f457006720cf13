// Subcommands (`ngsqc trim` and `ngsqc hardtrim`) for shortening reads

package main

import (
	"github.com/spf13/cobra"

	"ngsqc/internal/fastq"
	"ngsqc/internal/pipeline"
)

// TrimCommand creates the `trim` subcommand which removes low-quality bases
// (and optionally trailing Ns) from the 3' end of each read, dropping reads
// that end up shorter than a minimum length
func TrimCommand() *cobra.Command {
	var (
		opts             ioOptions
		qualOffset       int
		threshold        int
		minLength        int
		removeTrailingNs bool
	)

	cmd := &cobra.Command{
		Use:   "trim",
		Short: "Trim low-quality bases from the 3' end",
		Long: `Trim FASTQ reads from the 3' end while the last base scores below the quality
threshold (or is an N, with --remove-trailing-ns). Reads shorter than the
minimum length after trimming are dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			dec, err := newDecoder(qualOffset)
			if err != nil {
				return err
			}
			trim, err := pipeline.NewQualTrim(dec, threshold, minLength, removeTrailingNs)
			if err != nil {
				return err
			}
			return runRecordCommand(cmd, &opts, trim, func() (fastq.RecordWriter, error) {
				return opts.createWriter()
			})
		},
	}

	addIOFlags(cmd, &opts, true)
	flags := cmd.Flags()
	flags.IntVarP(&qualOffset, "qual-offset", "Q", DEFAULT_QUAL_OFFSET, "Quality score offset (33 or 64)")
	flags.IntVarP(&threshold, "qual-threshold", "q", DEFAULT_QUAL_THRESHOLD, "Trim 3' bases scoring below this Phred score")
	flags.IntVarP(&minLength, "min-length", "l", 0, "Drop reads shorter than this after trimming")
	flags.BoolVarP(&removeTrailingNs, "remove-trailing-ns", "N", false, "Also trim trailing Ns regardless of their quality")

	return cmd
}

// HardTrimCommand creates the `hardtrim` subcommand which cuts every read to
// a fixed maximum length
func HardTrimCommand() *cobra.Command {
	var (
		opts   ioOptions
		length int
	)

	cmd := &cobra.Command{
		Use:   "hardtrim",
		Short: "Cut reads to a fixed length",
		Long: `Keep at most the first N bases (and quality scores) of every read.
Shorter reads are written unchanged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			trim, err := pipeline.NewHardTrim(length)
			if err != nil {
				return err
			}
			return runRecordCommand(cmd, &opts, trim, func() (fastq.RecordWriter, error) {
				return opts.createWriter()
			})
		},
	}

	addIOFlags(cmd, &opts, true)
	cmd.Flags().IntVarP(&length, "length", "l", 0, "Maximum read length (required)")
	cmd.MarkFlagRequired("length")

	return cmd
}
