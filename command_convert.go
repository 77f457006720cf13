// Subcommand (`ngsqc convert`) for format and quality encoding conversion

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ngsqc/internal/fastq"
	"ngsqc/internal/pipeline"
)

// ConvertCommand creates the `convert` subcommand. It either writes the
// reads as FASTA (optionally replacing headers with read numbers) or
// re-encodes quality strings from one Phred offset to another
func ConvertCommand() *cobra.Command {
	var (
		opts       ioOptions
		toFasta    bool
		numbered   bool
		width      int
		fromOffset int
		toOffset   int
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert FASTQ to FASTA or change the quality offset",
		Long: `Convert FASTQ reads to FASTA (--fasta), optionally numbering the records
instead of keeping their headers, or re-encode quality scores from one
offset to another (e.g. --qual-offset 64 --to-offset 33).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			if toFasta && toOffset != 0 {
				return fmt.Errorf("--fasta and --to-offset are mutually exclusive")
			}
			if !toFasta && toOffset == 0 {
				return fmt.Errorf("nothing to do: use --fasta or --to-offset")
			}
			if (numbered || width != 0) && !toFasta {
				return fmt.Errorf("--numbered and --width require --fasta")
			}
			if width < 0 {
				return fmt.Errorf("invalid --width: %d", width)
			}

			if toFasta {
				t := pipeline.NewPassthrough(numbered)
				return runRecordCommand(cmd, &opts, t, func() (fastq.RecordWriter, error) {
					fh, err := fastq.CreateOutput(opts.outFile, opts.codec)
					if err != nil {
						return nil, err
					}
					return fastq.NewFastaWriter(fh, width, numbered), nil
				})
			}

			from, err := newDecoder(fromOffset)
			if err != nil {
				return err
			}
			to, err := newDecoder(toOffset)
			if err != nil {
				return fmt.Errorf("invalid --to-offset: %v", err)
			}
			t := pipeline.NewOffsetConvert(from, to)
			return runRecordCommand(cmd, &opts, t, func() (fastq.RecordWriter, error) {
				return opts.createWriter()
			})
		},
	}

	addIOFlags(cmd, &opts, true)
	flags := cmd.Flags()
	flags.BoolVarP(&toFasta, "fasta", "f", false, "Write FASTA instead of FASTQ")
	flags.BoolVarP(&numbered, "numbered", "N", false, "Replace FASTA headers with read numbers (1, 2, ...)")
	flags.IntVarP(&width, "width", "w", 0, "Wrap FASTA sequences at this many bases (0 disables wrapping)")
	flags.IntVarP(&fromOffset, "qual-offset", "Q", DEFAULT_QUAL_OFFSET, "Quality score offset of the input")
	flags.IntVar(&toOffset, "to-offset", 0, "Quality score offset of the output")

	return cmd
}
