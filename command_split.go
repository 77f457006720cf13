// Subcommand (`ngsqc split`) for demultiplexing reads by barcode

package main

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"ngsqc/internal/barcode"
	"ngsqc/internal/pipeline"
)

// SplitCommand creates the `split` subcommand which assigns every read to
// the first barcode in the table matching its 5' end, strips the barcode
// and writes each barcode's reads to its own file
func SplitCommand() *cobra.Command {
	var (
		opts        ioOptions
		barcodeFile string
		delimiter   string
		mismatches  int
		ambiguity   bool
		tagHeader   bool
		outDir      string
		prefix      string
		unassigned  string
	)

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Demultiplex reads by barcode",
		Long: `Split FASTQ reads by the barcode found at the start of each sequence.
Barcodes are read from a delimited file (code, then an optional description).
Each barcode gets an output file named <prefix>_<description or code><ext>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			delim, err := parseDelimiter(delimiter)
			if err != nil {
				return err
			}
			table, err := loadBarcodes(barcodeFile, delim)
			if err != nil {
				return err
			}
			split, err := pipeline.NewBarcodeSplit(table, mismatches, ambiguity, tagHeader)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("error creating output directory: %v", err)
			}

			stem, ext := pipeline.SplitNames(opts.inFile)
			if prefix != "" {
				stem = prefix
			}
			sink := pipeline.NewSplitSink(table, pipeline.SplitOptions{
				Dir:         outDir,
				Stem:        stem,
				Ext:         ext,
				Compression: opts.codec,
				Unassigned:  unassigned,
			})

			in, err := opts.openReader()
			if err != nil {
				sink.Close()
				return err
			}
			defer in.Close()

			stats, err := runTransform(cmd.Context(), &opts, in, split, sink)
			if err != nil {
				return err
			}
			return opts.report(cmd, stats)
		},
	}

	addIOFlags(cmd, &opts, false)
	flags := cmd.Flags()
	flags.StringVarP(&barcodeFile, "barcodes", "b", "", "Barcode table (code[,description]) (required)")
	flags.StringVarP(&delimiter, "delimiter", "d", ",", "Barcode table field delimiter (a single character, or 'tab')")
	flags.IntVarP(&mismatches, "mismatches", "m", 0, "Maximum number of mismatches between read and barcode")
	flags.BoolVarP(&ambiguity, "ambiguity", "a", false, "Let IUPAC ambiguity codes match any base they stand for")
	flags.BoolVar(&tagHeader, "tag-header", false, "Append 'bcd:<code> desc:<description>' to assigned read headers")
	flags.StringVarP(&outDir, "out-dir", "O", ".", "Directory for the per-barcode output files")
	flags.StringVarP(&prefix, "prefix", "P", "", "Output file name prefix (default: input file name)")
	flags.StringVarP(&unassigned, "unassigned", "u", "", "Write reads without a barcode to this file (default: drop them)")
	cmd.MarkFlagRequired("barcodes")

	return cmd
}

// parseDelimiter accepts a single character or the names "tab" and "\t"
func parseDelimiter(s string) (rune, error) {
	switch s {
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if s == "" || size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter: %q", s)
	}
	return r, nil
}

func loadBarcodes(path string, delim rune) (*barcode.Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening barcode table: %v", err)
	}
	defer fh.Close()
	return barcode.ReadTable(fh, delim)
}
