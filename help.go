package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Flags shared by all record-processing subcommands
func commonFlagsHelp() []any {
	return []any{
		cyan("-i, --in") + " <string>          : Input FASTQ file (default, '-' for stdin)",
		cyan("-z, --compression") + " <string> : Stream compression (guess, none, gzip, bzip2, zstd) (default, 'guess')",
		cyan("-t, --threads") + " <int>        : Number of worker threads (default, number of CPUs)",
		cyan("    --queue-size") + " <int>     : Maximum number of records in flight (default, 5000)",
		cyan("    --keep-separator") + "       : Keep '+' lines that repeat the read identifier",
		cyan("    --progress") + "             : Show a progress bar on stderr",
		cyan("    --stats-json") + " <string>  : Write run statistics as JSON to this file",
	}
}

const commonFlagsTemplate = `
%s
  %s
  %s
  %s
  %s
  %s
  %s
  %s
`

// Custom help function used
// It provides nicely formatted help messages for the root command and other subcommands
func helpFunc(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()

	printCommon := func() {
		fmt.Fprintf(out, commonFlagsTemplate, append([]any{bold(yellow("Common flags:"))}, commonFlagsHelp()...)...)
		fmt.Fprintln(out)
	}

	// Specialized help for subcommands
	switch cmd.Name() {
	case "filter":
		fmt.Fprintf(out, `
%s

%s
  Drop reads where less than a given fraction of the bases reach the
  quality threshold, reads with too many Ns, and reads with too many
  expected errors. Kept reads can be annotated with quality metrics.

%s
  %s
  %s
  %s
  %s
  %s
  %s
  %s
  %s

%s
  %s
  %s
`,
			bold(getColorizedLogo()+" ngsqc filter - Drops low-quality reads"),
			bold(yellow("Description:")),
			bold(yellow("Flags:")),
			cyan("-o, --out")+" <string>            : Output FASTQ file (default, '-' for stdout)",
			cyan("-Q, --qual-offset")+" <int>       : Quality score offset (default, 33)",
			cyan("-q, --qual-threshold")+" <int>    : Phred score counted as high quality (default, 20)",
			cyan("-r, --pass-rate")+" <float>       : Minimum fraction of high-quality bases (default, 0.8)",
			cyan("-n, --max-ns")+" <int>            : Maximum number of Ns (default, -1 = no limit)",
			cyan("-e, --max-ee")+" <float>          : Maximum expected errors (default, 0 = no limit)",
			cyan("-H, --header")+" <string>         : Comma-separated list of metrics to add to headers (e.g., 'avgphred,maxee,length')",
			cyan("-p, --minphred")+" <int>          : Quality threshold for 'lqcount' and 'lqpercent' header metrics (default, 15)",
			bold(yellow("Examples:")),
			cyan("ngsqc filter -q 20 -r 0.9 --max-ns 2 -i reads.fq.gz -o filtered.fq.gz"),
			cyan("zcat reads.fq.gz | ngsqc filter --max-ee 1 -H maxee,length > filtered.fq"),
		)
		printCommon()
		return
	case "trim":
		fmt.Fprintf(out, `
%s

%s
  Trim bases from the 3' end of each read while they score below the
  quality threshold. Reads left shorter than the minimum length are dropped.

%s
  %s
  %s
  %s
  %s
  %s

%s
  %s
`,
			bold(getColorizedLogo()+" ngsqc trim - Trims low-quality 3' ends"),
			bold(yellow("Description:")),
			bold(yellow("Flags:")),
			cyan("-o, --out")+" <string>            : Output FASTQ file (default, '-' for stdout)",
			cyan("-Q, --qual-offset")+" <int>       : Quality score offset (default, 33)",
			cyan("-q, --qual-threshold")+" <int>    : Trim bases scoring below this value (default, 20)",
			cyan("-l, --min-length")+" <int>        : Drop reads shorter than this after trimming (default, 0)",
			cyan("-N, --remove-trailing-ns")+"      : Also trim trailing Ns",
			bold(yellow("Examples:")),
			cyan("ngsqc trim -q 25 -l 50 -N -i reads.fq.gz -o trimmed.fq.gz"),
		)
		printCommon()
		return
	case "hardtrim":
		fmt.Fprintf(out, `
%s

%s
  Keep at most the first N bases of every read.

%s
  %s
  %s

%s
  %s
`,
			bold(getColorizedLogo()+" ngsqc hardtrim - Cuts reads to a fixed length"),
			bold(yellow("Description:")),
			bold(yellow("Flags:")),
			cyan("-o, --out")+" <string>            : Output FASTQ file (default, '-' for stdout)",
			cyan("-l, --length")+" <int>            : Maximum read length (required)",
			bold(yellow("Examples:")),
			cyan("ngsqc hardtrim -l 100 -i reads.fq -o reads100.fq"),
		)
		printCommon()
		return
	case "split":
		fmt.Fprintf(out, `
%s

%s
  Assign reads to barcodes found at their 5' end, strip the barcode, and
  write each barcode's reads to <prefix>_<description or code><ext>.
  The first barcode in table order that matches wins.

%s
  %s
  %s
  %s
  %s
  %s
  %s
  %s
  %s

%s
  %s

%s
  %s
`,
			bold(getColorizedLogo()+" ngsqc split - Demultiplexes reads by barcode"),
			bold(yellow("Description:")),
			bold(yellow("Flags:")),
			cyan("-b, --barcodes")+" <string>       : Barcode table (required)",
			cyan("-d, --delimiter")+" <string>      : Barcode table field delimiter (default, ',')",
			cyan("-m, --mismatches")+" <int>        : Maximum mismatches between read and barcode (default, 0)",
			cyan("-a, --ambiguity")+"               : Let IUPAC ambiguity codes match the bases they stand for",
			cyan("    --tag-header")+"              : Append 'bcd:<code> desc:<description>' to read headers",
			cyan("-O, --out-dir")+" <string>        : Output directory (default, '.')",
			cyan("-P, --prefix")+" <string>         : Output file name prefix (default, input file name)",
			cyan("-u, --unassigned")+" <string>     : File for reads without a barcode (default, dropped)",
			bold(yellow("Barcode table:")),
			`"ACGTAC,sample1"  (code, then optional description; '#' starts a comment)`,
			bold(yellow("Examples:")),
			cyan("ngsqc split -b barcodes.csv -m 1 -O demux -u unassigned.fq -i reads.fq.gz"),
		)
		printCommon()
		return
	case "dedup":
		fmt.Fprintf(out, `
%s

%s
  Keep one read per distinct sequence. Reads are spread over temporary
  bucket files by sequence prefix, and each bucket is collapsed in memory.
  Output is sorted by sequence.

%s
  %s
  %s
  %s
  %s
  %s
  %s
  %s

%s
  %s
`,
			bold(getColorizedLogo()+" ngsqc dedup - Removes duplicate sequences"),
			bold(yellow("Description:")),
			bold(yellow("Flags:")),
			cyan("-o, --out")+" <string>            : Output FASTQ file (default, '-' for stdout)",
			cyan("-k, --key-length")+" <int>        : Prefix length used for bucketing (default, 5)",
			cyan("    --max-key-length")+" <int>    : Longest prefix used when splitting large buckets (default, 32)",
			cyan("-T, --tmp-dir")+" <string>        : Directory for temporary buckets (default, system temp dir)",
			cyan("-B, --max-bucket-size")+" <int>   : Largest bucket (MiB) collapsed in memory (default, 256)",
			cyan("    --buffer-size")+" <int>       : Bucket data (MiB) buffered before spilling to disk (default, 32)",
			cyan("-c, --bucket-codec")+" <string>   : Bucket file compression (snappy, zstd, none) (default, 'snappy')",
			bold(yellow("Examples:")),
			cyan("ngsqc dedup -k 6 -T /scratch -i reads.fq.gz -o unique.fq.gz"),
		)
		printCommon()
		return
	case "convert":
		fmt.Fprintf(out, `
%s

%s
  Write reads as FASTA, or re-encode quality scores to another offset.

%s
  %s
  %s
  %s
  %s
  %s
  %s

%s
  %s
  %s
`,
			bold(getColorizedLogo()+" ngsqc convert - Converts FASTQ format and quality encoding"),
			bold(yellow("Description:")),
			bold(yellow("Flags:")),
			cyan("-o, --out")+" <string>            : Output file (default, '-' for stdout)",
			cyan("-f, --fasta")+"                   : Write FASTA",
			cyan("-N, --numbered")+"                : Replace FASTA headers with read numbers",
			cyan("-w, --width")+" <int>             : FASTA line width (default, 0 = no wrapping)",
			cyan("-Q, --qual-offset")+" <int>       : Quality offset of the input (default, 33)",
			cyan("    --to-offset")+" <int>         : Quality offset of the output",
			bold(yellow("Examples:")),
			cyan("ngsqc convert --fasta -N -i reads.fq -o reads.fa"),
			cyan("ngsqc convert -Q 64 --to-offset 33 -i old.fq -o sanger.fq"),
		)
		printCommon()
		return
	case "stats":
		fmt.Fprintf(out, `
%s

%s
  Tab-separated per-cycle report: count, min, max, sum, mean, quartiles,
  IQR, whiskers, base counts and GC content.

%s
  %s
  %s

%s
  %s
`,
			bold(getColorizedLogo()+" ngsqc stats - Reports per-cycle quality statistics"),
			bold(yellow("Description:")),
			bold(yellow("Flags:")),
			cyan("-o, --out")+" <string>            : Output TSV file (default, '-' for stdout)",
			cyan("-Q, --qual-offset")+" <int>       : Quality score offset (default, 33)",
			bold(yellow("Examples:")),
			cyan("ngsqc stats -i reads.fq.gz -o cycles.tsv"),
		)
		printCommon()
		return
	}

	// Default: root command help
	fmt.Fprintf(out, `
%s

%s
  %s
  %s
  %s
  %s
  %s
  %s
  %s

%s
  %s
  %s
  %s
  %s
  %s

%s
  Run 'ngsqc <command> --help' for the flags of each command.
  %s

`,
		bold(getColorizedLogo()+" ngsqc v."+VERSION+" - Quality control toolkit for FASTQ files"),
		bold(yellow("Commands:")),
		cyan("filter")+"   : drop reads by quality, N count and expected errors",
		cyan("trim")+"     : trim low-quality bases from the 3' end",
		cyan("hardtrim")+" : cut reads to a fixed length",
		cyan("split")+"    : demultiplex reads by barcode",
		cyan("dedup")+"    : remove reads with duplicate sequences",
		cyan("convert")+"  : convert to FASTA or change the quality offset",
		cyan("stats")+"    : per-cycle quality statistics",
		bold(yellow("Quality metrics (for filter --header):")),
		cyan("avgphred")+"  : average Phred quality score",
		cyan("maxee")+"     : maximum expected error (absolute number)",
		cyan("meep")+"      : maximum expected error (percentage per sequence length)",
		cyan("lqcount")+"   : number of bases below quality threshold (default, 15)",
		cyan("lqpercent")+" : percentage of bases below quality threshold",
		bold(yellow("Usage:")),
		cyan("ngsqc filter -i input.fq.gz -o output.fq.gz"),
	)
}
