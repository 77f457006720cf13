// ngsqc I/O utilities shared by the subcommands: stream opening, progress
// reporting, header annotation and run summaries

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/maruel/natural"
	"github.com/spf13/cobra"

	"ngsqc/internal/fastq"
	"ngsqc/internal/parallel"
	"ngsqc/internal/pipeline"
	"ngsqc/internal/quality"
)

const progressTemplate = `{{ cyan "reads:" }} {{ counters . }} {{ speed . "%s reads/s" }} {{ etime . }}`

// ioOptions holds the flags every record-processing subcommand accepts
type ioOptions struct {
	inFile        string
	outFile       string
	compression   string
	keepSeparator bool
	progress      bool
	statsJSON     string
	threads       int
	queueSize     int

	codec fastq.Compression
}

// addIOFlags registers the shared flags. Commands writing more than one
// output file pass withOutput=false and define their own destination flags
func addIOFlags(cmd *cobra.Command, o *ioOptions, withOutput bool) {
	flags := cmd.Flags()
	flags.StringVarP(&o.inFile, "in", "i", "-", "Input FASTQ file (default: stdin)")
	if withOutput {
		flags.StringVarP(&o.outFile, "out", "o", "-", "Output file (default: stdout)")
	}
	flags.StringVarP(&o.compression, "compression", "z", "guess", "Stream compression (guess, none, gzip, bzip2, zstd)")
	flags.BoolVar(&o.keepSeparator, "keep-separator", false, "Keep separator lines that repeat the read identifier")
	flags.BoolVar(&o.progress, "progress", false, "Show a progress bar on stderr")
	flags.StringVar(&o.statsJSON, "stats-json", "", "Write run statistics as JSON to this file")
	flags.IntVarP(&o.threads, "threads", "t", runtime.NumCPU(), "Number of worker threads")
	flags.IntVar(&o.queueSize, "queue-size", parallel.DefaultQueueSize, "Maximum number of records in flight")
}

// validate checks the shared flags before any file is opened
func (o *ioOptions) validate() error {
	codec, err := fastq.ParseCompression(o.compression)
	if err != nil {
		return err
	}
	o.codec = codec
	if o.threads < 1 {
		return fmt.Errorf("invalid number of threads: %d (must be at least 1)", o.threads)
	}
	if o.queueSize < 1 {
		return fmt.Errorf("invalid queue size: %d (must be at least 1)", o.queueSize)
	}
	return nil
}

func (o *ioOptions) parallelOptions() parallel.Options {
	return parallel.Options{Workers: o.threads, QueueSize: o.queueSize}
}

// inputStream is a FASTQ reader over an opened file that optionally drives
// a progress bar
type inputStream struct {
	*fastq.Reader
	fh  io.Closer
	bar *pb.ProgressBar
}

func (s *inputStream) Read() (fastq.Record, error) {
	rec, err := s.Reader.Read()
	if err == nil && s.bar != nil {
		s.bar.Increment()
	}
	return rec, err
}

func (s *inputStream) Close() error {
	if s.bar != nil {
		s.bar.Finish()
	}
	return s.fh.Close()
}

// openReader opens the input file ("-" for stdin) as a FASTQ record stream
func (o *ioOptions) openReader() (*inputStream, error) {
	fh, err := fastq.OpenInput(o.inFile, o.codec)
	if err != nil {
		return nil, err
	}
	in := &inputStream{
		Reader: fastq.NewReader(fh, fastq.CompactSeparators(!o.keepSeparator)),
		fh:     fh,
	}
	if o.progress {
		in.bar = pb.ProgressBarTemplate(progressTemplate).New(0)
		in.bar.SetWriter(os.Stderr)
		in.bar.Start()
	}
	return in, nil
}

// createWriter creates the output file ("-" for stdout) as a FASTQ writer
func (o *ioOptions) createWriter() (*fastq.Writer, error) {
	fh, err := fastq.CreateOutput(o.outFile, o.codec)
	if err != nil {
		return nil, err
	}
	return fastq.NewWriter(fh), nil
}

// runTransform streams the input through t into sink. A single thread runs
// the pipeline on the calling goroutine
func runTransform(ctx context.Context, o *ioOptions, in fastq.RecordReader, t pipeline.Transform, sink pipeline.Sink) (*pipeline.Stats, error) {
	p := &pipeline.Pipeline{
		Reader:    in,
		Transform: t,
		Sink:      sink,
		Parallel:  o.parallelOptions(),
	}
	if o.threads == 1 {
		return p.Run(ctx)
	}
	return p.RunParallel(ctx)
}

// HeaderMetric represents an additional value appended to read headers.
// The IsLength field indicates whether this is the read length rather than
// a quality metric
type HeaderMetric struct {
	Name     string
	Metric   quality.Metric
	IsLength bool
}

// parseHeaderMetrics parses a comma-separated string of metric names into a
// slice of HeaderMetric structs.
//
// Supported metrics: avgphred, maxee, meep, lqcount, lqpercent, length
//
// Example:
//
//	parseHeaderMetrics("avgphred,maxee,length") // Returns 3 HeaderMetric structs
func parseHeaderMetrics(metrics string) ([]HeaderMetric, error) {
	if metrics == "" {
		return nil, nil
	}

	parts := strings.Split(metrics, ",")
	result := make([]HeaderMetric, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p == "length" {
			result = append(result, HeaderMetric{Name: p, IsLength: true})
			continue
		}
		m, err := quality.ParseMetric(p)
		if err != nil {
			return nil, fmt.Errorf("invalid header metric: %s", p)
		}
		result = append(result, HeaderMetric{Name: m.String(), Metric: m})
	}

	return result, nil
}

// annotateHeader appends "name=value" pairs for the requested metrics to
// the read identifier. Quality metrics are computed on the record as given
func annotateHeader(rec fastq.Record, dec quality.Decoder, metrics []HeaderMetric, minPhred int) fastq.Record {
	if len(metrics) == 0 {
		return rec
	}
	additions := make([]string, 0, len(metrics))
	for _, hm := range metrics {
		if hm.IsLength {
			additions = append(additions, fmt.Sprintf("length=%d", len(rec.Seq)))
			continue
		}
		value := dec.Calculate(hm.Metric, rec.Qual, minPhred)
		additions = append(additions, fmt.Sprintf("%s=%.6f", hm.Name, value))
	}
	rec.ID += " " + strings.Join(additions, " ")
	return rec
}

// annotated wraps a transform so that kept reads get header metrics
type annotated struct {
	pipeline.Transform
	dec      quality.Decoder
	metrics  []HeaderMetric
	minPhred int
}

func withHeaderMetrics(t pipeline.Transform, dec quality.Decoder, metrics []HeaderMetric, minPhred int) pipeline.Transform {
	if len(metrics) == 0 {
		return t
	}
	return &annotated{Transform: t, dec: dec, metrics: metrics, minPhred: minPhred}
}

func (a *annotated) Apply(rec fastq.Record) (pipeline.Result, error) {
	res, err := a.Transform.Apply(rec)
	if err != nil || !res.Keep {
		return res, err
	}
	res.Record = annotateHeader(res.Record, a.dec, a.metrics, a.minPhred)
	return res, nil
}

// sortedBarcodes returns the barcode labels of counts in natural order,
// so that "bc2" comes before "bc10"
func sortedBarcodes(counts map[string]int64) []string {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return natural.Less(labels[i], labels[j]) })
	return labels
}

// printSummary writes a short colored report of a run
func printSummary(w io.Writer, stats *pipeline.Stats) {
	fmt.Fprintf(w, "%s ngsqc %s: %s reads in, %s kept, %s dropped\n",
		getColorizedLogo(), bold(stats.Transform),
		cyan(stats.Reader.NumReads), green(stats.NumGood), yellow(stats.NumBad))

	if stats.Writer.BarcodeCounts != nil {
		for _, code := range sortedBarcodes(stats.Writer.BarcodeCounts) {
			fmt.Fprintf(w, "  %s\t%d\n", cyan(code), stats.Writer.BarcodeCounts[code])
		}
		fmt.Fprintf(w, "  %s\t%d\n", yellow("unassigned"), stats.Writer.Unassigned)
	}
	if d := stats.Dedup; d != nil {
		fmt.Fprintf(w, "  %s %d, %s %d, %s %d\n",
			cyan("buckets"), d.Buckets, cyan("spills"), d.Spills, cyan("repartitions"), d.Repartitions)
	}
}

// writeStatsJSON stores stats as indented JSON at path
func writeStatsJSON(path string, stats *pipeline.Stats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("error writing statistics: %v", err)
	}
	return nil
}

// report prints the run summary and, when requested, the JSON statistics
func (o *ioOptions) report(cmd *cobra.Command, stats *pipeline.Stats) error {
	printSummary(cmd.ErrOrStderr(), stats)
	if o.statsJSON == "" {
		return nil
	}
	return writeStatsJSON(o.statsJSON, stats)
}

// newDecoder validates a quality offset flag
func newDecoder(offset int) (quality.Decoder, error) {
	dec, err := quality.NewDecoder(offset)
	if err != nil {
		return dec, fmt.Errorf("invalid --qual-offset: %v", err)
	}
	return dec, nil
}

// runRecordCommand streams the input through t into a single output
// writer and reports the run
func runRecordCommand(cmd *cobra.Command, o *ioOptions, t pipeline.Transform, create func() (fastq.RecordWriter, error)) error {
	in, err := o.openReader()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := create()
	if err != nil {
		return err
	}

	stats, err := runTransform(cmd.Context(), o, in, t, pipeline.NewRecordSink(out))
	if err != nil {
		return err
	}
	return o.report(cmd, stats)
}
