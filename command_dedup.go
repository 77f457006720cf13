// Subcommand (`ngsqc dedup`) for collapsing duplicate sequences.
// Reads are partitioned into on-disk buckets by sequence prefix, so memory
// use is bounded by the largest bucket rather than by the input size

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ngsqc/internal/dedup"
	"ngsqc/internal/pipeline"
)

// DedupCommand creates the `dedup` subcommand which keeps one read per
// distinct sequence. Output is sorted by sequence; of several reads sharing
// a sequence, the one with the smallest identifier is kept
func DedupCommand() *cobra.Command {
	var (
		opts          ioOptions
		keyLength     int
		maxKeyLength  int
		tmpDir        string
		maxBucketSize int64
		bufferSize    int64
		bucketCodec   string
	)

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Remove reads with duplicate sequences",
		Long: `Collapse FASTQ reads that share the same sequence. Reads are distributed into
temporary bucket files by their first bases; each bucket is then sorted and
collapsed on its own. Buckets that grow past --max-bucket-size are split
again by a longer prefix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			codec, err := dedup.ParseCodec(bucketCodec)
			if err != nil {
				return err
			}
			if keyLength < 1 {
				return fmt.Errorf("invalid --key-length: %d (must be at least 1)", keyLength)
			}
			if bufferSize < 1 {
				return fmt.Errorf("invalid --buffer-size: %d (must be at least 1)", bufferSize)
			}
			dedupOpts := dedup.Options{
				KeyLength:      keyLength,
				MaxKeyLength:   maxKeyLength,
				TmpDir:         tmpDir,
				MaxBucketBytes: maxBucketSize << 20,
				BufferBytes:    bufferSize << 20,
				Codec:          codec,
			}
			if maxBucketSize < 0 {
				dedupOpts.MaxBucketBytes = -1
			}

			in, err := opts.openReader()
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := opts.createWriter()
			if err != nil {
				return err
			}

			stats, err := pipeline.Collapse(cmd.Context(), in, out, dedupOpts)
			if err != nil {
				return err
			}
			return opts.report(cmd, stats)
		},
	}

	addIOFlags(cmd, &opts, true)
	flags := cmd.Flags()
	flags.IntVarP(&keyLength, "key-length", "k", dedup.DefaultKeyLength, "Sequence prefix length used to assign reads to buckets")
	flags.IntVar(&maxKeyLength, "max-key-length", dedup.DefaultMaxKeyLength, "Longest prefix used when splitting oversized buckets")
	flags.StringVarP(&tmpDir, "tmp-dir", "T", "", "Directory for temporary bucket files (default: system temp dir)")
	flags.Int64VarP(&maxBucketSize, "max-bucket-size", "B", dedup.DefaultMaxBucketBytes>>20, "Largest bucket (MiB) collapsed in memory (negative never splits)")
	flags.Int64Var(&bufferSize, "buffer-size", dedup.DefaultBufferBytes>>20, "Bucket data (MiB) buffered in memory before spilling to disk")
	flags.StringVarP(&bucketCodec, "bucket-codec", "c", "snappy", "Compression of temporary bucket files (snappy, zstd, none)")

	// Collapsing runs on a single goroutine
	flags.MarkHidden("threads")
	flags.MarkHidden("queue-size")

	return cmd
}
