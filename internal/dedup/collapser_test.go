package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ngsqc/internal/fastq"
)

type sliceReader struct {
	recs []fastq.Record
	n    int64
	err  error // returned instead of io.EOF
}

func (s *sliceReader) Read() (fastq.Record, error) {
	if int(s.n) == len(s.recs) {
		if s.err != nil {
			return fastq.Record{}, s.err
		}
		return fastq.Record{}, io.EOF
	}
	s.n++
	return s.recs[s.n-1], nil
}

func (s *sliceReader) NumReads() int64 { return s.n }

type sliceWriter struct {
	recs []fastq.Record
	err  error
}

func (s *sliceWriter) Write(r fastq.Record) error {
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, r)
	return nil
}

func (s *sliceWriter) NumReads() int64 { return int64(len(s.recs)) }
func (s *sliceWriter) Close() error    { return nil }

func randomRecords(n int, seed int64) []fastq.Record {
	rng := rand.New(rand.NewSource(seed))
	recs := make([]fastq.Record, n)
	for i := range recs {
		l := rng.Intn(12)
		seq := make([]byte, l)
		qual := make([]byte, l)
		for j := range seq {
			seq[j] = "ACGT"[rng.Intn(3)] // no T, more collisions
			qual[j] = byte('!' + rng.Intn(40))
		}
		recs[i] = fastq.Record{
			ID:   fmt.Sprintf("@read%05d", rng.Intn(n*10)),
			Seq:  string(seq),
			Sep:  "+",
			Qual: string(qual),
		}
	}
	return recs
}

// expected computes the unique reads directly in memory.
func expected(recs []fastq.Record) []fastq.Record {
	best := map[string]fastq.Record{}
	for _, r := range recs {
		if b, ok := best[r.Seq]; !ok || fastq.Compare(r, b) < 0 {
			best[r.Seq] = r
		}
	}
	out := make([]fastq.Record, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func collapse(t *testing.T, opts Options, recs []fastq.Record) ([]fastq.Record, Stats) {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)
	w := &sliceWriter{}
	stats, err := c.Run(context.Background(), &sliceReader{recs: recs}, w)
	require.NoError(t, err)
	return w.recs, stats
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files left behind")
}

func TestCollapse(t *testing.T) {
	recs := []fastq.Record{
		{ID: "@c", Seq: "ACGTACGT", Sep: "+", Qual: "IIIIIIII"},
		{ID: "@a", Seq: "TTTT", Sep: "+", Qual: "IIII"},
		{ID: "@b", Seq: "ACGTACGT", Sep: "+", Qual: "########"},
		{ID: "@d", Seq: "ACG", Sep: "+", Qual: "III"},
		{ID: "@e", Seq: "ACGTACGA", Sep: "+", Qual: "IIIIIIII"},
		{ID: "@f", Seq: "ACG", Sep: "+", Qual: "###"},
		{ID: "@g", Seq: "", Sep: "+", Qual: ""},
	}
	dir := t.TempDir()
	got, stats := collapse(t, Options{TmpDir: dir}, recs)
	want := []fastq.Record{recs[6], recs[3], recs[4], recs[2], recs[1]}
	assert.Equal(t, want, got)
	assert.Equal(t, Stats{Reads: 7, Unique: 5, Duplicates: 2, Buckets: 4}, stats)
	assertEmptyDir(t, dir)
}

func TestCollapseMatchesInMemory(t *testing.T) {
	recs := randomRecords(3000, 1)
	want := expected(recs)
	tests := []struct {
		name string
		opts Options
	}{
		{"defaults", Options{}},
		{"key length 1", Options{KeyLength: 1}},
		{"spill snappy", Options{KeyLength: 2, BufferBytes: 512, Codec: Snappy}},
		{"spill zstd", Options{KeyLength: 2, BufferBytes: 512, Codec: Zstd}},
		{"spill plain", Options{KeyLength: 2, BufferBytes: 512, Codec: Plain}},
		{"repartition", Options{KeyLength: 1, MaxBucketBytes: 256, MaxKeyLength: 6}},
		{"repartition with spills", Options{KeyLength: 1, MaxBucketBytes: 256, MaxKeyLength: 20, BufferBytes: 1024, Codec: Zstd}},
		{"repartition disabled", Options{KeyLength: 1, MaxBucketBytes: -1, BufferBytes: 1024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.TmpDir = t.TempDir()
			got, stats := collapse(t, tt.opts, recs)
			assert.Equal(t, want, got)
			assert.Equal(t, int64(len(recs)), stats.Reads)
			assert.Equal(t, int64(len(want)), stats.Unique)
			assert.Equal(t, stats.Reads-stats.Unique, stats.Duplicates)
			if tt.opts.BufferBytes > 0 {
				assert.Greater(t, stats.Spills, 0)
			}
			if tt.opts.MaxBucketBytes > 0 {
				assert.Greater(t, stats.Repartitions, 0)
			} else {
				assert.Zero(t, stats.Repartitions)
			}
			assertEmptyDir(t, tt.opts.TmpDir)
		})
	}
}

func repeatedRecords(n int, seq func(i int) string) []fastq.Record {
	recs := make([]fastq.Record, n)
	for i := range recs {
		s := seq(i)
		recs[i] = fastq.Record{
			ID:   fmt.Sprintf("@read%05d", n-i),
			Seq:  s,
			Sep:  "+",
			Qual: strings.Repeat("I", len(s)),
		}
	}
	return recs
}

func TestCollapseOversizedBuckets(t *testing.T) {
	long := strings.Repeat("ACGTTGCA", 13)[:100]
	tests := []struct {
		name         string
		opts         Options
		recs         []fastq.Record
		unique       int64
		buckets      int
		repartitions int
	}{
		{
			name:    "identical long reads",
			opts:    Options{MaxBucketBytes: 4096, BufferBytes: 8192},
			recs:    repeatedRecords(2000, func(int) string { return long }),
			unique:  1,
			buckets: 1,
		},
		{
			name: "shared prefix past max key length",
			opts: Options{MaxBucketBytes: 4096},
			recs: repeatedRecords(2000, func(i int) string {
				return long[:60] + string("ACGT"[i%4]) + long[61:]
			}),
			unique:  4,
			buckets: 1,
		},
		{
			name: "shared prefix within max key length",
			opts: Options{MaxBucketBytes: 4096, MaxKeyLength: 80},
			recs: repeatedRecords(2000, func(i int) string {
				return long[:60] + string("ACGT"[i%4]) + long[61:]
			}),
			unique:       4,
			buckets:      4,
			repartitions: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.TmpDir = t.TempDir()
			got, stats := collapse(t, tt.opts, tt.recs)
			assert.Equal(t, expected(tt.recs), got)
			assert.Equal(t, int64(len(tt.recs)), stats.Reads)
			assert.Equal(t, tt.unique, stats.Unique)
			assert.Equal(t, tt.buckets, stats.Buckets)
			assert.Equal(t, tt.repartitions, stats.Repartitions)
			assertEmptyDir(t, tt.opts.TmpDir)
		})
	}
}

func TestCollapseIdempotent(t *testing.T) {
	recs := randomRecords(1000, 2)
	once, _ := collapse(t, Options{KeyLength: 3, BufferBytes: 256}, recs)
	twice, stats := collapse(t, Options{KeyLength: 3, BufferBytes: 256}, once)
	assert.Equal(t, once, twice)
	assert.Zero(t, stats.Duplicates)
}

func TestCollapseKeepsFirstOfEachRun(t *testing.T) {
	// Same sequence, ties broken by ID, then quality, then separator.
	recs := []fastq.Record{
		{ID: "@x", Seq: "AAAAAAA", Sep: "+x", Qual: "BBBBBBB"},
		{ID: "@x", Seq: "AAAAAAA", Sep: "+", Qual: "BBBBBBB"},
		{ID: "@x", Seq: "AAAAAAA", Sep: "+", Qual: "CCCCCCC"},
		{ID: "@y", Seq: "AAAAAAA", Sep: "+", Qual: "AAAAAAA"},
	}
	got, _ := collapse(t, Options{}, recs)
	require.Len(t, got, 1)
	assert.Equal(t, recs[1], got[0])
}

func TestCollapseErrors(t *testing.T) {
	recs := randomRecords(100, 3)

	t.Run("reader", func(t *testing.T) {
		dir := t.TempDir()
		c, err := New(Options{TmpDir: dir, BufferBytes: 64})
		require.NoError(t, err)
		boom := errors.New("boom")
		_, err = c.Run(context.Background(), &sliceReader{recs: recs, err: boom}, &sliceWriter{})
		assert.ErrorIs(t, err, boom)
		assertEmptyDir(t, dir)
	})

	t.Run("writer", func(t *testing.T) {
		dir := t.TempDir()
		c, err := New(Options{TmpDir: dir, BufferBytes: 64})
		require.NoError(t, err)
		boom := errors.New("disk full")
		_, err = c.Run(context.Background(), &sliceReader{recs: recs}, &sliceWriter{err: boom})
		assert.ErrorContains(t, err, "disk full")
		assertEmptyDir(t, dir)
	})

	t.Run("cancelled", func(t *testing.T) {
		dir := t.TempDir()
		c, err := New(Options{TmpDir: dir})
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := &sliceWriter{}
		_, err = c.Run(ctx, &sliceReader{recs: recs}, w)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, w.recs)
		assertEmptyDir(t, dir)
	})

	t.Run("missing tmp dir", func(t *testing.T) {
		c, err := New(Options{TmpDir: "/nonexistent/ngsqc"})
		require.NoError(t, err)
		_, err = c.Run(context.Background(), &sliceReader{recs: recs}, &sliceWriter{})
		assert.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	opts := c.Options()
	assert.Equal(t, DefaultKeyLength, opts.KeyLength)
	assert.Equal(t, DefaultMaxKeyLength, opts.MaxKeyLength)
	assert.Equal(t, int64(DefaultMaxBucketBytes), opts.MaxBucketBytes)
	assert.Equal(t, int64(DefaultBufferBytes), opts.BufferBytes)
	assert.Equal(t, Snappy, opts.Codec)

	c, err = New(Options{KeyLength: 40})
	require.NoError(t, err)
	assert.Equal(t, 40, c.Options().MaxKeyLength)

	_, err = New(Options{KeyLength: -1})
	assert.Error(t, err)
	_, err = New(Options{Codec: Codec(9)})
	assert.Error(t, err)
}

func TestParseCodec(t *testing.T) {
	for c, name := range codecNames {
		got, err := ParseCodec(name)
		require.NoError(t, err)
		assert.Equal(t, c, got)
		assert.Equal(t, name, c.String())
	}
	got, err := ParseCodec("PLAIN")
	require.NoError(t, err)
	assert.Equal(t, Plain, got)
	_, err = ParseCodec("lz4")
	assert.Error(t, err)
}
