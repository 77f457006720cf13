// Package dedup removes reads with duplicate sequences from FASTQ streams
// larger than memory.
//
// Reads are partitioned into buckets by a fixed-length sequence prefix.
// Buckets are buffered in memory and appended to compressed temporary
// files once the buffer budget is exhausted. Each bucket is then sorted on
// its own and only the first read of every run of identical sequences is
// kept. Output is in ascending sequence order.
package dedup

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	pkgerrors "github.com/pkg/errors"

	"ngsqc/internal/fastq"
)

const (
	DefaultKeyLength      = 5
	DefaultMaxKeyLength   = 32
	DefaultMaxBucketBytes = 256 << 20
	DefaultBufferBytes    = 32 << 20

	// ctx is polled once per this many input reads.
	checkInterval = 4096
)

// Options configures a Collapser. Zero fields take their defaults.
type Options struct {
	// KeyLength is the length of the sequence prefix used to partition
	// reads. Sequences shorter than the key are keyed by their whole
	// sequence.
	KeyLength int
	// TmpDir holds bucket files. Empty means os.TempDir().
	TmpDir string
	// MaxBucketBytes is the largest uncompressed bucket sorted in memory.
	// Larger buckets are partitioned again with a key one base longer,
	// up to MaxKeyLength. A negative value disables re-partitioning.
	MaxBucketBytes int64
	MaxKeyLength   int
	// BufferBytes bounds the bucket data held in memory before it is
	// appended to disk.
	BufferBytes int64
	Codec       Codec
}

// Stats summarizes one Run.
type Stats struct {
	Reads        int64 `json:"reads"`
	Unique       int64 `json:"unique"`
	Duplicates   int64 `json:"duplicates"`
	Buckets      int   `json:"buckets"`
	Spills       int   `json:"spills"`
	Repartitions int   `json:"repartitions"`
}

// Collapser removes duplicate sequences. A Collapser may run several times,
// but not concurrently with itself.
type Collapser struct {
	opts Options
}

// New validates opts and returns a Collapser.
func New(opts Options) (*Collapser, error) {
	if opts.KeyLength < 0 || opts.MaxKeyLength < 0 || opts.BufferBytes < 0 {
		return nil, fmt.Errorf("invalid dedup options: %+v", opts)
	}
	if opts.KeyLength == 0 {
		opts.KeyLength = DefaultKeyLength
	}
	if opts.MaxKeyLength == 0 {
		opts.MaxKeyLength = DefaultMaxKeyLength
	}
	if opts.MaxKeyLength < opts.KeyLength {
		opts.MaxKeyLength = opts.KeyLength
	}
	if opts.MaxBucketBytes == 0 {
		opts.MaxBucketBytes = DefaultMaxBucketBytes
	}
	if opts.BufferBytes == 0 {
		opts.BufferBytes = DefaultBufferBytes
	}
	if _, ok := codecNames[opts.Codec]; !ok {
		return nil, fmt.Errorf("invalid bucket codec: %v", opts.Codec)
	}
	return &Collapser{opts: opts}, nil
}

// Options returns the effective options.
func (c *Collapser) Options() Options { return c.opts }

// Run reads src to the end and writes the unique reads to dst. dst is not
// closed. Temporary files are removed on every return path.
func (c *Collapser) Run(ctx context.Context, src fastq.RecordReader, dst fastq.RecordWriter) (stats Stats, err error) {
	dir, err := os.MkdirTemp(c.opts.TmpDir, "ngsqc-dedup-")
	if err != nil {
		return stats, pkgerrors.Wrap(err, "creating bucket directory")
	}
	bio, err := newBucketIO(c.opts.Codec)
	if err != nil {
		os.RemoveAll(dir)
		return stats, err
	}
	r := &run{opts: c.opts, dir: dir, io: bio, stats: &stats}
	defer func() {
		bio.close()
		if rerr := os.RemoveAll(dir); rerr != nil {
			r.cleanup.Set(rerr)
		}
		if err == nil {
			err = r.cleanup.Err()
		}
	}()

	top := r.newPartition(c.opts.KeyLength)
	for {
		if stats.Reads%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
		rec, err := src.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, err
		}
		stats.Reads++
		if err := top.add(rec); err != nil {
			return stats, err
		}
	}
	log.Debug.Printf("dedup: partitioned %d reads into %d buckets (%d spills)", stats.Reads, len(top.buckets), stats.Spills)

	if err := top.collapse(ctx, dst); err != nil {
		return stats, err
	}
	stats.Duplicates = stats.Reads - stats.Unique
	return stats, nil
}

// run holds the state of one Collapser.Run.
type run struct {
	opts    Options
	dir     string
	io      *bucketIO
	stats   *Stats
	nfiles  int
	cleanup errors.Once
}

type bucket struct {
	key     string
	path    string
	pending []byte
	onDisk  bool
	size    int64 // encoded bytes, in memory and on disk
	count   int64
	// first is the first sequence added. common is the length of the
	// prefix shared by every sequence, and mixed is set once a sequence
	// differs from first.
	first  string
	common int
	mixed  bool
}

type partition struct {
	r        *run
	keyLen   int
	buckets  map[string]*bucket
	buffered int64
}

func (r *run) newPartition(keyLen int) *partition {
	return &partition{r: r, keyLen: keyLen, buckets: make(map[string]*bucket)}
}

func (p *partition) add(rec fastq.Record) error {
	key := rec.Seq
	if len(key) > p.keyLen {
		key = key[:p.keyLen]
	}
	b := p.buckets[key]
	if b == nil {
		p.r.nfiles++
		b = &bucket{key: key, path: filepath.Join(p.r.dir, fmt.Sprintf("bucket-%06d", p.r.nfiles))}
		p.buckets[key] = b
	}
	n := len(b.pending)
	b.pending = appendRecord(b.pending, rec)
	delta := int64(len(b.pending) - n)
	b.size += delta
	if b.count == 0 {
		b.first, b.common = rec.Seq, len(rec.Seq)
	} else if rec.Seq != b.first {
		b.mixed = true
		b.common = min(b.common, commonPrefix(b.first, rec.Seq))
	}
	b.count++
	p.buffered += delta
	if p.buffered > p.r.opts.BufferBytes {
		return p.spill()
	}
	return nil
}

// spill appends every buffered bucket to its file.
func (p *partition) spill() error {
	n := 0
	for _, b := range p.buckets {
		if len(b.pending) == 0 {
			continue
		}
		if err := p.r.io.appendChunk(b.path, b.pending); err != nil {
			return err
		}
		b.pending = nil
		b.onDisk = true
		n++
	}
	log.Debug.Printf("dedup: spilled %d buckets, %d bytes", n, p.buffered)
	p.buffered = 0
	p.r.stats.Spills++
	return nil
}

// collapse writes the unique reads of every bucket in ascending key order.
func (p *partition) collapse(ctx context.Context, dst fastq.RecordWriter) error {
	keys := make([]string, 0, len(p.buckets))
	for k := range p.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := p.buckets[k]
		delete(p.buckets, k)
		if err := p.r.collapseBucket(ctx, p.keyLen, b, dst); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) collapseBucket(ctx context.Context, keyLen int, b *bucket, dst fastq.RecordWriter) error {
	defer r.release(b)

	// Every sequence is the same; keep the smallest record.
	if !b.mixed {
		r.stats.Buckets++
		var (
			best  fastq.Record
			found bool
		)
		err := r.each(b, func(rec fastq.Record) error {
			if !found || fastq.Compare(rec, best) < 0 {
				best, found = rec, true
			}
			return nil
		})
		if err != nil || !found {
			return err
		}
		return r.emit(dst, best)
	}

	// A key one base past the shared prefix is the shortest that splits
	// the bucket.
	next := max(keyLen, b.common) + 1
	if r.opts.MaxBucketBytes >= 0 && b.size > r.opts.MaxBucketBytes && next <= r.opts.MaxKeyLength {
		r.stats.Repartitions++
		log.Printf("dedup: bucket %q holds %d bytes, re-partitioning with key length %d", b.key, b.size, next)
		sub := r.newPartition(next)
		if err := r.each(b, sub.add); err != nil {
			return err
		}
		r.release(b)
		return sub.collapse(ctx, dst)
	}

	r.stats.Buckets++
	recs := make([]fastq.Record, 0, b.count)
	err := r.each(b, func(rec fastq.Record) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return err
	}
	slices.SortFunc(recs, fastq.Compare)
	for i, rec := range recs {
		if i > 0 && rec.Seq == recs[i-1].Seq {
			continue
		}
		if err := r.emit(dst, rec); err != nil {
			return err
		}
	}
	return nil
}

func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func (r *run) emit(dst fastq.RecordWriter, rec fastq.Record) error {
	if err := dst.Write(rec); err != nil {
		return pkgerrors.Wrap(err, "writing unique read")
	}
	r.stats.Unique++
	return nil
}

// each calls fn on every record of b: those on disk first, then those still
// buffered.
func (r *run) each(b *bucket, fn func(fastq.Record) error) error {
	if b.onDisk {
		rd, closeFn, err := r.io.open(b.path)
		if err != nil {
			return err
		}
		err = decodeAll(rd, fn)
		if cerr := closeFn(); err == nil {
			err = cerr
		}
		if err != nil {
			return pkgerrors.Wrapf(err, "reading bucket %s", b.path)
		}
	}
	return decodeAll(bytes.NewReader(b.pending), fn)
}

func decodeAll(rd io.Reader, fn func(fastq.Record) error) error {
	br, ok := rd.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(rd)
	}
	d := recordDecoder{r: br}
	for {
		rec, err := d.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// release drops the buffered data of b and deletes its file. Removal
// failures are remembered and reported at the end of the run.
func (r *run) release(b *bucket) {
	b.pending = nil
	if b.onDisk {
		b.onDisk = false
		if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
			r.cleanup.Set(err)
		}
	}
}
