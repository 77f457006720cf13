package dedup

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"ngsqc/internal/fastq"
)

// Codec selects how bucket files are compressed on disk.
type Codec int

const (
	Snappy Codec = iota
	Zstd
	Plain
)

var codecNames = map[Codec]string{
	Snappy: "snappy",
	Zstd:   "zstd",
	Plain:  "none",
}

func (c Codec) String() string {
	if name, ok := codecNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Codec(%d)", int(c))
}

// ParseCodec parses a bucket codec name.
func ParseCodec(s string) (Codec, error) {
	s = strings.ToLower(s)
	for c, name := range codecNames {
		if name == s {
			return c, nil
		}
	}
	if s == "plain" {
		return Plain, nil
	}
	return Snappy, fmt.Errorf("invalid bucket codec: %q", s)
}

// bucketIO appends encoded chunks to bucket files and streams them back.
// Each append produces a self-contained compressed stream; both snappy
// framing and zstd accept a concatenation of such streams.
type bucketIO struct {
	codec Codec
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

func newBucketIO(c Codec) (*bucketIO, error) {
	b := &bucketIO{codec: c}
	if c != Zstd {
		return b, nil
	}
	var err error
	if b.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest)); err != nil {
		return nil, err
	}
	if b.dec, err = zstd.NewReader(nil); err != nil {
		b.enc.Close()
		return nil, err
	}
	return b, nil
}

func (b *bucketIO) close() {
	if b.enc != nil {
		b.enc.Close()
	}
	if b.dec != nil {
		b.dec.Close()
	}
}

// appendChunk appends data to the file at path, creating it if needed.
func (b *bucketIO) appendChunk(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return errors.Wrapf(err, "opening bucket %s", path)
	}
	switch b.codec {
	case Snappy:
		w := snappy.NewBufferedWriter(f)
		if _, err = w.Write(data); err == nil {
			err = w.Close()
		}
	case Zstd:
		_, err = f.Write(b.enc.EncodeAll(data, nil))
	default:
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "writing bucket %s", path)
}

// open returns a reader over the decoded contents of the file at path. The
// returned close function must be called before the next open.
func (b *bucketIO) open(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening bucket %s", path)
	}
	var r io.Reader = f
	switch b.codec {
	case Snappy:
		r = snappy.NewReader(f)
	case Zstd:
		if err := b.dec.Reset(f); err != nil {
			f.Close()
			return nil, nil, errors.Wrapf(err, "decoding bucket %s", path)
		}
		r = b.dec
	}
	return bufio.NewReaderSize(r, 1<<16), f.Close, nil
}

// Records are stored as four uvarint-prefixed strings.
func appendRecord(buf []byte, r fastq.Record) []byte {
	for _, s := range [...]string{r.ID, r.Seq, r.Sep, r.Qual} {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

type recordDecoder struct {
	r *bufio.Reader
	b []byte
}

func (d *recordDecoder) next() (fastq.Record, error) {
	var rec fastq.Record
	for i, field := range [...]*string{&rec.ID, &rec.Seq, &rec.Sep, &rec.Qual} {
		n, err := binary.ReadUvarint(d.r)
		if err != nil {
			if i == 0 && err == io.EOF {
				return rec, io.EOF
			}
			return rec, errors.Wrap(noEOF(err), "decoding bucket record")
		}
		if uint64(cap(d.b)) < n {
			d.b = make([]byte, n)
		}
		d.b = d.b[:n]
		if _, err := io.ReadFull(d.r, d.b); err != nil {
			return rec, errors.Wrap(noEOF(err), "decoding bucket record")
		}
		*field = string(d.b)
	}
	return rec, nil
}

func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
