package fastq

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// Compression selects the codec of an input or output stream.
type Compression int

const (
	// Guess picks the codec from the file extension (and, for inputs, the
	// magic bytes).
	Guess Compression = iota
	None
	Gzip
	Bzip2
	Zstd
)

var compressionNames = map[Compression]string{
	Guess: "guess",
	None:  "none",
	Gzip:  "gzip",
	Bzip2: "bzip2",
	Zstd:  "zstd",
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCompression parses a compression mode name.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "guess", "auto":
		return Guess, nil
	case "none", "plain":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "bzip2", "bz2":
		return Bzip2, nil
	case "zstd", "zst":
		return Zstd, nil
	}
	return Guess, fmt.Errorf("invalid compression mode: %q", s)
}

type multiCloser struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// OpenInput opens path ("-" for stdin) for reading, decompressing it
// according to c.
func OpenInput(path string, c Compression) (io.ReadCloser, error) {
	if c == Guess {
		r, err := xopen.Ropen(path)
		if err == xopen.ErrNoContent {
			return io.NopCloser(strings.NewReader("")), nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", path)
		}
		return r, nil
	}

	var fh io.ReadCloser = io.NopCloser(os.Stdin)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", path)
		}
		fh = f
	}

	switch c {
	case None:
		return fh, nil
	case Gzip:
		gz, err := pgzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, errors.Wrapf(err, "opening gzip stream %s", path)
		}
		return &multiCloser{Reader: gz, closers: []io.Closer{gz, fh}}, nil
	case Bzip2:
		bz, err := bzip2.NewReader(fh, nil)
		if err != nil {
			fh.Close()
			return nil, errors.Wrapf(err, "opening bzip2 stream %s", path)
		}
		return &multiCloser{Reader: bz, closers: []io.Closer{bz, fh}}, nil
	case Zstd:
		dec, err := zstd.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, errors.Wrapf(err, "opening zstd stream %s", path)
		}
		rc := dec.IOReadCloser()
		return &multiCloser{Reader: rc, closers: []io.Closer{rc, fh}}, nil
	}
	fh.Close()
	return nil, fmt.Errorf("invalid compression mode: %d", int(c))
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// CreateOutput creates path ("-" for stdout) for writing, compressing it
// according to c. The caller must Close the result to flush the codec.
func CreateOutput(path string, c Compression) (io.WriteCloser, error) {
	if c == Guess {
		w, err := xopen.Wopen(path)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %s", path)
		}
		return w, nil
	}
	if _, ok := compressionNames[c]; !ok {
		return nil, fmt.Errorf("invalid compression mode: %d", int(c))
	}

	var fh io.WriteCloser = nopWriteCloser{os.Stdout}
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %s", path)
		}
		fh = f
	}

	switch c {
	case Gzip:
		gz := pgzip.NewWriter(fh)
		return &multiCloser{Writer: gz, closers: []io.Closer{gz, fh}}, nil
	case Bzip2:
		bz, err := bzip2.NewWriter(fh, nil)
		if err != nil {
			fh.Close()
			return nil, errors.Wrapf(err, "creating bzip2 stream %s", path)
		}
		return &multiCloser{Writer: bz, closers: []io.Closer{bz, fh}}, nil
	case Zstd:
		enc, err := zstd.NewWriter(fh)
		if err != nil {
			fh.Close()
			return nil, errors.Wrapf(err, "creating zstd stream %s", path)
		}
		return &multiCloser{Writer: enc, closers: []io.Closer{enc, fh}}, nil
	}
	return fh, nil
}
