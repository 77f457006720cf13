// Package quality decodes Phred quality strings and derives per-read and
// per-cycle quality metrics from them.
package quality

import (
	"errors"
	"fmt"
)

const (
	// MinChar and MaxChar bound the printable characters a quality string
	// may contain.
	MinChar = 33
	MaxChar = 126

	// Sanger / Illumina 1.8+ and Illumina 1.3-1.7 encodings.
	Sanger   = 33
	Illumina = 64
)

var (
	ErrInvalidOffset = errors.New("invalid quality offset")
	ErrInvalidScore  = errors.New("invalid quality score")
)

// OffsetError is returned by NewDecoder for an offset outside the printable
// range.
type OffsetError struct {
	Offset int
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("quality offset %d outside %d..%d", e.Offset, MinChar, MaxChar)
}

func (e *OffsetError) Unwrap() error { return ErrInvalidOffset }

// DecodeError reports a quality character (or score, when encoding) that
// cannot be represented under the decoder's offset.
type DecodeError struct {
	Char   byte
	Score  int
	Offset int
	encode bool
}

func (e *DecodeError) Error() string {
	if e.encode {
		return fmt.Sprintf("score %d cannot be encoded with offset %d", e.Score, e.Offset)
	}
	return fmt.Sprintf("quality character %q (%d) invalid for offset %d", e.Char, e.Char, e.Offset)
}

func (e *DecodeError) Unwrap() error { return ErrInvalidScore }

// Decoder converts between quality characters and integer Phred scores for
// one fixed offset. The zero value is not usable; call NewDecoder.
type Decoder struct {
	offset int
}

// NewDecoder returns a Decoder for offset.
func NewDecoder(offset int) (Decoder, error) {
	if offset < MinChar || offset > MaxChar {
		return Decoder{}, &OffsetError{Offset: offset}
	}
	return Decoder{offset: offset}, nil
}

// Offset returns the decoder's offset.
func (d Decoder) Offset() int { return d.offset }

// MaxScore is the highest score the decoder can represent.
func (d Decoder) MaxScore() int { return MaxChar - d.offset }

// Score decodes one quality character.
func (d Decoder) Score(c byte) (int, error) {
	if c < MinChar || c > MaxChar || int(c) < d.offset {
		return 0, &DecodeError{Char: c, Offset: d.offset}
	}
	return int(c) - d.offset, nil
}

// Char encodes a score.
func (d Decoder) Char(score int) (byte, error) {
	if score < 0 || score+d.offset > MaxChar {
		return 0, &DecodeError{Score: score, Offset: d.offset, encode: true}
	}
	return byte(score + d.offset), nil
}

// Scores decodes a whole quality string.
func (d Decoder) Scores(qual string) ([]int, error) {
	scores := make([]int, len(qual))
	for i := 0; i < len(qual); i++ {
		s, err := d.Score(qual[i])
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	return scores, nil
}

// Convert re-encodes qual from one offset to another. Scores that do not fit
// the target encoding are an error.
func Convert(qual string, from, to Decoder) (string, error) {
	if from.offset == to.offset {
		return qual, nil
	}
	out := make([]byte, len(qual))
	for i := 0; i < len(qual); i++ {
		s, err := from.Score(qual[i])
		if err != nil {
			return "", err
		}
		if out[i], err = to.Char(s); err != nil {
			return "", err
		}
	}
	return string(out), nil
}
