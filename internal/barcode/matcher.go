package barcode

import (
	"fmt"
	"strings"
)

// Matcher finds the barcode a read starts with.
type Matcher struct {
	codes         []string
	maxMismatches int
	ambiguity     bool
}

// NewMatcher returns a Matcher over the codes of t. With maxMismatches of
// zero only exact prefixes match and ambiguity codes are compared literally.
func NewMatcher(t *Table, maxMismatches int, allowAmbiguity bool) (*Matcher, error) {
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("no barcodes to match against")
	}
	if maxMismatches < 0 {
		return nil, fmt.Errorf("invalid mismatch count: %d", maxMismatches)
	}
	return &Matcher{
		codes:         t.Codes(),
		maxMismatches: maxMismatches,
		ambiguity:     allowAmbiguity,
	}, nil
}

// Match returns the first barcode, in table order, that matches the start
// of seq within the mismatch bound, along with the number of leading bases
// it covers. Sequences shorter than a barcode never match it. Bases are
// compared case-insensitively.
func (m *Matcher) Match(seq string) (code string, n int, ok bool) {
	for _, code := range m.codes {
		if len(seq) < len(code) {
			continue
		}
		if m.maxMismatches == 0 {
			if strings.EqualFold(seq[:len(code)], code) {
				return code, len(code), true
			}
			continue
		}
		if m.within(code, seq[:len(code)]) {
			return code, len(code), true
		}
	}
	return "", 0, false
}

func (m *Matcher) within(code, prefix string) bool {
	n := 0
	for i := 0; i < len(code); i++ {
		if code[i] == upper(prefix[i]) || (m.ambiguity && BaseMatch(code[i], prefix[i])) {
			continue
		}
		if n++; n > m.maxMismatches {
			return false
		}
	}
	return true
}

// Mismatches counts the positions where a and b differ, over the length of
// the shorter string. With ambiguity, IUPAC-compatible bases are not
// counted. Case is ignored.
func Mismatches(a, b string, ambiguity bool) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for i := 0; i < len(a); i++ {
		if upper(a[i]) == upper(b[i]) || (ambiguity && BaseMatch(a[i], b[i])) {
			continue
		}
		n++
	}
	return n
}

func upper(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
