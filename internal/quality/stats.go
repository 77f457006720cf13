package quality

import (
	"io"
	"math"
	"strconv"

	"github.com/grailbio/base/tsv"
)

// CycleStats accumulates per-position score histograms and base
// composition over a set of reads.
type CycleStats struct {
	dec    Decoder
	reads  int64
	cycles []cycle
}

type cycle struct {
	scores []int64 // indexed by score
	bases  [5]int64
}

const (
	baseA = iota
	baseC
	baseG
	baseT
	baseN
)

var baseIndex [256]int8

func init() {
	for i := range baseIndex {
		baseIndex[i] = baseN
	}
	for _, b := range []struct {
		c   byte
		idx int8
	}{{'A', baseA}, {'C', baseC}, {'G', baseG}, {'T', baseT}} {
		baseIndex[b.c] = b.idx
		baseIndex[b.c+'a'-'A'] = b.idx
	}
}

// NewCycleStats returns an empty accumulator decoding scores with dec.
func NewCycleStats(dec Decoder) *CycleStats {
	return &CycleStats{dec: dec}
}

// Reads returns the number of reads added.
func (s *CycleStats) Reads() int64 { return s.reads }

// Add records one read. Bases other than A, C, G and T are counted as N.
func (s *CycleStats) Add(seq, qual string) error {
	for len(s.cycles) < len(qual) {
		s.cycles = append(s.cycles, cycle{scores: make([]int64, s.dec.MaxScore()+1)})
	}
	for i := 0; i < len(qual); i++ {
		score, err := s.dec.Score(qual[i])
		if err != nil {
			return err
		}
		c := &s.cycles[i]
		c.scores[score]++
		if i < len(seq) {
			c.bases[baseIndex[seq[i]]]++
		}
	}
	s.reads++
	return nil
}

// CycleSummary describes the scores and bases seen at one read position.
type CycleSummary struct {
	Count        int64
	Min, Max     int
	Sum          int64
	Mean         float64
	Q1           float64
	Median       float64
	Q3           float64
	IQR          float64
	LeftWhisker  float64
	RightWhisker float64
	A, C, G, T   int64
	N            int64
	Total        int64
	GC           float64
}

// Summarize returns one summary per position, in position order.
func (s *CycleStats) Summarize() []CycleSummary {
	out := make([]CycleSummary, len(s.cycles))
	for i, c := range s.cycles {
		sum := &out[i]
		sum.Min = -1
		for score, n := range c.scores {
			if n == 0 {
				continue
			}
			if sum.Min < 0 {
				sum.Min = score
			}
			sum.Max = score
			sum.Count += n
			sum.Sum += int64(score) * n
		}
		if sum.Min < 0 {
			sum.Min = 0
		}
		if sum.Count > 0 {
			sum.Mean = float64(sum.Sum) / float64(sum.Count)
		}
		sum.Q1 = Percentile(c.scores, 0.25)
		sum.Median = Percentile(c.scores, 0.5)
		sum.Q3 = Percentile(c.scores, 0.75)
		sum.IQR = sum.Q3 - sum.Q1
		sum.LeftWhisker = sum.Median - 1.5*sum.IQR
		sum.RightWhisker = sum.Median + 1.5*sum.IQR

		sum.A, sum.C, sum.G, sum.T, sum.N = c.bases[baseA], c.bases[baseC], c.bases[baseG], c.bases[baseT], c.bases[baseN]
		sum.Total = sum.A + sum.C + sum.G + sum.T + sum.N
		if sum.Total > 0 {
			sum.GC = float64(sum.G+sum.C) / float64(sum.Total)
		}
	}
	return out
}

// Percentile returns the p-th percentile (0 < p <= 1) of a distribution
// given as counts, where counts[v] is the number of observations of value
// v. The observation at rank round(total*p) is used; when the total is even
// it is averaged with the next observation. An empty distribution yields 0.
func Percentile(counts []int64, p float64) float64 {
	var total int64
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return 0
	}
	rank := int64(math.Round(float64(total) * p))
	if rank < 1 {
		rank = 1
	}
	if rank > total {
		rank = total
	}
	lower := valueAt(counts, rank)
	if total%2 != 0 || rank == total {
		return float64(lower)
	}
	upper := valueAt(counts, rank+1)
	return float64(lower+upper) / 2
}

// valueAt returns the value of the observation with the given 1-based rank.
func valueAt(counts []int64, rank int64) int {
	var seen int64
	for v, n := range counts {
		seen += n
		if seen >= rank {
			return v
		}
	}
	return len(counts) - 1
}

const summaryHeader = "cycle\tcount\tmin\tmax\tsum\tmean\tQ1\tmedian\tQ3\tIQR\t" +
	"lW\trW\tA\tC\tG\tT\tN\ttotal\tGC"

// WriteTSV writes the summaries as a tab-separated table with a header row.
func WriteTSV(w io.Writer, summaries []CycleSummary) error {
	out := tsv.NewWriter(w)
	out.WriteString(summaryHeader)
	if err := out.EndLine(); err != nil {
		return err
	}
	f := func(v float64) { out.WriteString(strconv.FormatFloat(v, 'f', 4, 64)) }
	for i, s := range summaries {
		out.WriteInt64(int64(i + 1))
		out.WriteInt64(s.Count)
		out.WriteInt64(int64(s.Min))
		out.WriteInt64(int64(s.Max))
		out.WriteInt64(s.Sum)
		f(s.Mean)
		f(s.Q1)
		f(s.Median)
		f(s.Q3)
		f(s.IQR)
		f(s.LeftWhisker)
		f(s.RightWhisker)
		for _, n := range []int64{s.A, s.C, s.G, s.T, s.N, s.Total} {
			out.WriteInt64(n)
		}
		f(s.GC)
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
