package quality

import (
	"fmt"
	"math"
	"strings"
)

// Metric selects a per-read quality summary.
type Metric int

const (
	AvgPhred  Metric = iota // average Phred score, computed in probability space
	MaxEE                   // expected number of errors
	Meep                    // expected errors per 100 bases
	LQCount                 // number of bases below a score threshold
	LQPercent               // percentage of bases below a score threshold
)

var metricNames = map[Metric]string{
	AvgPhred:  "avgphred",
	MaxEE:     "maxee",
	Meep:      "meep",
	LQCount:   "lqcount",
	LQPercent: "lqpercent",
}

func (m Metric) String() string {
	if name, ok := metricNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// ParseMetric parses a metric name as printed by Metric.String.
func ParseMetric(s string) (Metric, error) {
	s = strings.ToLower(s)
	for m, name := range metricNames {
		if name == s {
			return m, nil
		}
	}
	return AvgPhred, fmt.Errorf("invalid quality metric: %q", s)
}

var errorProbs [256]float64

func init() {
	// Error probability for every Phred score
	for i := range errorProbs {
		errorProbs[i] = math.Pow(10, float64(i)/-10)
	}
}

// ErrorProb returns the error probability of a Phred score.
func ErrorProb(score int) float64 {
	if score < 0 {
		score = 0
	}
	if score >= len(errorProbs) {
		score = len(errorProbs) - 1
	}
	return errorProbs[score]
}

// Characters below the offset count as score 0.
func (d Decoder) sumErrorProbs(qual string) float64 {
	var sum float64
	for i := 0; i < len(qual); i++ {
		sum += ErrorProb(int(qual[i]) - d.offset)
	}
	return sum
}

// AvgPhred returns the Phred score of the mean error probability.
func (d Decoder) AvgPhred(qual string) float64 {
	if len(qual) == 0 {
		return 0
	}
	meanProb := d.sumErrorProbs(qual) / float64(len(qual))
	return -10 * math.Log10(meanProb)
}

// MaxEE returns the expected number of errors. Empty reads yield +Inf.
func (d Decoder) MaxEE(qual string) float64 {
	if len(qual) == 0 {
		return math.Inf(1)
	}
	return d.sumErrorProbs(qual)
}

// Meep returns the expected errors per 100 bases. Empty reads yield +Inf.
func (d Decoder) Meep(qual string) float64 {
	if len(qual) == 0 {
		return math.Inf(1)
	}
	return d.sumErrorProbs(qual) * 100 / float64(len(qual))
}

// CountBelow returns the number of bases scoring under minScore.
func (d Decoder) CountBelow(qual string, minScore int) int {
	n := 0
	for i := 0; i < len(qual); i++ {
		if int(qual[i])-d.offset < minScore {
			n++
		}
	}
	return n
}

// LQCount is CountBelow as a float. Empty reads yield +Inf.
func (d Decoder) LQCount(qual string, minScore int) float64 {
	if len(qual) == 0 {
		return math.Inf(1)
	}
	return float64(d.CountBelow(qual, minScore))
}

// LQPercent returns the percentage of bases scoring under minScore.
func (d Decoder) LQPercent(qual string, minScore int) float64 {
	if len(qual) == 0 {
		return math.Inf(1)
	}
	return float64(d.CountBelow(qual, minScore)) * 100 / float64(len(qual))
}

type calculator func(d Decoder, qual string, minScore int) float64

var calculators = map[Metric]calculator{
	AvgPhred:  func(d Decoder, q string, _ int) float64 { return d.AvgPhred(q) },
	MaxEE:     func(d Decoder, q string, _ int) float64 { return d.MaxEE(q) },
	Meep:      func(d Decoder, q string, _ int) float64 { return d.Meep(q) },
	LQCount:   Decoder.LQCount,
	LQPercent: Decoder.LQPercent,
}

// Calculate evaluates metric m on qual. minScore is used only by the
// low-quality metrics.
func (d Decoder) Calculate(m Metric, qual string, minScore int) float64 {
	if calc, ok := calculators[m]; ok {
		return calc(d, qual, minScore)
	}
	return 0
}
