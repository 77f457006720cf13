package quality

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func mustDecoder(t *testing.T, offset int) Decoder {
	t.Helper()
	d, err := NewDecoder(offset)
	if err != nil {
		t.Fatalf("NewDecoder(%d): %v", offset, err)
	}
	return d
}

func TestNewDecoder(t *testing.T) {
	tests := []struct {
		offset  int
		wantErr bool
	}{
		{33, false},
		{64, false},
		{126, false},
		{32, true},
		{0, true},
		{127, true},
		{-1, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.offset), func(t *testing.T) {
			_, err := NewDecoder(tt.offset)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewDecoder(%d) error = %v, wantErr %v", tt.offset, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidOffset) {
				t.Errorf("got %v, want ErrInvalidOffset", err)
			}
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		offset  int
		c       byte
		want    int
		wantErr bool
	}{
		{"sanger min", 33, '!', 0, false},
		{"sanger Q40", 33, 'I', 40, false},
		{"illumina Q40", 64, 'h', 40, false},
		{"illumina min", 64, '@', 0, false},
		{"below offset", 64, '5', 0, true},
		{"control char", 33, '\t', 0, true},
		{"space", 33, ' ', 0, true},
		{"DEL", 33, 127, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustDecoder(t, tt.offset).Score(tt.c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Score(%q) error = %v, wantErr %v", tt.c, err, tt.wantErr)
			}
			if tt.wantErr {
				var derr *DecodeError
				if !errors.As(err, &derr) || !errors.Is(err, ErrInvalidScore) {
					t.Errorf("got %T %v, want *DecodeError", err, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Score(%q) = %d, want %d", tt.c, got, tt.want)
			}
		})
	}
}

func TestCharRoundTrip(t *testing.T) {
	for _, offset := range []int{33, 64} {
		d := mustDecoder(t, offset)
		for score := 0; score <= d.MaxScore(); score++ {
			c, err := d.Char(score)
			if err != nil {
				t.Fatalf("offset %d: Char(%d): %v", offset, score, err)
			}
			back, err := d.Score(c)
			if err != nil || back != score {
				t.Fatalf("offset %d: Score(Char(%d)) = %d, %v", offset, score, back, err)
			}
		}
		if _, err := d.Char(d.MaxScore() + 1); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("offset %d: Char above max: got %v", offset, err)
		}
		if _, err := d.Char(-1); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("offset %d: Char(-1): got %v", offset, err)
		}
	}
}

func TestConvert(t *testing.T) {
	sanger, illumina := mustDecoder(t, 33), mustDecoder(t, 64)
	tests := []struct {
		name     string
		qual     string
		from, to Decoder
		want     string
		wantErr  bool
	}{
		{"illumina to sanger", "hhh@B", illumina, sanger, "III!#", false},
		{"sanger to illumina", "III!#", sanger, illumina, "hhh@B", false},
		{"same offset", "ABC", sanger, sanger, "ABC", false},
		{"empty", "", sanger, illumina, "", false},
		{"undecodable", "I5I", illumina, sanger, "", true},
		{"unencodable", "~", sanger, illumina, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.qual, tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Convert() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Convert() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Test quality metric calculations
func TestQualityMetricCalculations(t *testing.T) {
	tests := []struct {
		name     string
		qual     string
		metric   Metric
		minScore int
		want     float64
	}{
		{"AvgPhred - All high quality", "IIIII", AvgPhred, 0, 40.0},
		{"AvgPhred - Mixed quality", "I$$I$", AvgPhred, 0, 5.21791},
		{"AvgPhred - Empty quality", "", AvgPhred, 0, 0.0},
		{"MaxEE - All high quality", "IIIII", MaxEE, 0, 0.0005},
		{"MaxEE - Empty quality", "", MaxEE, 0, math.Inf(1)},
		{"MaxEE - Single very low quality base", "$", MaxEE, 0, 0.5011872336272722},
		{"Meep - Mixed quality", "I$$I$", Meep, 0, 30.07523},
		{"LQCount - No low quality bases", "IIIII", LQCount, 30, 0},
		{"LQCount - All low quality bases", "$$$$$", LQCount, 30, 5},
		{"LQCount - Custom threshold", "BBBBB", LQCount, 35, 5},
		{"LQPercent - Half low quality bases", "II$$$", LQPercent, 30, 60.0},
		{"LQPercent - Single base at threshold", "0", LQPercent, 15, 0.0},
	}

	d := mustDecoder(t, Sanger)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Calculate(tt.metric, tt.qual, tt.minScore)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("Calculate() = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 0.00001 {
				t.Errorf("Calculate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetricsFollowOffset(t *testing.T) {
	sanger, illumina := mustDecoder(t, 33), mustDecoder(t, 64)
	if a, b := sanger.AvgPhred("IIII"), illumina.AvgPhred("hhhh"); math.Abs(a-b) > 1e-9 {
		t.Errorf("AvgPhred differs across encodings: %v vs %v", a, b)
	}
	if a, b := sanger.MaxEE("5+I"), illumina.MaxEE("TJh"); math.Abs(a-b) > 1e-9 {
		t.Errorf("MaxEE differs across encodings: %v vs %v", a, b)
	}
}

func TestErrorProb(t *testing.T) {
	tests := []struct {
		score int
		want  float64
	}{
		{0, 1},
		{10, 0.1},
		{20, 0.01},
		{30, 0.001},
		{40, 0.0001},
		{-5, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("Phred%d", tt.score), func(t *testing.T) {
			if got := ErrorProb(tt.score); math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("ErrorProb(%d) = %v, want %v", tt.score, got, tt.want)
			}
		})
	}
}

func TestParseMetric(t *testing.T) {
	for m, name := range metricNames {
		got, err := ParseMetric(strings.ToUpper(name))
		if err != nil || got != m {
			t.Errorf("ParseMetric(%q) = %v, %v", name, got, err)
		}
		if m.String() != name {
			t.Errorf("%d.String() = %q, want %q", int(m), m.String(), name)
		}
	}
	if _, err := ParseMetric("median"); err == nil {
		t.Error("ParseMetric accepted an unknown metric")
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		counts []int64
		p      float64
		want   float64
	}{
		{"empty", []int64{0, 0, 0}, 0.5, 0},
		{"single value", []int64{0, 0, 5}, 0.5, 2},
		{"odd median", []int64{0, 1, 1, 1}, 0.5, 2},          // 1 2 3
		{"even median", []int64{0, 1, 1, 1, 1}, 0.5, 2.5},    // 1 2 3 4
		{"even median same value", []int64{0, 0, 4}, 0.5, 2}, // 2 2 2 2
		{"gap in values", []int64{1, 0, 0, 1}, 0.5, 1.5},     // 0 3
		{"first quartile", []int64{0, 1, 1, 1, 1}, 0.25, 1.5},
		{"third quartile", []int64{0, 1, 1, 1, 1}, 0.75, 3.5},
		{"odd quartile", []int64{1, 1, 1, 1, 1}, 0.25, 0}, // 0 1 2 3 4, rank 1
		{"top", []int64{1, 1, 1}, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentile(tt.counts, tt.p); got != tt.want {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.counts, tt.p, got, tt.want)
			}
		})
	}
}

func TestCycleStats(t *testing.T) {
	s := NewCycleStats(mustDecoder(t, Sanger))
	reads := []struct{ seq, qual string }{
		{"ACGT", "IIII"}, // 40
		{"ACGN", "5555"}, // 20
		{"AGX", "+++"},   // 10
		{"C", "?"},       // 30
	}
	for _, r := range reads {
		if err := s.Add(r.seq, r.qual); err != nil {
			t.Fatal(err)
		}
	}
	if s.Reads() != 4 {
		t.Errorf("Reads() = %d, want 4", s.Reads())
	}
	sums := s.Summarize()
	if len(sums) != 4 {
		t.Fatalf("got %d cycles, want 4", len(sums))
	}

	first := sums[0]
	if first.Count != 4 || first.Min != 10 || first.Max != 40 || first.Sum != 100 {
		t.Errorf("cycle 1 = %+v", first)
	}
	if first.Mean != 25 || first.Median != 25 || first.Q1 != 15 || first.Q3 != 35 {
		t.Errorf("cycle 1 location = %+v", first)
	}
	if first.IQR != 20 || first.LeftWhisker != -5 || first.RightWhisker != 55 {
		t.Errorf("cycle 1 spread = %+v", first)
	}
	if first.A != 3 || first.C != 1 || first.Total != 4 || first.GC != 0.25 {
		t.Errorf("cycle 1 bases = %+v", first)
	}

	third := sums[2]
	if third.G != 2 || third.N != 1 || third.Total != 3 {
		t.Errorf("cycle 3 bases = %+v", third)
	}
	last := sums[3]
	if last.Count != 2 || last.T != 1 || last.N != 1 || last.GC != 0 {
		t.Errorf("cycle 4 = %+v", last)
	}

	if err := s.Add("A", " "); !errors.Is(err, ErrInvalidScore) {
		t.Errorf("Add with invalid quality: got %v", err)
	}
}

func TestWriteTSV(t *testing.T) {
	s := NewCycleStats(mustDecoder(t, Sanger))
	s.Add("GC", "II")
	var buf bytes.Buffer
	if err := WriteTSV(&buf, s.Summarize()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "cycle\tcount\tmin") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1\t1\t40\t40\t40\t40.0000") || !strings.HasSuffix(lines[1], "\t1.0000") {
		t.Errorf("unexpected row %q", lines[1])
	}
}
