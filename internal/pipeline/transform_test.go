package pipeline

import (
	"errors"
	"testing"

	"ngsqc/internal/barcode"
	"ngsqc/internal/fastq"
	"ngsqc/internal/quality"
)

func decoder(t *testing.T, offset int) quality.Decoder {
	t.Helper()
	d, err := quality.NewDecoder(offset)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func rec(seq, qual string) fastq.Record {
	return fastq.Record{ID: "@r", Seq: seq, Sep: "+", Qual: qual}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		passRate float64
		maxNs    int
		maxEE    float64
		rec      fastq.Record
		want     bool
	}{
		{"all high", 0.9, -1, 0, rec("ACGTACGTAC", "IIIIIIIIII"), true},
		{"one low base in ten", 0.9, -1, 0, rec("ACGTACGTAC", "#IIIIIIIII"), true},
		{"two low bases in ten", 0.9, -1, 0, rec("ACGTACGTAC", "##IIIIIIII"), false},
		{"base at threshold counts", 1, -1, 0, rec("ACGT", "5555"), true},
		{"below threshold", 0.5, -1, 0, rec("ACGT", "4444"), false},
		{"empty read", 0, -1, 0, rec("", ""), false},
		{"N check disabled", 0.9, -1, 0, rec("NNNN", "IIII"), true},
		{"too many Ns", 0.9, 1, 0, rec("ANNA", "IIII"), false},
		{"Ns within limit", 0.9, 2, 0, rec("AnNA", "IIII"), true},
		{"expected errors over limit", 0.5, -1, 0.5, rec("ACGTACGT", "IIII$$$$"), false},
		{"expected errors within limit", 0.5, -1, 1, rec("ACGTACGT", "IIII5555"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(decoder(t, 33), 20, tt.passRate, tt.maxNs, tt.maxEE)
			if err != nil {
				t.Fatal(err)
			}
			res, err := f.Apply(tt.rec)
			if err != nil {
				t.Fatal(err)
			}
			if res.Keep != tt.want {
				t.Errorf("Keep = %v, want %v", res.Keep, tt.want)
			}
			if res.Record != tt.rec {
				t.Errorf("filter modified the record: %+v", res.Record)
			}
		})
	}
}

func TestFilterErrors(t *testing.T) {
	if _, err := NewFilter(decoder(t, 33), 20, 1.5, -1, 0); err == nil {
		t.Error("accepted pass rate above 1")
	}
	tests := []struct {
		name  string
		maxNs int
		maxEE float64
		rec   fastq.Record
	}{
		{"invalid character", -1, 0, rec("ACGT", "hh#h")},
		{"invalid character in read with too many Ns", 0, 0, rec("NAC", "!!!")},
		{"invalid character in read over expected errors", -1, 0.001, rec("ACGT", "BBB!")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(decoder(t, 64), 20, 0.9, tt.maxNs, tt.maxEE)
			if err != nil {
				t.Fatal(err)
			}
			res, err := f.Apply(tt.rec)
			if !errors.Is(err, quality.ErrInvalidScore) {
				t.Errorf("got %v, want ErrInvalidScore", err)
			}
			if res.Keep {
				t.Error("kept a record with invalid qualities")
			}
		})
	}
}

func TestQualTrimErrors(t *testing.T) {
	q, err := NewQualTrim(decoder(t, 64), 20, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range []fastq.Record{rec("ACGT", "!!hh"), rec("ACNN", "h!hh"), rec("ACGT", "!hhB")} {
		res, err := q.Apply(in)
		if !errors.Is(err, quality.ErrInvalidScore) {
			t.Errorf("Apply(%+v) error = %v, want ErrInvalidScore", in, err)
		}
		if res.Keep {
			t.Errorf("Apply(%+v) kept a record with invalid qualities", in)
		}
	}
}

func TestQualTrim(t *testing.T) {
	tests := []struct {
		name       string
		trailingNs bool
		minLength  int
		in         fastq.Record
		want       fastq.Record
		keep       bool
	}{
		{"nothing to trim", false, 0, rec("ACGT", "IIII"), rec("ACGT", "IIII"), true},
		{"low tail", false, 0, rec("ACGTAC", "II#I##"), rec("ACGT", "II#I"), true},
		{"internal low base kept", false, 0, rec("ACGT", "I#II"), rec("ACGT", "I#II"), true},
		{"trailing N with good score kept", false, 0, rec("ACGN", "IIII"), rec("ACGN", "IIII"), true},
		{"trailing Ns removed", true, 0, rec("ACGNnN", "IIIIII"), rec("ACG", "III"), true},
		{"N then low", true, 0, rec("ACGTNA", "III#I#"), rec("ACG", "III"), true},
		{"everything low", false, 0, rec("ACGT", "####"), rec("", ""), true},
		{"short after trim", false, 3, rec("ACGT", "II##"), rec("AC", "II"), false},
		{"exactly min length", false, 2, rec("ACGT", "II##"), rec("AC", "II"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewQualTrim(decoder(t, 33), 20, tt.minLength, tt.trailingNs)
			if err != nil {
				t.Fatal(err)
			}
			res, err := q.Apply(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if res.Keep != tt.keep {
				t.Errorf("Keep = %v, want %v", res.Keep, tt.keep)
			}
			if res.Record != tt.want {
				t.Errorf("got %+v, want %+v", res.Record, tt.want)
			}
		})
	}
}

func TestHardTrim(t *testing.T) {
	h, err := NewHardTrim(3)
	if err != nil {
		t.Fatal(err)
	}
	res, _ := h.Apply(rec("ACGTA", "IIIII"))
	if want := rec("ACG", "III"); res.Record != want || !res.Keep {
		t.Errorf("got %+v", res)
	}
	res, _ = h.Apply(rec("AC", "II"))
	if res.Record.Seq != "AC" {
		t.Errorf("short read changed to %q", res.Record.Seq)
	}
	if _, err := NewHardTrim(-1); err == nil {
		t.Error("accepted negative length")
	}
}

func TestBarcodeSplit(t *testing.T) {
	tbl := barcode.NewTable()
	tbl.Add("ACGT", "liver")
	tbl.Add("TTTT", "")

	tests := []struct {
		name    string
		tag     bool
		in      fastq.Record
		wantID  string
		wantSeq string
		code    string
	}{
		{"assigned", false, rec("ACGTGGG", "ABCDEFG"), "@r", "GGG", "ACGT"},
		{"tagged", true, rec("ACGTGGG", "ABCDEFG"), "@r bcd:ACGT desc:liver", "GGG", "ACGT"},
		{"tagged no description", true, rec("TTTTA", "ABCDE"), "@r bcd:TTTT desc:", "A", "TTTT"},
		{"unassigned", true, rec("GGGGA", "ABCDE"), "@r", "GGGGA", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBarcodeSplit(tbl, 0, false, tt.tag)
			if err != nil {
				t.Fatal(err)
			}
			res, err := b.Apply(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Keep || res.Barcode != tt.code {
				t.Errorf("got barcode %q keep %v, want %q", res.Barcode, res.Keep, tt.code)
			}
			if res.Record.ID != tt.wantID || res.Record.Seq != tt.wantSeq {
				t.Errorf("got %+v", res.Record)
			}
			if len(res.Record.Qual) != len(res.Record.Seq) {
				t.Errorf("quality not trimmed with sequence: %+v", res.Record)
			}
		})
	}
}

func TestOffsetConvert(t *testing.T) {
	c := NewOffsetConvert(decoder(t, 64), decoder(t, 33))
	res, err := c.Apply(rec("ACG", "h@J"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Record.Qual != "I!+" {
		t.Errorf("got %q, want %q", res.Record.Qual, "I!+")
	}
	if _, err := c.Apply(rec("A", "!")); !errors.Is(err, quality.ErrInvalidScore) {
		t.Errorf("got %v, want ErrInvalidScore", err)
	}
}

func TestOrdered(t *testing.T) {
	if NewPassthrough(false).Ordered() || !NewPassthrough(true).Ordered() {
		t.Error("Passthrough.Ordered does not follow its setting")
	}
	f, _ := NewFilter(decoder(t, 33), 20, 0.9, -1, 0)
	if f.Ordered() {
		t.Error("filter should not require ordering")
	}
}
