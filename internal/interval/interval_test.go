package interval

import (
	"math"
	"testing"
	"time"
)

func TestGenerateContiguousAndExhaustive(t *testing.T) {
	for _, agg := range []int{1, 2, 3, 5, 7, 10, 15, 16, 30, 45, 90, 365} {
		ivs, err := Generate(Options{StartYear: 2019, EndYear: 2021, AggDays: agg})
		if err != nil {
			t.Fatalf("agg %d: %v", agg, err)
		}

		first := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
		last := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
		if !ivs[0].Start.Equal(first) {
			t.Errorf("agg %d: first start %v, want %v", agg, ivs[0].Start, first)
		}
		if end := ivs[len(ivs)-1].End; !end.Equal(last) {
			t.Errorf("agg %d: last end %v, want %v", agg, end, last)
		}

		perYear := map[int]int{}
		for i, iv := range ivs {
			if !iv.End.After(iv.Start) {
				t.Fatalf("agg %d: empty interval %v", agg, iv)
			}
			if i > 0 && !ivs[i-1].End.Equal(iv.Start) {
				t.Fatalf("agg %d: gap or overlap between %v and %v", agg, ivs[i-1], iv)
			}
			perYear[iv.Start.Year()]++
		}

		want := int(math.Round(365 / float64(agg)))
		for y := 2019; y <= 2021; y++ {
			if d := perYear[y] - want; d < -1 || d > 1 {
				t.Errorf("agg %d year %d: %d intervals, want %d±1", agg, y, perYear[y], want)
			}
		}
	}
}

func TestForYearDecadalBoundaries(t *testing.T) {
	for _, year := range []int{2020, 2021} {
		ivs, err := ForYear(year, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(ivs) != 36 {
			t.Fatalf("%d: got %d intervals, want 36", year, len(ivs))
		}

		// month stepping keeps boundaries within a day of the 1st, 11th and 21st
		tests := []struct {
			idx  int
			want time.Time
		}{
			{1, time.Date(year, 1, 11, 0, 0, 0, 0, time.UTC)},
			{3, time.Date(year, 2, 1, 0, 0, 0, 0, time.UTC)},
			{18, time.Date(year, 7, 1, 0, 0, 0, 0, time.UTC)},
			{35, time.Date(year, 12, 21, 0, 0, 0, 0, time.UTC)},
		}
		for _, tt := range tests {
			got := ivs[tt.idx].Start
			if diff := got.Sub(tt.want); diff < -24*time.Hour || diff > 24*time.Hour {
				t.Errorf("%d: interval %d starts %v, want about %v", year, tt.idx, got, tt.want)
			}
		}
		if want := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format(DateLayout); ivs[0].Label() != want {
			t.Errorf("label = %q, want %q", ivs[0].Label(), want)
		}
	}
}

func TestGenerateUntil(t *testing.T) {
	until := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	ivs, err := Generate(Options{StartYear: 2024, EndYear: 2024, AggDays: 10, Until: until})
	if err != nil {
		t.Fatal(err)
	}
	lastIv := ivs[len(ivs)-1]
	if lastIv.Start.After(until) {
		t.Errorf("interval %v starts after cut-off", lastIv)
	}
	if !lastIv.Contains(until) && lastIv.End.Before(until) {
		t.Errorf("cut-off dropped the interval containing %v", until)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	tests := []Options{
		{StartYear: 2020, EndYear: 2019, AggDays: 10},
		{StartYear: 2020, EndYear: 2020, AggDays: 0},
	}
	for _, opts := range tests {
		if _, err := Generate(opts); err == nil {
			t.Errorf("Generate(%+v) succeeded, want error", opts)
		}
	}
}
