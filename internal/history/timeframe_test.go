package history

import (
	"errors"
	"testing"
	"time"

	"github.com/flit/fantasy-engine/internal/model"
)

func TestFilterByTimeFrame_OneMonth(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	series := dailySeries(40, now)

	got := FilterByTimeFrame(series, Frame1M, now)

	if len(got) != 31 {
		t.Fatalf("len = %d, want 31", len(got))
	}
	cutoff := now.AddDate(0, 0, -30)
	for _, p := range got {
		if p.Timestamp.Before(cutoff) {
			t.Errorf("point %s before cutoff %s", p.Timestamp, cutoff)
		}
	}
	if !got[len(got)-1].Timestamp.Equal(now) {
		t.Error("last point dropped")
	}
}

func TestFilterByTimeFrame_AllReturnsInput(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	series := dailySeries(40, now)

	got := FilterByTimeFrame(series, FrameAll, now)
	if len(got) != len(series) {
		t.Fatalf("len = %d, want %d", len(got), len(series))
	}
}

func TestFilterByTimeFrame_YTD(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	series := dailySeries(40, now)

	got := FilterByTimeFrame(series, FrameYTD, now)
	// Jan 1 through Jan 10.
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	if got[0].Timestamp.Year() != 2025 {
		t.Errorf("first point %s not in current year", got[0].Timestamp)
	}
}

func TestFilterByTimeFrame_Windows(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	series := dailySeries(400, now)

	tests := []struct {
		frame TimeFrame
		want  int
	}{
		{Frame1D, 2},
		{Frame1W, 8},
		{Frame3M, 91},
		{Frame1Y, 366},
		{Frame5Y, 400},
	}
	for _, tt := range tests {
		if got := FilterByTimeFrame(series, tt.frame, now); len(got) != tt.want {
			t.Errorf("%s: len = %d, want %d", tt.frame, len(got), tt.want)
		}
	}
}

func TestParseTimeFrame(t *testing.T) {
	for _, s := range []string{"1D", "1W", "1M", "3M", "1Y", "5Y", "YTD", "ALL"} {
		if f, err := ParseTimeFrame(s); err != nil || string(f) != s {
			t.Errorf("ParseTimeFrame(%q) = %q, %v", s, f, err)
		}
	}
	if f, err := ParseTimeFrame(""); err != nil || f != FrameAll {
		t.Errorf("empty frame = %q, %v; want ALL", f, err)
	}
	if _, err := ParseTimeFrame("2W"); !errors.Is(err, ErrUnknownTimeFrame) {
		t.Errorf("2W err = %v, want ErrUnknownTimeFrame", err)
	}
}

func TestNormalize(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	series := []model.PortfolioSnapshot{
		{Timestamp: now.AddDate(0, 0, -2), Value: d(200)},
		{Timestamp: now.AddDate(0, 0, -1), Value: d(210)},
		{Timestamp: now, Value: d(190)},
	}

	got := Normalize(series)

	want := []float64{0, 5, -5}
	for i, w := range want {
		if !got[i].Value.Equal(d(w)) {
			t.Errorf("point %d = %s, want %v", i, got[i].Value, w)
		}
		if !got[i].Timestamp.Equal(series[i].Timestamp) {
			t.Errorf("point %d timestamp changed", i)
		}
	}
	if !series[1].Value.Equal(d(210)) {
		t.Error("input mutated")
	}

	if out := Normalize(nil); len(out) != 0 {
		t.Errorf("Normalize(nil) len = %d", len(out))
	}
}

func TestNormalize_ZeroBase(t *testing.T) {
	series := []model.PortfolioSnapshot{{Value: d(0)}, {Value: d(10)}}
	for _, p := range Normalize(series) {
		if !p.Value.IsZero() {
			t.Errorf("value = %s, want 0", p.Value)
		}
	}
}

func TestSample_KeepsLastPoint(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	series := dailySeries(97, now)

	got := Sample(series, 10)

	// Stride 10 yields indices 0..90, then the final point is appended.
	if len(got) != 11 {
		t.Fatalf("len = %d, want 11", len(got))
	}
	if !got[0].Timestamp.Equal(series[0].Timestamp) {
		t.Error("first point not kept")
	}
	if !got[len(got)-1].Timestamp.Equal(series[96].Timestamp) {
		t.Error("last point not kept")
	}
}

func TestSample_ShortSeriesUnchanged(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	series := dailySeries(8, now)

	if got := Sample(series, 10); len(got) != 8 {
		t.Errorf("len = %d, want 8", len(got))
	}
	if got := Sample(series, 0); len(got) != 8 {
		t.Errorf("maxPoints 0: len = %d, want 8", len(got))
	}
}

func TestSample_ExactStrideHitsLast(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	series := dailySeries(21, now)

	// Stride 3 lands on index 18, so 20 is appended.
	got := Sample(series, 7)
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	if !got[len(got)-1].Timestamp.Equal(series[20].Timestamp) {
		t.Error("last point not kept")
	}
}
