package history

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

// TimeFrame selects the chart window.
type TimeFrame string

const (
	Frame1D  TimeFrame = "1D"
	Frame1W  TimeFrame = "1W"
	Frame1M  TimeFrame = "1M"
	Frame3M  TimeFrame = "3M"
	Frame1Y  TimeFrame = "1Y"
	Frame5Y  TimeFrame = "5Y"
	FrameYTD TimeFrame = "YTD"
	FrameAll TimeFrame = "ALL"
)

// ErrUnknownTimeFrame is returned by ParseTimeFrame.
var ErrUnknownTimeFrame = errors.New("history: unknown timeframe")

var windows = map[TimeFrame]time.Duration{
	Frame1D: 1 * day,
	Frame1W: 7 * day,
	Frame1M: 30 * day,
	Frame3M: 90 * day,
	Frame1Y: 365 * day,
	Frame5Y: 1825 * day,
}

// ParseTimeFrame validates a timeframe name. Empty means ALL.
func ParseTimeFrame(s string) (TimeFrame, error) {
	f := TimeFrame(s)
	switch {
	case s == "":
		return FrameAll, nil
	case f == FrameAll || f == FrameYTD:
		return f, nil
	}
	if _, ok := windows[f]; ok {
		return f, nil
	}
	return "", ErrUnknownTimeFrame
}

// FilterByTimeFrame keeps the points inside the window ending at now. ALL
// (and any unknown frame) returns the input slice itself.
func FilterByTimeFrame(series []model.PortfolioSnapshot, frame TimeFrame, now time.Time) []model.PortfolioSnapshot {
	var cutoff time.Time
	switch frame {
	case FrameYTD:
		cutoff = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		w, ok := windows[frame]
		if !ok {
			return series
		}
		cutoff = now.Add(-w)
	}

	out := make([]model.PortfolioSnapshot, 0, len(series))
	for _, p := range series {
		if !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// Normalize rescales a series to percent change from its first point.
func Normalize(series []model.PortfolioSnapshot) []model.PortfolioSnapshot {
	if len(series) == 0 {
		return []model.PortfolioSnapshot{}
	}
	base := series[0].Value
	hundred := decimal.NewFromInt(100)

	out := make([]model.PortfolioSnapshot, len(series))
	for i, p := range series {
		v := decimal.Zero
		if !base.IsZero() {
			v = p.Value.Sub(base).Div(base).Mul(hundred)
		}
		out[i] = model.PortfolioSnapshot{Timestamp: p.Timestamp, Value: v}
	}
	return out
}

// Sample downsamples to roughly maxPoints with a fixed stride of
// ceil(len/maxPoints). The final point is always kept.
func Sample(series []model.PortfolioSnapshot, maxPoints int) []model.PortfolioSnapshot {
	if maxPoints <= 0 || len(series) <= maxPoints {
		return series
	}
	stride := (len(series) + maxPoints - 1) / maxPoints

	out := make([]model.PortfolioSnapshot, 0, maxPoints+1)
	last := 0
	for i := 0; i < len(series); i += stride {
		out = append(out, series[i])
		last = i
	}
	if last != len(series)-1 {
		out = append(out, series[len(series)-1])
	}
	return out
}
