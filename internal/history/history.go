// Package history generates the synthetic performance series behind
// portfolio charts and trims them to chart timeframes.
//
// The series is a presentation device, not a statistical model. Its hard
// contracts are:
//   - the last point always equals the portfolio's current value
//   - daily values never fall below 70% of the starting balance before the
//     league started, nor below 80% after it
//   - the shape is stable per league within a day (see SeededRand)
//
// Internal arithmetic is float64; points are emitted as decimals rounded to
// cents, with the floors re-applied after rounding.
package history

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

const (
	day = 24 * time.Hour

	// lookbackDays of history precede the league start so long timeframes
	// have something to compare against.
	lookbackDays = 1825

	baseVolatility  = 0.02
	preStartFloor   = 0.7
	postStartFloor  = 0.8
	intradayFloor   = 0.95
	lookbackStart   = 0.85
	preStartPull    = 0.3
	intradayOpenGap = 0.998
	intradayStep    = 30 * time.Minute

	minVolatilityFactor = 0.7
	maxVolatilityFactor = 1.4
)

// Options carries the clock and randomness source. Zero values fall back to
// time.Now and an unseeded generator.
type Options struct {
	Now  time.Time
	Rand *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}

// SeededRand returns a generator seeded from the league id and the calendar
// day of now, so the same league renders the same chart all day.
func SeededRand(leagueID string, now time.Time) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(leagueID))
	y, m, dd := now.Date()
	dayKey := uint64(y)*10000 + uint64(m)*100 + uint64(dd)
	return rand.New(rand.NewPCG(h.Sum64(), dayKey))
}

// Generate builds a daily series from lookbackDays before the league start up
// to today, followed by half-hourly points for today's session. The final
// point is pinned to currentValue.
func Generate(currentValue, startingBalance decimal.Decimal, leagueStart time.Time, volatilityFactor float64, opts Options) []model.PortfolioSnapshot {
	opts = opts.withDefaults()
	now, rng := opts.Now, opts.Rand

	current := currentValue.InexactFloat64()
	start := startingBalance.InexactFloat64()
	if start <= 0 {
		start = current
		startingBalance = currentValue
	}

	daysSinceStart := int(now.Sub(leagueStart) / day)
	if daysSinceStart < 0 {
		daysSinceStart = 0
	}
	totalDays := lookbackDays + daysSinceStart

	var dailyTrend float64
	if start > 0 {
		totalReturn := (current - start) / start
		dailyTrend = totalReturn / float64(max(daysSinceStart, 1))
	}
	volatility := baseVolatility * volatilityFactor

	preFloor := startingBalance.Mul(decimal.NewFromFloat(preStartFloor))
	postFloor := startingBalance.Mul(decimal.NewFromFloat(postStartFloor))

	series := make([]model.PortfolioSnapshot, 0, totalDays+1+14)
	value := start * lookbackStart

	for i := totalDays; i >= 0; i-- {
		floor := postFloor
		if i > daysSinceStart {
			daysBefore := i - daysSinceStart
			trend := (start - value) / float64(max(daysBefore, 1)) * preStartPull
			change := (rng.Float64()-0.5)*volatility*value + trend
			value = math.Max(value+change, start*preStartFloor)
			floor = preFloor
		} else {
			v := volatility * (1 + rng.Float64()*0.5)
			change := (rng.Float64()-0.5)*v*value + dailyTrend*value
			value = math.Max(value+change, start*postStartFloor)
		}

		series = append(series, model.PortfolioSnapshot{
			Timestamp: now.Add(-time.Duration(i) * day),
			Value:     roundAtLeast(value, floor),
		})
	}
	series[len(series)-1].Value = currentValue

	intraday := generateIntraday(currentValue, volatility*0.5, now, rng)
	if len(intraday) == 0 {
		return series
	}
	return append(series[:len(series)-1], intraday...)
}

// generateIntraday walks half-hourly from 09:30 to 16:00 (local to now) up to
// now, starting just under currentValue and ending exactly on it.
func generateIntraday(currentValue decimal.Decimal, volatility float64, now time.Time, rng *rand.Rand) []model.PortfolioSnapshot {
	y, m, dd := now.Date()
	open := time.Date(y, m, dd, 9, 30, 0, 0, now.Location())
	closeAt := time.Date(y, m, dd, 16, 0, 0, 0, now.Location())

	current := currentValue.InexactFloat64()
	floor := currentValue.Mul(decimal.NewFromFloat(intradayFloor))
	value := current * intradayOpenGap

	var points []model.PortfolioSnapshot
	for t := open; !t.After(closeAt) && !t.After(now); t = t.Add(intradayStep) {
		change := (rng.Float64() - 0.5) * volatility * value
		value = math.Max(value+change, current*intradayFloor)
		points = append(points, model.PortfolioSnapshot{
			Timestamp: t,
			Value:     roundAtLeast(value, floor),
		})
	}
	if len(points) > 0 {
		points[len(points)-1].Value = currentValue
	}
	return points
}

// roundAtLeast rounds v to cents and never returns less than floor.
func roundAtLeast(v float64, floor decimal.Decimal) decimal.Decimal {
	out := decimal.NewFromFloat(v).Round(2)
	if out.LessThan(floor) {
		return floor
	}
	return out
}

// VolatilityFactor derives a stable per-league multiplier in [0.7, 1.4] from
// the character-code sum of the league id, damped for larger starting
// balances.
func VolatilityFactor(leagueID string, startingBalance decimal.Decimal) float64 {
	hash := 0
	for _, r := range leagueID {
		hash += int(r)
	}
	normalized := float64(hash%100) / 100

	balanceFactor := math.Max(0.7, 1.2-startingBalance.InexactFloat64()/50000)
	f := minVolatilityFactor + normalized*0.7*balanceFactor
	return math.Min(math.Max(f, minVolatilityFactor), maxVolatilityFactor)
}

// Benchmark is a market index series over the same window, used as the
// comparison line on charts.
func Benchmark(startingBalance decimal.Decimal, leagueStart time.Time, opts Options) []model.PortfolioSnapshot {
	return Generate(startingBalance, startingBalance, leagueStart, 0.8, opts)
}
