// Package market supplies asset prices: a simulated random walk for
// development and demos, and a client for an HTTP quote API.
package market

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Quote is the latest price of one asset.
type Quote struct {
	AssetID       string          `json:"assetId"`
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// Feed returns fresh quotes for the given assets. Assets it has no price
// for are left out of the result.
type Feed interface {
	Quotes(ctx context.Context, assets []model.Asset) ([]Quote, error)
}

// SimulatedFeed moves every price by a small random step per call.
type SimulatedFeed struct {
	mu      sync.Mutex
	rng     *rand.Rand
	maxStep float64
}

// NewSimulatedFeed returns a feed whose steps stay within ±maxStep (0.005
// is ±0.5%). A nil rng uses an unseeded generator.
func NewSimulatedFeed(rng *rand.Rand, maxStep float64) *SimulatedFeed {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if maxStep <= 0 {
		maxStep = 0.005
	}
	return &SimulatedFeed{rng: rng, maxStep: maxStep}
}

// Quotes implements Feed. The day's change compounds with each step.
func (f *SimulatedFeed) Quotes(_ context.Context, assets []model.Asset) ([]Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Quote, 0, len(assets))
	for _, a := range assets {
		if !a.CurrentPrice.IsPositive() {
			continue
		}
		step := (f.rng.Float64()*2 - 1) * f.maxStep
		factor := decimal.NewFromFloat(1 + step)

		price := a.CurrentPrice.Mul(factor).Round(2)
		if !price.IsPositive() {
			price = a.CurrentPrice
		}
		dayFactor := decimal.NewFromInt(1).Add(a.ChangePercent.Div(hundred)).Mul(factor)
		change := dayFactor.Sub(decimal.NewFromInt(1)).Mul(hundred).Round(2)

		out = append(out, Quote{AssetID: a.ID, Ticker: a.Ticker, Price: price, ChangePercent: change})
	}
	return out, nil
}

// FallbackFeed asks the primary feed first and falls back to the secondary
// when it fails or returns nothing.
type FallbackFeed struct {
	Primary  Feed
	Fallback Feed
}

// Quotes implements Feed.
func (f FallbackFeed) Quotes(ctx context.Context, assets []model.Asset) ([]Quote, error) {
	quotes, err := f.Primary.Quotes(ctx, assets)
	if err == nil && len(quotes) > 0 {
		return quotes, nil
	}
	if f.Fallback == nil {
		if err == nil {
			err = errors.New("market: primary feed returned no quotes")
		}
		return nil, err
	}
	slog.Warn("primary quote feed unavailable, using fallback", "err", err)
	return f.Fallback.Quotes(ctx, assets)
}
