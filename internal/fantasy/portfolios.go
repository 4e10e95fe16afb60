package fantasy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/history"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/portfolio"
)

// DefaultHistoryPoints caps chart series when the caller sets no maximum.
const DefaultHistoryPoints = 200

// LineupRequest is the JSON body for PUT /fantasy-portfolios/{id}/lineup.
type LineupRequest struct {
	ActiveSlotIDs []string `json:"activeSlotIds"`
	BenchSlotIDs  []string `json:"benchSlotIds"`
}

// AllocateRequest is the JSON body for POST .../portfolio/{userID}/allocate.
type AllocateRequest struct {
	AssetClass model.AssetClass `json:"assetClass"`
	Amount     decimal.Decimal  `json:"amount"`
}

// BuyRequest is the JSON body for POST .../portfolio/{userID}/buy.
type BuyRequest struct {
	AssetID string          `json:"assetId"`
	Shares  decimal.Decimal `json:"shares"`
}

// HistoryQuery selects the chart window of a portfolio history.
type HistoryQuery struct {
	Frame     history.TimeFrame
	MaxPoints int
	Normalize bool
}

// HistoryResponse is the chart series of a portfolio and its benchmark.
type HistoryResponse struct {
	PortfolioID string                    `json:"portfolioId"`
	Frame       history.TimeFrame         `json:"frame"`
	Normalized  bool                      `json:"normalized"`
	Series      []model.PortfolioSnapshot `json:"series"`
	Benchmark   []model.PortfolioSnapshot `json:"benchmark"`
}

// GetPortfolio returns a member's portfolio marked to the latest prices.
func (s *Service) GetPortfolio(ctx context.Context, leagueID, userID string) (*model.Portfolio, error) {
	if _, _, err := s.member(ctx, leagueID, userID); err != nil {
		return nil, err
	}
	p, err := s.portfolioOf(ctx, leagueID, userID)
	if err != nil {
		return nil, err
	}
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	portfolio.MarkToMarket(p, assets)
	return p, nil
}

// UpdateLineup re-tags a portfolio's slots as ACTIVE or BENCH.
func (s *Service) UpdateLineup(ctx context.Context, portfolioID string, req LineupRequest) (*model.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("portfolio %s: %w", portfolioID, err)
	}
	if err := authorize(ctx, p.UserID); err != nil {
		return nil, err
	}
	l, err := s.league(ctx, p.LeagueID)
	if err != nil {
		return nil, err
	}
	if err := portfolio.UpdateLineup(p, req.ActiveSlotIDs, req.BenchSlotIDs, l.Settings.ActiveSlots); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.store.SavePortfolio(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("lineup updated",
		"portfolio", p.ID,
		"active", len(req.ActiveSlotIDs),
		"bench", len(req.BenchSlotIDs),
	)
	return p, nil
}

// AllocateFunds moves liquid funds into an allocation bucket.
func (s *Service) AllocateFunds(ctx context.Context, leagueID, userID string, req AllocateRequest) (*model.Portfolio, error) {
	if err := authorize(ctx, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.member(ctx, leagueID, userID); err != nil {
		return nil, err
	}
	p, err := s.portfolioOf(ctx, leagueID, userID)
	if err != nil {
		return nil, err
	}
	if err := portfolio.AllocateFunds(p, req.AssetClass, req.Amount); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.store.SavePortfolio(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("funds allocated",
		"portfolio", p.ID,
		"class", req.AssetClass,
		"amount", req.Amount.String(),
		"liquid", p.LiquidFunds.String(),
	)
	return p, nil
}

// BuyStock buys shares with the member's lesson rewards.
func (s *Service) BuyStock(ctx context.Context, leagueID, userID string, req BuyRequest) (*model.Portfolio, error) {
	if req.AssetID == "" {
		return nil, fmt.Errorf("%w: assetId is required", ErrInvalidInput)
	}
	if err := authorize(ctx, userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, u, err := s.member(ctx, leagueID, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.portfolioOf(ctx, leagueID, userID)
	if err != nil {
		return nil, err
	}
	asset, err := s.store.GetAsset(ctx, req.AssetID)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", req.AssetID, err)
	}
	if err := portfolio.BuyStock(p, u, asset, req.Shares); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.store.SavePortfolio(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("stock bought",
		"portfolio", p.ID,
		"symbol", asset.Ticker,
		"shares", req.Shares.String(),
		"price", asset.CurrentPrice.String(),
		"rewards_left", p.LessonRewards.String(),
	)
	return p, nil
}

// PortfolioHistory returns the chart series for a member's portfolio with a
// benchmark over the same window.
func (s *Service) PortfolioHistory(ctx context.Context, leagueID, userID string, q HistoryQuery) (*HistoryResponse, error) {
	p, err := s.GetPortfolio(ctx, leagueID, userID)
	if err != nil {
		return nil, err
	}
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if q.Frame == "" {
		q.Frame = history.FrameAll
	}
	if q.MaxPoints <= 0 {
		q.MaxPoints = DefaultHistoryPoints
	}

	now := s.now()
	start := l.StartDate()
	basis := portfolio.CostBasis(p)

	series := history.Generate(p.TotalValue, basis, start, history.VolatilityFactor(l.ID, basis), history.Options{
		Now:  now,
		Rand: history.SeededRand(l.ID, now),
	})
	bench := history.Benchmark(l.Settings.StartingBalance, start, history.Options{
		Now:  now,
		Rand: history.SeededRand("benchmark:"+l.ID, now),
	})

	shape := func(in []model.PortfolioSnapshot) []model.PortfolioSnapshot {
		out := history.Sample(history.FilterByTimeFrame(in, q.Frame, now), q.MaxPoints)
		if q.Normalize {
			out = history.Normalize(out)
		}
		return out
	}

	return &HistoryResponse{
		PortfolioID: p.ID,
		Frame:       q.Frame,
		Normalized:  q.Normalize,
		Series:      shape(series),
		Benchmark:   shape(bench),
	}, nil
}
