package fantasy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flit/fantasy-engine/internal/draft"
	"github.com/flit/fantasy-engine/internal/market"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/portfolio"
)

// MarketAssets returns the league's tradable catalog, optionally searched,
// with IsLocked derived for userID.
func (s *Service) MarketAssets(ctx context.Context, leagueID, userID, search string) ([]model.Asset, error) {
	l, err := s.league(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	viewer := s.viewer(ctx, l, userID)
	q := strings.ToLower(strings.TrimSpace(search))

	out := make([]model.Asset, 0, len(assets))
	for _, a := range assets {
		if !l.Settings.AllowsAsset(&a) {
			continue
		}
		if q != "" && !draft.MatchesQuery(&a, q) {
			continue
		}
		out = append(out, a.ForUser(viewer))
	}
	return out, nil
}

// RefreshPrices pulls quotes for the whole catalog, stores them, and marks
// every portfolio of an active league to the new prices.
func (s *Service) RefreshPrices(ctx context.Context, feed market.Feed) error {
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return err
	}
	quotes, err := feed.Quotes(ctx, assets)
	if err != nil {
		return fmt.Errorf("fetch quotes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range quotes {
		if err := s.store.UpdateAssetPrice(ctx, q.AssetID, q.Price, q.ChangePercent); err != nil {
			return fmt.Errorf("update %s: %w", q.Ticker, err)
		}
	}
	if assets, err = s.store.ListAssets(ctx); err != nil {
		return err
	}

	leagues, err := s.store.ListLeagues(ctx)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	marked := 0
	for _, l := range leagues {
		if l.Status != model.LeagueStatusActive {
			continue
		}
		list, err := s.store.ListPortfolios(ctx, l.ID)
		if err != nil {
			return err
		}
		for i := range list {
			p := &list[i]
			portfolio.MarkToMarket(p, assets)
			p.UpdatedAt = now
			if err := s.store.SavePortfolio(ctx, p); err != nil {
				return err
			}
			marked++
		}
	}

	slog.Info("prices refreshed", "quotes", len(quotes), "portfolios", marked)
	return nil
}
