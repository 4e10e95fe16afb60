// Package seed loads demo users, an asset catalog and two leagues so a
// fresh server has something to show.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/fantasy"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/store"
)

const (
	LessonBasics      = "lesson_basics"
	LessonETFs        = "lesson_etfs"
	LessonCommodities = "lesson_commodities"
	LessonREITs       = "lesson_reits"
)

var Users = []model.User{
	{ID: "user_1", Username: "@alex", Name: "Alex", Avatar: "😊", CompletedLessons: []string{LessonBasics}},
	{ID: "user_2", Username: "@sarahc", Name: "Sarah Chen", Avatar: "👩‍💼", CompletedLessons: []string{}},
	{ID: "user_3", Username: "@marcusj", Name: "Marcus Johnson", Avatar: "👨‍💻", CompletedLessons: []string{}},
	{ID: "user_4", Username: "@emmar", Name: "Emma Rodriguez", Avatar: "👩‍🎓", CompletedLessons: []string{}},
}

func asset(id, ticker, name string, typ model.AssetType, tier model.AssetTier, price, change string, lessons ...string) model.Asset {
	if lessons == nil {
		lessons = []string{}
	}
	return model.Asset{
		ID:              id,
		Ticker:          ticker,
		Name:            name,
		Type:            typ,
		Tier:            tier,
		CurrentPrice:    decimal.RequireFromString(price),
		ChangePercent:   decimal.RequireFromString(change),
		RequiredLessons: lessons,
	}
}

// Assets is the demo catalog. Funds, commodities and REITs sit behind
// lessons.
var Assets = []model.Asset{
	asset("1", "AAPL", "Apple Inc.", model.AssetTypeStock, model.AssetTier1, "178.32", "1.24"),
	asset("2", "SPY", "SPDR S&P 500 ETF Trust", model.AssetTypeETF, model.AssetTier1, "498.32", "0.41", LessonETFs),
	asset("3", "MSFT", "Microsoft Corporation", model.AssetTypeStock, model.AssetTier1, "378.91", "0.87"),
	asset("4", "GOOGL", "Alphabet Inc.", model.AssetTypeStock, model.AssetTier1, "140.25", "-0.45"),
	asset("5", "AMZN", "Amazon.com Inc.", model.AssetTypeStock, model.AssetTier1, "155.67", "2.13"),
	asset("7", "TSLA", "Tesla Inc.", model.AssetTypeStock, model.AssetTier2, "242.84", "-1.89"),
	asset("8", "NVDA", "NVIDIA Corporation", model.AssetTypeStock, model.AssetTier2, "495.22", "3.45"),
	asset("9", "META", "Meta Platforms Inc.", model.AssetTypeStock, model.AssetTier2, "338.54", "0.92"),
	asset("10", "BRK.B", "Berkshire Hathaway", model.AssetTypeStock, model.AssetTier1, "368.45", "0.23"),
	asset("11", "V", "Visa Inc.", model.AssetTypeStock, model.AssetTier1, "252.89", "0.67"),
	asset("12", "JPM", "JPMorgan Chase", model.AssetTypeStock, model.AssetTier1, "158.34", "-0.34"),
	asset("13", "WMT", "Walmart Inc.", model.AssetTypeStock, model.AssetTier1, "68.92", "0.45"),
	asset("14", "JNJ", "Johnson & Johnson", model.AssetTypeStock, model.AssetTier1, "157.23", "-0.12"),
	asset("15", "PG", "Procter & Gamble", model.AssetTypeStock, model.AssetTier1, "156.78", "0.34"),
	asset("16", "DIS", "The Walt Disney Co.", model.AssetTypeStock, model.AssetTier2, "91.45", "1.78"),
	asset("17", "NFLX", "Netflix Inc.", model.AssetTypeStock, model.AssetTier2, "448.92", "2.45"),
	asset("18", "VOO", "Vanguard S&P 500 ETF", model.AssetTypeETF, model.AssetTier1, "458.10", "0.39", LessonETFs),
	asset("19", "QQQ", "Invesco QQQ Trust", model.AssetTypeETF, model.AssetTier2, "409.52", "0.95", LessonETFs),
	asset("20", "GLD", "SPDR Gold Shares", model.AssetTypeCommodity, model.AssetTier3, "187.40", "-0.21", LessonCommodities),
	asset("21", "SLV", "iShares Silver Trust", model.AssetTypeCommodity, model.AssetTier3, "22.15", "0.62", LessonCommodities),
	asset("22", "VNQ", "Vanguard Real Estate ETF", model.AssetTypeREIT, model.AssetTier3, "84.77", "-0.58", LessonREITs),
	asset("23", "O", "Realty Income Corp.", model.AssetTypeREIT, model.AssetTier3, "54.31", "0.18", LessonREITs),
}

// Load writes the demo users and catalog into st and, when the store has
// no leagues yet, creates the demo leagues through svc. Existing users are
// left untouched so a restart does not undo completed lessons.
func Load(ctx context.Context, st store.Store, svc *fantasy.Service) error {
	for _, u := range Users {
		u := u.Clone()
		if err := st.CreateUser(ctx, &u); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	for _, a := range Assets {
		if err := st.UpsertAsset(ctx, &a); err != nil {
			return fmt.Errorf("seed asset %s: %w", a.Ticker, err)
		}
	}

	existing, err := st.ListLeagues(ctx)
	if err != nil {
		return fmt.Errorf("seed: list leagues: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("demo data loaded", "users", len(Users), "assets", len(Assets), "leagues", "kept")
		return nil
	}

	for _, req := range leagues() {
		l, err := svc.CreateLeague(ctx, req)
		if err != nil {
			return fmt.Errorf("seed league %q: %w", req.Name, err)
		}
		for _, u := range Users {
			if u.ID == req.AdminUserID {
				continue
			}
			if _, err := svc.JoinByCode(ctx, l.JoinCode, u.ID); err != nil {
				return fmt.Errorf("seed league %q: join %s: %w", req.Name, u.ID, err)
			}
		}
	}
	slog.Info("demo data loaded", "users", len(Users), "assets", len(Assets), "leagues", 2)
	return nil
}

// leagues sizes both demo drafts so every member fills a roster from the
// stocks alone, which no lesson gates.
func leagues() []fantasy.CreateLeagueRequest {
	diamondDraft := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)
	reitDraft := time.Date(2025, 12, 1, 18, 0, 0, 0, time.UTC)
	return []fantasy.CreateLeagueRequest{
		{
			Name:        "Diamond League",
			AdminUserID: "user_2",
			Settings: model.LeagueSettings{
				LeagueSize:          4,
				SeasonLength:        10,
				DraftDate:           &diamondDraft,
				PortfolioSize:       4,
				ActiveSlots:         3,
				BenchSlots:          1,
				ScoringMethod:       model.ScoringTotalReturn,
				EnabledAssetClasses: []model.AssetType{model.AssetTypeStock, model.AssetTypeETF},
				MinAssetPrice:       decimal.NewFromInt(1),
				DraftType:           model.DraftTypeSnake,
				DraftTimePerPick:    60,
				MatchupType:         model.MatchupHeadToHead,
				PlayoffsEnabled:     true,
				TradeDeadlineWeek:   7,
				WaiverPriority:      model.WaiverReverseStandings,
			},
		},
		{
			Name:        "REIT Masters",
			AdminUserID: "user_1",
			Settings: model.LeagueSettings{
				LeagueSize:          4,
				SeasonLength:        8,
				DraftDate:           &reitDraft,
				PortfolioSize:       4,
				ActiveSlots:         4,
				ScoringMethod:       model.ScoringAbsoluteGain,
				EnabledAssetClasses: []model.AssetType{model.AssetTypeREIT, model.AssetTypeStock},
				MinAssetPrice:       decimal.NewFromInt(5),
				DraftType:           model.DraftTypeAuction,
				DraftTimePerPick:    90,
				MatchupType:         model.MatchupHeadToHead,
				TradeDeadlineWeek:   6,
				WaiverPriority:      model.WaiverRolling,
			},
		},
	}
}
