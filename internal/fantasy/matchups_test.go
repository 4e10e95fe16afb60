package fantasy_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/flit/fantasy-engine/internal/market"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/report"
)

// fixedFeed quotes a fixed price per asset id.
type fixedFeed map[string]float64

func (f fixedFeed) Quotes(_ context.Context, assets []model.Asset) ([]market.Quote, error) {
	var out []market.Quote
	for _, a := range assets {
		if p, ok := f[a.ID]; ok {
			out = append(out, market.Quote{AssetID: a.ID, Ticker: a.Ticker, Price: d(p)})
		}
	}
	return out, nil
}

func TestMatchups_ScoreActiveSlots(t *testing.T) {
	e := newTestEnv(t)
	l := e.draftedLeague(t)
	base := "/fantasy-leagues/" + l.ID

	// MSFT (u2 active) +20%, SPY (u2 bench) and NVDA (u1 bench) fall.
	if err := e.svc.RefreshPrices(context.Background(), fixedFeed{"a-msft": 480, "a-spy": 250, "a-nvda": 60}); err != nil {
		t.Fatalf("RefreshPrices: %v", err)
	}

	w := e.do(t, "GET", base+"/matchup/current?userId=u2", nil)
	expectStatus(t, w, http.StatusOK)
	m := decodeAs[model.Matchup](t, w)
	if m.Week != 1 || m.UserAID != "u1" || m.UserBID != "u2" {
		t.Fatalf("matchup = %+v, want u1 vs u2 in week 1", m)
	}
	if !m.ScoreA.Equal(d(0)) || !m.ScoreB.Equal(d(20)) {
		t.Errorf("scores = %s / %s, want 0 / 20", m.ScoreA, m.ScoreB)
	}
	if m.WinnerID != "" {
		t.Errorf("current week has a winner %q", m.WinnerID)
	}

	w = e.do(t, "GET", base+"/matchup/week/1", nil)
	expectStatus(t, w, http.StatusOK)
	if all := decodeAs[[]model.Matchup](t, w); len(all) != 1 {
		t.Errorf("week 1 matchups = %d, want 1", len(all))
	}

	expectStatus(t, e.do(t, "GET", base+"/matchup/week/0?userId=u1", nil), http.StatusBadRequest)
	expectStatus(t, e.do(t, "GET", base+"/matchup/week/abc", nil), http.StatusBadRequest)
	expectStatus(t, e.do(t, "GET", base+"/matchup/week/1?userId=u3", nil), http.StatusNotFound)
}

func TestMatchups_TradingCompetitionScoresHoldings(t *testing.T) {
	e := newTestEnv(t)
	l := e.newLeague(t, twoMemberSettings())
	base := "/fantasy-leagues/" + l.ID

	expectStatus(t, e.do(t, "POST", base+"/start", map[string]string{"userId": "u1"}), http.StatusNoContent)
	expectStatus(t, e.do(t, "POST", "/users/u1/lessons/lesson-3/complete", nil), http.StatusOK)
	expectStatus(t, e.do(t, "POST", base+"/portfolio/u1/buy", map[string]any{"assetId": "a-aapl", "shares": 1}), http.StatusOK)

	if err := e.svc.RefreshPrices(context.Background(), fixedFeed{"a-aapl": 150}); err != nil {
		t.Fatalf("RefreshPrices: %v", err)
	}

	w := e.do(t, "GET", base+"/matchup/current?userId=u1", nil)
	expectStatus(t, w, http.StatusOK)
	m := decodeAs[model.Matchup](t, w)
	if !m.ScoreA.Equal(d(1.5)) || !m.ScoreB.IsZero() {
		t.Errorf("scores = %s / %s, want 1.5 / 0", m.ScoreA, m.ScoreB)
	}

	expectStatus(t, e.do(t, "POST", base+"/advance-week", map[string]string{"userId": "u1"}), http.StatusOK)
	w = e.do(t, "GET", base+"/matchup/week/1?userId=u2", nil)
	expectStatus(t, w, http.StatusOK)
	if past := decodeAs[model.Matchup](t, w); past.WinnerID != "u1" {
		t.Errorf("week 1 winner = %q, want u1", past.WinnerID)
	}
}

func TestMatchups_NotStarted(t *testing.T) {
	e := newTestEnv(t)
	l := e.newLeague(t, twoMemberSettings())
	expectStatus(t, e.do(t, "GET", "/fantasy-leagues/"+l.ID+"/matchup/current?userId=u1", nil), http.StatusNotFound)
}

func TestStandings_JSONAndWorkbook(t *testing.T) {
	e := newTestEnv(t)
	l := e.draftedLeague(t)
	if err := e.svc.RefreshPrices(context.Background(), fixedFeed{"a-msft": 480}); err != nil {
		t.Fatalf("RefreshPrices: %v", err)
	}

	w := e.do(t, "GET", "/fantasy-leagues/"+l.ID+"/standings", nil)
	expectStatus(t, w, http.StatusOK)
	rows := decodeAs[[]model.Standing](t, w)
	if len(rows) != 2 || rows[0].UserID != "u2" || rows[0].Rank != 1 || rows[1].UserID != "u1" {
		t.Errorf("standings = %+v, want u2 first", rows)
	}

	w = e.do(t, "GET", "/fantasy-leagues/"+l.ID+"/standings?format=xlsx", nil)
	expectStatus(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != report.ContentType {
		t.Errorf("content type = %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("empty workbook")
	}
}

func TestMarketAssets_FiltersAndLocks(t *testing.T) {
	e := newTestEnv(t)
	settings := twoMemberSettings()
	settings.MinAssetPrice = d(150)
	l := e.newLeague(t, settings)

	w := e.do(t, "GET", "/fantasy-leagues/"+l.ID+"/market/assets?userId=u1&search=spdr", nil)
	expectStatus(t, w, http.StatusOK)
	assets := decodeAs[[]model.Asset](t, w)
	if len(assets) != 2 || assets[0].Ticker != "GLD" || !assets[0].IsLocked || assets[1].Ticker != "SPY" || assets[1].IsLocked {
		t.Errorf("assets = %+v, want GLD (locked) and SPY", assets)
	}

	w = e.do(t, "GET", "/fantasy-leagues/"+l.ID+"/market/assets", nil)
	expectStatus(t, w, http.StatusOK)
	for _, a := range decodeAs[[]model.Asset](t, w) {
		if a.CurrentPrice.LessThan(d(150)) {
			t.Errorf("%s at %s is under the league minimum", a.Ticker, a.CurrentPrice)
		}
	}
}
