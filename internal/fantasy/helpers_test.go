package fantasy_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/flit/fantasy-engine/internal/fantasy"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// testClock is a settable clock for the service under test.
type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time            { return c.t }
func (c *testClock) Advance(by time.Duration) { c.t = c.t.Add(by) }

type testEnv struct {
	svc    *fantasy.Service
	store  *store.MemoryStore
	router chi.Router
	clock  *testClock
}

// newTestEnv creates a Service over an in-memory store seeded with users
// u1..u3 and a small catalog, mounted on a chi router.
func newTestEnv(t *testing.T, opts ...fantasy.Option) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	clock := &testClock{t: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}
	opts = append([]fantasy.Option{fantasy.WithClock(clock.Now)}, opts...)
	svc := fantasy.NewService(ms, nil, opts...)

	r := chi.NewRouter()
	r.Route("/api/v1", svc.RegisterRoutes)

	ctx := context.Background()
	for _, u := range []model.User{
		{ID: "u1", Username: "alex", Name: "Alex"},
		{ID: "u2", Username: "sam", Name: "Sam"},
		{ID: "u3", Username: "jo", Name: "Jo"},
	} {
		if err := ms.CreateUser(ctx, &u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	for _, a := range testAssets() {
		if err := ms.UpsertAsset(ctx, &a); err != nil {
			t.Fatalf("seed asset: %v", err)
		}
	}
	return &testEnv{svc: svc, store: ms, router: r, clock: clock}
}

// testAssets sorts by ticker as: AAPL, GLD, MSFT, NVDA, SPY, VOO.
func testAssets() []model.Asset {
	return []model.Asset{
		{ID: "a-aapl", Ticker: "AAPL", Name: "Apple Inc.", Type: model.AssetTypeStock, Tier: model.AssetTier1, CurrentPrice: d(100), RequiredLessons: []string{}},
		{ID: "a-gld", Ticker: "GLD", Name: "SPDR Gold Shares", Type: model.AssetTypeCommodity, Tier: model.AssetTier3, CurrentPrice: d(180), RequiredLessons: []string{"lesson-3"}},
		{ID: "a-msft", Ticker: "MSFT", Name: "Microsoft", Type: model.AssetTypeStock, Tier: model.AssetTier1, CurrentPrice: d(400), RequiredLessons: []string{}},
		{ID: "a-nvda", Ticker: "NVDA", Name: "NVIDIA", Type: model.AssetTypeStock, Tier: model.AssetTier2, CurrentPrice: d(120), RequiredLessons: []string{}},
		{ID: "a-spy", Ticker: "SPY", Name: "SPDR S&P 500 ETF", Type: model.AssetTypeETF, Tier: model.AssetTier1, CurrentPrice: d(500), RequiredLessons: []string{}},
		{ID: "a-voo", Ticker: "VOO", Name: "Vanguard S&P 500 ETF", Type: model.AssetTypeETF, Tier: model.AssetTier1, CurrentPrice: d(460), RequiredLessons: []string{}},
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeAs[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d: %s", w.Code, want, w.Body.String())
	}
}

// twoMemberSettings drafts two assets each: one active, one bench.
func twoMemberSettings() model.LeagueSettings {
	return model.LeagueSettings{
		LeagueSize:     2,
		SeasonLength:   4,
		PortfolioSize:  2,
		ActiveSlots:    1,
		BenchSlots:     1,
		WaiverPriority: model.WaiverRolling,
	}
}

// newLeague creates a league administered by u1 and joins u2.
func (e *testEnv) newLeague(t *testing.T, settings model.LeagueSettings) model.League {
	t.Helper()
	w := e.do(t, "POST", "/fantasy-leagues", fantasy.CreateLeagueRequest{
		Name:        "Rookies",
		AdminUserID: "u1",
		Settings:    settings,
	})
	expectStatus(t, w, http.StatusCreated)
	l := decodeAs[model.League](t, w)

	w = e.do(t, "POST", "/fantasy-leagues/join-by-code", map[string]string{"joinCode": l.JoinCode, "userId": "u2"})
	expectStatus(t, w, http.StatusOK)
	return decodeAs[fantasy.JoinResult](t, w).League.Clone()
}

// draftedLeague runs a snake draft to completion. u1 ends with AAPL
// (active) and NVDA (bench); u2 with MSFT (active) and SPY (bench).
func (e *testEnv) draftedLeague(t *testing.T) model.League {
	t.Helper()
	l := e.newLeague(t, twoMemberSettings())
	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/draft/start", map[string]string{"userId": "u1"}), http.StatusOK)

	for _, p := range []struct{ user, asset string }{
		{"u1", "a-aapl"},
		{"u2", "a-msft"},
		{"u2", "a-spy"},
		{"u1", "a-nvda"},
	} {
		w := e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/draft/pick", map[string]string{"userId": p.user, "assetId": p.asset})
		expectStatus(t, w, http.StatusOK)
	}

	got, err := e.svc.GetLeague(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("GetLeague: %v", err)
	}
	return *got
}

func (e *testEnv) portfolio(t *testing.T, leagueID, userID string) model.Portfolio {
	t.Helper()
	w := e.do(t, "GET", "/fantasy-leagues/"+leagueID+"/portfolio/"+userID, nil)
	expectStatus(t, w, http.StatusOK)
	return decodeAs[model.Portfolio](t, w)
}

func assetIDs(p model.Portfolio) map[string]model.SlotStatus {
	out := make(map[string]model.SlotStatus, len(p.Slots))
	for _, s := range p.Slots {
		out[s.AssetID] = s.Status
	}
	return out
}
