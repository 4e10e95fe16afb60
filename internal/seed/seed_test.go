package seed

import (
	"context"
	"testing"

	"github.com/flit/fantasy-engine/internal/fantasy"
	"github.com/flit/fantasy-engine/internal/model"
	"github.com/flit/fantasy-engine/internal/store"
)

func TestLoad_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := fantasy.NewService(st, nil)

	if err := Load(ctx, st, svc); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	// A lesson completed between restarts must survive the reseed.
	if _, err := svc.CompleteLesson(ctx, "user_2", LessonETFs); err != nil {
		t.Fatalf("CompleteLesson: %v", err)
	}
	if err := Load(ctx, st, svc); err != nil {
		t.Fatalf("second Load: %v", err)
	}

	leagues, err := st.ListLeagues(ctx)
	if err != nil {
		t.Fatalf("ListLeagues: %v", err)
	}
	if len(leagues) != 2 {
		t.Fatalf("leagues = %d, want 2", len(leagues))
	}
	for _, l := range leagues {
		if len(l.Members) != len(Users) || l.Status != model.LeagueStatusPending {
			t.Errorf("%s: members = %d, status = %s", l.Name, len(l.Members), l.Status)
		}
	}

	u, err := st.GetUser(ctx, "user_2")
	if err != nil || !u.HasCompleted(LessonETFs) {
		t.Errorf("user_2 lessons = %v, %v", u, err)
	}
	assets, err := st.ListAssets(ctx)
	if err != nil || len(assets) != len(Assets) {
		t.Errorf("assets = %d, %v, want %d", len(assets), err, len(Assets))
	}
}

func TestLoad_DemoDraftsComplete(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := fantasy.NewService(st, nil)
	if err := Load(ctx, st, svc); err != nil {
		t.Fatalf("Load: %v", err)
	}
	leagues, err := st.ListLeagues(ctx)
	if err != nil {
		t.Fatalf("ListLeagues: %v", err)
	}
	for _, l := range leagues {
		if _, err := svc.StartDraft(ctx, l.ID, l.AdminUserID); err != nil {
			t.Fatalf("%s: StartDraft: %v", l.Name, err)
		}
	}

	for range 100 {
		if err := svc.TickDrafts(ctx, 1000); err != nil {
			t.Fatalf("TickDrafts: %v", err)
		}
	}

	for _, l := range leagues {
		dr, err := svc.GetDraft(ctx, l.ID)
		if err != nil {
			t.Fatalf("%s: GetDraft: %v", l.Name, err)
		}
		want := len(Users) * l.Settings.PortfolioSize
		if dr.Status != model.DraftCompleted || len(dr.Picks) != want || dr.TotalPicks != want {
			t.Errorf("%s: draft %s with %d of %d picks, want %d", l.Name, dr.Status, len(dr.Picks), dr.TotalPicks, want)
		}
		got, err := svc.GetLeague(ctx, l.ID)
		if err != nil || got.Status != model.LeagueStatusActive {
			t.Errorf("%s: league = %v, %v, want active", l.Name, got, err)
		}
	}
}

func TestAssets_UniqueAndPriced(t *testing.T) {
	ids := map[string]bool{}
	tickers := map[string]bool{}
	for _, a := range Assets {
		if ids[a.ID] || tickers[a.Ticker] {
			t.Errorf("duplicate asset %s (%s)", a.ID, a.Ticker)
		}
		ids[a.ID], tickers[a.Ticker] = true, true
		if !a.CurrentPrice.IsPositive() {
			t.Errorf("%s has price %s", a.Ticker, a.CurrentPrice)
		}
		if a.Type != model.AssetTypeStock && len(a.RequiredLessons) == 0 {
			t.Errorf("%s (%s) is not behind a lesson", a.Ticker, a.Type)
		}
	}
}
