package fantasy_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/flit/fantasy-engine/internal/fantasy"
	"github.com/flit/fantasy-engine/internal/model"
)

func TestCreateLeague_AppliesDefaults(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "POST", "/fantasy-leagues", fantasy.CreateLeagueRequest{Name: "  Weekend Traders ", AdminUserID: "u1"})
	expectStatus(t, w, http.StatusCreated)
	l := decodeAs[model.League](t, w)

	if l.Name != "Weekend Traders" || l.Status != model.LeagueStatusPending {
		t.Errorf("league = %q %s, want trimmed name and pending", l.Name, l.Status)
	}
	if len(l.JoinCode) != fantasy.JoinCodeLength || strings.ToUpper(l.JoinCode) != l.JoinCode {
		t.Errorf("join code = %q, want 6 uppercase characters", l.JoinCode)
	}
	s := l.Settings
	if s.LeagueSize != 12 || s.SeasonLength != 10 || s.PortfolioSize != 10 || s.ActiveSlots != 7 || s.BenchSlots != 3 {
		t.Errorf("sizes = %+v", s)
	}
	if s.DraftType != model.DraftTypeSnake || s.DraftTimePerPick != 60 || s.WaiverPriority != model.WaiverReverseStandings {
		t.Errorf("draft/waiver defaults = %s %d %s", s.DraftType, s.DraftTimePerPick, s.WaiverPriority)
	}
	if !s.StartingBalance.Equal(d(10000)) {
		t.Errorf("starting balance = %s, want 10000", s.StartingBalance)
	}
	if len(l.Members) != 1 || l.Members[0].ID != "u1" {
		t.Errorf("members = %+v, want only the admin", l.Members)
	}
}

func TestCreateLeague_Validation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		req  fantasy.CreateLeagueRequest
		want int
	}{
		{"missing name", fantasy.CreateLeagueRequest{AdminUserID: "u1"}, http.StatusBadRequest},
		{"missing admin", fantasy.CreateLeagueRequest{Name: "x"}, http.StatusBadRequest},
		{"unknown admin", fantasy.CreateLeagueRequest{Name: "x", AdminUserID: "ghost"}, http.StatusNotFound},
		{"active over size", fantasy.CreateLeagueRequest{Name: "x", AdminUserID: "u1", Settings: model.LeagueSettings{PortfolioSize: 3, ActiveSlots: 4}}, http.StatusBadRequest},
		{"deadline past season", fantasy.CreateLeagueRequest{Name: "x", AdminUserID: "u1", Settings: model.LeagueSettings{SeasonLength: 4, TradeDeadlineWeek: 5}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, "POST", "/fantasy-leagues", tt.req)
			expectStatus(t, w, tt.want)
			body := decodeAs[map[string]string](t, w)
			if body["message"] == "" || body["error"] == "" {
				t.Errorf("error body = %v, want error and message", body)
			}
		})
	}
}

func TestCreateLeague_MalformedBody(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "POST", "/fantasy-leagues", "not an object")
	expectStatus(t, w, http.StatusBadRequest)
}

func TestJoinByCode(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "POST", "/fantasy-leagues", fantasy.CreateLeagueRequest{
		Name:        "Pairs",
		AdminUserID: "u1",
		Settings:    model.LeagueSettings{LeagueSize: 2},
	})
	expectStatus(t, w, http.StatusCreated)
	l := decodeAs[model.League](t, w)

	// Codes are case-insensitive.
	w = e.do(t, "POST", "/fantasy-leagues/join-by-code", map[string]string{"joinCode": strings.ToLower(l.JoinCode), "userId": "u2"})
	expectStatus(t, w, http.StatusOK)
	res := decodeAs[fantasy.JoinResult](t, w)
	if res.Membership.UserID != "u2" || res.Membership.LeagueID != l.ID || len(res.League.Members) != 2 {
		t.Errorf("join result = %+v", res)
	}

	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/join-by-code", map[string]string{"joinCode": l.JoinCode, "userId": "u2"}), http.StatusConflict)
	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/join-by-code", map[string]string{"joinCode": l.JoinCode, "userId": "u3"}), http.StatusConflict)
	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/join-by-code", map[string]string{"joinCode": "ABC", "userId": "u3"}), http.StatusBadRequest)
	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/join-by-code", map[string]string{"joinCode": "ZZZZZZ", "userId": "u3"}), http.StatusNotFound)

	w = e.do(t, "GET", "/fantasy-leagues?userId=u2", nil)
	expectStatus(t, w, http.StatusOK)
	if mine := decodeAs[[]model.League](t, w); len(mine) != 1 || mine[0].ID != l.ID {
		t.Errorf("u2 leagues = %+v", mine)
	}
}

func TestStartLeague_CreatesPortfolios(t *testing.T) {
	e := newTestEnv(t)
	l := e.newLeague(t, twoMemberSettings())

	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/start", map[string]string{"userId": "u2"}), http.StatusForbidden)
	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/start", map[string]string{"userId": "u1"}), http.StatusNoContent)

	w := e.do(t, "GET", "/fantasy-leagues/"+l.ID, nil)
	expectStatus(t, w, http.StatusOK)
	got := decodeAs[model.League](t, w)
	if got.Status != model.LeagueStatusActive || got.CurrentWeek != 1 || got.Settings.StartDate == nil {
		t.Errorf("league = %s week %d start %v", got.Status, got.CurrentWeek, got.Settings.StartDate)
	}

	p := e.portfolio(t, l.ID, "u2")
	if p.Name != "Sam's Portfolio" || !p.LiquidFunds.Equal(d(10000)) || !p.TotalValue.Equal(d(10000)) {
		t.Errorf("portfolio = %q liquid %s total %s", p.Name, p.LiquidFunds, p.TotalValue)
	}

	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/start", map[string]string{"userId": "u1"}), http.StatusConflict)
}

func TestLeaveLeague(t *testing.T) {
	e := newTestEnv(t)
	l := e.newLeague(t, twoMemberSettings())

	// The admin leaves; the role passes on.
	w := e.do(t, "DELETE", "/fantasy-leagues/"+l.ID+"/leave", map[string]string{"userId": "u1"})
	expectStatus(t, w, http.StatusOK)
	if res := decodeAs[fantasy.LeaveResult](t, w); res.LeagueDeleted {
		t.Errorf("league deleted with a member left")
	}
	w = e.do(t, "GET", "/fantasy-leagues/"+l.ID, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[model.League](t, w); got.AdminUserID != "u2" || len(got.Members) != 1 {
		t.Errorf("after leave: admin %s, %d members", got.AdminUserID, len(got.Members))
	}

	expectStatus(t, e.do(t, "DELETE", "/fantasy-leagues/"+l.ID+"/leave", map[string]string{"userId": "u1"}), http.StatusForbidden)

	w = e.do(t, "DELETE", "/fantasy-leagues/"+l.ID+"/leave", map[string]string{"userId": "u2"})
	expectStatus(t, w, http.StatusOK)
	if res := decodeAs[fantasy.LeaveResult](t, w); !res.LeagueDeleted {
		t.Errorf("last member left, league not deleted")
	}
	expectStatus(t, e.do(t, "GET", "/fantasy-leagues/"+l.ID, nil), http.StatusNotFound)
}

func TestLeaveLeague_BlockedDuringDraft(t *testing.T) {
	e := newTestEnv(t)
	l := e.newLeague(t, twoMemberSettings())
	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/draft/start", map[string]string{"userId": "u1"}), http.StatusOK)

	expectStatus(t, e.do(t, "DELETE", "/fantasy-leagues/"+l.ID+"/leave", map[string]string{"userId": "u2"}), http.StatusConflict)
}

func TestAdvanceWeek_CompletesSeason(t *testing.T) {
	e := newTestEnv(t)
	l := e.draftedLeague(t)

	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/advance-week", map[string]string{"userId": "u2"}), http.StatusForbidden)

	var got model.League
	for range l.Settings.SeasonLength {
		w := e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/advance-week", map[string]string{"userId": "u1"})
		expectStatus(t, w, http.StatusOK)
		got = decodeAs[model.League](t, w)
	}
	if got.Status != model.LeagueStatusCompleted || got.CurrentWeek != l.Settings.SeasonLength {
		t.Errorf("after season: %s week %d", got.Status, got.CurrentWeek)
	}
	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/advance-week", map[string]string{"userId": "u1"}), http.StatusConflict)
}
