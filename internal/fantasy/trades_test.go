package fantasy_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/flit/fantasy-engine/internal/fantasy"
	"github.com/flit/fantasy-engine/internal/model"
)

func proposeAAPLForMSFT(t *testing.T, e *testEnv, leagueID string) model.Trade {
	t.Helper()
	w := e.do(t, "POST", "/fantasy-leagues/"+leagueID+"/trades", fantasy.ProposeTradeRequest{
		ProposerID:      "u1",
		RecipientID:     "u2",
		OfferedAssets:   []string{"a-aapl"},
		RequestedAssets: []string{"a-msft"},
	})
	expectStatus(t, w, http.StatusCreated)
	return decodeAs[model.Trade](t, w)
}

func TestTrade_AcceptSwapsSlots(t *testing.T) {
	e := newTestEnv(t)
	l := e.draftedLeague(t)
	tr := proposeAAPLForMSFT(t, e, l.ID)

	if tr.Status != model.TradePending || !tr.ExpiresAt.Equal(tr.CreatedAt.Add(fantasy.TradeTTL)) {
		t.Errorf("trade = %s expiring %v", tr.Status, tr.ExpiresAt)
	}

	expectStatus(t, e.do(t, "POST", "/fantasy-trades/"+tr.ID+"/accept", map[string]string{"userId": "u1"}), http.StatusForbidden)

	w := e.do(t, "POST", "/fantasy-trades/"+tr.ID+"/accept", map[string]string{"userId": "u2"})
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[model.Trade](t, w); got.Status != model.TradeAccepted {
		t.Errorf("status = %s, want accepted", got.Status)
	}

	u1 := e.portfolio(t, l.ID, "u1")
	if s := assetIDs(u1); s["a-msft"] != model.SlotActive || s["a-nvda"] != model.SlotBench || len(s) != 2 {
		t.Errorf("u1 slots = %v, want MSFT active and NVDA bench", s)
	}
	// Traded slots keep the price they were drafted at.
	if slot := u1.SlotByAsset("a-msft"); slot == nil || !slot.PurchasePrice.Equal(d(400)) {
		t.Errorf("MSFT slot = %+v, want purchase price 400", slot)
	}
	if s := assetIDs(e.portfolio(t, l.ID, "u2")); s["a-aapl"] != model.SlotActive || s["a-spy"] != model.SlotBench {
		t.Errorf("u2 slots = %v, want AAPL active and SPY bench", s)
	}

	expectStatus(t, e.do(t, "POST", "/fantasy-trades/"+tr.ID+"/reject", map[string]string{"userId": "u2"}), http.StatusConflict)
}

func TestTrade_RejectAndCancel(t *testing.T) {
	e := newTestEnv(t)
	l := e.draftedLeague(t)

	first := proposeAAPLForMSFT(t, e, l.ID)
	expectStatus(t, e.do(t, "POST", "/fantasy-trades/"+first.ID+"/cancel", map[string]string{"userId": "u2"}), http.StatusForbidden)
	expectStatus(t, e.do(t, "POST", "/fantasy-trades/"+first.ID+"/cancel", map[string]string{"userId": "u1"}), http.StatusOK)

	second := proposeAAPLForMSFT(t, e, l.ID)
	w := e.do(t, "POST", "/fantasy-trades/"+second.ID+"/reject", map[string]string{"userId": "u2"})
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[model.Trade](t, w); got.Status != model.TradeRejected {
		t.Errorf("status = %s, want rejected", got.Status)
	}

	if s := assetIDs(e.portfolio(t, l.ID, "u1")); s["a-aapl"] == "" {
		t.Errorf("u1 lost AAPL without an accepted trade: %v", s)
	}

	w = e.do(t, "GET", "/fantasy-leagues/"+l.ID+"/trades?userId=u2", nil)
	expectStatus(t, w, http.StatusOK)
	if trades := decodeAs[[]model.Trade](t, w); len(trades) != 2 {
		t.Errorf("u2 trades = %d, want 2", len(trades))
	}
}

func TestTrade_Expiry(t *testing.T) {
	e := newTestEnv(t)
	l := e.draftedLeague(t)
	tr := proposeAAPLForMSFT(t, e, l.ID)

	e.clock.Advance(fantasy.TradeTTL + time.Minute)
	expectStatus(t, e.do(t, "POST", "/fantasy-trades/"+tr.ID+"/accept", map[string]string{"userId": "u2"}), http.StatusConflict)

	w := e.do(t, "GET", "/fantasy-leagues/"+l.ID+"/trades", nil)
	expectStatus(t, w, http.StatusOK)
	trades := decodeAs[[]model.Trade](t, w)
	if len(trades) != 1 || trades[0].Status != model.TradeCancelled {
		t.Errorf("trades = %+v, want one cancelled", trades)
	}
}

func TestTrade_ProposalValidation(t *testing.T) {
	e := newTestEnv(t)
	settings := twoMemberSettings()
	settings.TradeDeadlineWeek = 1
	l := e.newLeague(t, settings)
	path := "/fantasy-leagues/" + l.ID + "/trades"

	valid := fantasy.ProposeTradeRequest{ProposerID: "u1", RecipientID: "u2", OfferedAssets: []string{"a-aapl"}, RequestedAssets: []string{"a-msft"}}
	expectStatus(t, e.do(t, "POST", path, valid), http.StatusConflict)

	// Run the draft so both sides hold assets.
	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/draft/start", map[string]string{"userId": "u1"}), http.StatusOK)
	for _, p := range [][2]string{{"u1", "a-aapl"}, {"u2", "a-msft"}, {"u2", "a-spy"}, {"u1", "a-nvda"}} {
		expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/draft/pick", map[string]string{"userId": p[0], "assetId": p[1]}), http.StatusOK)
	}

	tests := []struct {
		name string
		req  fantasy.ProposeTradeRequest
		want int
	}{
		{"self trade", fantasy.ProposeTradeRequest{ProposerID: "u1", RecipientID: "u1", OfferedAssets: []string{"a-aapl"}, RequestedAssets: []string{"a-nvda"}}, http.StatusBadRequest},
		{"nothing requested", fantasy.ProposeTradeRequest{ProposerID: "u1", RecipientID: "u2", OfferedAssets: []string{"a-aapl"}}, http.StatusBadRequest},
		{"not owned", fantasy.ProposeTradeRequest{ProposerID: "u1", RecipientID: "u2", OfferedAssets: []string{"a-msft"}, RequestedAssets: []string{"a-spy"}}, http.StatusConflict},
		{"outsider", fantasy.ProposeTradeRequest{ProposerID: "u1", RecipientID: "u3", OfferedAssets: []string{"a-aapl"}, RequestedAssets: []string{"a-voo"}}, http.StatusForbidden},
		{"roster overflow", fantasy.ProposeTradeRequest{ProposerID: "u1", RecipientID: "u2", OfferedAssets: []string{"a-aapl"}, RequestedAssets: []string{"a-msft", "a-spy"}}, http.StatusBadRequest},
		{"valid", valid, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, e.do(t, "POST", path, tt.req), tt.want)
		})
	}

	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/advance-week", map[string]string{"userId": "u1"}), http.StatusOK)
	expectStatus(t, e.do(t, "POST", path, valid), http.StatusConflict)
}
