package fantasy_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flit/fantasy-engine/internal/fantasy"
	"github.com/flit/fantasy-engine/internal/model"
)

func TestDraftWS_PushesUpdates(t *testing.T) {
	e := newTestEnv(t)
	l := e.newLeague(t, twoMemberSettings())

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/fantasy-leagues/" + l.ID + "/draft/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() fantasy.WSMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg fantasy.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	first := read()
	if first.Type != "draft_state" || first.Draft == nil || first.Draft.Status != model.DraftPending {
		t.Fatalf("snapshot = %+v, want pending draft", first)
	}

	expectStatus(t, e.do(t, "POST", "/fantasy-leagues/"+l.ID+"/draft/start", map[string]string{"userId": "u1"}), http.StatusOK)

	update := read()
	if update.Draft == nil || update.Draft.Status != model.DraftActive || update.Draft.CurrentUserID != "u1" {
		t.Errorf("update = %+v, want active draft with u1 on the clock", update.Draft)
	}
}

func TestDraftWS_UnknownLeague(t *testing.T) {
	e := newTestEnv(t)
	expectStatus(t, e.do(t, "GET", "/fantasy-leagues/missing/draft/ws", nil), http.StatusNotFound)
}

func TestWSHub_ClosesOnShutdown(t *testing.T) {
	hub := fantasy.NewWSHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}
	if n := hub.Clients(); n != 0 {
		t.Errorf("clients = %d after shutdown", n)
	}
}
