package fantasy

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/flit/fantasy-engine/internal/metrics"
	"github.com/flit/fantasy-engine/internal/model"
)

const (
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type     string            `json:"type"`
	LeagueID string            `json:"leagueId"`
	Draft    *model.DraftState `json:"draft,omitempty"`
}

// WSHub tracks WebSocket connections so they can be counted and closed
// on shutdown. Draft updates reach connections through the Broker.
type WSHub struct {
	clients    map[*websocket.Conn]string
	register   chan wsClient
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
}

type wsClient struct {
	conn     *websocket.Conn
	leagueID string
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]string),
		register:   make(chan wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop until ctx is cancelled, then
// closes every connection. Must be called in a goroutine.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			metrics.WebSocketClients.Set(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c.leagueID
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			slog.Info("ws client connected", "league", c.leagueID, "total", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
		}
	}
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHub) add(conn *websocket.Conn, leagueID string) bool {
	select {
	case h.register <- wsClient{conn: conn, leagueID: leagueID}:
		return true
	case <-h.done:
		return false
	}
}

func (h *WSHub) remove(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// DraftWS handles GET /api/v1/fantasy-leagues/{leagueID}/draft/ws.
// It sends the current draft state, then every update until the client
// goes away.
func (s *Service) DraftWS(w http.ResponseWriter, r *http.Request) {
	leagueID := chi.URLParam(r, "leagueID")

	// Subscribe before the snapshot so no update falls in between.
	updates, cancel := s.broker.Subscribe(leagueID)
	current, err := s.GetDraft(r.Context(), leagueID)
	if err != nil {
		cancel()
		writeErr(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	if s.hub != nil && !s.hub.add(conn, leagueID) {
		cancel()
		conn.Close()
		return
	}

	// Read pump: detect disconnects, then end the subscription.
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Write pump: sole writer on the connection.
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer func() {
			ticker.Stop()
			cancel()
			if s.hub != nil {
				s.hub.remove(conn)
			} else {
				conn.Close()
			}
		}()

		if !writeDraft(conn, current) {
			return
		}
		for {
			select {
			case d, ok := <-updates:
				if !ok {
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				if !writeDraft(conn, &d) {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
}

func writeDraft(conn *websocket.Conn, d *model.DraftState) bool {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	err := conn.WriteJSON(WSMessage{Type: "draft_state", LeagueID: d.LeagueID, Draft: d})
	return err == nil
}
