package server

import (
	"net/http"
	"time"

	"github.com/battlearena/arena-server-go/internal/arena"
	"github.com/battlearena/arena-server-go/internal/config"
	"github.com/battlearena/arena-server-go/internal/events"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// eventMessage is the wire form of a committed event on the feed.
type eventMessage struct {
	ID       string `json:"id"`
	Seq      uint64 `json:"seq"`
	Type     string `json:"type"`
	At       string `json:"at"`
	Identity string `json:"identity,omitempty"`
	Counter  string `json:"counterpart,omitempty"`
	TokenID  uint64 `json:"token_id,omitempty"`
	Amount   uint64 `json:"amount,omitempty"`
}

// StartWebSocketServer serves the committed-event feed. Each connection gets
// its own subscription to the arena's event log; this call blocks until the
// listener fails.
func StartWebSocketServer(cfg config.WebSocketConfig, a *arena.Arena, logger *zap.Logger) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		go serveFeed(conn, a, logger)
	})

	logger.Info("starting websocket server",
		zap.String("address", cfg.Address),
		zap.String("path", cfg.Path),
	)
	return http.ListenAndServe(cfg.Address, mux)
}

func serveFeed(conn *websocket.Conn, a *arena.Arena, logger *zap.Logger) {
	sessionID := uuid.NewString()
	sub := a.Subscribe()
	defer func() {
		a.Unsubscribe(sub)
		conn.Close()
		logger.Debug("websocket session closed", zap.String("session_id", sessionID))
	}()

	logger.Debug("websocket session opened", zap.String("session_id", sessionID))

	// Drain reads so close frames and pongs are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(toMessage(ev)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func toMessage(ev events.Event) eventMessage {
	return eventMessage{
		ID:       ev.ID,
		Seq:      ev.Seq,
		Type:     string(ev.Type),
		At:       ev.At.UTC().Format(time.RFC3339Nano),
		Identity: ev.Identity,
		Counter:  ev.Counter,
		TokenID:  ev.TokenID,
		Amount:   ev.Amount,
	}
}
