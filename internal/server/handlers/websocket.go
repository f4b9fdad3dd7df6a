// internal/server/handlers/websocket.go

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"impactlens/internal/domain/run"
)

// ProgressSource serves ordered progress event streams for runs
type ProgressSource interface {
	Subscribe(runID string, fromSequence uint64) (<-chan run.ProgressEvent, func(), error)
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		PingPeriod: (60 * time.Second * 9) / 10,
	}
}

// WebSocketUpgrader is used to upgrade HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, this should be more restrictive
		return true
	},
}

// RunProgressHandler streams a run's progress events over WebSocket.
// Reconnecting clients pass from_sequence with the last sequence they
// saw and resume without gaps; the stream closes after the terminal
// event.
func RunProgressHandler(progress ProgressSource, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "id")
		if runID == "" {
			http.Error(w, "Missing run ID", http.StatusBadRequest)
			return
		}

		var fromSequence uint64
		if raw := r.URL.Query().Get("from_sequence"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				http.Error(w, "Invalid from_sequence", http.StatusBadRequest)
				return
			}
			fromSequence = parsed
		}

		events, cancel, err := progress.Subscribe(runID, fromSequence)
		if err != nil {
			http.Error(w, "Unknown run", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cancel()
			logger.Warn("failed to upgrade to websocket", zap.Error(err))
			return
		}

		client := &progressClient{
			conn:   conn,
			events: events,
			cancel: cancel,
			logger: logger,
			runID:  runID,
		}
		go client.writePump()
		go client.readPump()
	}
}

type progressClient struct {
	conn   *websocket.Conn
	events <-chan run.ProgressEvent
	cancel func()
	logger *zap.Logger
	runID  string
}

// readPump drains the connection so pongs and close frames are handled
func (c *progressClient) readPump() {
	config := DefaultWebSocketConfig()

	defer c.close()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("progress websocket closed",
					zap.String("run_id", c.runID),
					zap.Error(err))
			}
			return
		}
	}
}

// writePump forwards progress events to the peer and keeps it alive
// with pings
func (c *progressClient) writePump() {
	config := DefaultWebSocketConfig()
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case event, ok := <-c.events:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				// Terminal event delivered; end the stream cleanly.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				c.logger.Error("failed to marshal progress event", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *progressClient) close() {
	c.cancel()
	c.conn.Close()
}
