package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"realtime-chat-api/internal/middleware"
	"realtime-chat-api/internal/models"
	"realtime-chat-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// wsClient implements realtime.Conn on top of a websocket connection.
// Frames are queued on send and written by a single writer goroutine.
type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeWait time.Duration
}

func newWSClient(conn *websocket.Conn, queue int, writeWait time.Duration) *wsClient {
	return &wsClient{
		conn:      conn,
		send:      make(chan []byte, queue),
		done:      make(chan struct{}),
		writeWait: writeWait,
	}
}

func (c *wsClient) Send(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- message:
		return true
	default:
		// queue full
		return false
	}
}

func (c *wsClient) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *wsClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}
		}
	}
}

// WSConfig tunes the websocket transport.
type WSConfig struct {
	AllowedOrigins []string
	SendQueueSize  int
	ReadLimit      int64
	WriteWait      time.Duration
}

// WSHandler upgrades authenticated requests and feeds their frames to the hub.
type WSHandler struct {
	hub      *realtime.Hub
	cfg      WSConfig
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewWSHandler(hub *realtime.Hub, cfg WSConfig, log *zap.Logger) *WSHandler {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 64
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 4096
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 5 * time.Second
	}
	anyOrigin := len(cfg.AllowedOrigins) == 0 || lo.Contains(cfg.AllowedOrigins, "*")
	return &WSHandler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return anyOrigin || origin == "" || lo.Contains(cfg.AllowedOrigins, origin)
			},
		},
		log: log,
	}
}

// Serve upgrades the connection and registers it with the hub.
// It requires JWT middleware to have set "user_id" in context.
// GET /ws?token=<jwt>[&room=<name>]
func (h *WSHandler) Serve(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authorized"})
		return
	}
	identity := models.Identity{ID: userID, DisplayName: c.GetString(middleware.ContextUsername)}
	if identity.DisplayName == "" {
		identity.DisplayName = userID
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := newWSClient(conn, h.cfg.SendQueueSize, h.cfg.WriteWait)
	go client.writePump()

	ctx := context.WithoutCancel(c.Request.Context())
	session := h.hub.Connect(ctx, client, identity, c.Query("room"))
	defer func() {
		h.hub.Disconnect(ctx, session.ID)
		client.Close()
	}()

	conn.SetReadLimit(h.cfg.ReadLimit)
	conn.SetPongHandler(func(string) error {
		h.hub.Ack(session.ID)
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read", zap.Uint64("session", uint64(session.ID)), zap.Error(err))
			}
			return
		}
		if err := h.hub.HandleFrame(ctx, session.ID, raw); err != nil && !isRoutineFrameError(err) {
			h.log.Warn("frame not handled", zap.Uint64("session", uint64(session.ID)), zap.Error(err))
		}
	}
}

// isRoutineFrameError reports errors already answered to the client.
func isRoutineFrameError(err error) bool {
	return errors.Is(err, realtime.ErrEmptyMessage) || errors.Is(err, realtime.ErrNoTarget)
}
