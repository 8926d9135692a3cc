// Package ws bridges signal-bus channels to dashboard WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Config selects what the hub relays.
type Config struct {
	Mode     string
	Channels []string
	// ReplayStream is replayed to each new client, limited to entries newer
	// than ReplayWindow. Empty disables replay.
	ReplayStream  string
	ReplayChannel string
	ReplayWindow  time.Duration
	ReplayCount   int
}

// Envelope is the text frame sent to clients.
type Envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	subs map[string]bool
}

// subscribeMsg is what a client sends to change its channel set.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// Hub fans bus messages out to every client subscribed to their channel.
// New clients start subscribed to every configured channel.
type Hub struct {
	cfg    Config
	bus    domain.SignalBus
	logger *slog.Logger

	mu        sync.RWMutex
	clients   map[*client]bool
	broadcast chan Envelope
	startedAt time.Time
}

// NewHub creates a Hub reading from bus.
func NewHub(bus domain.SignalBus, cfg Config, logger *slog.Logger) *Hub {
	if cfg.ReplayCount <= 0 {
		cfg.ReplayCount = 100
	}
	return &Hub{
		cfg:       cfg,
		bus:       bus,
		logger:    logger.With(slog.String("component", "ws_hub")),
		clients:   make(map[*client]bool),
		broadcast: make(chan Envelope, 256),
		startedAt: time.Now().UTC(),
	}
}

// Run subscribes to the configured channels and relays until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range h.cfg.Channels {
		msgs, err := h.bus.Subscribe(ctx, ch)
		if err != nil {
			return fmt.Errorf("ws: subscribe %s: %w", ch, err)
		}
		go h.forward(ctx, ch, msgs)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) forward(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: channel subscription closed", slog.String("channel", channel))
				return
			}
			select {
			case h.broadcast <- Envelope{Channel: channel, Data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) deliver(env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Warn("ws: marshal envelope failed", slog.String("error", err.Error()))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribed(env.Channel) {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("ws: dropping message for slow client", slog.String("channel", env.Channel))
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool, len(h.cfg.Channels)),
	}
	for _, ch := range h.cfg.Channels {
		c.subs[ch] = true
	}

	c.queue(h.hello())
	h.replay(r.Context(), c)

	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client connected", slog.Int("total_clients", total))

	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client disconnected", slog.Int("total_clients", total))
}

func (h *Hub) hello() []byte {
	data, _ := json.Marshal(map[string]any{
		"mode":           h.cfg.Mode,
		"channels":       h.cfg.Channels,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
	frame, _ := json.Marshal(Envelope{Channel: "status", Data: data})
	return frame
}

// replay sends the recent tail of the replay stream. Stream ids start with
// the append time in milliseconds, so the window maps onto a start id.
func (h *Hub) replay(ctx context.Context, c *client) {
	if h.cfg.ReplayStream == "" || h.cfg.ReplayWindow <= 0 {
		return
	}
	from := fmt.Sprintf("%d-0", time.Now().Add(-h.cfg.ReplayWindow).UnixMilli())
	msgs, err := h.bus.StreamRead(ctx, h.cfg.ReplayStream, from, h.cfg.ReplayCount)
	if err != nil {
		h.logger.Warn("ws: replay failed", slog.String("error", err.Error()))
		return
	}
	for _, m := range msgs {
		frame, err := json.Marshal(Envelope{Channel: h.cfg.ReplayChannel, Data: m.Payload})
		if err == nil {
			c.queue(frame)
		}
	}
}

func (c *client) queue(frame []byte) {
	select {
	case c.send <- frame:
	default:
	}
}

func (c *client) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range msg.Channels {
		switch msg.Action {
		case "subscribe":
			c.subs[ch] = true
		case "unsubscribe":
			delete(c.subs, ch)
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg subscribeMsg
		if json.Unmarshal(message, &msg) == nil && msg.Action != "" {
			c.apply(msg)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
