package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oakmere/wallcal/pkg/models"
)

const (
	writeWait      = 10 * time.Second // Time allowed to write a message to the peer.
	maxMessageSize = 512              // Maximum message size allowed from peer.
)

type Config struct {
	Logger         *slog.Logger
	AppCtx         context.Context
	SweepInterval  time.Duration
	SendBufferSize int
	MaxConnections int

	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin for the upgrader; nil allows all origins, matching the
	// viewer-facing deployment behind its own host.
	CheckOrigin func(r *http.Request) bool
}

// conn is one live realtime client. Membership is owned by the Hub's
// registry; the pumps only read their own connection.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	ping chan struct{}

	mu       sync.Mutex
	alive    bool
	lastPong time.Time

	closeOnce sync.Once
}

func (c *conn) markAlive() {
	c.mu.Lock()
	c.alive = true
	c.lastPong = time.Now()
	c.mu.Unlock()
}

// demote moves an alive connection to suspect, reporting whether it was
// alive. A connection already suspect when the sweep runs is due for
// termination.
func (c *conn) demote() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasAlive := c.alive
	c.alive = false
	return wasAlive
}

// Hub is the connection registry plus the broadcast fabric. It owns the
// liveness sweep; the gateway only calls HandleUpgrade and the Notify
// methods.
type Hub struct {
	logger   *slog.Logger
	appCtx   context.Context
	cfg      Config
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

func New(cfg Config) *Hub {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Hub{
		logger: cfg.Logger.WithGroup("hub"),
		appCtx: cfg.AppCtx,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     checkOrigin,
		},
		conns: make(map[*conn]struct{}),
	}
}

// Run drives the liveness sweep until ctx is cancelled. Every tick, a
// connection still suspect from the previous tick is terminated; everyone
// else is demoted to suspect and sent a ping. A client that answers is
// never terminated; one that goes silent is gone within two intervals.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	h.logger.Info("liveness sweep started", "interval", h.cfg.SweepInterval)
	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-ctx.Done():
			h.logger.Info("liveness sweep stopped")
			h.closeAll()
			return
		}
	}
}

func (h *Hub) sweep() {
	h.mu.RLock()
	snapshot := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		if !c.demote() {
			h.logger.Info("terminating unresponsive connection", "conn_id", c.id, "remote_addr", c.ws.RemoteAddr())
			h.remove(c)
			continue
		}
		select {
		case c.ping <- struct{}{}:
		default:
			// writePump is already draining a ping; one probe per sweep is
			// enough.
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	snapshot := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		h.remove(c)
	}
}

// ConnectionCount reports current registry membership.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// HandleUpgrade upgrades an inbound request to a persistent connection and
// registers it. Clients send no application messages; the only upstream
// traffic is transport-level pong frames.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	active := len(h.conns)
	h.mu.RUnlock()
	if h.cfg.MaxConnections > 0 && active >= h.cfg.MaxConnections {
		h.logger.Warn("max connections reached, rejecting", "active", active, "max", h.cfg.MaxConnections)
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	c := &conn{
		id:       uuid.NewString(),
		ws:       ws,
		send:     make(chan []byte, h.cfg.SendBufferSize),
		ping:     make(chan struct{}, 1),
		alive:    true,
		lastPong: time.Now(),
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Info("client connected", "conn_id", c.id, "remote_addr", ws.RemoteAddr(), "active", total)

	go h.writePump(c)
	go h.readPump(c)
}

// remove takes the connection out of the registry and tears down its
// transport. Safe to call from the sweep, the pumps, and shutdown; only the
// first caller does the work.
func (h *Hub) remove(c *conn) {
	c.closeOnce.Do(func() {
		h.mu.Lock()
		delete(h.conns, c)
		total := len(h.conns)
		h.mu.Unlock()

		close(c.send)
		c.ws.Close()
		h.logger.Info("client removed", "conn_id", c.id, "active", total)
	})
}

// NotifyData broadcasts a document-changed event carrying the complete new
// document for year.
func (h *Hub) NotifyData(year int, doc *models.CalendarDocument) {
	h.notify(models.EventDataUpdate, models.DataUpdatePayload{Year: year, Data: *doc})
}

// NotifyConfig broadcasts a configuration-changed event carrying the
// complete new configuration.
func (h *Hub) NotifyConfig(cfg *models.Configuration) {
	h.notify(models.EventConfigUpdate, cfg)
}

// notify fans one envelope out to every open connection, alive or suspect.
// Delivery is best effort: a full send buffer drops the message for that
// connection only, and the client re-syncs over HTTP on reconnect.
func (h *Hub) notify(kind models.EventKind, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload", "kind", kind, "error", err)
		return
	}
	message, err := json.Marshal(models.Envelope{Kind: kind, Payload: raw})
	if err != nil {
		h.logger.Error("failed to marshal broadcast envelope", "kind", kind, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	h.logger.Debug("broadcasting", "kind", kind, "connections", len(h.conns))
	for c := range h.conns {
		select {
		case c.send <- message:
		default:
			h.logger.Warn("send buffer full, message dropped", "conn_id", c.id, "kind", kind)
		}
	}
}

// readPump pumps frames from the connection. The application ensures at
// most one reader per connection by doing all reads here. Incoming pongs
// reset liveness; anything else is ignored.
func (h *Hub) readPump(c *conn) {
	defer func() {
		h.remove(c)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Time{})
	c.ws.SetPongHandler(func(string) error {
		c.markAlive()
		h.logger.Debug("pong received", "conn_id", c.id)
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Error("read error", "conn_id", c.id, "error", err)
			} else {
				h.logger.Info("connection closed", "conn_id", c.id, "error", err)
			}
			return
		}
	}
}

// writePump pumps outbound frames. At most one writer per connection by
// doing all writes here; the sweep requests pings through the ping channel
// rather than writing itself.
func (h *Hub) writePump(c *conn) {
	defer func() {
		c.ws.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("write error", "conn_id", c.id, "error", err)
				go h.remove(c)
				return
			}
		case <-c.ping:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Error("ping write error", "conn_id", c.id, "error", err)
				go h.remove(c)
				return
			}
		case <-h.appCtx.Done():
			return
		}
	}
}
