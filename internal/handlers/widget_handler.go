package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"bonus-hunt/internal/widget"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Overlays never send payloads; anything larger is a misbehaving peer
	maxMessageSize = 512
)

// WidgetOptions configures the overlay transports.
type WidgetOptions struct {
	Clock          quartz.Clock
	ResyncInterval time.Duration
	AllowedOrigins []string
}

// WidgetHandler serves the public read-only overlay. Every stream gets its
// own projector bound to the hunt in the path.
type WidgetHandler struct {
	fetcher    widget.StateFetcher
	subscriber widget.Subscriber
	opts       WidgetOptions
	upgrader   websocket.Upgrader
	logger     *log.Logger

	// base outlives requests; hijacked WebSocket connections are not
	// tracked by http.Server.Shutdown and end when it is cancelled.
	base   context.Context
	cancel context.CancelFunc
}

func NewWidgetHandler(fetcher widget.StateFetcher, subscriber widget.Subscriber, logger *log.Logger, opts WidgetOptions) *WidgetHandler {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}

	base, cancel := context.WithCancel(context.Background())
	h := &WidgetHandler{
		fetcher:    fetcher,
		subscriber: subscriber,
		opts:       opts,
		logger:     logger.WithPrefix("widget"),
		base:       base,
		cancel:     cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Close ends every open WebSocket stream.
func (h *WidgetHandler) Close() {
	h.cancel()
}

func (h *WidgetHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// GetState returns a single snapshot, for overlays that poll
// GET /widget/:huntId/state
func (h *WidgetHandler) GetState(c *gin.Context) {
	huntID, ok := parseID(c, "huntId")
	if !ok {
		return
	}

	state, err := h.fetcher.GetHuntState(c.Request.Context(), huntID)
	snap := widget.BuildSnapshot(huntID, state, err, h.opts.Clock.Now())

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, snap)
}

// Stream upgrades to a WebSocket and pushes a snapshot after every change
// GET /widget/:huntId/ws
func (h *WidgetHandler) Stream(c *gin.Context) {
	huntID, ok := parseID(c, "huntId")
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("WebSocket upgrade failed", "hunt", huntID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()

	mailbox := newSnapshotMailbox()
	projector := widget.NewProjector(h.fetcher, h.subscriber, huntID, mailbox.put, widget.ProjectorOptions{
		Clock:          h.opts.Clock,
		ResyncInterval: h.opts.ResyncInterval,
		Logger:         h.logger,
	})
	if err := projector.Start(ctx); err != nil {
		h.logger.Warn("Projector failed to start", "hunt", huntID, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "unavailable"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer projector.Stop()

	h.logger.Debug("Overlay connected", "hunt", huntID, "remote", c.Request.RemoteAddr)

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, mailbox)

	h.logger.Debug("Overlay disconnected", "hunt", huntID, "remote", c.Request.RemoteAddr)
}

// readPump only exists to process control frames and notice the peer
// going away.
func (h *WidgetHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("WebSocket read error", "error", err)
			}
			return
		}
	}
}

func (h *WidgetHandler) writePump(ctx context.Context, conn *websocket.Conn, mailbox *snapshotMailbox) {
	ticker := h.opts.Clock.NewTicker(pingPeriod, "widget", "ping")
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-mailbox.ready:
			snap, ok := mailbox.take()
			if !ok {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug("Failed to write snapshot", "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// Events streams snapshots as server-sent events
// GET /widget/:huntId/events
func (h *WidgetHandler) Events(c *gin.Context) {
	huntID, ok := parseID(c, "huntId")
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stopWatch := context.AfterFunc(h.base, cancel)
	defer stopWatch()

	mailbox := newSnapshotMailbox()
	projector := widget.NewProjector(h.fetcher, h.subscriber, huntID, mailbox.put, widget.ProjectorOptions{
		Clock:          h.opts.Clock,
		ResyncInterval: h.opts.ResyncInterval,
		Logger:         h.logger,
	})
	if err := projector.Start(ctx); err != nil {
		h.logger.Warn("Projector failed to start", "hunt", huntID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "widget stream unavailable"})
		return
	}
	defer projector.Stop()

	c.Header("Cache-Control", "no-store")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-mailbox.ready:
			snap, ok := mailbox.take()
			if ok {
				c.SSEvent("snapshot", snap)
			}
			return true
		}
	})
}

// snapshotMailbox holds only the newest snapshot. A slow overlay skips
// intermediate states and always renders the latest one.
type snapshotMailbox struct {
	mu     sync.Mutex
	latest *widget.Snapshot
	ready  chan struct{}
}

func newSnapshotMailbox() *snapshotMailbox {
	return &snapshotMailbox{ready: make(chan struct{}, 1)}
}

func (m *snapshotMailbox) put(snap widget.Snapshot) {
	m.mu.Lock()
	m.latest = &snap
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *snapshotMailbox) take() (widget.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.latest == nil {
		return widget.Snapshot{}, false
	}
	snap := *m.latest
	m.latest = nil
	return snap, true
}
