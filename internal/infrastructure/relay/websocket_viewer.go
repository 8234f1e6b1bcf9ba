package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/tracing"
	"camrelay/pkg/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// maxCloseReason is the control frame payload limit minus the 2-byte close code.
const maxCloseReason = 123

type WebSocketConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	SendBuffer     int
	AllowedOrigins []string
}

// WebSocketViewer streams MPEG-TS chunks to one browser as binary messages.
// A single write pump owns the connection's writes, so frames stay in order.
type WebSocketViewer struct {
	id   string
	conn *websocket.Conn
	cfg  WebSocketConfig

	mu     sync.Mutex
	send   chan []byte
	closed bool

	done chan struct{}
}

func NewWebSocketViewer(conn *websocket.Conn, cfg WebSocketConfig) *WebSocketViewer {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &WebSocketViewer{
		id:   uuid.NewString(),
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

func (v *WebSocketViewer) ID() string { return v.id }

// Send queues frame without blocking. It returns false when the queue is full
// or the viewer is closed.
func (v *WebSocketViewer) Send(frame []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	select {
	case v.send <- frame:
		return true
	default:
		return false
	}
}

// Close ends the write pump, which sends a close frame and closes the socket.
func (v *WebSocketViewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.closed = true
		close(v.send)
	}
}

func (v *WebSocketViewer) writePump() {
	ticker := time.NewTicker(v.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		v.conn.Close()
		close(v.done)
	}()

	for {
		select {
		case frame, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(v.cfg.WriteTimeout))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"))
				return
			}
			if err := v.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(v.cfg.WriteTimeout))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for close and pong; viewers never send data.
func (v *WebSocketViewer) readPump(logger *zap.SugaredLogger) {
	if v.cfg.ReadLimit > 0 {
		v.conn.SetReadLimit(v.cfg.ReadLimit)
	}
	v.conn.SetReadDeadline(time.Now().Add(v.cfg.PongTimeout))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(v.cfg.PongTimeout))
		return nil
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Infow("Viewer read error", "viewer_id", v.id, "error", err)
			}
			return
		}
	}
}

// ViewerServer upgrades HTTP requests into stream viewers.
type ViewerServer struct {
	relay    ports.RelayService
	cfg      WebSocketConfig
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

func NewViewerServer(relay ports.RelayService, cfg WebSocketConfig, logger *zap.SugaredLogger) *ViewerServer {
	s := &ViewerServer{
		relay:  relay,
		cfg:    cfg,
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
	}
	return s
}

func (s *ViewerServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Serve upgrades the request and relays key to it until either side goes
// away. It blocks for the lifetime of the viewer.
func (s *ViewerServer) Serve(w http.ResponseWriter, r *http.Request, key domain.StreamKey) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "stream_id", key, "error", err)
		return
	}

	viewer := NewWebSocketViewer(conn, s.cfg)
	ctx, span := tracing.TraceViewer(r.Context(), "attach", viewer.ID(), string(key))
	err = s.relay.Attach(ctx, key, viewer)
	span.End()
	if err != nil {
		s.logger.Infow("Viewer rejected", "stream_id", key, "error", err)
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, closeReason(err)))
		conn.Close()
		return
	}

	s.logger.Infow("Viewer connected", "stream_id", key, "viewer_id", viewer.ID(), "remote", r.RemoteAddr)

	go viewer.writePump()
	viewer.readPump(s.logger)

	s.relay.Release(key, viewer)
	viewer.Close()
	s.awaitWriter(viewer)

	s.logger.Infow("Viewer disconnected", "stream_id", key, "viewer_id", viewer.ID())
}

func (s *ViewerServer) awaitWriter(v *WebSocketViewer) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout+time.Second)
	defer cancel()
	select {
	case <-v.done:
	case <-ctx.Done():
		v.conn.Close()
	}
}

func closeReason(err error) string {
	return utils.TruncateString(err.Error(), maxCloseReason)
}
