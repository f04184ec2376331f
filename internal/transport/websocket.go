package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/standardbeagle/tdwctl/internal/output"
)

// WebSocketServer waits for a WebGL build running in a browser to connect.
// Batches go out as text messages; each binary message back is one response.
type WebSocketServer struct {
	ln       net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn

	maxMessage int
	logger     *slog.Logger
}

// ListenWebSocket starts serving on addr. Use "127.0.0.1:0" for an
// ephemeral port.
func ListenWebSocket(addr string, opts ...Option) (*WebSocketServer, error) {
	cfg := dialConfig{
		maxMessage: DefaultMaxMessageSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := &WebSocketServer{
		ln: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			CheckOrigin: func(r *http.Request) bool {
				return true // The build is served from an arbitrary local origin
			},
		},
		conns:      make(chan *websocket.Conn, 1),
		maxMessage: cfg.maxMessage,
		logger:     cfg.logger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("websocket server stopped", "error", err)
		}
	}()
	return s, nil
}

// Addr returns the listening address.
func (s *WebSocketServer) Addr() net.Addr {
	return s.ln.Addr()
}

// URL returns the ws:// URL a build should connect to.
func (s *WebSocketServer) URL() string {
	return "ws://" + s.ln.Addr().String() + "/"
}

func (s *WebSocketServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(int64(s.maxMessage))

	select {
	case s.conns <- conn:
		s.logger.Debug("build connected", "remote", r.RemoteAddr)
	default:
		// One build per session.
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session already connected"))
		_ = conn.Close()
	}
}

// Accept blocks until a build connects or ctx is done.
func (s *WebSocketServer) Accept(ctx context.Context) (*WebSocket, error) {
	select {
	case conn := <-s.conns:
		return &WebSocket{conn: conn, server: s}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for websocket build: %w", ErrConnectFailed, ctx.Err())
	}
}

// Close stops the listener. Accepted connections stay open until their own
// Close.
func (s *WebSocketServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// WebSocket is a Transport over an accepted websocket connection.
type WebSocket struct {
	conn   *websocket.Conn
	server *WebSocketServer

	mu     sync.Mutex // Serializes round trips
	closed atomic.Bool
}

// RoundTrip implements Transport.
func (w *WebSocket) RoundTrip(ctx context.Context, msg []byte) (output.Response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		return nil, ErrClosed
	}
	stop := w.watch(ctx)
	defer stop()

	if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return nil, fmt.Errorf("failed to send: %w", err)
	}
	for {
		typ, buf, err := w.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("failed to receive: %w", ctx.Err())
			}
			return nil, fmt.Errorf("failed to receive: %w", err)
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		resp, err := output.Split(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to split response: %w", err)
		}
		return resp, nil
	}
}

// Send implements Transport.
func (w *WebSocket) Send(ctx context.Context, msg []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		return ErrClosed
	}
	stop := w.watch(ctx)
	defer stop()
	if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// Close closes the connection and the server that accepted it.
func (w *WebSocket) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := w.conn.Close()
	if w.server != nil {
		_ = w.server.Close()
	}
	return err
}

func (w *WebSocket) watch(ctx context.Context) func() {
	if d, ok := ctx.Deadline(); ok {
		_ = w.conn.SetReadDeadline(d)
		_ = w.conn.SetWriteDeadline(d)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = w.conn.SetReadDeadline(time.Now())
	})
	return func() {
		stop()
		_ = w.conn.SetReadDeadline(time.Time{})
		_ = w.conn.SetWriteDeadline(time.Time{})
	}
}
