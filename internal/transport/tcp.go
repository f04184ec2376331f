package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/tdwctl/internal/output"
)

// DialFunc opens a connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// TCP is a Transport over a stream connection to a local or remote build.
type TCP struct {
	conn   net.Conn
	reader *bufio.Reader

	mu     sync.Mutex // Serializes round trips
	closed atomic.Bool

	maxMessage int
	logger     *slog.Logger
}

type dialConfig struct {
	attempts   int
	interval   time.Duration
	maxBackoff time.Duration
	dial       DialFunc
	maxMessage int
	logger     *slog.Logger
}

// Option configures Dial.
type Option func(*dialConfig)

// WithAttempts sets how many connection attempts Dial makes before failing.
func WithAttempts(n int) Option {
	return func(c *dialConfig) {
		c.attempts = n
	}
}

// WithRetryInterval sets the first wait between attempts and its cap. The
// wait doubles after each refused attempt.
func WithRetryInterval(initial, ceiling time.Duration) Option {
	return func(c *dialConfig) {
		c.interval = initial
		c.maxBackoff = ceiling
	}
}

// WithDialer replaces the network dialer.
func WithDialer(dial DialFunc) Option {
	return func(c *dialConfig) {
		c.dial = dial
	}
}

// WithMaxMessageSize bounds a single response.
func WithMaxMessageSize(n int) Option {
	return func(c *dialConfig) {
		c.maxMessage = n
	}
}

// WithLogger sets the logger for connection events.
func WithLogger(l *slog.Logger) Option {
	return func(c *dialConfig) {
		c.logger = l
	}
}

// Dial connects to addr, retrying refused connections until the attempt
// budget runs out or ctx is done.
func Dial(ctx context.Context, addr string, opts ...Option) (*TCP, error) {
	cfg := dialConfig{
		attempts:   30,
		interval:   100 * time.Millisecond,
		maxBackoff: 2 * time.Second,
		maxMessage: DefaultMaxMessageSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dial == nil {
		d := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
		cfg.dial = d.DialContext
	}
	if cfg.attempts < 1 {
		cfg.attempts = 1
	}

	var lastErr error
	wait := cfg.interval
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		conn, err := cfg.dial(ctx, "tcp", addr)
		if err == nil {
			cfg.logger.Debug("connected to build", "addr", addr, "attempt", attempt)
			return &TCP{
				conn:       conn,
				reader:     bufio.NewReaderSize(conn, 64<<10),
				maxMessage: cfg.maxMessage,
				logger:     cfg.logger,
			}, nil
		}
		lastErr = err
		cfg.logger.Debug("connect attempt failed", "addr", addr, "attempt", attempt, "error", err)

		if attempt == cfg.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrConnectFailed, addr, attempt, ctx.Err())
		case <-time.After(wait):
		}
		wait = min(wait*2, cfg.maxBackoff)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrConnectFailed, addr, cfg.attempts, lastErr)
}

// RoundTrip implements Transport. Cancelling ctx unblocks a pending read by
// expiring the connection deadline; the connection is unusable afterwards.
func (t *TCP) RoundTrip(ctx context.Context, msg []byte) (output.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return nil, ErrClosed
	}

	stop := t.watch(ctx)
	defer stop()

	if err := WriteMessage(t.conn, msg); err != nil {
		return nil, t.wrap(ctx, "send", err)
	}
	resp, err := ReadResponse(t.reader, t.maxMessage)
	if err != nil {
		return nil, t.wrap(ctx, "receive", err)
	}
	return resp, nil
}

// Send implements Transport.
func (t *TCP) Send(ctx context.Context, msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return ErrClosed
	}
	stop := t.watch(ctx)
	defer stop()
	if err := WriteMessage(t.conn, msg); err != nil {
		return t.wrap(ctx, "send", err)
	}
	return nil
}

// Close closes the connection, failing any round trip in progress. It is
// safe to call more than once.
func (t *TCP) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}

// RemoteAddr returns the build's address.
func (t *TCP) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

func (t *TCP) watch(ctx context.Context) func() {
	if d, ok := ctx.Deadline(); ok {
		_ = t.conn.SetDeadline(d)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetDeadline(time.Now())
	})
	return func() {
		stop()
		_ = t.conn.SetDeadline(time.Time{})
	}
}

func (t *TCP) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("failed to %s: %w", op, ctxErr)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
