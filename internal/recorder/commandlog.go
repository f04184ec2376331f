// Package recorder contains add-ons that write the session to disk: the
// commands sent, the raw responses, and rendered images.
package recorder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/standardbeagle/tdwctl/internal/addon"
	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
)

// CommandLog writes every outgoing batch as one JSON line and forwards the
// build's log messages to slog.
type CommandLog struct {
	addon.Base

	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer

	logger     *slog.Logger
	logInBuild bool
}

// CommandLogOption configures a CommandLog.
type CommandLogOption func(*CommandLog)

// WithBuildLogging asks the build to log each received message and executed
// command to its own player log.
func WithBuildLogging() CommandLogOption {
	return func(l *CommandLog) { l.logInBuild = true }
}

// WithCommandLogLogger sets where build log messages go.
func WithCommandLogLogger(logger *slog.Logger) CommandLogOption {
	return func(l *CommandLog) { l.logger = logger }
}

// NewCommandLog creates path, truncating an existing file, and logs to it.
func NewCommandLog(path string, opts ...CommandLogOption) (*CommandLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create command log: %w", err)
	}
	return NewCommandLogWriter(f, opts...), nil
}

// NewCommandLogWriter logs to w. If w is an io.Closer, Close closes it.
func NewCommandLogWriter(w io.Writer, opts ...CommandLogOption) *CommandLog {
	l := &CommandLog{
		w:      bufio.NewWriter(w),
		logger: slog.Default(),
	}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name implements addon.Named.
func (l *CommandLog) Name() string { return "command_log" }

// InitializationCommands implements addon.AddOn.
func (l *CommandLog) InitializationCommands() []command.Command {
	cmds := []command.Command{command.New("send_log_messages", nil)}
	if l.logInBuild {
		cmds = append(cmds, command.New("set_network_logging", command.Params{"value": true}))
	}
	return cmds
}

// BeforeSend implements addon.BeforeSender.
func (l *CommandLog) BeforeSend(batch []command.Command) error {
	b, err := command.Marshal(batch)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("failed to write command log: %w", err)
	}
	return l.w.Flush()
}

// OnSend implements addon.AddOn.
func (l *CommandLog) OnSend(resp output.Response) error {
	return resp.Each(func(d output.Data) error {
		m, ok := d.(*output.LogMessage)
		if !ok {
			return nil
		}
		l.logger.Log(context.Background(), slogLevel(m.Level()), "build log",
			"message", m.Message(),
			"object_type", m.ObjectType(),
		)
		return nil
	})
}

// Close flushes and closes the log.
func (l *CommandLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return err
	}
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func slogLevel(level output.LogLevel) slog.Level {
	switch level {
	case output.LogError:
		return slog.LevelError
	case output.LogWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
