// Package config loads tdwctl settings from .tdw.kdl.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every tdwctl setting.
type Config struct {
	Controller ControllerConfig
	Build      BuildConfig
	WebGL      WebGLConfig
	Log        LogConfig
	Record     RecordConfig
}

// ControllerConfig controls the connection to the build.
type ControllerConfig struct {
	Port int
	Host string
	// LaunchBuild starts the build; otherwise the controller only connects.
	LaunchBuild bool
	// CheckVersion compares the build version against the controller's.
	CheckVersion    bool
	ConnectAttempts int
	ConnectInterval time.Duration
	// MaxResends bounds resends after the build failed to receive a message.
	MaxResends     int
	MaxMessageSize int
}

// BuildConfig controls where the build is installed and fetched from.
type BuildConfig struct {
	Root string
	// Version is the build to install. Empty means the controller version.
	Version         string
	ReleaseBaseURL  string
	DownloadTimeout time.Duration
	GracefulTimeout time.Duration
}

// WebGLConfig is used when the build runs in a browser and connects back.
type WebGLConfig struct {
	Listen string
}

// LogConfig controls logging.
type LogConfig struct {
	Level string
	// Commands is a file receiving every sent batch as a JSON line.
	Commands string
}

// RecordConfig controls the frame archive.
type RecordConfig struct {
	Path        string
	Compression string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Controller: ControllerConfig{
			Port:            1071,
			Host:            "localhost",
			LaunchBuild:     true,
			CheckVersion:    true,
			ConnectAttempts: 30,
			ConnectInterval: 100 * time.Millisecond,
			MaxResends:      10,
			MaxMessageSize:  512 << 20,
		},
		Build: BuildConfig{
			Root:            "~/tdw_build",
			DownloadTimeout: 30 * time.Minute,
			GracefulTimeout: 5 * time.Second,
		},
		WebGL: WebGLConfig{
			Listen: "localhost:1071",
		},
		Log: LogConfig{
			Level: "info",
		},
		Record: RecordConfig{
			Compression: "deflate",
		},
	}
}

// Validate checks the configuration and expands ~ in paths.
func (c *Config) Validate() error {
	if c.Controller.Port <= 0 || c.Controller.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Controller.Port)
	}
	if c.Controller.ConnectAttempts <= 0 {
		return fmt.Errorf("%w: connect-attempts must be positive", ErrInvalidConfig)
	}
	if c.Controller.MaxResends < 0 {
		return fmt.Errorf("%w: max-resends must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level)
	}

	for _, p := range []*string{&c.Build.Root, &c.Log.Commands, &c.Record.Path} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		*p = expanded
	}
	return nil
}

// Addr returns host:port of the build's socket.
func (c ControllerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
