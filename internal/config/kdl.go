package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
)

// FileName is the config file searched for from the working directory up.
const FileName = ".tdw.kdl"

// KDLConfig is the file layout. Absent nodes keep their defaults.
type KDLConfig struct {
	Controller *KDLController `kdl:"controller"`
	Build      *KDLBuild      `kdl:"build"`
	WebGL      *KDLWebGL      `kdl:"webgl"`
	Log        *KDLLog        `kdl:"log"`
	Record     *KDLRecord     `kdl:"record"`
}

// KDLController is the controller node.
type KDLController struct {
	Port              int    `kdl:"port"`
	Host              string `kdl:"host"`
	LaunchBuild       *bool  `kdl:"launch-build"`
	CheckVersion      *bool  `kdl:"check-version"`
	ConnectAttempts   int    `kdl:"connect-attempts"`
	ConnectIntervalMS int    `kdl:"connect-interval-ms"`
	MaxResends        *int   `kdl:"max-resends"`
	MaxMessageSize    int    `kdl:"max-message-size"`
}

// KDLBuild is the build node.
type KDLBuild struct {
	Root              string `kdl:"root"`
	Version           string `kdl:"version"`
	ReleaseBaseURL    string `kdl:"release-base-url"`
	DownloadTimeoutMS int    `kdl:"download-timeout-ms"`
	GracefulTimeoutMS int    `kdl:"graceful-timeout-ms"`
}

// KDLWebGL is the webgl node.
type KDLWebGL struct {
	Listen string `kdl:"listen"`
}

// KDLLog is the log node.
type KDLLog struct {
	Level    string `kdl:"level"`
	Commands string `kdl:"commands"`
}

// KDLRecord is the record node.
type KDLRecord struct {
	Path        string `kdl:"path"`
	Compression string `kdl:"compression"`
}

// Find searches for FileName starting from dir and walking up. It returns
// "" when there is none.
func Find(dir string) string {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(absDir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(absDir)
		if parent == absDir {
			return ""
		}
		absDir = parent
	}
}

// Load finds and loads the config for dir. Without a config file it returns
// the validated defaults and an empty path.
func Load(dir string) (*Config, string, error) {
	path := Find(dir)
	if path == "" {
		cfg := DefaultConfig()
		return cfg, "", cfg.Validate()
	}
	cfg, err := LoadFile(path)
	return cfg, path, err
}

// LoadFile loads and validates a config file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses KDL data over the defaults. It does not validate.
func Parse(data string) (*Config, error) {
	var k KDLConfig
	if err := kdl.Unmarshal([]byte(data), &k); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg := DefaultConfig()
	k.apply(cfg)
	return cfg, nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (k *KDLConfig) apply(cfg *Config) {
	if c := k.Controller; c != nil {
		cc := &cfg.Controller
		if c.Port > 0 {
			cc.Port = c.Port
		}
		if c.Host != "" {
			cc.Host = c.Host
		}
		if c.LaunchBuild != nil {
			cc.LaunchBuild = *c.LaunchBuild
		}
		if c.CheckVersion != nil {
			cc.CheckVersion = *c.CheckVersion
		}
		if c.ConnectAttempts > 0 {
			cc.ConnectAttempts = c.ConnectAttempts
		}
		if c.ConnectIntervalMS > 0 {
			cc.ConnectInterval = ms(c.ConnectIntervalMS)
		}
		if c.MaxResends != nil {
			cc.MaxResends = *c.MaxResends
		}
		if c.MaxMessageSize > 0 {
			cc.MaxMessageSize = c.MaxMessageSize
		}
	}

	if b := k.Build; b != nil {
		if b.Root != "" {
			cfg.Build.Root = b.Root
		}
		if b.Version != "" {
			cfg.Build.Version = b.Version
		}
		if b.ReleaseBaseURL != "" {
			cfg.Build.ReleaseBaseURL = b.ReleaseBaseURL
		}
		if b.DownloadTimeoutMS > 0 {
			cfg.Build.DownloadTimeout = ms(b.DownloadTimeoutMS)
		}
		if b.GracefulTimeoutMS > 0 {
			cfg.Build.GracefulTimeout = ms(b.GracefulTimeoutMS)
		}
	}

	if w := k.WebGL; w != nil && w.Listen != "" {
		cfg.WebGL.Listen = w.Listen
	}

	if l := k.Log; l != nil {
		if l.Level != "" {
			cfg.Log.Level = l.Level
		}
		cfg.Log.Commands = l.Commands
	}

	if r := k.Record; r != nil {
		cfg.Record.Path = r.Path
		if r.Compression != "" {
			cfg.Record.Compression = r.Compression
		}
	}
}

// WriteDefault writes a documented default config file.
func WriteDefault(path string) error {
	const defaultKDL = `// tdwctl configuration

controller {
    port 1071
    host "localhost"
    // Start the build, or only connect to one that is already running
    launch-build true
    check-version true
    connect-attempts 30
    connect-interval-ms 100
    max-resends 10
}

build {
    root "~/tdw_build"
    // Empty means the version tdwctl was built for
    version ""
    download-timeout-ms 1800000
    graceful-timeout-ms 5000
}

webgl {
    listen "localhost:1071"
}

log {
    // debug, info, warn or error
    level "info"
}

record {
    // deflate, zstd or store
    compression "deflate"
}
`
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.TrimSpace(defaultKDL)+"\n"), 0644)
}
