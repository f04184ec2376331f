package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := `// connect to a build started by hand
controller {
    port 1337
    launch-build false
    connect-attempts 5
    connect-interval-ms 250
    max-resends 0
}

build {
    version "1.12.0"
}

log {
    level "debug"
    commands "/tmp/commands.jsonl"
}

record {
    path "session.zip"
    compression "zstd"
}
`
	cfg, err := Parse(input)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1337, cfg.Controller.Port)
	assert.Equal(t, "localhost", cfg.Controller.Host, "unset values keep defaults")
	assert.False(t, cfg.Controller.LaunchBuild)
	assert.True(t, cfg.Controller.CheckVersion)
	assert.Equal(t, 5, cfg.Controller.ConnectAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Controller.ConnectInterval)
	assert.Equal(t, 0, cfg.Controller.MaxResends)
	assert.Equal(t, "localhost:1337", cfg.Controller.Addr())

	assert.Equal(t, "1.12.0", cfg.Build.Version)
	assert.Equal(t, 5*time.Second, cfg.Build.GracefulTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/commands.jsonl", cfg.Log.Commands)
	assert.Equal(t, "session.zip", cfg.Record.Path)
	assert.Equal(t, "zstd", cfg.Record.Compression)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(`controller { port "`)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Controller.Port = 70000 }},
		{"attempts", func(c *Config) { c.Controller.ConnectAttempts = 0 }},
		{"resends", func(c *Config) { c.Controller.MaxResends = -1 }},
		{"level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	home, err := homedir.Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "tdw_build"), cfg.Build.Root)
}

func TestLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("controller { port 2000 }\n"), 0o644))

	cfg, path, err := Load(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), path)
	assert.Equal(t, 2000, cfg.Controller.Port)
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", FileName)
	require.NoError(t, WriteDefault(path))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	want := DefaultConfig()
	require.NoError(t, want.Validate())
	assert.Equal(t, want, cfg)
}
