//go:build unix

package process

import (
	"context"
	"strings"
	"testing"
	"time"
)

func waitDone(t *testing.T, p *Process) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit in time")
	}
}

func TestStart_OutputAndExitCode(t *testing.T) {
	p, err := Start(context.Background(), Config{
		Path: "sh",
		Args: []string{"-c", `echo "$0"; echo err >&2; exit 3`},
		Port: 1071,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p)

	if p.ExitCode() != 3 {
		t.Errorf("expected exit code 3, got %d", p.ExitCode())
	}
	out, truncated := p.Output()
	if truncated {
		t.Error("unexpected truncation")
	}
	if got := string(out); !strings.Contains(got, "-port=1071\n") || !strings.Contains(got, "err\n") {
		t.Errorf("unexpected output %q", got)
	}
}

func TestStart_NoPath(t *testing.T) {
	if _, err := Start(context.Background(), Config{}); err != ErrNoPath {
		t.Errorf("expected ErrNoPath, got %v", err)
	}
}

func TestStart_MissingBinary(t *testing.T) {
	if _, err := Start(context.Background(), Config{Path: "/nonexistent/TDW.x86_64"}); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestStop_Graceful(t *testing.T) {
	p, err := Start(context.Background(), Config{Path: "sleep", Args: []string{"60"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if p.Exited() {
		t.Fatal("process exited early")
	}

	start := time.Now()
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !p.Exited() {
		t.Error("process still running after Stop")
	}
	if time.Since(start) > DefaultGracefulTimeout {
		t.Error("SIGTERM should stop sleep without waiting for the timeout")
	}
	// Stopping twice is a no-op.
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestStop_ForceKillsAfterTimeout(t *testing.T) {
	p, err := Start(context.Background(), Config{
		Path:            "sh",
		Args:            []string{"-c", `trap "" TERM; sleep 60`},
		GracefulTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Give the shell time to install the trap.
	time.Sleep(100 * time.Millisecond)

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	waitDone(t, p)
	if p.ExitCode() != -1 {
		t.Errorf("expected -1 for a killed process, got %d", p.ExitCode())
	}
}

func TestRingBuffer(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		writes    []string
		want      string
		truncated bool
	}{
		{"fits", 8, []string{"abc", "de"}, "abcde", false},
		{"exact", 4, []string{"ab", "cd"}, "abcd", false},
		{"wraps", 4, []string{"abc", "def"}, "cdef", true},
		{"wraps twice", 3, []string{"ab", "cd", "efg", "h"}, "fgh", true},
		{"oversized write", 3, []string{"a", "bcdef"}, "def", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRingBuffer(tt.size)
			for _, w := range tt.writes {
				if n, _ := r.Write([]byte(w)); n != len(w) {
					t.Fatalf("short write %d", n)
				}
			}
			got, truncated := r.Bytes()
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if truncated != tt.truncated {
				t.Errorf("truncated = %v, want %v", truncated, tt.truncated)
			}
		})
	}
}
