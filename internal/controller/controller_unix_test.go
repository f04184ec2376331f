//go:build unix

package controller_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/tdwctl/internal/controller"
	"github.com/standardbeagle/tdwctl/internal/transport"
)

func TestNew_BuildExitsBeforeConnecting(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "build")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\necho \"no display\"\nexit 7\n"), 0o755))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = controller.New(ctx,
		controller.WithHost("127.0.0.1"),
		controller.WithPort(port),
		controller.WithBuildPath(exe),
		controller.WithTransportOptions(
			transport.WithAttempts(1000),
			transport.WithRetryInterval(10*time.Millisecond, 10*time.Millisecond),
		),
	)
	require.ErrorIs(t, err, controller.ErrBuildExited)
	assert.Contains(t, err.Error(), "exit code 7")
}
