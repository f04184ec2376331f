package transport_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
	"github.com/standardbeagle/tdwctl/internal/simtest"
	"github.com/standardbeagle/tdwctl/internal/transport"
)

func TestDial_ExactAttemptBudget(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		var calls atomic.Int32
		refuse := func(ctx context.Context, network, addr string) (net.Conn, error) {
			calls.Add(1)
			return nil, &net.OpError{Op: "dial", Net: network, Err: syscall.ECONNREFUSED}
		}

		_, err := transport.Dial(context.Background(), "127.0.0.1:1071",
			transport.WithAttempts(n),
			transport.WithRetryInterval(time.Millisecond, 2*time.Millisecond),
			transport.WithDialer(refuse),
		)

		require.ErrorIs(t, err, transport.ErrConnectFailed)
		assert.ErrorIs(t, err, syscall.ECONNREFUSED)
		assert.Equal(t, int32(n), calls.Load(), "attempts")
	}
}

func TestDial_SucceedsAfterRefusals(t *testing.T) {
	engine := simtest.Start(t, nil)

	var calls atomic.Int32
	var d net.Dialer
	flaky := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if calls.Add(1) < 3 {
			return nil, syscall.ECONNREFUSED
		}
		return d.DialContext(ctx, network, addr)
	}

	tr, err := transport.Dial(context.Background(), engine.Addr(),
		transport.WithAttempts(5),
		transport.WithRetryInterval(time.Millisecond, time.Millisecond),
		transport.WithDialer(flaky),
	)
	require.NoError(t, err)
	defer tr.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestDial_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := transport.Dial(ctx, "127.0.0.1:1071",
		transport.WithAttempts(100),
		transport.WithRetryInterval(time.Hour, time.Hour),
		transport.WithDialer(func(context.Context, string, string) (net.Conn, error) {
			return nil, syscall.ECONNREFUSED
		}),
	)
	require.ErrorIs(t, err, transport.ErrConnectFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTCP_RoundTrip(t *testing.T) {
	engine := simtest.Start(t, func(req simtest.Request) simtest.Reply {
		return simtest.Reply{Frames: [][]byte{output.EncodeKeyboard([]string{"W"}, nil, nil)}}
	})
	tr, err := transport.Dial(context.Background(), engine.Addr(), transport.WithAttempts(1))
	require.NoError(t, err)
	defer tr.Close()

	msg, err := command.Marshal([]command.Command{command.DoNothing()})
	require.NoError(t, err)

	for frame := uint64(0); frame < 3; frame++ {
		resp, err := tr.RoundTrip(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, []string{"keyb"}, resp.Tags())
		n, ok := resp.FrameNumber()
		require.True(t, ok)
		assert.Equal(t, frame, n)
	}
	require.Len(t, engine.Requests(), 3)
	assert.Equal(t, []string{"do_nothing"}, engine.Last().Names())
}

func TestTCP_TruncatedResponse(t *testing.T) {
	full := output.Join([][]byte{output.EncodeQuitSignal(true), output.EncodeSentinel(0)})
	engine := simtest.Start(t, func(simtest.Request) simtest.Reply {
		return simtest.Reply{Raw: full[:len(full)-3], Hangup: true}
	})
	tr, err := transport.Dial(context.Background(), engine.Addr(), transport.WithAttempts(1))
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.RoundTrip(context.Background(), []byte(`[]`))
	assert.ErrorIs(t, err, transport.ErrTruncatedResponse)
}

func TestTCP_HangupMidResponse(t *testing.T) {
	engine := simtest.Start(t, func(simtest.Request) simtest.Reply {
		return simtest.Reply{Hangup: true}
	})
	tr, err := transport.Dial(context.Background(), engine.Addr(), transport.WithAttempts(1))
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.RoundTrip(context.Background(), []byte(`[]`))
	require.Error(t, err)
}

func TestTCP_CancelUnblocksRead(t *testing.T) {
	release := make(chan struct{})
	engine := simtest.Start(t, func(simtest.Request) simtest.Reply {
		<-release
		return simtest.Reply{}
	})
	defer close(release)

	tr, err := transport.Dial(context.Background(), engine.Addr(), transport.WithAttempts(1))
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = tr.RoundTrip(ctx, []byte(`[]`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTCP_ClosedTransport(t *testing.T) {
	engine := simtest.Start(t, nil)
	tr, err := transport.Dial(context.Background(), engine.Addr(), transport.WithAttempts(1))
	require.NoError(t, err)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	_, err = tr.RoundTrip(context.Background(), []byte(`[]`))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestReadMessage_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, transport.WriteMessage(&buf, make([]byte, 100)))

	_, err := transport.ReadMessage(&buf, 10)
	assert.ErrorIs(t, err, transport.ErrMessageTooLarge)
}

// A response is the bare frame table; only requests carry a length prefix.
func TestTCP_ResponseHasNoLengthPrefix(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	reply := output.Join([][]byte{output.EncodeVersion("2020.3", "1.12.0", true), output.EncodeSentinel(9)})
	buildErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			buildErr <- err
			return
		}
		defer conn.Close()
		if _, err := transport.ReadMessage(conn, 0); err != nil {
			buildErr <- err
			return
		}
		_, err = conn.Write(reply)
		buildErr <- err
	}()

	tr, err := transport.Dial(context.Background(), ln.Addr().String(), transport.WithAttempts(1))
	require.NoError(t, err)
	defer tr.Close()

	resp, err := tr.RoundTrip(context.Background(), []byte(`[]`))
	require.NoError(t, err)
	require.NoError(t, <-buildErr)
	assert.Equal(t, []string{"vers"}, resp.Tags())
	n, ok := resp.FrameNumber()
	require.True(t, ok)
	assert.Equal(t, uint64(9), n)
}

func TestReadResponse(t *testing.T) {
	full := output.Join([][]byte{output.EncodeQuitSignal(true), output.EncodeSentinel(3)})

	resp, err := transport.ReadResponse(bytes.NewReader(full), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"quit"}, resp.Tags())

	tests := []struct {
		name    string
		data    []byte
		max     int
		wantErr error
	}{
		{name: "inside lengths", data: full[:6], wantErr: transport.ErrTruncatedResponse},
		{name: "inside frames", data: full[:len(full)-1], wantErr: transport.ErrTruncatedResponse},
		{name: "over limit", data: full, max: len(full) - 1, wantErr: transport.ErrMessageTooLarge},
		{name: "frame count over limit", data: []byte{0xff, 0xff, 0xff, 0x0f}, max: 1024, wantErr: transport.ErrMessageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transport.ReadResponse(bytes.NewReader(tt.data), tt.max)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = transport.ReadResponse(bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWebSocket_RoundTrip(t *testing.T) {
	srv, err := transport.ListenWebSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	// Stand-in for the browser build.
	buildErr := make(chan error, 1)
	go func() {
		conn, _, err := websocket.DefaultDialer.Dial(srv.URL(), nil)
		if err != nil {
			buildErr <- err
			return
		}
		defer conn.Close()
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			buildErr <- err
			return
		}
		if typ != websocket.TextMessage {
			buildErr <- errors.New("batch was not a text message")
			return
		}
		cmds, err := command.Unmarshal(msg)
		if err != nil {
			buildErr <- err
			return
		}
		reply := output.Join([][]byte{
			output.EncodeLogMessage(cmds[0].Name(), output.LogMessageLevel, ""),
			output.EncodeSentinel(5),
		})
		buildErr <- conn.WriteMessage(websocket.BinaryMessage, reply)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, err := srv.Accept(ctx)
	require.NoError(t, err)
	defer ws.Close()

	msg, err := command.MarshalOne(command.DoNothing())
	require.NoError(t, err)
	resp, err := ws.RoundTrip(ctx, msg)
	require.NoError(t, err)
	require.NoError(t, <-buildErr)

	require.Equal(t, []string{"logm"}, resp.Tags())
	logm, err := output.NewLogMessage(resp.Frames()[0])
	require.NoError(t, err)
	assert.Equal(t, "do_nothing", logm.Message())
	n, _ := resp.FrameNumber()
	assert.Equal(t, uint64(5), n)
}

func TestWebSocket_AcceptTimeout(t *testing.T) {
	srv, err := transport.ListenWebSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = srv.Accept(ctx)
	assert.ErrorIs(t, err, transport.ErrConnectFailed)
}
