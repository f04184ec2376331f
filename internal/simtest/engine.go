// Package simtest runs an in-process fake build that speaks the wire
// protocol over TCP, for tests.
package simtest

import (
	"bufio"
	"net"
	"slices"
	"sync"
	"testing"

	"github.com/standardbeagle/tdwctl/internal/command"
	"github.com/standardbeagle/tdwctl/internal/output"
	"github.com/standardbeagle/tdwctl/internal/transport"
)

// Request is one batch received by the engine.
type Request struct {
	Frame    uint32
	Commands []command.Command
}

// Names returns the command names in batch order.
func (r Request) Names() []string {
	names := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		names[i] = c.Name()
	}
	return names
}

// Has reports whether the batch contains a command.
func (r Request) Has(name string) bool {
	return slices.Contains(r.Names(), name)
}

// Reply is what the engine sends back. By default Frames is followed by a
// sentinel carrying the frame number.
type Reply struct {
	Frames [][]byte
	// Raw replaces the whole response payload when set.
	Raw []byte
	// Hangup closes the connection, after writing Raw if it is set.
	Hangup bool
}

// Handler computes the reply to one batch.
type Handler func(Request) Reply

// Engine is a fake build listening on a loopback port.
type Engine struct {
	ln      net.Listener
	handler Handler

	mu       sync.Mutex
	requests []Request
	frame    uint32
	conns    []net.Conn

	wg sync.WaitGroup
}

// Start listens on an ephemeral loopback port and serves until the test
// ends. A nil handler replies with the sentinel only.
func Start(t testing.TB, h Handler) *Engine {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("simtest: listen: %v", err)
	}
	if h == nil {
		h = func(Request) Reply { return Reply{} }
	}
	e := &Engine{ln: ln, handler: h}
	e.wg.Add(1)
	go e.accept()
	t.Cleanup(e.Close)
	return e
}

// Addr returns host:port.
func (e *Engine) Addr() string {
	return e.ln.Addr().String()
}

// Port returns the listening port.
func (e *Engine) Port() int {
	return e.ln.Addr().(*net.TCPAddr).Port
}

// Requests returns every batch received so far.
func (e *Engine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.requests)
}

// Last returns the most recent batch.
func (e *Engine) Last() Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.requests) == 0 {
		return Request{}
	}
	return e.requests[len(e.requests)-1]
}

// Close stops the listener and drops open connections.
func (e *Engine) Close() {
	_ = e.ln.Close()
	e.mu.Lock()
	for _, c := range e.conns {
		_ = c.Close()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) accept() {
	defer e.wg.Done()
	for {
		conn, err := e.ln.Accept()
		if err != nil {
			return
		}
		e.mu.Lock()
		e.conns = append(e.conns, conn)
		e.mu.Unlock()

		e.wg.Add(1)
		go e.serve(conn)
	}
}

func (e *Engine) serve(conn net.Conn) {
	defer e.wg.Done()
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		msg, err := transport.ReadMessage(r, 0)
		if err != nil {
			return
		}
		cmds, err := command.Unmarshal(msg)
		if err != nil {
			return
		}

		e.mu.Lock()
		req := Request{Frame: e.frame, Commands: cmds}
		e.requests = append(e.requests, req)
		e.frame++
		e.mu.Unlock()

		if req.Has(command.TerminateName) {
			return
		}

		reply := e.handler(req)
		if reply.Raw != nil {
			if _, err := conn.Write(reply.Raw); err != nil || reply.Hangup {
				return
			}
			continue
		}
		if reply.Hangup {
			return
		}
		frames := append(slices.Clone(reply.Frames), output.EncodeSentinel(req.Frame))
		if _, err := conn.Write(output.Join(frames)); err != nil {
			return
		}
	}
}

// Versioned answers send_version with a vers frame and delegates the rest
// of the reply to next, which may be nil.
func Versioned(tdwVersion string, next Handler) Handler {
	return func(req Request) Reply {
		var reply Reply
		if next != nil {
			reply = next(req)
		}
		if req.Has("send_version") {
			reply.Frames = append(reply.Frames, output.EncodeVersion("2020.3.48f1", tdwVersion, true))
		}
		return reply
	}
}

// Script replies with frames[i] to the i-th batch and with no frames once
// the script runs out.
func Script(frames ...[][]byte) Handler {
	var mu sync.Mutex
	i := 0
	return func(Request) Reply {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(frames) {
			return Reply{}
		}
		f := frames[i]
		i++
		return Reply{Frames: f}
	}
}
