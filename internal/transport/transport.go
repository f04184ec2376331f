// Package transport carries command batches to the engine and response
// frames back. One Transport owns one connection.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/standardbeagle/tdwctl/internal/output"
)

var (
	// ErrConnectFailed is returned when the dial budget is exhausted.
	ErrConnectFailed = errors.New("failed to connect to build")
	// ErrClosed is returned by RoundTrip after Close.
	ErrClosed = errors.New("transport closed")
	// ErrMessageTooLarge is returned for a length prefix above the limit.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrTruncatedResponse is returned when the connection ends inside a
	// response.
	ErrTruncatedResponse = output.ErrTruncated
)

// DefaultMaxMessageSize bounds a single response. Image passes make
// responses large, so the default is generous.
const DefaultMaxMessageSize = 512 << 20

// Transport performs one request/response exchange per call.
type Transport interface {
	// RoundTrip sends one serialized batch and blocks until the full
	// response has been read and split into frames.
	RoundTrip(ctx context.Context, msg []byte) (output.Response, error)
	// Send writes a batch without reading a response. It is used for the
	// terminate command, which the build never answers.
	Send(ctx context.Context, msg []byte) error
	Close() error
}

// WriteMessage writes msg with a little-endian uint32 length prefix.
func WriteMessage(w io.Writer, msg []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(msg)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("failed to write length: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed message. A short read is reported
// as output.ErrTruncated.
func ReadMessage(r io.Reader, maxSize int) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if maxSize > 0 && int64(n) > int64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, maxSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: read %d-byte message: %v", ErrTruncatedResponse, n, err)
		}
		return nil, err
	}
	return buf, nil
}

// ReadResponse reads one response as the build writes it: a uint32 frame
// count, that many uint32 frame lengths, then the frames, all little-endian
// and without an outer length prefix. maxSize bounds the whole response.
func ReadResponse(r io.Reader, maxSize int) (output.Response, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	count := int64(binary.LittleEndian.Uint32(hdr[:]))
	size := 4 + 4*count
	if maxSize > 0 && size > int64(maxSize) {
		return nil, fmt.Errorf("%w: %d frames", ErrMessageTooLarge, count)
	}
	lengths := make([]byte, 4*count)
	if err := readFull(r, lengths, "frame lengths"); err != nil {
		return nil, err
	}
	for i := int64(0); i < count; i++ {
		size += int64(binary.LittleEndian.Uint32(lengths[4*i:]))
	}
	if maxSize > 0 && size > int64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, maxSize)
	}

	buf := make([]byte, size)
	n := copy(buf, hdr[:])
	n += copy(buf[n:], lengths)
	if err := readFull(r, buf[n:], "frames"); err != nil {
		return nil, err
	}
	return output.Split(buf)
}

func readFull(r io.Reader, buf []byte, what string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: read %d bytes of %s: %v", ErrTruncatedResponse, len(buf), what, err)
		}
		return err
	}
	return nil
}
