// Package output decodes the binary response the engine sends back after
// every command batch.
//
// A response is a sequence of frames. Every frame except the last is a
// flatbuffer table whose file identifier (bytes 4..8) is a four character
// tag naming its kind. The last frame is a sentinel carrying the engine's
// frame counter and is never treated as output data.
package output

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a response buffer is shorter than its
	// declared frame lengths.
	ErrTruncated = errors.New("response truncated")
	// ErrFrameAccounting is returned when a response buffer carries bytes
	// beyond its declared frame lengths.
	ErrFrameAccounting = errors.New("response length does not match declared frames")
	// ErrWrongFrameKind is returned when a typed reader is built over a frame
	// with a different tag.
	ErrWrongFrameKind = errors.New("wrong frame kind")
	// ErrMalformedFrame is returned when a frame is too short or its root
	// offset points outside the buffer.
	ErrMalformedFrame = errors.New("malformed frame")
)

const (
	tagOffset = 4
	tagLength = 4
)

// DataTypeID returns the four character tag of a frame. Frames too short to
// carry a tag (such as the sentinel) return "".
func DataTypeID(frame []byte) string {
	if len(frame) < tagOffset+tagLength {
		return ""
	}
	return string(frame[tagOffset : tagOffset+tagLength])
}

// Response is the ordered list of frames returned by one round trip. The
// frames are views over a single receive buffer and must not be modified.
type Response [][]byte

// Frames returns the output data frames, excluding the trailing sentinel.
func (r Response) Frames() [][]byte {
	if len(r) == 0 {
		return nil
	}
	return r[:len(r)-1]
}

// Sentinel returns the trailing marker frame, or nil for an empty response.
func (r Response) Sentinel() []byte {
	if len(r) == 0 {
		return nil
	}
	return r[len(r)-1]
}

// FrameNumber decodes the engine frame counter carried by the sentinel.
func (r Response) FrameNumber() (uint64, bool) {
	s := r.Sentinel()
	if len(s) == 0 || len(s) > 8 {
		return 0, false
	}
	var n uint64
	for _, b := range s {
		n = n<<8 | uint64(b)
	}
	return n, true
}

// Tags returns the tag of every output data frame in order.
func (r Response) Tags() []string {
	frames := r.Frames()
	tags := make([]string, 0, len(frames))
	for _, f := range frames {
		tags = append(tags, DataTypeID(f))
	}
	return tags
}

// Has reports whether any output data frame is of the given kind.
func (r Response) Has(kind Kind) bool {
	for _, f := range r.Frames() {
		if DataTypeID(f) == kind.Tag() {
			return true
		}
	}
	return false
}

// Split divides a raw response buffer into frames. The layout is
// [count u32][len_0 u32]...[len_n-1 u32][frame_0]...[frame_n-1], little
// endian. Boundaries come only from the declared lengths. The returned
// frames share buf's memory.
func Split(buf []byte) (Response, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: missing frame count", ErrTruncated)
	}
	count := binary.LittleEndian.Uint32(buf)
	header := 4 + 4*uint64(count)
	if uint64(len(buf)) < header {
		return nil, fmt.Errorf("%w: header declares %d frames", ErrTruncated, count)
	}

	resp := make(Response, count)
	pos := header
	for i := uint32(0); i < count; i++ {
		n := uint64(binary.LittleEndian.Uint32(buf[4+4*i:]))
		if pos+n > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: frame %d needs %d bytes, %d left",
				ErrTruncated, i, n, uint64(len(buf))-pos)
		}
		resp[i] = buf[pos : pos+n : pos+n]
		pos += n
	}
	if pos != uint64(len(buf)) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrFrameAccounting, uint64(len(buf))-pos)
	}
	return resp, nil
}

// Join is the inverse of Split.
func Join(frames [][]byte) []byte {
	size := 4 + 4*len(frames)
	for _, f := range frames {
		size += len(f)
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(frames)))
	for _, f := range frames {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(f)))
	}
	for _, f := range frames {
		buf = append(buf, f...)
	}
	return buf
}

// EncodeSentinel returns the big-endian marker frame for a frame number.
func EncodeSentinel(frame uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, frame)
}
