package process

import "sync"

// ringBuffer keeps the last size bytes written to it.
type ringBuffer struct {
	mu        sync.Mutex
	buf       []byte
	start     int
	full      bool
	truncated bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{buf: make([]byte, 0, size)}
}

func (r *ringBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(p)
	size := cap(r.buf)
	if n >= size {
		r.truncated = r.truncated || n > size || len(r.buf) > 0
		r.buf = append(r.buf[:0], p[n-size:]...)
		r.start = 0
		r.full = true
		return n, nil
	}
	for len(p) > 0 {
		if !r.full {
			free := size - len(r.buf)
			k := min(free, len(p))
			r.buf = append(r.buf, p[:k]...)
			p = p[k:]
			if len(r.buf) == size {
				r.full = true
			}
			continue
		}
		r.truncated = true
		k := copy(r.buf[r.start:], p)
		r.start = (r.start + k) % size
		p = p[k:]
	}
	return n, nil
}

// Bytes returns a copy of the retained output, oldest first.
func (r *ringBuffer) Bytes() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, 0, len(r.buf))
	out = append(out, r.buf[r.start:]...)
	out = append(out, r.buf[:r.start]...)
	return out, r.truncated
}
