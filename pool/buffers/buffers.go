// Package buffers pools the byte buffers responses are assembled in.
//
// A response (header block plus body) is rendered into one buffer and
// handed to the output stream with a single Write. Three tiers keep
// small responses from pinning large buffers.
package buffers

import (
	"bytes"
	"sync"
)

const (
	smallBufferSize  = 512
	mediumBufferSize = 8 << 10
	largeBufferSize  = 64 << 10

	// Buffers that grew past this are dropped instead of pooled.
	maxPooledSize = 1 << 20
)

var (
	smallPool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, smallBufferSize))
		},
	}

	mediumPool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, mediumBufferSize))
		},
	}

	largePool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, largeBufferSize))
		},
	}
)

// Acquire returns an empty buffer sized for sizeHint bytes.
//
// Size hints:
//   - 0 or unknown: medium buffer (8KB)
//   - up to 512B: small buffer
//   - up to 8KB: medium buffer
//   - larger: large buffer (64KB), grown by the caller as needed
func Acquire(sizeHint int) *bytes.Buffer {
	switch {
	case sizeHint == 0:
		return mediumPool.Get().(*bytes.Buffer)
	case sizeHint <= smallBufferSize:
		return smallPool.Get().(*bytes.Buffer)
	case sizeHint <= mediumBufferSize:
		return mediumPool.Get().(*bytes.Buffer)
	default:
		buf := largePool.Get().(*bytes.Buffer)
		buf.Grow(sizeHint)
		return buf
	}
}

// Release resets buf and returns it to the pool matching its capacity.
func Release(buf *bytes.Buffer) {
	if buf == nil {
		return
	}

	c := buf.Cap()
	if c > maxPooledSize {
		return
	}
	buf.Reset()

	switch {
	case c <= smallBufferSize:
		smallPool.Put(buf)
	case c <= mediumBufferSize:
		mediumPool.Put(buf)
	default:
		largePool.Put(buf)
	}
}
