package tcpfs

import "sync"

// ============================================================================
// Buffer Pool
// ============================================================================
//
// Two size classes cover every buffer the handlers need: paths (bounded by
// the default max_path_length) and streaming copies for DOWNLOAD. Requests
// above a class are served by a plain allocation and never pooled.

const (
	// pathBufferSize holds any path up to the default limit.
	pathBufferSize = DefaultMaxPathLength

	// copyBufferSize is the chunk size used to stream object bytes.
	copyBufferSize = 64 << 10
)

type bufferPool struct {
	path sync.Pool
	copy sync.Pool
}

var globalBufferPool = &bufferPool{
	path: sync.Pool{
		New: func() any {
			buf := make([]byte, pathBufferSize)
			return &buf
		},
	},
	copy: sync.Pool{
		New: func() any {
			buf := make([]byte, copyBufferSize)
			return &buf
		},
	},
}

// Get returns a slice of length size. Call Put when done.
func (p *bufferPool) Get(size uint32) []byte {
	var bufPtr *[]byte
	switch {
	case size <= pathBufferSize:
		bufPtr = p.path.Get().(*[]byte)
	case size <= copyBufferSize:
		bufPtr = p.copy.Get().(*[]byte)
	default:
		return make([]byte, size)
	}
	return (*bufPtr)[:size]
}

// Put returns buf to its pool. Slices not obtained from Get are ignored.
func (p *bufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	buf = buf[:cap(buf)]
	switch cap(buf) {
	case pathBufferSize:
		p.path.Put(&buf)
	case copyBufferSize:
		p.copy.Put(&buf)
	}
}

// GetBuffer returns a pooled buffer of length size.
func GetBuffer(size uint32) []byte {
	return globalBufferPool.Get(size)
}

// PutBuffer returns a buffer obtained from GetBuffer.
func PutBuffer(buf []byte) {
	globalBufferPool.Put(buf)
}
