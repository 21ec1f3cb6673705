// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import (
	"sync"
	"sync/atomic"
)

// BytePool hands out fixed-size byte buffers for per-connection I/O.
type BytePool struct {
	pool sync.Pool
	size int

	gets   atomic.Int64
	allocs atomic.Int64
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = 4096
	}
	b := &BytePool{size: size}
	b.pool.New = func() any {
		b.allocs.Add(1)
		buf := make([]byte, b.size)
		return &buf
	}
	return b
}

// Size returns the length of every buffer.
func (b *BytePool) Size() int {
	return b.size
}

// GetBuffer returns a buffer of Size bytes. Contents are unspecified.
func (b *BytePool) GetBuffer() []byte {
	b.gets.Add(1)
	return (*b.pool.Get().(*[]byte))[:b.size]
}

// PutBuffer returns buf to the pool. Buffers of another capacity are dropped.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	buf = buf[:b.size]
	b.pool.Put(&buf)
}

// Stats reports how many buffers were requested and how many were allocated.
func (b *BytePool) Stats() (gets, allocs int64) {
	return b.gets.Load(), b.allocs.Load()
}
