package encryption

import (
	"sync"
)

const defaultBufferSize = 32 * 1024 // 32KB default buffer size

// bufferPool provides reusable copy buffers. Buffers that carried
// plaintext are zeroed before going back to the pool.
//
//nolint:gochecknoglobals
var bufferPool = sync.Pool{
	New: func() any {
		return make([]byte, defaultBufferSize)
	},
}

func releaseBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}

	bufferPool.Put(buf) //nolint:staticcheck // slice header allocation is acceptable here
}
