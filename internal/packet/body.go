package packet

import (
	"fmt"
	"io"
)

// partialChunkSize is the body chunk size used for streamed packets. Partial
// lengths must be powers of two; 8 KiB keeps the framing overhead negligible.
const partialChunkSize = 8192

const partialChunkExp = 13 // log2(partialChunkSize)

// NewBody returns a writer that frames a packet body on its way to w.
//
// A non-negative length declares the body size up front (fixed-length
// header); the writer then enforces that exactly that many bytes pass
// through. A negative length selects streamed encoding: chunked partial
// lengths for new-format packets, or the old-format indeterminate length
// when legacy is set.
//
// Close finishes the framing but never closes w.
func NewBody(w io.Writer, tag Tag, length int64, legacy bool) (io.WriteCloser, error) {
	if length >= 0 {
		var err error
		if legacy {
			err = writeOldHeader(w, tag, length)
		} else {
			err = writeNewHeader(w, tag, uint64(length))
		}

		if err != nil {
			return nil, err
		}

		return &fixedBody{w: w, remaining: uint64(length)}, nil
	}

	if legacy {
		if err := writeOldHeader(w, tag, -1); err != nil {
			return nil, err
		}

		// Indeterminate bodies run to EOF; nothing to frame.
		return &indeterminateBody{w: w}, nil
	}

	return &partialBody{w: w, tag: tag, buf: make([]byte, 0, partialChunkSize)}, nil
}

// fixedBody passes data through, enforcing the declared length.
type fixedBody struct {
	w         io.Writer
	remaining uint64
}

func (b *fixedBody) Write(p []byte) (int, error) {
	if uint64(len(p)) > b.remaining {
		return 0, fmt.Errorf("%w: write of %d bytes exceeds declared body length by %d",
			ErrPacketFormat, len(p), uint64(len(p))-b.remaining)
	}

	n, err := b.w.Write(p)
	b.remaining -= uint64(n)

	return n, err
}

func (b *fixedBody) Close() error {
	if b.remaining != 0 {
		return fmt.Errorf("%w: body short by %d bytes of its declared length",
			ErrPacketFormat, b.remaining)
	}

	return nil
}

// indeterminateBody is a plain pass-through for old-format length type 3.
type indeterminateBody struct {
	w io.Writer
}

func (b *indeterminateBody) Write(p []byte) (int, error) { return b.w.Write(p) }

func (b *indeterminateBody) Close() error { return nil }

// partialBody emits the body as a sequence of power-of-two chunks, ending
// with a definite-length final chunk at Close. The CTB goes out with the
// first chunk, so an aborted stream that never wrote leaves no header.
type partialBody struct {
	w           io.Writer
	tag         Tag
	buf         []byte
	wroteHeader bool
}

func (b *partialBody) Write(p []byte) (int, error) {
	total := len(p)

	for len(b.buf)+len(p) >= partialChunkSize {
		take := partialChunkSize - len(b.buf)
		b.buf = append(b.buf, p[:take]...)
		p = p[take:]

		if err := b.flushChunk(); err != nil {
			return total - len(p), err
		}
	}

	b.buf = append(b.buf, p...)

	return total, nil
}

func (b *partialBody) flushChunk() error {
	hdr := make([]byte, 0, 2)
	if !b.wroteHeader {
		hdr = append(hdr, 0xC0|byte(b.tag))
		b.wroteHeader = true
	}

	hdr = append(hdr, 224+partialChunkExp)

	if _, err := b.w.Write(hdr); err != nil {
		return err
	}

	if _, err := b.w.Write(b.buf); err != nil {
		return err
	}

	b.buf = b.buf[:0]

	return nil
}

func (b *partialBody) Close() error {
	hdr := make([]byte, 0, 6)
	if !b.wroteHeader {
		hdr = append(hdr, 0xC0|byte(b.tag))
		b.wroteHeader = true
	}

	// The final chunk uses a regular length field and may be empty.
	hdr = appendNewLength(hdr, uint32(len(b.buf)))

	if _, err := b.w.Write(hdr); err != nil {
		return err
	}

	if len(b.buf) == 0 {
		return nil
	}

	_, err := b.w.Write(b.buf)
	b.buf = b.buf[:0]

	return err
}
