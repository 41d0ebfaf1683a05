package pipeline

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"

	"github.com/pgseal/pgseal/internal/packet"
)

// compress wraps plaintext in a compressed data packet. The packet header
// and compressor are created lazily on the first flush so the stage emits
// nothing for streams that are aborted before any data arrives; an empty
// stream that reaches Finalize still produces a well-formed empty packet.
type compress struct {
	writeOnly

	down   io.Writer
	algo   packet.CompressAlgo
	level  int
	legacy bool

	body io.WriteCloser
	z    io.WriteCloser
}

// NewCompress returns a builder for a compression stage using the given
// algorithm. Compressed size is never known up front, so the packet body
// is streamed: partial lengths normally, indeterminate length in legacy
// mode.
func NewCompress(algo packet.CompressAlgo, level int, legacy bool) Builder {
	return func(down io.Writer) (Transform, error) {
		switch algo {
		case packet.CompressZIP, packet.CompressZLIB:
		default:
			return nil, fmt.Errorf("pipeline: cannot compress with algorithm %d", algo)
		}

		return &compress{down: down, algo: algo, level: level, legacy: legacy}, nil
	}
}

func (c *compress) start() error {
	body, err := packet.NewBody(c.down, packet.TagCompressed, -1, c.legacy)
	if err != nil {
		return err
	}

	if _, err := body.Write([]byte{byte(c.algo)}); err != nil {
		return err
	}

	switch c.algo {
	case packet.CompressZIP:
		c.z, err = flate.NewWriter(body, c.level)
	case packet.CompressZLIB:
		c.z, err = zlib.NewWriterLevel(body, c.level)
	}

	if err != nil {
		return err
	}

	c.body = body

	return nil
}

func (c *compress) Flush(p []byte) error {
	if c.z == nil {
		if err := c.start(); err != nil {
			return err
		}
	}

	_, err := c.z.Write(p)

	return err
}

func (c *compress) Finalize() error {
	if c.z == nil {
		if err := c.start(); err != nil {
			return err
		}
	}

	if err := c.z.Close(); err != nil {
		return err
	}

	return c.body.Close()
}

func (c *compress) Free() {
	c.z = nil
	c.body = nil
	c.down = nil
}

func (c *compress) Name() string {
	return "compress"
}
