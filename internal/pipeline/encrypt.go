package pipeline

import (
	"crypto/cipher"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"

	"github.com/tink-crypto/tink-go/v2/subtle/random"
	pgp "golang.org/x/crypto/openpgp/packet"

	"github.com/pgseal/pgseal/internal/packet"
	"github.com/pgseal/pgseal/internal/session"
)

// mdcTrailerLen is the modification detection trailer: the two header
// octets of the embedded MDC packet plus a SHA-1 digest.
const mdcTrailerLen = 2 + sha1.Size

// EncryptConfig configures the symmetric encryption stage.
type EncryptConfig struct {
	// DEK is the session key; the stage borrows it and never wipes it.
	DEK *session.DEK

	// Datalen is the exact plaintext length the stage will see, or 0
	// when unknown. A known length produces a fixed-length packet.
	Datalen uint64

	// Legacy selects indeterminate-length framing for streamed
	// non-MDC packets.
	Legacy bool

	// EmitHeaders, when set, is invoked once to write the session-key
	// packets to the downstream writer immediately before the first
	// ciphertext byte. Deferring this keeps aborted streams from
	// leaving stray key packets behind.
	EmitHeaders func(io.Writer) error
}

type encState uint8

const (
	encStateUninitialized encState = iota
	encStateReady
)

// encrypt produces a symmetrically encrypted data packet: tag 18 with an
// embedded MDC when the session key requests integrity protection, plain
// tag 9 otherwise.
type encrypt struct {
	writeOnly

	cfg  EncryptConfig
	down io.Writer

	state  encState
	body   io.WriteCloser
	stream cipher.Stream
	mdc    hash.Hash
	ct     []byte
}

// NewEncrypt returns a builder for the encryption stage.
func NewEncrypt(cfg EncryptConfig) Builder {
	return func(down io.Writer) (Transform, error) {
		if cfg.DEK == nil || len(cfg.DEK.Key) == 0 {
			return nil, fmt.Errorf("pipeline: encryption stage needs a session key")
		}

		return &encrypt{cfg: cfg, down: down}, nil
	}
}

// start emits the deferred headers, opens the encrypted packet body and
// writes the random block-size prefix with its two repeated quick-check
// octets.
func (e *encrypt) start() error {
	if e.cfg.EmitHeaders != nil {
		if err := e.cfg.EmitHeaders(e.down); err != nil {
			return err
		}
	}

	block, err := e.cfg.DEK.Algo.New(e.cfg.DEK.Key)
	if err != nil {
		return err
	}

	bs := block.BlockSize()
	randData := random.GetRandomBytes(uint32(bs))

	if e.cfg.DEK.UseMDC {
		var bodyLen int64 = -1
		if e.cfg.Datalen > 0 {
			bodyLen = 1 + int64(bs+2) + int64(e.cfg.Datalen) + mdcTrailerLen
		}

		body, err := packet.NewBody(e.down, packet.TagEncryptedMDC, bodyLen, false)
		if err != nil {
			return err
		}

		if _, err := body.Write([]byte{1}); err != nil {
			return err
		}

		stream, prefix := pgp.NewOCFBEncrypter(block, randData, pgp.OCFBNoResync)

		// The MDC covers the plaintext prefix including the
		// repeated octets.
		e.mdc = sha1.New()
		e.mdc.Write(randData)
		e.mdc.Write(randData[bs-2:])

		if _, err := body.Write(prefix); err != nil {
			return err
		}

		e.body, e.stream = body, stream
	} else {
		var bodyLen int64 = -1
		if e.cfg.Datalen > 0 {
			bodyLen = int64(bs+2) + int64(e.cfg.Datalen)
		}

		body, err := packet.NewBody(e.down, packet.TagEncrypted, bodyLen, e.cfg.Legacy)
		if err != nil {
			return err
		}

		stream, prefix := pgp.NewOCFBEncrypter(block, randData, pgp.OCFBResync)

		if _, err := body.Write(prefix); err != nil {
			return err
		}

		e.body, e.stream = body, stream
	}

	e.state = encStateReady

	return nil
}

func (e *encrypt) Flush(p []byte) error {
	if e.state == encStateUninitialized {
		if err := e.start(); err != nil {
			return err
		}
	}

	if e.mdc != nil {
		e.mdc.Write(p)
	}

	if cap(e.ct) < len(p) {
		e.ct = make([]byte, len(p))
	}

	ct := e.ct[:len(p)]
	e.stream.XORKeyStream(ct, p)

	_, err := e.body.Write(ct)

	return err
}

func (e *encrypt) Finalize() error {
	if e.state == encStateUninitialized {
		if err := e.start(); err != nil {
			return err
		}
	}

	if e.mdc != nil {
		trailer := make([]byte, mdcTrailerLen)
		trailer[0] = 0xC0 | byte(packet.TagMDC)
		trailer[1] = sha1.Size

		e.mdc.Write(trailer[:2])
		e.mdc.Sum(trailer[:2])

		e.stream.XORKeyStream(trailer, trailer)

		if _, err := e.body.Write(trailer); err != nil {
			return err
		}
	}

	return e.body.Close()
}

func (e *encrypt) Free() {
	for i := range e.ct {
		e.ct[i] = 0
	}

	e.ct = nil
	e.body = nil
	e.stream = nil
	e.mdc = nil
	e.down = nil
}

func (e *encrypt) Name() string {
	return "encrypt"
}
