package encryption

import (
	"bytes"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pgseal/pgseal/internal/config"
	"github.com/pgseal/pgseal/internal/keyring"
	"github.com/pgseal/pgseal/internal/packet"
	"github.com/pgseal/pgseal/internal/pipeline"
	"github.com/pgseal/pgseal/internal/policy"
	"github.com/pgseal/pgseal/internal/session"
)

// Source is one plaintext input. A zero Size means the length is unknown
// and the message is framed for streaming.
type Source struct {
	Reader  io.Reader
	Name    string
	Size    uint64
	ModTime time.Time
}

// Composer builds one message at a time. It is cheap to construct and not
// safe for concurrent use; the Processor gives each worker its own copy of
// the shared pieces.
type Composer struct {
	cfg        *config.Config
	passphrase session.PassphraseFunc

	cipher       packet.CipherAlgo
	digest       packet.HashAlgo
	compressAlgo packet.CompressAlgo
}

// NewComposer resolves the algorithm names of the configuration once.
func NewComposer(cfg *config.Config, passphrase session.PassphraseFunc) (*Composer, error) {
	c := &Composer{cfg: cfg, passphrase: passphrase}

	var err error

	if cfg.Cipher != "" {
		if c.cipher, err = packet.ParseCipherAlgo(cfg.Cipher); err != nil {
			return nil, fmt.Errorf("resolving cipher: %w", err)
		}
	}

	if cfg.Digest != "" {
		if c.digest, err = packet.ParseHashAlgo(cfg.Digest); err != nil {
			return nil, fmt.Errorf("resolving digest: %w", err)
		}
	}

	if cfg.CompressAlgo != "" {
		if c.compressAlgo, err = packet.ParseCompressAlgo(cfg.CompressAlgo); err != nil {
			return nil, fmt.Errorf("resolving compression: %w", err)
		}
	}

	return c, nil
}

// EncryptStore writes the plaintext as a plain (optionally compressed,
// optionally armored) message without any encryption.
func (c *Composer) EncryptStore(src *Source, out io.Writer) error {
	reader, probed, err := c.probe(src)
	if err != nil {
		return err
	}

	dec := policy.ResolveSymmetric(c.request(probed))
	dec.Cipher = 0
	dec.UseMDC = false

	return c.build(src, reader, out, dec, nil, nil)
}

// EncryptSymmetric encrypts under a key derived from a passphrase. Modern
// messages carry a session-key packet with the derivation parameters;
// legacy ones carry nothing and the reader re-derives from the raw
// passphrase.
func (c *Composer) EncryptSymmetric(src *Source, out io.Writer) error {
	reader, probed, err := c.probe(src)
	if err != nil {
		return err
	}

	dec := policy.ResolveSymmetric(c.request(probed))

	dek, spec, err := session.PassphraseDEK(c.passphrase, dec.Cipher, session.S2KConfig{
		Hash:   c.digest,
		Legacy: dec.Legacy,
	})
	if err != nil {
		return err
	}

	defer dek.Wipe()

	dek.UseMDC = dec.UseMDC

	var emit func(io.Writer) error
	if !dec.Legacy {
		emit = func(w io.Writer) error {
			return packet.WriteSymKeyESK(w, dek.Algo, spec)
		}
	}

	return c.build(src, reader, out, dec, dek, emit)
}

// EncryptTo encrypts to a resolved recipient set under a fresh random
// session key, one encrypted-session-key packet per recipient.
func (c *Composer) EncryptTo(src *Source, out io.Writer, recipients []keyring.RecipientKey) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	reader, probed, err := c.probe(src)
	if err != nil {
		return err
	}

	dec := policy.Resolve(c.request(probed), recipients)

	dek, err := session.NewRandomDEK(dec.Cipher, dec.UseMDC)
	if err != nil {
		return err
	}

	defer dek.Wipe()

	emit := func(w io.Writer) error {
		return session.WriteEncryptedSessionKeys(w, recipients, dek, c.cfg.ThrowKeyIDs, dec.Legacy)
	}

	return c.build(src, reader, out, dec, dek, emit)
}

// request assembles the policy inputs shared by all modes.
func (c *Composer) request(probedCompressed bool) policy.Request {
	return policy.Request{
		Cipher:          c.cipher,
		Compress:        c.cfg.Compress,
		CompressAlgo:    c.compressAlgo,
		Legacy:          c.cfg.Legacy,
		InputCompressed: probedCompressed,
	}
}

// probe peeks at the head of the input to detect already-compressed
// formats, returning a reader that replays the peeked bytes. Skipped when
// compression is off.
func (c *Composer) probe(src *Source) (io.Reader, bool, error) {
	if !c.cfg.Compress {
		return src.Reader, false, nil
	}

	head := make([]byte, policy.ProbeLen)

	n, err := io.ReadFull(src.Reader, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, false, fmt.Errorf("%w: %v", ErrOpenFailure, err)
	}

	head = head[:n]

	return io.MultiReader(bytes.NewReader(head), src.Reader), policy.ProbeCompressed(head), nil
}

// literalDescriptor derives the stored metadata of the literal packet.
func (c *Composer) literalDescriptor(src *Source, textMode bool) *packet.LiteralDescriptor {
	desc := &packet.LiteralDescriptor{Mode: packet.LiteralBinary}

	if textMode {
		desc.Mode = packet.LiteralText
	}

	switch {
	case c.cfg.SetFilename != "":
		desc.Name = c.cfg.SetFilename
	case c.cfg.ForceFilename:
		// blank on purpose
	default:
		desc.Name = src.Name
	}

	if ts := src.ModTime.Unix(); !src.ModTime.IsZero() && ts > 0 && ts <= 0xFFFFFFFF {
		desc.Timestamp = uint32(ts)
	}

	// Text normalization changes the length, so normalize means unknown.
	if size := c.declaredSize(src); size > 0 && !textMode {
		desc.Length = uint32(size)
	}

	return desc
}

// declaredSize is the body length declared up front, or 0 to stream. The
// legacy size override substitutes for an unknown input length.
func (c *Composer) declaredSize(src *Source) uint64 {
	size := src.Size
	if size == 0 && c.cfg.Legacy && c.cfg.SetFilesize > 0 {
		size = c.cfg.SetFilesize
	}

	threshold := c.cfg.LargeFileThreshold
	if threshold == 0 || threshold > packet.MaxDeclaredLen+1 {
		threshold = packet.MaxDeclaredLen + 1
	}

	if size == 0 || size >= threshold {
		return 0
	}

	return size
}

// build assembles the transform stack for one message and drives the
// plaintext through it. When dek is nil the message is a plain store.
//
// Stack order, outermost first: armor, encryption, compression. The
// literal encoder and the text normalizer sit above the stack and feed its
// top.
func (c *Composer) build(
	src *Source,
	reader io.Reader,
	out io.Writer,
	dec policy.Decision,
	dek *session.DEK,
	emit func(io.Writer) error,
) (err error) {
	stack := pipeline.NewStack(out)

	defer func() {
		if err != nil {
			stack.Abort()
		}
	}()

	if c.cfg.Armor {
		if err := stack.Push(pipeline.NewArmor()); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
	}

	desc := c.literalDescriptor(src, c.cfg.TextMode)

	if dek != nil {
		datalen, err := c.innerLength(desc, dec)
		if err != nil {
			return err
		}

		err = stack.Push(pipeline.NewEncrypt(pipeline.EncryptConfig{
			DEK:         dek,
			Datalen:     datalen,
			Legacy:      dec.Legacy,
			EmitHeaders: emit,
		}))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
	}

	if dec.Compress != packet.CompressNone {
		level := c.cfg.CompressLevel

		if err := stack.Push(pipeline.NewCompress(dec.Compress, level, dec.Legacy)); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
	}

	var target io.Writer = stack.Top()

	var literal io.WriteCloser

	if !c.cfg.NoLiteral {
		literal, err = packet.NewLiteralWriter(stack.Top(), desc, dec.Legacy)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}

		target = literal
	}

	var normalizer *pipeline.Stack

	if c.cfg.TextMode {
		normalizer = pipeline.NewStack(target)
		if err := normalizer.Push(pipeline.NewTextNormalize()); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}

		target = normalizer
	}

	total, err := c.copy(target, reader)
	if err != nil {
		if normalizer != nil {
			normalizer.Abort()
		}

		return err
	}

	if total == 0 {
		log.WithField("file", src.Name).Warn("input is empty")
	}

	if normalizer != nil {
		if err := normalizer.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
	}

	if literal != nil {
		if err := literal.Close(); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailure, err)
		}
	}

	if err := stack.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	return nil
}

// innerLength is the exact plaintext length the cipher packet will carry,
// or 0 when it has to be streamed. Compression makes the length
// unpredictable, so any compressed message streams.
func (c *Composer) innerLength(desc *packet.LiteralDescriptor, dec policy.Decision) (uint64, error) {
	if dec.Compress != packet.CompressNone {
		return 0, nil
	}

	if c.cfg.NoLiteral {
		// raw copy: the cipher sees the input bytes themselves
		if c.cfg.TextMode {
			return 0, nil
		}

		return uint64(desc.Length), nil
	}

	if desc.Length == 0 {
		return 0, nil
	}

	length, err := packet.LiteralPacketLength(desc, dec.Legacy)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}

	return length, nil
}

// copy drives the plaintext through the stack with a pooled buffer that is
// zeroed afterwards.
func (c *Composer) copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := bufferPool.Get().([]byte) //nolint:forcetypeassert // pool only holds []byte
	defer releaseBuffer(buf)

	var total int64

	for {
		n, rerr := src.Read(buf)

		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("%w: %v", ErrWriteFailure, werr)
			}

			total += int64(n)
		}

		if rerr == io.EOF {
			return total, nil
		}

		if rerr != nil {
			return total, fmt.Errorf("%w: %v", ErrOpenFailure, rerr)
		}
	}
}
