package session

import (
	"bytes"
	"crypto/md5" //nolint:gosec // legacy-compatibility key derivation only
	"crypto/rand"
	"errors"
	"fmt"
	"hash"

	_ "crypto/sha1"   // registered for string-to-key digests
	_ "crypto/sha256" // registered for string-to-key digests
	_ "crypto/sha512" // registered for string-to-key digests

	"golang.org/x/crypto/openpgp/s2k"

	"github.com/pgseal/pgseal/internal/packet"
)

// ErrPassphrase indicates key derivation produced no usable key, typically
// because the passphrase callback was cancelled or returned nothing.
var ErrPassphrase = errors.New("session: no usable passphrase")

// PassphraseFunc acquires a passphrase. Returning an error or an empty
// passphrase cancels the message.
type PassphraseFunc func() ([]byte, error)

// S2KConfig selects the string-to-key parameters for the passphrase path.
type S2KConfig struct {
	// Hash is the digest algorithm of the derivation. Zero means SHA-1.
	Hash packet.HashAlgo

	// Count is the iterated-salted octet count. Zero selects the library
	// default.
	Count int

	// Legacy selects the old simple (unsalted) derivation and suppresses
	// the session-key packet; legacy readers re-derive from the raw
	// passphrase digest.
	Legacy bool
}

// PassphraseDEK derives the message key from an acquired passphrase.
//
// In the modern path the returned spec bytes are the serialized
// string-to-key specifier for the session-key packet. The legacy path
// returns no spec: the message carries no session-key packet at all.
func PassphraseDEK(acquire PassphraseFunc, cipher packet.CipherAlgo, cfg S2KConfig) (dek *DEK, spec []byte, err error) {
	pass, err := acquire()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPassphrase, err)
	}

	if len(pass) == 0 {
		return nil, nil, ErrPassphrase
	}

	defer wipe(pass)

	key := make([]byte, cipher.KeySize())

	if cfg.Legacy {
		md := md5.New() //nolint:gosec // the legacy profile fixes MD5
		simpleS2K(md, pass, key)

		return &DEK{Algo: cipher, Key: key}, nil, nil
	}

	hashAlgo := cfg.Hash
	if hashAlgo == 0 {
		hashAlgo = packet.HashSHA1
	}

	cryptoHash, err := hashAlgo.CryptoHash()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPassphrase, err)
	}

	var specBuf bytes.Buffer

	s2kCfg := &s2k.Config{Hash: cryptoHash, S2KCount: cfg.Count}
	if err := s2k.Serialize(&specBuf, key, rand.Reader, pass, s2kCfg); err != nil {
		wipe(key)

		return nil, nil, fmt.Errorf("%w: %v", ErrPassphrase, err)
	}

	return &DEK{Algo: cipher, Key: key}, specBuf.Bytes(), nil
}

// simpleS2K is the old unsalted, uniterated derivation: successive digest
// passes with an increasing zero preload until the key is filled.
func simpleS2K(md hash.Hash, pass, key []byte) {
	done := 0

	for round := 0; done < len(key); round++ {
		md.Reset()

		for i := 0; i < round; i++ {
			md.Write([]byte{0})
		}

		md.Write(pass)
		done += copy(key[done:], md.Sum(nil))
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
