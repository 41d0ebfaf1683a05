// Package session owns the data-encryption-key lifecycle: random generation
// for public-key messages, passphrase derivation for symmetric ones, and
// the per-recipient wrapping of the key. Key bytes live exactly as long as
// one message; callers wipe them on every exit path.
package session

import (
	"fmt"

	"github.com/tink-crypto/tink-go/v2/subtle/random"

	"github.com/pgseal/pgseal/internal/packet"
)

// DEK is the symmetric key encrypting the body of one message. The session
// package is its sole writer; the encrypt transform borrows it for the
// duration of the message.
type DEK struct {
	Algo   packet.CipherAlgo
	Key    []byte
	UseMDC bool
}

// NewRandomDEK generates a fresh random key of the length the cipher
// requires.
func NewRandomDEK(algo packet.CipherAlgo, mdc bool) (*DEK, error) {
	size := algo.KeySize()
	if size == 0 {
		return nil, fmt.Errorf("session: cipher %s has no key size", algo)
	}

	return &DEK{
		Algo:   algo,
		Key:    random.GetRandomBytes(uint32(size)),
		UseMDC: mdc,
	}, nil
}

// Wipe overwrites the key bytes. Safe to call more than once.
func (d *DEK) Wipe() {
	if d == nil {
		return
	}

	for i := range d.Key {
		d.Key[i] = 0
	}
}
