// Package keyring defines the recipient-key model and the lookup
// collaborator the encryption core depends on. Key storage, trust and
// selection policy live behind the Keyring interface; the core only reads
// the keys it is handed.
package keyring

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"golang.org/x/crypto/openpgp/elgamal"

	"github.com/pgseal/pgseal/internal/packet"
)

// Lookup failure kinds. Callers distinguish them with errors.Is.
var (
	// ErrNoPublicKey indicates no key matched a recipient identifier.
	ErrNoPublicKey = errors.New("keyring: no public key found")

	// ErrAmbiguousKey indicates an identifier matched more than one key.
	ErrAmbiguousKey = errors.New("keyring: ambiguous recipient")

	// ErrUnusableKey indicates the matched key cannot be used for encryption.
	ErrUnusableKey = errors.New("keyring: key not usable for encryption")
)

// RecipientKey is one recipient's public encryption key together with the
// advertised capabilities the policy resolver negotiates over. Values are
// immutable once handed to the core.
type RecipientKey struct {
	// UserID is the identifier the key was resolved from, for diagnostics.
	UserID string

	// KeyID is the 8-octet key identifier written into the session-key packet.
	KeyID [8]byte

	Algo packet.PublicKeyAlgo

	// Exactly one of RSA and ElGamal is set, matching Algo.
	RSA     *rsa.PublicKey
	ElGamal *elgamal.PublicKey

	// CipherPrefs and CompressPrefs are the key's advertised preference
	// lists, most preferred first.
	CipherPrefs   []packet.CipherAlgo
	CompressPrefs []packet.CompressAlgo

	// MDC reports whether the key advertises modification-detection support.
	MDC bool

	// Version is the key packet version; version 4 keys carry an implicit
	// baseline cipher preference.
	Version int
}

// BitLength returns the modulus size of the key in bits.
func (k *RecipientKey) BitLength() int {
	switch {
	case k.RSA != nil:
		return k.RSA.N.BitLen()
	case k.ElGamal != nil:
		return k.ElGamal.P.BitLen()
	}

	return 0
}

// Validate checks internal consistency of a key before the core uses it.
func (k *RecipientKey) Validate() error {
	if !k.Algo.CanEncrypt() {
		return fmt.Errorf("%w: %s key %q", ErrUnusableKey, k.Algo, k.UserID)
	}

	switch k.Algo {
	case packet.PubKeyRSA, packet.PubKeyRSAEncryptOnly:
		if k.RSA == nil {
			return fmt.Errorf("%w: %q has no RSA key material", ErrUnusableKey, k.UserID)
		}
	case packet.PubKeyElGamal:
		if k.ElGamal == nil {
			return fmt.Errorf("%w: %q has no ElGamal key material", ErrUnusableKey, k.UserID)
		}
	}

	return nil
}

// Keyring resolves user identifiers to encryption-capable keys, preserving
// the order of the identifiers it was given.
type Keyring interface {
	LookupEncryptionKeys(ids []string) ([]RecipientKey, error)
}
