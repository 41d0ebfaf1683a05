package session

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/openpgp/elgamal"

	"github.com/pgseal/pgseal/internal/keyring"
	"github.com/pgseal/pgseal/internal/packet"
)

// ErrKeyWrap indicates public-key encryption of the session key failed for
// a recipient. The whole message is aborted; a message readable by only
// part of its recipient set is a silent downgrade, not a partial success.
var ErrKeyWrap = errors.New("session: encrypting session key failed")

// sessionKeyFrame builds the integer payload wrapped for each recipient:
// cipher algorithm octet, key bytes, 16-bit checksum over the key.
func sessionKeyFrame(d *DEK) []byte {
	frame := make([]byte, 0, len(d.Key)+3)
	frame = append(frame, byte(d.Algo))
	frame = append(frame, d.Key...)

	var sum uint16
	for _, b := range d.Key {
		sum += uint16(b)
	}

	return append(frame, byte(sum>>8), byte(sum))
}

// WrapSessionKey encrypts the session-key frame under one recipient's
// public key, returning the wire integers (one for RSA, two for ElGamal).
func WrapSessionKey(rk *keyring.RecipientKey, d *DEK) ([]*big.Int, error) {
	frame := sessionKeyFrame(d)
	defer wipe(frame)

	switch rk.Algo {
	case packet.PubKeyRSA, packet.PubKeyRSAEncryptOnly:
		if rk.RSA == nil {
			return nil, fmt.Errorf("%w: %q has no RSA key material", ErrKeyWrap, rk.UserID)
		}

		ct, err := rsa.EncryptPKCS1v15(rand.Reader, rk.RSA, frame)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrKeyWrap, rk.UserID, err)
		}

		return []*big.Int{new(big.Int).SetBytes(ct)}, nil

	case packet.PubKeyElGamal:
		if rk.ElGamal == nil {
			return nil, fmt.Errorf("%w: %q has no ElGamal key material", ErrKeyWrap, rk.UserID)
		}

		c1, c2, err := elgamal.Encrypt(rand.Reader, rk.ElGamal, frame)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrKeyWrap, rk.UserID, err)
		}

		return []*big.Int{c1, c2}, nil
	}

	return nil, fmt.Errorf("%w: %q uses unsupported algorithm %s", ErrKeyWrap, rk.UserID, rk.Algo)
}

// WriteEncryptedSessionKeys wraps the key for every recipient in input
// order and emits one session-key packet each. The first failure aborts:
// no packets for later recipients, and the caller discards anything already
// written.
func WriteEncryptedSessionKeys(w io.Writer, recipients []keyring.RecipientKey, d *DEK, throwKeyID, legacy bool) error {
	for i := range recipients {
		rk := &recipients[i]

		wrapped, err := WrapSessionKey(rk, d)
		if err != nil {
			return err
		}

		keyID := rk.KeyID
		if throwKeyID {
			keyID = [8]byte{}
		}

		if err := packet.WritePubKeyESK(w, keyID, rk.Algo, wrapped, legacy); err != nil {
			return err
		}
	}

	return nil
}
