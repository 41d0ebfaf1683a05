package packet

import (
	"fmt"
	"io"
	"math/big"
)

// WriteSymKeyESK emits a version 4 symmetric-key encrypted-session-key
// packet. s2kSpec is the serialized string-to-key specifier; the session key
// itself is not embedded and is re-derived by the reader from the shared
// passphrase.
func WriteSymKeyESK(w io.Writer, cipher CipherAlgo, s2kSpec []byte) error {
	body := make([]byte, 0, 2+len(s2kSpec))
	body = append(body, 4, byte(cipher))
	body = append(body, s2kSpec...)

	if err := writeNewHeader(w, TagSymKeyESK, uint64(len(body))); err != nil {
		return err
	}

	_, err := w.Write(body)

	return err
}

// WritePubKeyESK emits a version 3 public-key encrypted-session-key packet
// addressed to keyID. The wrapped session key arrives as one integer for
// RSA or two for ElGamal. A zero keyID is the "throw key id" wildcard.
func WritePubKeyESK(w io.Writer, keyID [8]byte, algo PublicKeyAlgo, wrapped []*big.Int, legacy bool) error {
	if len(wrapped) == 0 {
		return fmt.Errorf("%w: encrypted session key has no integers", ErrPacketFormat)
	}

	body := make([]byte, 0, 10+len(wrapped)*258)
	body = append(body, 3)
	body = append(body, keyID[:]...)
	body = append(body, byte(algo))

	for _, n := range wrapped {
		var err error

		body, err = appendMPI(body, n)
		if err != nil {
			return err
		}
	}

	var err error
	if legacy {
		err = writeOldHeader(w, TagPubKeyESK, int64(len(body)))
	} else {
		err = writeNewHeader(w, TagPubKeyESK, uint64(len(body)))
	}

	if err != nil {
		return err
	}

	_, err = w.Write(body)

	return err
}

// appendMPI appends a multi-precision integer: a 16-bit big-endian bit
// count followed by the magnitude bytes.
func appendMPI(buf []byte, n *big.Int) ([]byte, error) {
	bits := n.BitLen()
	if bits > 0xFFFF {
		return nil, fmt.Errorf("%w: integer of %d bits overflows the MPI prefix", ErrPacketFormat, bits)
	}

	buf = append(buf, byte(bits>>8), byte(bits))

	return append(buf, n.Bytes()...), nil
}
