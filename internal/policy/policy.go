// Package policy negotiates the algorithm choices of a message before any
// byte is emitted: cipher and compression from the intersection of
// recipient preferences, integrity protection as an all-or-nothing
// capability, and the legacy-compatibility downgrade rules.
package policy

import (
	log "github.com/sirupsen/logrus"

	"github.com/pgseal/pgseal/internal/keyring"
	"github.com/pgseal/pgseal/internal/packet"
)

// DefaultCipher is the fallback when the preference intersection is empty.
// That only happens when key-format versions are mixed, since version 4
// keys always advertise this baseline algorithm.
const DefaultCipher = packet.Cipher3DES

// legacyMaxKeyBits is the largest recipient modulus the legacy profile
// accepts.
const legacyMaxKeyBits = 2048

// legacyCiphers is the restricted cipher set of the legacy profile, in
// preference order.
var legacyCiphers = []packet.CipherAlgo{packet.CipherCAST5, packet.Cipher3DES}

// Request is what the caller wants; Decision is what the message gets.
type Request struct {
	// Cipher overrides preference negotiation when non-zero.
	Cipher packet.CipherAlgo

	// Compress enables compression negotiation.
	Compress bool

	// CompressAlgo overrides compression negotiation when non-zero.
	CompressAlgo packet.CompressAlgo

	// Legacy requests the restricted old-reader-compatible profile.
	Legacy bool

	// InputCompressed marks input that probed as an already-compressed
	// format; compression is skipped for it.
	InputCompressed bool
}

// Decision is the resolved algorithm set for one message.
type Decision struct {
	Cipher   packet.CipherAlgo
	Compress packet.CompressAlgo
	UseMDC   bool

	// Legacy reports whether the legacy profile survived its key checks.
	Legacy bool
}

// Resolve negotiates the decision for a public-key message.
func Resolve(req Request, recipients []keyring.RecipientKey) Decision {
	dec := Decision{Legacy: req.Legacy}

	if dec.Legacy {
		dec.Legacy = legacyUsable(recipients)
	}

	dec.Cipher = req.Cipher
	if dec.Cipher == 0 {
		dec.Cipher = selectCipher(recipients)
	}

	if dec.Legacy && !inSet(dec.Cipher, legacyCiphers) {
		dec.Cipher = legacyCiphers[0]
	}

	// A single key without integrity support disables it for the whole
	// message; a partially protected message would be misleading. The
	// legacy profile disables it outright, old readers reject the
	// integrity-protected packet.
	dec.UseMDC = !dec.Legacy
	for i := range recipients {
		if !recipients[i].MDC {
			dec.UseMDC = false

			break
		}
	}

	if req.Compress && !req.InputCompressed && !dec.Legacy {
		dec.Compress = selectCompression(req.CompressAlgo, recipients)
	}

	return dec
}

// ResolveSymmetric negotiates the decision for a passphrase message, which
// has no recipient set to intersect over.
func ResolveSymmetric(req Request) Decision {
	dec := Decision{Legacy: req.Legacy}

	dec.Cipher = req.Cipher
	if dec.Cipher == 0 {
		if dec.Legacy {
			dec.Cipher = legacyCiphers[0]
		} else {
			dec.Cipher = packet.CipherAES128
		}
	}

	// Integrity protection has no recipient veto here; only the legacy
	// profile turns it off.
	dec.UseMDC = !dec.Legacy

	if req.Compress && !req.InputCompressed && !dec.Legacy {
		dec.Compress = req.CompressAlgo
		if dec.Compress == 0 {
			dec.Compress = packet.CompressZIP
		}
	}

	return dec
}

// legacyUsable checks the recipient set against the legacy profile's key
// restrictions. A violation downgrades to a warning: the message is still
// produced, just without the legacy guarantee.
func legacyUsable(recipients []keyring.RecipientKey) bool {
	for i := range recipients {
		rk := &recipients[i]

		isRSA := rk.Algo == packet.PubKeyRSA || rk.Algo == packet.PubKeyRSAEncryptOnly
		if !isRSA || rk.BitLength() > legacyMaxKeyBits {
			log.Warnf("legacy mode supports only RSA keys of %d bits or less", legacyMaxKeyBits)
			log.Warnf("this message may not be usable by legacy readers")

			return false
		}
	}

	return true
}

// selectCipher picks the algorithm most preferred across the intersection
// of all recipients' cipher preferences.
func selectCipher(recipients []keyring.RecipientKey) packet.CipherAlgo {
	lists := make([][]packet.CipherAlgo, 0, len(recipients))

	for i := range recipients {
		prefs := recipients[i].CipherPrefs

		// Version 4 keys carry an implicit baseline preference.
		if recipients[i].Version >= 4 && !inSet(DefaultCipher, prefs) {
			prefs = append(append([]packet.CipherAlgo(nil), prefs...), DefaultCipher)
		}

		lists = append(lists, prefs)
	}

	if best, ok := mostPreferred(lists); ok {
		return best
	}

	return DefaultCipher
}

// selectCompression picks the compression algorithm analogously; an empty
// intersection skips compression entirely.
func selectCompression(override packet.CompressAlgo, recipients []keyring.RecipientKey) packet.CompressAlgo {
	if override != 0 {
		return override
	}

	lists := make([][]packet.CompressAlgo, 0, len(recipients))
	for i := range recipients {
		lists = append(lists, recipients[i].CompressPrefs)
	}

	if best, ok := mostPreferred(lists); ok {
		return best
	}

	return packet.CompressNone
}

// mostPreferred returns the algorithm present in every list with the best
// aggregate rank (sum of positions; ties go to the first list's order).
func mostPreferred[T comparable](lists [][]T) (T, bool) {
	var zero T

	if len(lists) == 0 {
		return zero, false
	}

	bestScore := -1

	var best T

	for _, cand := range lists[0] {
		score := 0
		everywhere := true

		for _, list := range lists {
			pos := indexOf(cand, list)
			if pos < 0 {
				everywhere = false

				break
			}

			score += pos
		}

		if everywhere && (bestScore < 0 || score < bestScore) {
			bestScore = score
			best = cand
		}
	}

	return best, bestScore >= 0
}

func indexOf[T comparable](v T, list []T) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}

	return -1
}

func inSet[T comparable](v T, list []T) bool {
	return indexOf(v, list) >= 0
}
