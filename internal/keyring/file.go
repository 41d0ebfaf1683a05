package keyring

import (
	"crypto/rsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
	"golang.org/x/crypto/openpgp/elgamal"

	"github.com/pgseal/pgseal/internal/packet"
)

// fileKey is the JSONC representation of one public key.
type fileKey struct {
	UserID        string   `json:"user_id"`
	KeyID         string   `json:"key_id"`
	Algo          string   `json:"algo"`
	RSAModulus    string   `json:"rsa_n,omitempty"`
	RSAExponent   int      `json:"rsa_e,omitempty"`
	ElGamalPrime  string   `json:"elg_p,omitempty"`
	ElGamalGen    string   `json:"elg_g,omitempty"`
	ElGamalPublic string   `json:"elg_y,omitempty"`
	CipherPrefs   []string `json:"cipher_prefs,omitempty"`
	CompressPrefs []string `json:"compress_prefs,omitempty"`
	MDC           bool     `json:"mdc"`
	Version       int      `json:"version,omitempty"`
}

// FileKeyring is a keyring loaded from a JSONC file. It resolves recipients
// by exact or substring match on the stored user id, or by hex key id.
type FileKeyring struct {
	keys []RecipientKey
}

// LoadFile reads a JSONC keyring file.
func LoadFile(path string) (*FileKeyring, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from user-supplied config
	if err != nil {
		return nil, fmt.Errorf("reading keyring %q: %w", path, err)
	}

	clean := jsonc.ToJSONInPlace(data)

	var entries []fileKey
	if err := json.Unmarshal(clean, &entries); err != nil {
		return nil, fmt.Errorf("parsing keyring %q: %w", path, err)
	}

	ring := &FileKeyring{keys: make([]RecipientKey, 0, len(entries))}

	for i := range entries {
		key, err := entries[i].toRecipientKey()
		if err != nil {
			return nil, fmt.Errorf("keyring %q entry %d: %w", path, i, err)
		}

		ring.keys = append(ring.keys, key)
	}

	return ring, nil
}

// NewStatic wraps an in-memory key set, preserving order. Used by tests and
// embedding callers that resolve keys elsewhere.
func NewStatic(keys []RecipientKey) *FileKeyring {
	return &FileKeyring{keys: keys}
}

// LookupEncryptionKeys resolves ids in input order. Each id must match
// exactly one encryption-capable key.
func (r *FileKeyring) LookupEncryptionKeys(ids []string) ([]RecipientKey, error) {
	out := make([]RecipientKey, 0, len(ids))

	for _, id := range ids {
		key, err := r.lookup(id)
		if err != nil {
			return nil, err
		}

		out = append(out, *key)
	}

	return out, nil
}

func (r *FileKeyring) lookup(id string) (*RecipientKey, error) {
	var found *RecipientKey

	for i := range r.keys {
		if !matches(&r.keys[i], id) {
			continue
		}

		if found != nil {
			return nil, fmt.Errorf("%w: %q", ErrAmbiguousKey, id)
		}

		found = &r.keys[i]
	}

	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoPublicKey, id)
	}

	if err := found.Validate(); err != nil {
		return nil, err
	}

	return found, nil
}

func matches(k *RecipientKey, id string) bool {
	if strings.EqualFold(hex.EncodeToString(k.KeyID[:]), strings.TrimPrefix(strings.ToLower(id), "0x")) {
		return true
	}

	return strings.Contains(strings.ToLower(k.UserID), strings.ToLower(id))
}

func (e *fileKey) toRecipientKey() (RecipientKey, error) {
	key := RecipientKey{
		UserID:  e.UserID,
		MDC:     e.MDC,
		Version: e.Version,
	}

	if key.Version == 0 {
		key.Version = 4
	}

	id, err := hex.DecodeString(e.KeyID)
	if err != nil || len(id) != 8 {
		return key, fmt.Errorf("key id %q must be 16 hex digits", e.KeyID)
	}

	copy(key.KeyID[:], id)

	switch strings.ToLower(e.Algo) {
	case "rsa":
		key.Algo = packet.PubKeyRSA

		n, err := parseHexInt(e.RSAModulus)
		if err != nil {
			return key, fmt.Errorf("rsa modulus: %w", err)
		}

		exp := e.RSAExponent
		if exp == 0 {
			exp = 65537
		}

		key.RSA = &rsa.PublicKey{N: n, E: exp}
	case "elgamal", "elg":
		key.Algo = packet.PubKeyElGamal

		p, err := parseHexInt(e.ElGamalPrime)
		if err != nil {
			return key, fmt.Errorf("elgamal prime: %w", err)
		}

		g, err := parseHexInt(e.ElGamalGen)
		if err != nil {
			return key, fmt.Errorf("elgamal generator: %w", err)
		}

		y, err := parseHexInt(e.ElGamalPublic)
		if err != nil {
			return key, fmt.Errorf("elgamal public value: %w", err)
		}

		key.ElGamal = &elgamal.PublicKey{P: p, G: g, Y: y}
	default:
		return key, fmt.Errorf("%w: algorithm %q", ErrUnusableKey, e.Algo)
	}

	for _, name := range e.CipherPrefs {
		algo, err := packet.ParseCipherAlgo(name)
		if err != nil {
			return key, err
		}

		key.CipherPrefs = append(key.CipherPrefs, algo)
	}

	for _, name := range e.CompressPrefs {
		algo, err := packet.ParseCompressAlgo(name)
		if err != nil {
			return key, err
		}

		key.CompressPrefs = append(key.CompressPrefs, algo)
	}

	return key, nil
}

func parseHexInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing value")
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}

	return new(big.Int).SetBytes(b), nil
}
