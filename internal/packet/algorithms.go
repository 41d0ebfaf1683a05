package packet

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"fmt"
	"strings"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/cast5"
)

// CipherAlgo is an OpenPGP symmetric cipher algorithm id.
type CipherAlgo uint8

const (
	Cipher3DES     CipherAlgo = 2
	CipherCAST5    CipherAlgo = 3
	CipherBlowfish CipherAlgo = 4
	CipherAES128   CipherAlgo = 7
	CipherAES192   CipherAlgo = 8
	CipherAES256   CipherAlgo = 9
)

// KeySize returns the key length in bytes, or 0 for an unknown algorithm.
func (a CipherAlgo) KeySize() int {
	switch a {
	case Cipher3DES:
		return 24
	case CipherCAST5, CipherBlowfish, CipherAES128:
		return 16
	case CipherAES192:
		return 24
	case CipherAES256:
		return 32
	}

	return 0
}

// BlockSize returns the cipher block length in bytes, or 0 for an unknown algorithm.
func (a CipherAlgo) BlockSize() int {
	switch a {
	case Cipher3DES, CipherCAST5, CipherBlowfish:
		return 8
	case CipherAES128, CipherAES192, CipherAES256:
		return 16
	}

	return 0
}

// New constructs the block cipher for the algorithm with the given key.
func (a CipherAlgo) New(key []byte) (cipher.Block, error) {
	if len(key) != a.KeySize() {
		return nil, fmt.Errorf("%w: %s requires a %d-byte key, got %d",
			ErrPacketFormat, a, a.KeySize(), len(key))
	}

	switch a {
	case Cipher3DES:
		return des.NewTripleDESCipher(key) //nolint:gosec // algorithm id 2 of the wire format
	case CipherCAST5:
		return cast5.NewCipher(key)
	case CipherBlowfish:
		return blowfish.NewCipher(key)
	case CipherAES128, CipherAES192, CipherAES256:
		return aes.NewCipher(key)
	}

	return nil, fmt.Errorf("%w: unknown cipher algorithm %d", ErrPacketFormat, uint8(a))
}

func (a CipherAlgo) String() string {
	switch a {
	case Cipher3DES:
		return "3DES"
	case CipherCAST5:
		return "CAST5"
	case CipherBlowfish:
		return "BLOWFISH"
	case CipherAES128:
		return "AES128"
	case CipherAES192:
		return "AES192"
	case CipherAES256:
		return "AES256"
	}

	return fmt.Sprintf("CIPHER%d", uint8(a))
}

// ParseCipherAlgo maps a user-supplied cipher name to its algorithm id.
func ParseCipherAlgo(name string) (CipherAlgo, error) {
	switch strings.ToUpper(name) {
	case "3DES", "TRIPLEDES":
		return Cipher3DES, nil
	case "CAST5":
		return CipherCAST5, nil
	case "BLOWFISH":
		return CipherBlowfish, nil
	case "AES", "AES128":
		return CipherAES128, nil
	case "AES192":
		return CipherAES192, nil
	case "AES256":
		return CipherAES256, nil
	}

	return 0, fmt.Errorf("unknown cipher algorithm %q", name)
}

// HashAlgo is an OpenPGP digest algorithm id.
type HashAlgo uint8

const (
	HashMD5    HashAlgo = 1
	HashSHA1   HashAlgo = 2
	HashSHA256 HashAlgo = 8
	HashSHA384 HashAlgo = 9
	HashSHA512 HashAlgo = 10
)

// CryptoHash maps the id to the stdlib hash registry.
func (h HashAlgo) CryptoHash() (crypto.Hash, error) {
	switch h {
	case HashMD5:
		return crypto.MD5, nil
	case HashSHA1:
		return crypto.SHA1, nil
	case HashSHA256:
		return crypto.SHA256, nil
	case HashSHA384:
		return crypto.SHA384, nil
	case HashSHA512:
		return crypto.SHA512, nil
	}

	return 0, fmt.Errorf("unknown digest algorithm %d", uint8(h))
}

func (h HashAlgo) String() string {
	switch h {
	case HashMD5:
		return "MD5"
	case HashSHA1:
		return "SHA1"
	case HashSHA256:
		return "SHA256"
	case HashSHA384:
		return "SHA384"
	case HashSHA512:
		return "SHA512"
	}

	return fmt.Sprintf("HASH%d", uint8(h))
}

// ParseHashAlgo maps a user-supplied digest name to its algorithm id.
func ParseHashAlgo(name string) (HashAlgo, error) {
	switch strings.ToUpper(name) {
	case "MD5":
		return HashMD5, nil
	case "SHA1", "SHA-1":
		return HashSHA1, nil
	case "SHA256", "SHA-256":
		return HashSHA256, nil
	case "SHA384", "SHA-384":
		return HashSHA384, nil
	case "SHA512", "SHA-512":
		return HashSHA512, nil
	}

	return 0, fmt.Errorf("unknown digest algorithm %q", name)
}

// CompressAlgo is an OpenPGP compression algorithm id.
type CompressAlgo uint8

const (
	CompressNone CompressAlgo = 0
	CompressZIP  CompressAlgo = 1
	CompressZLIB CompressAlgo = 2
)

func (a CompressAlgo) String() string {
	switch a {
	case CompressNone:
		return "NONE"
	case CompressZIP:
		return "ZIP"
	case CompressZLIB:
		return "ZLIB"
	}

	return fmt.Sprintf("COMPRESS%d", uint8(a))
}

// ParseCompressAlgo maps a user-supplied compression name to its algorithm id.
func ParseCompressAlgo(name string) (CompressAlgo, error) {
	switch strings.ToUpper(name) {
	case "NONE", "UNCOMPRESSED":
		return CompressNone, nil
	case "ZIP":
		return CompressZIP, nil
	case "ZLIB":
		return CompressZLIB, nil
	}

	return 0, fmt.Errorf("unknown compression algorithm %q", name)
}

// PublicKeyAlgo is an OpenPGP public-key algorithm id.
type PublicKeyAlgo uint8

const (
	PubKeyRSA            PublicKeyAlgo = 1
	PubKeyRSAEncryptOnly PublicKeyAlgo = 2
	PubKeyElGamal        PublicKeyAlgo = 16
)

// CanEncrypt reports whether the algorithm supports encryption.
func (a PublicKeyAlgo) CanEncrypt() bool {
	switch a {
	case PubKeyRSA, PubKeyRSAEncryptOnly, PubKeyElGamal:
		return true
	}

	return false
}

func (a PublicKeyAlgo) String() string {
	switch a {
	case PubKeyRSA, PubKeyRSAEncryptOnly:
		return "RSA"
	case PubKeyElGamal:
		return "ELG-E"
	}

	return fmt.Sprintf("PUBKEY%d", uint8(a))
}
