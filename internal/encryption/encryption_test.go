package encryption_test

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/elgamal"
	pgp "golang.org/x/crypto/openpgp/packet"

	"github.com/pgseal/pgseal/internal/config"
	"github.com/pgseal/pgseal/internal/encryption"
	"github.com/pgseal/pgseal/internal/keyring"
	"github.com/pgseal/pgseal/internal/packet"
	"github.com/pgseal/pgseal/internal/status"
)

// oakley1Prime is the 768-bit Oakley group 1 modulus, a fixed parameter so
// tests do not spend time generating primes.
const oakley1Prime = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
	"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A63A3620FFFFFFFFFFFFFFFF"

func testPassphrase(pass string) func() ([]byte, error) {
	return func() ([]byte, error) {
		return []byte(pass), nil
	}
}

func symmetricConfig() *config.Config {
	return &config.Config{
		LargeFileThreshold: config.DefaultLargeFileThreshold,
		CompressLevel:      config.DefaultCompressLevel,
	}
}

func newRSARecipient(t *testing.T) (keyring.RecipientKey, openpgp.EntityList) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	created := time.Unix(1700000000, 0)
	pk := pgp.NewRSAPublicKey(created, &priv.PublicKey)

	var keyID [8]byte

	binary.BigEndian.PutUint64(keyID[:], pk.KeyId)

	rk := keyring.RecipientKey{
		UserID:      "alice <alice@example.org>",
		KeyID:       keyID,
		Algo:        packet.PubKeyRSA,
		RSA:         &priv.PublicKey,
		CipherPrefs: []packet.CipherAlgo{packet.CipherAES128, packet.Cipher3DES},
		MDC:         true,
		Version:     4,
	}

	entity := &openpgp.Entity{
		PrimaryKey: pk,
		PrivateKey: pgp.NewRSAPrivateKey(created, priv),
		Identities: map[string]*openpgp.Identity{},
	}

	return rk, openpgp.EntityList{entity}
}

func newElGamalRecipient(t *testing.T) (keyring.RecipientKey, openpgp.EntityList) {
	t.Helper()

	p, ok := new(big.Int).SetString(oakley1Prime, 16)
	require.True(t, ok)

	g := big.NewInt(2)

	x, err := rand.Int(rand.Reader, new(big.Int).Sub(p, big.NewInt(3)))
	require.NoError(t, err)

	x.Add(x, big.NewInt(2))

	priv := &elgamal.PrivateKey{
		PublicKey: elgamal.PublicKey{
			G: g,
			P: p,
			Y: new(big.Int).Exp(g, x, p),
		},
		X: x,
	}

	created := time.Unix(1700000000, 0)
	pk := pgp.NewElGamalPublicKey(created, &priv.PublicKey)

	var keyID [8]byte

	binary.BigEndian.PutUint64(keyID[:], pk.KeyId)

	rk := keyring.RecipientKey{
		UserID:      "bob <bob@example.org>",
		KeyID:       keyID,
		Algo:        packet.PubKeyElGamal,
		ElGamal:     &priv.PublicKey,
		CipherPrefs: []packet.CipherAlgo{packet.CipherAES128, packet.Cipher3DES},
		MDC:         true,
		Version:     4,
	}

	entity := &openpgp.Entity{
		PrimaryKey: pk,
		PrivateKey: pgp.NewElGamalPrivateKey(created, priv),
		Identities: map[string]*openpgp.Identity{},
	}

	return rk, openpgp.EntityList{entity}
}

func decrypt(t *testing.T, message []byte, keys openpgp.EntityList, pass string) *openpgp.MessageDetails {
	t.Helper()

	prompt := openpgp.PromptFunction(nil)
	if pass != "" {
		prompt = func(_ []openpgp.Key, symmetric bool) ([]byte, error) {
			require.True(t, symmetric)

			return []byte(pass), nil
		}
	}

	md, err := openpgp.ReadMessage(bytes.NewReader(message), keys, prompt, nil)
	require.NoError(t, err)

	return md
}

func TestEncryptSymmetricRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := symmetricConfig()

	composer, err := encryption.NewComposer(cfg, testPassphrase("sesame"))
	require.NoError(t, err)

	plaintext := []byte("the magic words are squeamish ossifrage\n")

	var out bytes.Buffer

	src := &encryption.Source{
		Reader:  bytes.NewReader(plaintext),
		Name:    "msg.txt",
		Size:    uint64(len(plaintext)),
		ModTime: time.Unix(1700000000, 0),
	}

	require.NoError(t, composer.EncryptSymmetric(src, &out))

	// version 1 integrity-protected packet after the session-key packet
	assert.Equal(t, byte(0xC3), out.Bytes()[0])

	md := decrypt(t, out.Bytes(), nil, "sesame")

	got, err := io.ReadAll(md.UnverifiedBody)
	require.NoError(t, err)

	assert.Equal(t, plaintext, got)
	assert.Equal(t, "msg.txt", md.LiteralData.FileName)
}

func TestEncryptSymmetricCompressedArmored(t *testing.T) {
	t.Parallel()

	cfg := symmetricConfig()
	cfg.Armor = true
	cfg.Compress = true

	composer, err := encryption.NewComposer(cfg, testPassphrase("sesame"))
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte("compressible text "), 200)

	var out bytes.Buffer

	src := &encryption.Source{
		Reader: bytes.NewReader(plaintext),
		Name:   "big.txt",
		Size:   uint64(len(plaintext)),
	}

	require.NoError(t, composer.EncryptSymmetric(src, &out))

	assert.True(t, bytes.HasPrefix(out.Bytes(), []byte("-----BEGIN PGP MESSAGE-----")))

	block, err := armor.Decode(&out)
	require.NoError(t, err)

	binary, err := io.ReadAll(block.Body)
	require.NoError(t, err)

	md := decrypt(t, binary, nil, "sesame")

	got, err := io.ReadAll(md.UnverifiedBody)
	require.NoError(t, err)

	assert.Equal(t, plaintext, got)
}

func TestEncryptSymmetricSkipsCompressedInput(t *testing.T) {
	t.Parallel()

	cfg := symmetricConfig()
	cfg.Compress = true

	composer, err := encryption.NewComposer(cfg, testPassphrase("sesame"))
	require.NoError(t, err)

	// gzip magic: probed as already compressed
	plaintext := append([]byte{0x1F, 0x8B, 0x08}, bytes.Repeat([]byte{0xA5}, 100)...)

	var out bytes.Buffer

	src := &encryption.Source{
		Reader: bytes.NewReader(plaintext),
		Name:   "data.gz",
		Size:   uint64(len(plaintext)),
	}

	require.NoError(t, composer.EncryptSymmetric(src, &out))

	md := decrypt(t, out.Bytes(), nil, "sesame")

	got, err := io.ReadAll(md.UnverifiedBody)
	require.NoError(t, err)

	assert.Equal(t, plaintext, got)
}

func TestEncryptSymmetricLegacy(t *testing.T) {
	t.Parallel()

	// 200 data octets push the literal body past 191, where the declared
	// cipher length has to follow the old-format header sizes rather than
	// the new-format ones.
	tests := []struct {
		name string
		size int
	}{
		{"short", 8},
		{"one_octet_length_boundary", 200},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := symmetricConfig()
			cfg.Legacy = true

			composer, err := encryption.NewComposer(cfg, testPassphrase("sesame"))
			require.NoError(t, err)

			plaintext := make([]byte, tc.size)
			_, err = rand.Read(plaintext)
			require.NoError(t, err)

			var out bytes.Buffer

			src := &encryption.Source{
				Reader: bytes.NewReader(plaintext),
				Name:   "old.txt",
				Size:   uint64(len(plaintext)),
			}

			require.NoError(t, composer.EncryptSymmetric(src, &out))

			raw := out.Bytes()

			// no session-key packet, old-format encrypted-data header
			// with a one-octet length that covers the whole body
			require.Equal(t, byte(0xA4), raw[0])
			require.Equal(t, int(raw[1]), len(raw)-2)

			// the key is the old single-pass digest of the passphrase
			key := md5.Sum([]byte("sesame"))

			block, err := packet.CipherCAST5.New(key[:])
			require.NoError(t, err)

			body := raw[2:]
			stream := pgp.NewOCFBDecrypter(block, body[:block.BlockSize()+2], pgp.OCFBResync)
			require.NotNil(t, stream)

			inner := make([]byte, len(body)-block.BlockSize()-2)
			stream.XORKeyStream(inner, body[block.BlockSize()+2:])

			parsed, err := pgp.Read(bytes.NewReader(inner))
			require.NoError(t, err)

			literal, ok := parsed.(*pgp.LiteralData)
			require.True(t, ok)

			got, err := io.ReadAll(literal.Body)
			require.NoError(t, err)

			assert.Equal(t, plaintext, got)
			assert.Equal(t, "old.txt", literal.FileName)
		})
	}
}

func TestEncryptToRoundTrip(t *testing.T) {
	t.Parallel()

	rsaKey, rsaEntities := newRSARecipient(t)
	elgKey, elgEntities := newElGamalRecipient(t)

	cfg := symmetricConfig()

	composer, err := encryption.NewComposer(cfg, nil)
	require.NoError(t, err)

	plaintext := []byte("to whom it may concern\n")

	var out bytes.Buffer

	src := &encryption.Source{
		Reader: bytes.NewReader(plaintext),
		Name:   "letter.txt",
		Size:   uint64(len(plaintext)),
	}

	require.NoError(t, composer.EncryptTo(src, &out, []keyring.RecipientKey{rsaKey, elgKey}))

	// either recipient alone can read the message
	for name, keys := range map[string]openpgp.EntityList{
		"rsa":     rsaEntities,
		"elgamal": elgEntities,
	} {
		md := decrypt(t, out.Bytes(), keys, "")

		got, err := io.ReadAll(md.UnverifiedBody)
		require.NoError(t, err, name)
		assert.Equal(t, plaintext, got, name)
	}
}

func TestEncryptToTextMode(t *testing.T) {
	t.Parallel()

	rsaKey, rsaEntities := newRSARecipient(t)

	cfg := symmetricConfig()
	cfg.TextMode = true

	composer, err := encryption.NewComposer(cfg, nil)
	require.NoError(t, err)

	var out bytes.Buffer

	src := &encryption.Source{
		Reader: bytes.NewReader([]byte("line one\nline two\n")),
		Name:   "notes.txt",
		Size:   18,
	}

	require.NoError(t, composer.EncryptTo(src, &out, []keyring.RecipientKey{rsaKey}))

	md := decrypt(t, out.Bytes(), rsaEntities, "")

	got, err := io.ReadAll(md.UnverifiedBody)
	require.NoError(t, err)

	assert.Equal(t, []byte("line one\r\nline two\r\n"), got)
	assert.False(t, md.LiteralData.IsBinary)
}

func TestEncryptToAbortsOnBadRecipient(t *testing.T) {
	t.Parallel()

	good, _ := newRSARecipient(t)

	bad := keyring.RecipientKey{
		UserID: "broken",
		Algo:   packet.PubKeyRSA,
		// no key material
		MDC:     true,
		Version: 4,
	}

	cfg := symmetricConfig()

	composer, err := encryption.NewComposer(cfg, nil)
	require.NoError(t, err)

	var out bytes.Buffer

	src := &encryption.Source{
		Reader: bytes.NewReader([]byte("secret")),
		Name:   "s.txt",
		Size:   6,
	}

	err = composer.EncryptTo(src, &out, []keyring.RecipientKey{bad, good})
	require.Error(t, err)

	// headers are deferred until the first ciphertext byte, so a failed
	// recipient leaves nothing behind
	assert.Zero(t, out.Len())
}

func TestEncryptStore(t *testing.T) {
	t.Parallel()

	cfg := symmetricConfig()

	composer, err := encryption.NewComposer(cfg, nil)
	require.NoError(t, err)

	plaintext := []byte("stored, not sealed")

	var out bytes.Buffer

	src := &encryption.Source{
		Reader: bytes.NewReader(plaintext),
		Name:   "plain.txt",
		Size:   uint64(len(plaintext)),
	}

	require.NoError(t, composer.EncryptStore(src, &out))

	parsed, err := pgp.Read(&out)
	require.NoError(t, err)

	literal, ok := parsed.(*pgp.LiteralData)
	require.True(t, ok)

	got, err := io.ReadAll(literal.Body)
	require.NoError(t, err)

	assert.Equal(t, plaintext, got)
	assert.Equal(t, "plain.txt", literal.FileName)
}

func TestEncryptStoreLengthFraming(t *testing.T) {
	t.Parallel()

	plaintext := bytes.Repeat([]byte{0x42}, 10000)

	src := func() *encryption.Source {
		return &encryption.Source{
			Reader: bytes.NewReader(plaintext),
			Name:   "big.bin",
			Size:   uint64(len(plaintext)),
		}
	}

	t.Run("below threshold declares length", func(t *testing.T) {
		t.Parallel()

		cfg := symmetricConfig()

		composer, err := encryption.NewComposer(cfg, nil)
		require.NoError(t, err)

		var out bytes.Buffer

		require.NoError(t, composer.EncryptStore(src(), &out))

		raw := out.Bytes()
		require.Equal(t, byte(0xCB), raw[0])
		assert.Equal(t, byte(0xFF), raw[1]) // five-octet definite length
	})

	t.Run("above threshold streams", func(t *testing.T) {
		t.Parallel()

		cfg := symmetricConfig()
		cfg.LargeFileThreshold = 100

		composer, err := encryption.NewComposer(cfg, nil)
		require.NoError(t, err)

		var out bytes.Buffer

		require.NoError(t, composer.EncryptStore(src(), &out))

		raw := out.Bytes()
		require.Equal(t, byte(0xCB), raw[0])
		assert.Equal(t, byte(224+13), raw[1]) // 8 KiB partial chunk
	})

	t.Run("at threshold streams", func(t *testing.T) {
		t.Parallel()

		cfg := symmetricConfig()
		cfg.LargeFileThreshold = uint64(len(plaintext))

		composer, err := encryption.NewComposer(cfg, nil)
		require.NoError(t, err)

		var out bytes.Buffer

		require.NoError(t, composer.EncryptStore(src(), &out))

		raw := out.Bytes()
		require.Equal(t, byte(0xCB), raw[0])
		assert.Equal(t, byte(224+13), raw[1], "the threshold itself is streamed, not declared")
	})
}

func TestProcessFiles(t *testing.T) {
	dir := t.TempDir()

	inPath := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(inPath, []byte("file contents\n"), 0o600))

	cfg := symmetricConfig()
	cfg.Suffix = ".pgp"
	cfg.Files = []string{inPath}

	processor, err := encryption.NewProcessor(
		cfg, encryption.ModeSymmetric, nil, testPassphrase("sesame"), status.Nop{})
	require.NoError(t, err)

	processed, errored, totalSize, err := processor.ProcessFiles()
	require.NoError(t, err)

	assert.Equal(t, 1, processed)
	assert.Zero(t, errored)
	assert.Positive(t, totalSize)

	message, err := os.ReadFile(inPath + ".pgp")
	require.NoError(t, err)

	md := decrypt(t, message, nil, "sesame")

	got, err := io.ReadAll(md.UnverifiedBody)
	require.NoError(t, err)

	assert.Equal(t, []byte("file contents\n"), got)
}

func TestProcessFilesReportsMissingInput(t *testing.T) {
	dir := t.TempDir()

	cfg := symmetricConfig()
	cfg.Suffix = ".pgp"
	cfg.Files = []string{filepath.Join(dir, "absent.txt")}

	processor, err := encryption.NewProcessor(
		cfg, encryption.ModeSymmetric, nil, testPassphrase("sesame"), status.Nop{})
	require.NoError(t, err)

	processed, errored, _, err := processor.ProcessFiles()
	require.Error(t, err)

	assert.Zero(t, processed)
	assert.Equal(t, 1, errored)
	assert.ErrorIs(t, err, encryption.ErrOpenFailure)
}
