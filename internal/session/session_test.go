package session_test

import (
	"bytes"
	"crypto/md5" //nolint:gosec // verifying the legacy derivation
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/openpgp/s2k"

	"github.com/pgseal/pgseal/internal/keyring"
	"github.com/pgseal/pgseal/internal/packet"
	"github.com/pgseal/pgseal/internal/session"
)

func TestNewRandomDEK(t *testing.T) {
	t.Parallel()

	dek, err := session.NewRandomDEK(packet.CipherAES256, true)
	require.NoError(t, err)

	assert.Len(t, dek.Key, 32)
	assert.True(t, dek.UseMDC)
	assert.NotEqual(t, make([]byte, 32), dek.Key, "key must not be all zeros")

	other, err := session.NewRandomDEK(packet.CipherAES256, true)
	require.NoError(t, err)
	assert.NotEqual(t, dek.Key, other.Key, "keys must differ per message")
}

func TestDEKWipe(t *testing.T) {
	t.Parallel()

	dek, err := session.NewRandomDEK(packet.CipherCAST5, false)
	require.NoError(t, err)

	held := dek.Key
	dek.Wipe()

	assert.Equal(t, make([]byte, 16), held, "wipe must zero the backing array")

	dek.Wipe() // idempotent
}

func TestPassphraseDEKDerivesParseableSpec(t *testing.T) {
	t.Parallel()

	pass := []byte("correct horse")
	acquire := func() ([]byte, error) {
		return append([]byte(nil), pass...), nil
	}

	dek, spec, err := session.PassphraseDEK(acquire, packet.CipherAES128, session.S2KConfig{})
	require.NoError(t, err)
	require.Len(t, dek.Key, 16)
	require.NotEmpty(t, spec)

	// The serialized specifier must re-derive the same key, which is
	// exactly what a decrypting reader does with the session-key packet.
	derive, err := s2k.Parse(bytes.NewReader(spec))
	require.NoError(t, err)

	check := make([]byte, 16)
	derive(check, pass)

	assert.Equal(t, dek.Key, check)
}

func TestPassphraseDEKLegacySimple(t *testing.T) {
	t.Parallel()

	acquire := func() ([]byte, error) { return []byte("secret"), nil }

	dek, spec, err := session.PassphraseDEK(acquire, packet.CipherCAST5, session.S2KConfig{Legacy: true})
	require.NoError(t, err)
	assert.Nil(t, spec, "legacy messages carry no session-key packet")

	want := md5.Sum([]byte("secret")) //nolint:gosec // legacy derivation under test
	assert.Equal(t, want[:], dek.Key)
}

func TestPassphraseDEKFailures(t *testing.T) {
	t.Parallel()

	_, _, err := session.PassphraseDEK(func() ([]byte, error) {
		return nil, errors.New("cancelled")
	}, packet.CipherAES128, session.S2KConfig{})
	assert.ErrorIs(t, err, session.ErrPassphrase)

	_, _, err = session.PassphraseDEK(func() ([]byte, error) {
		return []byte{}, nil
	}, packet.CipherAES128, session.S2KConfig{})
	assert.ErrorIs(t, err, session.ErrPassphrase)
}

func testRecipient(t *testing.T, uid string) keyring.RecipientKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	return keyring.RecipientKey{
		UserID:  uid,
		KeyID:   [8]byte{0xAA, 1, 2, 3, 4, 5, 6, byte(len(uid))},
		Algo:    packet.PubKeyRSA,
		RSA:     &key.PublicKey,
		Version: 4,
		MDC:     true,
	}
}

func TestWrapSessionKeyRSA(t *testing.T) {
	t.Parallel()

	rk := testRecipient(t, "alice")

	dek, err := session.NewRandomDEK(packet.CipherAES128, true)
	require.NoError(t, err)

	wrapped, err := session.WrapSessionKey(&rk, dek)
	require.NoError(t, err)
	require.Len(t, wrapped, 1)

	// The wrapped integer is bounded by the modulus.
	assert.Less(t, wrapped[0].BitLen(), 1025)
	assert.Greater(t, wrapped[0].BitLen(), 0)
}

func TestWriteEncryptedSessionKeysAbortsOnFirstFailure(t *testing.T) {
	t.Parallel()

	good := testRecipient(t, "alice")
	bad := testRecipient(t, "mallory")
	bad.RSA = nil // wrap must fail for this recipient

	dek, err := session.NewRandomDEK(packet.CipherAES128, true)
	require.NoError(t, err)

	var buf bytes.Buffer

	err = session.WriteEncryptedSessionKeys(
		&buf, []keyring.RecipientKey{bad, good}, dek, false, false)
	require.ErrorIs(t, err, session.ErrKeyWrap)
	assert.Zero(t, buf.Len(), "failing first recipient must produce no output at all")

	err = session.WriteEncryptedSessionKeys(
		&buf, []keyring.RecipientKey{good, bad}, dek, false, false)
	require.ErrorIs(t, err, session.ErrKeyWrap)
}

func TestWriteEncryptedSessionKeysThrowKeyID(t *testing.T) {
	t.Parallel()

	rk := testRecipient(t, "alice")

	dek, err := session.NewRandomDEK(packet.CipherAES128, true)
	require.NoError(t, err)

	var buf bytes.Buffer

	require.NoError(t, session.WriteEncryptedSessionKeys(
		&buf, []keyring.RecipientKey{rk}, dek, true, false))

	out := buf.Bytes()
	require.Greater(t, len(out), 12)

	// version octet then the zeroed key id.
	assert.Equal(t, byte(3), out[2])
	assert.Equal(t, make([]byte, 8), out[3:11])
}
