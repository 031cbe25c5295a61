package identity

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptarena/arenad/internal/domain"
)

// Well-known throwaway development key.
const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
)

func TestNewWalletDerivesIdentity(t *testing.T) {
	w, err := NewWallet(testKey)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity(testAddress), w.Identity())

	// 0x prefix is accepted too.
	w2, err := NewWallet("0x" + testKey)
	require.NoError(t, err)
	assert.Equal(t, w.Identity(), w2.Identity())

	_, err = NewWallet("not-hex")
	assert.Error(t, err)
}

func TestSignRecoverRoundTrip(t *testing.T) {
	w, err := NewWallet(testKey)
	require.NoError(t, err)

	message := []byte("1756700000\nPOST\n/api/arenas/enter\n{\"slot_index\":0}")
	sig, err := w.Sign(message)
	require.NoError(t, err)

	got, err := Recover(message, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Identity(), got)
}

func TestRecoverRejectsTamperedMessage(t *testing.T) {
	w, err := NewWallet(testKey)
	require.NoError(t, err)

	sig, err := w.Sign([]byte("original message"))
	require.NoError(t, err)

	// A different message recovers a different (or no) identity.
	got, err := Recover([]byte("tampered message"), sig)
	if err == nil {
		assert.NotEqual(t, w.Identity(), got)
	}

	_, err = Recover([]byte("original message"), "0x1234")
	assert.Error(t, err)
}

func TestEncryptDecryptKeyFile(t *testing.T) {
	blob, err := EncryptKey(testKey, "hunter2-but-longer")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2-but-longer")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = DecryptKey(blob, "wrong password")
	assert.Error(t, err)

	_, err = EncryptKey("not-hex", "hunter2-but-longer")
	assert.Error(t, err)
	_, err = EncryptKey(testKey, "")
	assert.Error(t, err)
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey})
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	blob, err := EncryptKey(testKey, "hunter2-but-longer")
	require.NoError(t, err)
	path := t.TempDir() + "/key.json"
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2-but-longer"})
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)
}
