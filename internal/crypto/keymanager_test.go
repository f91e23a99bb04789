package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptCredentials(t *testing.T) {
	creds := Credentials{APIKey: "ak", SecretKey: "sk", Passphrase: "pp"}

	blob, err := EncryptCredentials(creds, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "sk")

	got, err := DecryptCredentials(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, creds, got)

	_, err = DecryptCredentials(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptCredentialsRequiresInputs(t *testing.T) {
	_, err := EncryptCredentials(Credentials{APIKey: "ak", SecretKey: "sk"}, "")
	assert.Error(t, err)

	_, err = EncryptCredentials(Credentials{APIKey: "ak"}, "pw")
	assert.Error(t, err)
}

func TestLoadCredentials(t *testing.T) {
	t.Run("raw wins", func(t *testing.T) {
		raw := Credentials{APIKey: "ak", SecretKey: "sk"}
		got, err := LoadCredentials(CredentialSource{Raw: raw, EncryptedPath: "/nonexistent"})
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	})

	t.Run("encrypted file", func(t *testing.T) {
		creds := Credentials{APIKey: "ak", SecretKey: "sk", Passphrase: "pp"}
		blob, err := EncryptCredentials(creds, "pw")
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "creds.json")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		got, err := LoadCredentials(CredentialSource{EncryptedPath: path, Password: "pw"})
		require.NoError(t, err)
		assert.Equal(t, creds, got)
	})

	t.Run("nothing configured", func(t *testing.T) {
		got, err := LoadCredentials(CredentialSource{})
		require.NoError(t, err)
		assert.True(t, got.Empty())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCredentials(CredentialSource{EncryptedPath: filepath.Join(t.TempDir(), "nope"), Password: "pw"})
		assert.Error(t, err)
	})
}
