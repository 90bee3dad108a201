package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestKeyStore_LoadOrCreate(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "keys")
	store := NewKeyStore(dir, "jvsan")

	first, err := store.LoadOrCreate()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.PublicKey, "ssh-ed25519 "))
	assert.True(t, strings.HasSuffix(first.PublicKey, " jvsan"))
	assert.True(t, strings.HasPrefix(first.Fingerprint, "SHA256:"))

	info, err := os.Stat(filepath.Join(dir, privateKeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pub, err := os.ReadFile(filepath.Join(dir, publicKeyFile))
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey+"\n", string(pub))

	second, err := store.LoadOrCreate()
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey, second.PublicKey)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	parsed, _, _, _, err := ssh.ParseAuthorizedKey([]byte(second.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, Fingerprint(parsed))
}

func TestKeyStore_CorruptedKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, privateKeyFile), []byte("garbage"), 0o600))

	_, err := NewKeyStore(dir, "").LoadOrCreate()
	assert.Error(t, err)
}
