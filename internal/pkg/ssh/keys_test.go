package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"cloudlab-agent/internal/testutil/sshtest"
)

func TestLoadSigner(t *testing.T) {
	dir := t.TempDir()
	edPath := sshtest.WriteKey(t, dir, "id_ed25519", "ed25519", "")
	rsaPath := sshtest.WriteKey(t, dir, "id_rsa", "rsa", "")
	lockedPath := sshtest.WriteKey(t, dir, "id_ed25519_locked", "ed25519", "s3cret")

	signer, err := LoadSigner(edPath, "", KeyFamilyEd25519)
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())

	signer, err = LoadSigner(rsaPath, "", KeyFamilyRSA)
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoRSA, signer.PublicKey().Type())

	// passphrase is ignored for unencrypted keys
	_, err = LoadSigner(edPath, "unused", KeyFamilyEd25519)
	require.NoError(t, err)

	_, err = LoadSigner(lockedPath, "s3cret", KeyFamilyEd25519)
	require.NoError(t, err)

	_, err = LoadSigner(lockedPath, "", KeyFamilyEd25519)
	assert.ErrorContains(t, err, "no passphrase")

	_, err = LoadSigner(edPath, "", KeyFamilyRSA)
	assert.ErrorContains(t, err, "expected ssh-rsa")

	_, err = LoadSigner(edPath, "", "dsa")
	assert.ErrorContains(t, err, "unsupported key family")

	_, err = LoadSigner(filepath.Join(dir, "missing"), "", KeyFamilyEd25519)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func TestHostKeyStoreAcceptsAndRemembers(t *testing.T) {
	store, err := NewHostKeyStore("")
	require.NoError(t, err)
	cb := store.Callback()
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 22}

	first := newHostKey(t)
	require.NoError(t, cb("node-1:22", addr, first))
	require.NoError(t, cb("node-1:22", addr, first))

	err = cb("node-1:22", addr, newHostKey(t))
	assert.ErrorContains(t, err, "changed")

	require.NoError(t, cb("node-2:22", addr, newHostKey(t)))
}

func TestHostKeyStorePersistsToKnownHosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "known_hosts")
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 22}
	key := newHostKey(t)

	store, err := NewHostKeyStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Callback()("node-1:22", addr, key))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "node-1")

	reloaded, err := NewHostKeyStore(path)
	require.NoError(t, err)
	require.NoError(t, reloaded.Callback()("node-1:22", addr, key))
	assert.Error(t, reloaded.Callback()("node-1:22", addr, newHostKey(t)))
}
