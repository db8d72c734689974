package ssh

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudlab-agent/internal/testutil/sshtest"
)

func connectedClient(t *testing.T, handler sshtest.Handler) (*Client, *sshtest.Server) {
	t.Helper()

	server := sshtest.NewServer(t, handler)
	keyPath := sshtest.WriteKey(t, t.TempDir(), "id_ed25519", KeyFamilyEd25519, "")
	signer, err := LoadSigner(keyPath, "", KeyFamilyEd25519)
	require.NoError(t, err)

	client := NewClient(SSHConfig{
		Host:     server.Host(),
		Port:     server.Port(),
		Username: "tester",
		Signer:   signer,
		Timeout:  5 * time.Second,
	})
	require.NoError(t, client.Connect())
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

func TestExecuteCommandCapturesStreamsAndStatus(t *testing.T) {
	client, server := connectedClient(t, sshtest.Fixed(map[string]sshtest.Reply{
		"hostname":  {Stdout: "node-1\n"},
		"make test": {Stdout: "compiling\nlinking\r\n", Stderr: "undefined: foo\n", Status: 2},
	}))

	res, err := client.ExecuteCommand(context.Background(), "hostname")
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1"}, res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Equal(t, 0, res.ExitCode)

	res, err = client.ExecuteCommand(context.Background(), "make test")
	require.NoError(t, err, "non-zero exit is data, not an error")
	assert.Equal(t, []string{"compiling", "linking"}, res.Stdout)
	assert.Equal(t, []string{"undefined: foo"}, res.Stderr)
	assert.Equal(t, 2, res.ExitCode)

	assert.Equal(t, []string{"hostname", "make test"}, server.Commands())
}

func TestExecuteCommandContextKillsRemote(t *testing.T) {
	client, _ := connectedClient(t, func(ctx context.Context, cmd string) sshtest.Reply {
		<-ctx.Done()
		return sshtest.Reply{Status: 137}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := client.ExecuteCommand(ctx, "sleep infinity")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, res.ExitCode)
}

func TestExecuteCommandNotConnected(t *testing.T) {
	client := NewClient(SSHConfig{Host: "127.0.0.1", Port: 1})
	_, err := client.ExecuteCommand(context.Background(), "true")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.NewSFTP()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, client.Connected())
}

func TestConnectFailsWithoutServer(t *testing.T) {
	keyPath := sshtest.WriteKey(t, t.TempDir(), "id_ed25519", KeyFamilyEd25519, "")
	signer, err := LoadSigner(keyPath, "", KeyFamilyEd25519)
	require.NoError(t, err)

	client := NewClient(SSHConfig{Host: "127.0.0.1", Port: 1, Username: "u", Signer: signer, Timeout: time.Second})
	require.Error(t, client.Connect())
	assert.False(t, client.Connected())
}

func TestNewSFTPOverExistingConnection(t *testing.T) {
	client, _ := connectedClient(t, sshtest.Fixed(nil))

	sc, err := client.NewSFTP()
	require.NoError(t, err)
	defer sc.Close()

	remote := filepath.Join(t.TempDir(), "greeting.txt")
	f, err := sc.Create(remote)
	require.NoError(t, err)
	_, err = f.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(remote)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestSplitLines(t *testing.T) {
	testCases := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "a", want: []string{"a"}},
		{in: "a\n", want: []string{"a"}},
		{in: "a\r\nb\n", want: []string{"a", "b"}},
		{in: "a\n\nb", want: []string{"a", "", "b"}},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, SplitLines(tc.in), "input %q", tc.in)
	}
}
