package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// ErrNotConnected is returned by every operation on a client whose Connect
// never succeeded.
var ErrNotConnected = errors.New("ssh connection not established")

type SSHConfig struct {
	Host     string
	Port     int
	Username string
	Signer   ssh.Signer
	Timeout  time.Duration
	// HostKeyCallback defaults to ssh.InsecureIgnoreHostKey when nil.
	HostKeyCallback ssh.HostKeyCallback
}

type Client struct {
	config SSHConfig
	conn   *ssh.Client
}

type CommandResult struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
}

func NewClient(config SSHConfig) *Client {
	return &Client{
		config: config,
	}
}

func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

func (c *Client) Connect() error {
	if c.config.Signer == nil {
		return fmt.Errorf("no signer configured for %s", c.Addr())
	}

	callback := c.config.HostKeyCallback
	if callback == nil {
		callback = ssh.InsecureIgnoreHostKey()
	}

	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	config := &ssh.ClientConfig{
		User:            c.config.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.config.Signer)},
		Timeout:         timeout,
		HostKeyCallback: callback,
	}

	conn, err := ssh.Dial("tcp", c.Addr(), config)
	if err != nil {
		return fmt.Errorf("ssh dial %s: %w", c.Addr(), err)
	}

	c.conn = conn
	return nil
}

func (c *Client) Connected() bool {
	return c.conn != nil
}

// ExecuteCommand runs cmd in a fresh session and waits for it to exit. A
// non-zero exit status is reported in the result, not as an error; errors are
// reserved for transport problems and context expiry. When ctx is done before
// the command exits the remote process is killed and ctx.Err is returned
// along with whatever output was captured.
func (c *Client) ExecuteCommand(ctx context.Context, cmd string) (*CommandResult, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	if err := session.Start(cmd); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		return &CommandResult{
			Stdout:   SplitLines(stdoutBuf.String()),
			Stderr:   SplitLines(stderrBuf.String()),
			ExitCode: -1,
		}, ctx.Err()
	}

	result := &CommandResult{
		Stdout: SplitLines(stdoutBuf.String()),
		Stderr: SplitLines(stderrBuf.String()),
	}

	if waitErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("wait for command: %w", waitErr)
	}

	return result, nil
}

// NewSFTP opens an SFTP subsystem on the existing connection. Callers own the
// returned client and must close it.
func (c *Client) NewSFTP() (*sftp.Client, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	client, err := sftp.NewClient(c.conn)
	if err != nil {
		return nil, fmt.Errorf("open sftp channel: %w", err)
	}
	return client, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// SplitLines breaks captured output into lines without their terminators.
// A trailing newline does not produce an empty final line.
func SplitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
