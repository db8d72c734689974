package sshtest

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Reply is what a fake remote command produces.
type Reply struct {
	Stdout string
	Stderr string
	Status int
}

// Handler answers one exec request. ctx is cancelled when the client sends a
// signal or closes the channel.
type Handler func(ctx context.Context, cmd string) Reply

// Server is a minimal SSH server accepting any public key. It serves exec
// requests through a Handler and the sftp subsystem on the local filesystem.
type Server struct {
	listener net.Listener
	config   *ssh.ServerConfig
	handler  Handler

	mu          sync.Mutex
	commands    []string
	inflight    int
	maxInflight int
}

func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{listener: listener, config: config, handler: handler}
	go s.acceptLoop()
	t.Cleanup(func() { _ = listener.Close() })
	return s
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Commands returns every exec request received so far.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// MaxInflight is the highest number of commands that ran at the same time.
func (s *Server) MaxInflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInflight
}

func (s *Server) acceptLoop() {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serveConn(nc)
	}
}

func (s *Server) serveConn(nc net.Conn) {
	_, chans, reqs, err := ssh.NewServerConn(nc, s.config)
	if err != nil {
		_ = nc.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ch, requests)
	}
}

func (s *Server) serveSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			go s.exec(ctx, ch, payload.Command)
		case "signal":
			cancel()
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			go serveSFTP(ch)
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *Server) exec(ctx context.Context, ch ssh.Channel, cmd string) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.inflight++
	if s.inflight > s.maxInflight {
		s.maxInflight = s.inflight
	}
	s.mu.Unlock()

	reply := s.handler(ctx, cmd)

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()

	_, _ = io.WriteString(ch, reply.Stdout)
	_, _ = io.WriteString(ch.Stderr(), reply.Stderr)
	status := struct{ Status uint32 }{uint32(reply.Status)}
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
	_ = ch.Close()
}

func serveSFTP(ch ssh.Channel) {
	server, err := sftp.NewServer(ch)
	if err != nil {
		_ = ch.Close()
		return
	}
	_ = server.Serve()
	_ = server.Close()
}

// WriteKey generates a private key of the given family ("ed25519" or "rsa")
// in OpenSSH format and writes it to dir/name. A non-empty passphrase
// encrypts the key.
func WriteKey(t testing.TB, dir, name, family, passphrase string) string {
	t.Helper()

	var key crypto.PrivateKey
	switch family {
	case "rsa":
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate rsa key: %v", err)
		}
		key = k
	default:
		_, k, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("generate ed25519 key: %v", err)
		}
		key = k
	}

	var (
		block *pem.Block
		err   error
	)
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(key, "", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(key, "")
	}
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}

// Fixed returns a handler that looks up replies by exact command text and
// answers anything else with exit status 127.
func Fixed(replies map[string]Reply) Handler {
	return func(_ context.Context, cmd string) Reply {
		if r, ok := replies[cmd]; ok {
			return r
		}
		return Reply{Stderr: "command not found\n", Status: 127}
	}
}
