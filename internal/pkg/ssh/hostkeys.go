package ssh

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyStore trusts any host it has not seen before and remembers its key.
// A different key presented later for a remembered host is rejected. When a
// known_hosts path is given, keys already in the file are honoured and newly
// learnt keys are appended to it.
type HostKeyStore struct {
	mu    sync.Mutex
	known map[string]ssh.PublicKey
	path  string
	file  ssh.HostKeyCallback
}

func NewHostKeyStore(path string) (*HostKeyStore, error) {
	s := &HostKeyStore{
		known: make(map[string]ssh.PublicKey),
		path:  path,
	}
	if path == "" {
		return s, nil
	}

	if _, err := os.Stat(path); err == nil {
		cb, err := knownhosts.New(path)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", path, err)
		}
		s.file = cb
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat known hosts %s: %w", path, err)
	}
	return s, nil
}

func (s *HostKeyStore) Callback() ssh.HostKeyCallback {
	return s.check
}

func (s *HostKeyStore) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	host := knownhosts.Normalize(hostname)
	if seen, ok := s.known[host]; ok {
		if bytes.Equal(seen.Marshal(), key.Marshal()) {
			return nil
		}
		return fmt.Errorf("host key for %s changed", host)
	}

	if s.file != nil {
		err := s.file(hostname, remote, key)
		if err == nil {
			s.known[host] = key
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}
	}

	s.known[host] = key
	return s.appendLine(host, key)
}

func (s *HostKeyStore) appendLine(host string, key ssh.PublicKey) error {
	if s.path == "" {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open known hosts: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, knownhosts.Line([]string{host}, key)); err != nil {
		return fmt.Errorf("write known hosts: %w", err)
	}
	return nil
}
