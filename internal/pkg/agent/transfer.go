package agent

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"
)

// Upload copies a local file to remotePath on node over SFTP.
func (a *Agent) Upload(node, localPath, remotePath string) error {
	return a.transfer(node, "upload", localPath, remotePath, func(sc *sftp.Client) error {
		src, err := os.Open(localPath)
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := sc.Create(remotePath)
		if err != nil {
			return fmt.Errorf("create remote file: %w", err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return fmt.Errorf("copy: %w", err)
		}
		return dst.Close()
	})
}

// Download copies remotePath on node to a local file over SFTP.
func (a *Agent) Download(node, remotePath, localPath string) error {
	return a.transfer(node, "download", localPath, remotePath, func(sc *sftp.Client) error {
		src, err := sc.Open(remotePath)
		if err != nil {
			return fmt.Errorf("open remote file: %w", err)
		}
		defer src.Close()

		dst, err := os.Create(localPath)
		if err != nil {
			return err
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return fmt.Errorf("copy: %w", err)
		}
		return dst.Close()
	})
}

// transfer scopes one SFTP client to op and always closes it.
func (a *Agent) transfer(node, op, localPath, remotePath string, fn func(*sftp.Client) error) (err error) {
	wrap := func(err error) error {
		return &TransferError{Node: node, Op: op, Local: localPath, Remote: remotePath, Err: err}
	}

	s, err := a.session(node)
	if err != nil {
		return wrap(err)
	}

	sc, err := s.conn.NewSFTP()
	if err != nil {
		if s.connectErr != nil {
			err = &ConnectionError{Node: node, Err: fmt.Errorf("%w: %v", ErrUnreachable, s.connectErr)}
		}
		return wrap(err)
	}
	defer func() {
		if cerr := sc.Close(); cerr != nil && err == nil {
			err = wrap(cerr)
		}
	}()

	if err := fn(sc); err != nil {
		a.logger.With("node", node, "op", op, "error", err).Warn("file transfer failed")
		return wrap(err)
	}
	a.logger.With("node", node, "op", op, "local", localPath, "remote", remotePath).Debug("file transfer done")
	return nil
}
