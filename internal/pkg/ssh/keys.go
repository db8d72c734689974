package ssh

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// Key families accepted by LoadSigner.
const (
	KeyFamilyEd25519 = "ed25519"
	KeyFamilyRSA     = "rsa"
)

var keyAlgorithms = map[string]string{
	KeyFamilyEd25519: ssh.KeyAlgoED25519,
	KeyFamilyRSA:     ssh.KeyAlgoRSA,
}

// LoadSigner reads a private key file and checks that it belongs to the
// requested family. The passphrase is only used when the key is encrypted.
func LoadSigner(path, passphrase, family string) (ssh.Signer, error) {
	algo, ok := keyAlgorithms[family]
	if !ok {
		return nil, fmt.Errorf("unsupported key family %q", family)
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	signer, err := ParsePrivateKey(pem, passphrase)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}

	if got := signer.PublicKey().Type(); got != algo {
		return nil, fmt.Errorf("private key %s is %s, expected %s", path, got, algo)
	}
	return signer, nil
}

func ParsePrivateKey(pem []byte, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(pem)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, err
	}
	if passphrase == "" {
		return nil, fmt.Errorf("key is encrypted and no passphrase was given: %w", err)
	}
	return ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
}
