// Package sign produces detached signatures over serialized repository
// manifests. A signer is constructed from a private-key file and an
// optional passphrase file; an empty key path means signing is
// disabled and callers receive a nil signer.
package sign

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// Signature block markers. The block is appended to the serialized
// manifest as comment lines so that signed and unsigned files parse
// identically.
const (
	beginMarker = "; BEGIN SIGNATURE"
	endMarker   = "; END SIGNATURE"
	lineWidth   = 64
)

// ErrUnsupportedKey indicates a private key type without signing
// support.
var ErrUnsupportedKey = errors.New("unsupported private key type")

// Signer signs serialized manifest bytes.
type Signer struct {
	key crypto.Signer
}

// New loads a private key from privateKeyFile, decrypting it with the
// contents of passphraseFile when given. An empty privateKeyFile
// returns (nil, nil): signing disabled.
func New(privateKeyFile, passphraseFile string) (*Signer, error) {
	if privateKeyFile == "" {
		return nil, nil
	}

	keyData, err := os.ReadFile(privateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	var raw interface{}
	if passphraseFile != "" {
		passphrase, err := os.ReadFile(passphraseFile)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(keyData, bytes.TrimRight(passphrase, "\r\n"))
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
	} else {
		raw, err = ssh.ParseRawPrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
	}

	signer, ok := asSigner(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, raw)
	}
	return &Signer{key: signer}, nil
}

// asSigner unwraps the parsed key into a crypto.Signer.
func asSigner(raw interface{}) (crypto.Signer, bool) {
	switch k := raw.(type) {
	case crypto.Signer:
		return k, true
	case *ed25519.PrivateKey:
		return *k, true
	}
	return nil, false
}

// Sign returns the raw signature over data. Ed25519 keys sign the
// message directly; other keys sign a SHA-256 digest.
func (s *Signer) Sign(data []byte) ([]byte, error) {
	if _, ok := s.key.(ed25519.PrivateKey); ok {
		return s.key.Sign(rand.Reader, data, crypto.Hash(0))
	}
	sum := sha256.Sum256(data)
	return s.key.Sign(rand.Reader, sum[:], crypto.SHA256)
}

// Append signs data and returns data with the signature comment block
// appended. The signed region is exactly the input bytes.
func (s *Signer) Append(data []byte) ([]byte, error) {
	sig, err := s.Sign(data)
	if err != nil {
		return nil, fmt.Errorf("signing manifest: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString(beginMarker + "\n")
	encoded := base64.StdEncoding.EncodeToString(sig)
	for len(encoded) > 0 {
		n := lineWidth
		if n > len(encoded) {
			n = len(encoded)
		}
		buf.WriteString("; " + encoded[:n] + "\n")
		encoded = encoded[n:]
	}
	buf.WriteString(endMarker + "\n")
	return buf.Bytes(), nil
}
