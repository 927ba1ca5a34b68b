// Package keypair loads the node's ed25519 signer keypair, the
// credential the Market Client signs on-chain transactions with and
// the Health Monitor checks the presence of.
package keypair

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
)

// Keypair is the node's signing identity.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Address is the base58-encoded public key, the node's on-chain
// address.
func (k Keypair) Address() string {
	return base58.Encode(k.Public)
}

// LoadFile reads a signer key from disk. The file may hold either a
// raw 64-byte secret key or its base58 encoding (the common on-disk
// convention for this kind of key). Surrounding whitespace is trimmed
// unless the untrimmed contents are already exactly a raw secret key.
func LoadFile(path string) (*Keypair, error) {
	if path == "" {
		return nil, fmt.Errorf("keypair: no path configured")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keypair: read %s: %w", path, err)
	}

	return Decode(string(raw))
}

// Decode parses a signer key from its base58 or raw-bytes form.
func Decode(s string) (*Keypair, error) {
	trimmed := strings.TrimSpace(s)

	secret, err := base58.Decode(trimmed)
	if err != nil || len(secret) != ed25519.PrivateKeySize {
		secret = []byte(s)
		if len(secret) != ed25519.PrivateKeySize {
			secret = []byte(trimmed)
		}
	}

	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair: expected %d byte secret key, got %d", ed25519.PrivateKeySize, len(secret))
	}

	priv := ed25519.PrivateKey(secret)
	return &Keypair{
		Public:  priv.Public().(ed25519.PublicKey),
		Private: priv,
	}, nil
}

// Exists reports whether a signer key file is present and readable.
// A missing key is an unhealthy reason, not a startup error, per the
// Health Monitor's contract.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
