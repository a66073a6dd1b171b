package license

import (
	"bytes"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Keypair holds the process-wide Ed25519 signing key material. Built once
// at startup and passed by reference; never mutated afterwards.
type Keypair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// LoadKeypair decodes the signing key from its base64 env encoding. Three
// encodings of the inner bytes are accepted:
//
//   - an OpenSSH private key file (the format ssh-keygen writes),
//   - a raw 32-byte Ed25519 seed,
//   - a PKCS#8 DER private key.
//
// Whatever the source, the public key is re-derived from the seed and
// compared against the public half carried by the key file. A mismatch
// means the key material was extracted or decoded incorrectly, and the
// process must not issue keys signed with it.
func LoadKeypair(encoded string) (*Keypair, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, fmt.Errorf("missing license signing key")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("license signing key is not valid base64: %w", err)
	}

	private, err := parsePrivateKey(raw)
	if err != nil {
		return nil, err
	}

	derived := ed25519.NewKeyFromSeed(private.Seed())
	if !bytes.Equal(derived.Public().(ed25519.PublicKey), private.Public().(ed25519.PublicKey)) {
		return nil, fmt.Errorf("derived Ed25519 public key does not match key file public key")
	}

	return &Keypair{
		Private: private,
		Public:  private.Public().(ed25519.PublicKey),
	}, nil
}

func parsePrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	if len(raw) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(raw), nil
	}

	if bytes.Contains(raw, []byte("OPENSSH PRIVATE KEY")) {
		parsed, err := ssh.ParseRawPrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse OpenSSH private key: %w", err)
		}
		key, ok := parsed.(*ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported OpenSSH key type %T, want ed25519", parsed)
		}
		return *key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported PKCS#8 key type %T, want ed25519", parsed)
	}
	return key, nil
}

// PublicKeyB64 returns the standard-base64 public key, the exact value
// baked into product builds for offline verification.
func (k *Keypair) PublicKeyB64() string {
	return base64.StdEncoding.EncodeToString(k.Public)
}
