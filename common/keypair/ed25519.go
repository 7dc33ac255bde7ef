package keypair

import (
	"github.com/kisom/walletkeys/common/util"
	"golang.org/x/crypto/ed25519"
)

// Ed25519 keys are identified by their 32-byte public key; the secret
// is the 32-byte seed.
type Ed25519 struct{}

// Name returns "ed25519".
func (Ed25519) Name() string { return "ed25519" }

// Generate creates a new key pair with the package PRNG.
func (Ed25519) Generate() ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(util.PRNG())
	if err != nil {
		return nil, nil, ErrGenerate
	}
	defer util.Zero(priv)

	seed := make([]byte, ed25519.SeedSize)
	copy(seed, priv.Seed())
	return pub, seed, nil
}

// Sign signs message with the key expanded from the seed.
func (Ed25519) Sign(secret, message []byte) ([]byte, error) {
	if len(secret) != ed25519.SeedSize {
		return nil, ErrInvalidSecret
	}

	priv := ed25519.NewKeyFromSeed(secret)
	defer util.Zero(priv)
	return ed25519.Sign(priv, message), nil
}

// Verify checks the signature on message.
func (Ed25519) Verify(identifier, message, sig []byte) bool {
	if len(identifier) != ed25519.PublicKeySize {
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(identifier), message, sig)
}
