package keypair

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/kisom/walletkeys/common/util"
)

// Secp256k1 keys are identified by their 33-byte compressed public
// key. Signatures are DER-encoded ECDSA signatures over the SHA-256
// digest of the message.
type Secp256k1 struct{}

// Name returns "secp256k1".
func (Secp256k1) Name() string { return "secp256k1" }

// Generate creates a new key pair with the package PRNG.
func (Secp256k1) Generate() ([]byte, []byte, error) {
	priv, err := secp256k1.GeneratePrivateKeyFromRand(util.PRNG())
	if err != nil {
		return nil, nil, ErrGenerate
	}
	defer priv.Zero()

	return priv.PubKey().SerializeCompressed(), priv.Serialize(), nil
}

// Sign produces a DER-encoded signature on message.
func (Secp256k1) Sign(secret, message []byte) ([]byte, error) {
	if len(secret) != SecretSize {
		return nil, ErrInvalidSecret
	}

	priv := secp256k1.PrivKeyFromBytes(secret)
	defer priv.Zero()

	digest := sha256.Sum256(message)
	return ecdsa.Sign(priv, digest[:]).Serialize(), nil
}

// Verify checks a DER-encoded signature against the compressed public
// key in identifier.
func (Secp256k1) Verify(identifier, message, sig []byte) bool {
	pub, err := secp256k1.ParsePubKey(identifier)
	if err != nil {
		return false
	}

	signature, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(message)
	return signature.Verify(digest[:], pub)
}
