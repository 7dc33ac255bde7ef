// Package keypair contains the signature schemes whose keys are held
// in a keystore. A scheme produces (identifier, secret) pairs: the
// identifier is the serialised public key, and the secret is the
// fixed-size private scalar or seed. Both supported schemes use
// 32-byte secrets.
package keypair

import (
	"errors"
	"strings"
)

// SecretSize is the length of the secret produced by every scheme in
// this package.
const SecretSize = 32

// These errors are returned by the schemes.
var (
	ErrGenerate      = errors.New("keypair: failed to generate key")
	ErrInvalidSecret = errors.New("keypair: invalid secret key")
	ErrUnknown       = errors.New("keypair: unknown scheme")
)

// A Scheme generates key pairs and signs with them.
type Scheme interface {
	// Name returns the name the scheme is selected by.
	Name() string

	// Generate returns a serialised public key and the
	// corresponding secret. The caller owns the secret and should
	// zero it.
	Generate() (identifier, secret []byte, err error)

	// Sign signs message with the secret.
	Sign(secret, message []byte) ([]byte, error)

	// Verify checks sig on message against the identifier.
	Verify(identifier, message, sig []byte) bool
}

// ByName returns the scheme registered under name.
func ByName(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case Secp256k1{}.Name():
		return Secp256k1{}, nil
	case Ed25519{}.Name():
		return Ed25519{}, nil
	default:
		return nil, ErrUnknown
	}
}
