// Package crypter contains the symmetric primitives used to protect
// stored signing keys. Each secret is encrypted with NaCl's secretbox
// (XSalsa20 and Poly1305) under a per-entry key derived with HKDF from
// the master key and a binding value; the binding value is the double
// SHA-256 hash of the key's identifier, so a ciphertext only opens
// under the identifier it was sealed for. Master keys are wrapped with
// a passphrase key derived from Scrypt.
package crypter

import (
	"crypto/sha256"
	"io"

	"github.com/kisom/walletkeys/common/util"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// These constants describe the sizes used by the package.
const (
	KeySize       = 32
	MasterKeySize = 32
	SaltSize      = 32
	nonceSize     = 24
)

// Overhead is the number of bytes an encrypted secret is longer than
// its plaintext.
const Overhead = nonceSize + secretbox.Overhead

var entryInfo = []byte("walletkeys secret")

// Hash returns the double SHA-256 digest of data. It is used to
// derive the binding value for an identifier.
func Hash(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// entryKey derives the secretbox key for a single entry.
func entryKey(master, binding []byte) (*[KeySize]byte, bool) {
	if len(master) == 0 || len(binding) == 0 {
		return nil, false
	}

	var key [KeySize]byte
	r := hkdf.New(sha256.New, master, binding, entryInfo)
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, false
	}
	return &key, true
}

// Seal generates a random nonce and encrypts the input using NaCl's
// secretbox package. The nonce is prepended to the ciphertext.
func Seal(key *[KeySize]byte, in []byte) ([]byte, bool) {
	if key == nil {
		return nil, false
	}

	var nonce [nonceSize]byte
	rb := util.RandBytes(nonceSize)
	if rb == nil {
		return nil, false
	}
	copy(nonce[:], rb)

	out := make([]byte, nonceSize, nonceSize+len(in)+secretbox.Overhead)
	copy(out, nonce[:])
	out = secretbox.Seal(out, in, &nonce, key)
	return out, true
}

// Open extracts the nonce from the ciphertext, and attempts to
// decrypt with NaCl's secretbox.
func Open(key *[KeySize]byte, in []byte) ([]byte, bool) {
	if key == nil || len(in) < Overhead {
		return nil, false
	}

	var nonce [nonceSize]byte
	copy(nonce[:], in)
	return secretbox.Open(nil, in[nonceSize:], &nonce, key)
}

// EncryptSecret encrypts a plaintext secret under the master key,
// bound to binding. An empty master key always fails.
func EncryptSecret(master, plaintext, binding []byte) ([]byte, bool) {
	key, ok := entryKey(master, binding)
	if !ok {
		return nil, false
	}
	defer util.Zero(key[:])

	return Seal(key, plaintext)
}

// DecryptSecret recovers a secret encrypted with EncryptSecret. It
// fails if the master key is empty or wrong, if the ciphertext has
// been altered, or if binding is not the value the secret was
// encrypted with.
func DecryptSecret(master, ciphertext, binding []byte) ([]byte, bool) {
	key, ok := entryKey(master, binding)
	if !ok {
		return nil, false
	}
	defer util.Zero(key[:])

	return Open(key, ciphertext)
}

// A Crypter satisfies the cipher interface used by the keystore with
// the functions in this package.
type Crypter struct{}

// Default is the Crypter used by keystores that aren't given one.
var Default Crypter

// Encrypt calls EncryptSecret.
func (Crypter) Encrypt(master, plaintext, binding []byte) ([]byte, bool) {
	return EncryptSecret(master, plaintext, binding)
}

// Decrypt calls DecryptSecret.
func (Crypter) Decrypt(master, ciphertext, binding []byte) ([]byte, bool) {
	return DecryptSecret(master, ciphertext, binding)
}

// Bind returns the binding value for identifier.
func (Crypter) Bind(identifier []byte) []byte {
	return Hash(identifier)
}

// Params contains the Scrypt cost parameters.
type Params struct {
	N int
	R int
	P int
}

// DefaultParams are very strong Scrypt parameters; deriving a key
// with them takes a noticeable fraction of a second.
var DefaultParams = Params{N: 32768, R: 8, P: 4}

// DeriveKey applies Scrypt to generate a wrapping key from a
// passphrase and salt. It returns false if the parameters are
// invalid.
func DeriveKey(passphrase, salt []byte, p Params) (*[KeySize]byte, bool) {
	rawKey, err := scrypt.Key(passphrase, salt, p.N, p.R, p.P, KeySize)
	if err != nil {
		return nil, false
	}

	var key [KeySize]byte
	copy(key[:], rawKey)
	util.Zero(rawKey)
	return &key, true
}

// GenerateMasterKey returns fresh random master key material, or nil
// if the PRNG fails.
func GenerateMasterKey() []byte {
	return util.RandBytes(MasterKeySize)
}
