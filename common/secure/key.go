package secure

import "github.com/awnumar/memguard"

// A Key holds symmetric key material in a memguard enclave. The key
// is encrypted while it is at rest in memory, and decrypted into a
// locked, guarded buffer only inside With.
type Key struct {
	enclave *memguard.Enclave
	size    int
}

// NewKey seals a copy of in into a new Key; in is left untouched. An
// empty input yields a nil Key, which behaves as absent key material.
func NewKey(in []byte) *Key {
	if len(in) == 0 {
		return nil
	}

	buf := make([]byte, len(in))
	copy(buf, in)

	// NewEnclave wipes buf.
	enclave := memguard.NewEnclave(buf)
	if enclave == nil {
		return nil
	}
	return &Key{enclave: enclave, size: len(in)}
}

// Empty returns true if the key holds no material.
func (k *Key) Empty() bool {
	return k == nil || k.enclave == nil
}

// Size returns the length of the key material.
func (k *Key) Size() int {
	if k.Empty() {
		return 0
	}
	return k.size
}

// With opens the enclave and passes the key material to fn. The
// buffer is destroyed when fn returns, so fn must not retain it. With
// returns false if the key is empty or could not be opened; otherwise
// it returns fn's result.
func (k *Key) With(fn func(key []byte) bool) bool {
	if k.Empty() {
		return false
	}

	buf, err := k.enclave.Open()
	if err != nil {
		return false
	}
	defer buf.Destroy()

	return fn(buf.Bytes())
}

// Destroy drops the enclave. The ciphertext held by the enclave is
// useless without the memguard session key, which is itself kept in
// guarded memory.
func (k *Key) Destroy() {
	if k == nil {
		return
	}
	k.enclave = nil
	k.size = 0
}
