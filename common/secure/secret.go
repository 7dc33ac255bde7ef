package secure

import "github.com/kisom/walletkeys/common/util"

// A Secret is an owned copy of plaintext secret material. The zero
// value is an empty, already zeroised secret.
type Secret struct {
	buf []byte
}

// NewSecret copies in into a new Secret. The caller retains ownership
// of in, and should zero it when it is no longer needed.
func NewSecret(in []byte) *Secret {
	buf := make([]byte, len(in))
	copy(buf, in)
	return &Secret{buf: buf}
}

// Bytes returns the underlying buffer. It is only valid until Zero is
// called, and must not be retained by the caller.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.buf
}

// Copy returns a fresh copy of the secret; the caller is responsible
// for zeroing it.
func (s *Secret) Copy() []byte {
	if s == nil || s.buf == nil {
		return nil
	}
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// Len returns the length of the secret.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.buf)
}

// Zero overwrites the secret and releases the buffer. It is safe to
// call more than once.
func (s *Secret) Zero() {
	if s == nil {
		return
	}
	util.Zero(s.buf)
	s.buf = nil
}
