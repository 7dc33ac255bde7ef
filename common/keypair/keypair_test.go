package keypair

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/kisom/walletkeys/common/util"
)

var message = []byte("do not go gentle into that good night")

var schemes = []Scheme{Secp256k1{}, Ed25519{}}

func TestByName(t *testing.T) {
	for _, s := range schemes {
		found, err := ByName(s.Name())
		if err != nil {
			t.Fatalf("%v", err)
		}
		if found.Name() != s.Name() {
			t.Fatalf("keypair: looked up %s, have %s", s.Name(), found.Name())
		}
	}

	if _, err := ByName("SECP256K1"); err != nil {
		t.Fatal("keypair: scheme names should be case insensitive")
	}

	if _, err := ByName("rsa"); err != ErrUnknown {
		t.Fatal("keypair: expected unknown scheme error")
	}
}

func TestGenerateSignVerify(t *testing.T) {
	for _, s := range schemes {
		id, secret, err := s.Generate()
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}

		if len(secret) != SecretSize {
			t.Fatalf("%s: expected %d byte secret, have %d",
				s.Name(), SecretSize, len(secret))
		}

		id2, secret2, err := s.Generate()
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
		if bytes.Equal(id, id2) || bytes.Equal(secret, secret2) {
			t.Fatalf("%s: generated keys should differ", s.Name())
		}

		sig, err := s.Sign(secret, message)
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}

		if !s.Verify(id, message, sig) {
			t.Fatalf("%s: signature should verify", s.Name())
		}

		if s.Verify(id2, message, sig) {
			t.Fatalf("%s: signature should not verify under another key", s.Name())
		}

		if s.Verify(id, message[1:], sig) {
			t.Fatalf("%s: signature should not verify on another message", s.Name())
		}

		if s.Verify(id, message, sig[1:]) {
			t.Fatalf("%s: truncated signature should not verify", s.Name())
		}

		if _, err = s.Sign(secret[1:], message); err != ErrInvalidSecret {
			t.Fatalf("%s: expected invalid secret error", s.Name())
		}
	}
}

func TestIdentifierSizes(t *testing.T) {
	id, _, err := Secp256k1{}.Generate()
	if err != nil {
		t.Fatalf("%v", err)
	}
	if len(id) != 33 {
		t.Fatalf("keypair: expected compressed secp256k1 key, have %d bytes", len(id))
	}

	id, _, err = Ed25519{}.Generate()
	if err != nil {
		t.Fatalf("%v", err)
	}
	if len(id) != 32 {
		t.Fatalf("keypair: expected 32 byte ed25519 key, have %d bytes", len(id))
	}
}

func TestGeneratePRNGFailure(t *testing.T) {
	util.SetPRNG(&bytes.Buffer{})
	defer util.SetPRNG(rand.Reader)

	for _, s := range schemes {
		if _, _, err := s.Generate(); err == nil {
			t.Fatalf("%s: generate should fail with bad PRNG", s.Name())
		}
	}
}
