// Package util contains utility code common to the walletkeys packages.
package util

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gokyle/readpass"
)

// Version contains the current version of the walletkeys system. See
// semver.org for a description of this format.
var Version = struct {
	Major int
	Minor int
	Patch int
	Label string
}{0, 3, 0, ""}

// VersionString returns a formatted semver structure from Version.
func VersionString() string {
	return fmt.Sprintf("%d.%d.%d%s", Version.Major,
		Version.Minor, Version.Patch, Version.Label)
}

// A PassPrompt is a function that takes a string to display to the
// user, and returns a byte slice containing the user's input if no
// error occurred.
var PassPrompt = readpass.PasswordPromptBytes

var (
	prngLock sync.RWMutex
	prng     io.Reader = rand.Reader
)

// RandBytes is a wrapper for retrieving a buffer of the requested
// size, filled with random data. On failure, it returns nil.
func RandBytes(size int) []byte {
	p := make([]byte, size)
	_, err := io.ReadFull(PRNG(), p)
	if err != nil {
		p = nil
	}
	return p
}

// PRNG returns the current PRNG being used by the package.
func PRNG() io.Reader {
	prngLock.RLock()
	defer prngLock.RUnlock()
	return prng
}

// SetPRNG is used to change the PRNG. This should only be used in
// testing to validate PRNG failures. If nil is passed as the reader,
// crypto/rand.Reader will be used.
func SetPRNG(r io.Reader) {
	if r == nil {
		r = rand.Reader
	}
	prngLock.Lock()
	prng = r
	prngLock.Unlock()
}

// Zero wipes out a byte slice. This isn't a bulletproof option: if
// memory is swapped out, or the garbage collector has already moved
// a copy, the program has no control over what happens to it. Secrets
// are wiped as soon as they are no longer used, usually with a
// deferred call.
func Zero(in []byte) {
	for i := range in {
		in[i] ^= in[i]
	}
}

// Errorf is a convenience function for printing errors and warnings
// in the standard format used by this project.
func Errorf(m string, args ...interface{}) {
	m = "[!] " + m
	if m[len(m)-1] != '\n' {
		m += "\n"
	}
	fmt.Fprintf(os.Stderr, m, args...)
}
