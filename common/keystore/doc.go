// Package keystore contains an in-memory store for signing keys.
//
// A Store starts out holding plaintext secrets. EncryptKeys moves it,
// once and atomically, into encrypted mode: every secret is encrypted
// under a master key, the plaintext copies are zeroised, and from then
// on secrets are only available by decrypting with the master key.
// Lock discards the master key and Unlock reinstalls it; neither
// changes the stored entries.
//
// Each ciphertext is bound to its identifier: the cipher is given the
// hash of the identifier alongside the master key, so an encrypted
// secret moved under another identifier fails to decrypt.
//
// All operations on a Store are safe for concurrent use.
package keystore
