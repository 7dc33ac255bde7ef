// Package secure contains containers for sensitive byte buffers. A
// Secret holds plaintext private key material and is overwritten when
// it is zeroised; a Key holds symmetric master key material inside a
// memguard enclave, so that it is only decrypted into guarded memory
// for the duration of a single operation.
package secure
