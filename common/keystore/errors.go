package keystore

import "errors"

// These errors are returned by Store operations.
var (
	// ErrNotFound is returned when the identifier is not in the
	// mapping for the store's current mode.
	ErrNotFound = errors.New("keystore: key not found")

	// ErrDecryptFailed is returned when an encrypted secret could
	// not be decrypted. A locked store always fails this way.
	ErrDecryptFailed = errors.New("keystore: failed to decrypt secret")

	// ErrLengthMismatch is returned when a secret, decrypted or
	// supplied, is not the store's fixed secret length.
	ErrLengthMismatch = errors.New("keystore: secret has the wrong length")

	// ErrInvalidTransition is returned when encrypting an
	// encrypted store, or locking or unlocking an unencrypted one.
	ErrInvalidTransition = errors.New("keystore: invalid mode transition")

	// ErrPartialMigrationAborted is returned when EncryptKeys
	// could not encrypt every plaintext secret; the store is left
	// unchanged.
	ErrPartialMigrationAborted = errors.New("keystore: encryption aborted, no keys were migrated")

	// ErrCrypted is returned when adding a plaintext key to an
	// encrypted store.
	ErrCrypted = errors.New("keystore: store is encrypted")

	// ErrInvalidIdentifier is returned for an empty identifier.
	ErrInvalidIdentifier = errors.New("keystore: invalid identifier")

	// ErrInvalidKey is returned for empty key material or an empty
	// ciphertext.
	ErrInvalidKey = errors.New("keystore: invalid key material")

	// ErrKeyExists is returned when adding an identifier that is
	// already held in the other mapping.
	ErrKeyExists = errors.New("keystore: key is already stored in another form")
)

// These errors are returned when generating keys.
var (
	// ErrNoGenerator is returned by GenerateNewKey on a store
	// built without a key generator.
	ErrNoGenerator = errors.New("keystore: no key generator")

	// ErrLocked is returned when generating a key in a locked
	// store; there is no master key to encrypt it with.
	ErrLocked = errors.New("keystore: store is locked")

	// ErrEncryptFailed is returned when a new secret could not be
	// encrypted under the master key.
	ErrEncryptFailed = errors.New("keystore: failed to encrypt secret")
)
