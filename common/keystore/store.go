package keystore

import (
	"sort"
	"sync"

	"github.com/kisom/walletkeys/common/crypter"
	"github.com/kisom/walletkeys/common/secure"
	"github.com/kisom/walletkeys/common/util"
)

// SecretSize is the length of a secret in a store built with New.
const SecretSize = 32

// A Cipher encrypts and decrypts secrets under master key material.
// The binding value passed to Encrypt and Decrypt is always the
// result of Bind on the secret's identifier. Decrypt must fail for
// empty key material.
type Cipher interface {
	Encrypt(key, plaintext, binding []byte) ([]byte, bool)
	Decrypt(key, ciphertext, binding []byte) ([]byte, bool)
	Bind(identifier []byte) []byte
}

// A Generator produces new key pairs. The identifier is the public
// key; the secret is owned by the caller.
type Generator interface {
	Generate() (identifier, secret []byte, err error)
}

// A Store holds signing keys, either in plaintext or encrypted under
// a master key. The two forms never coexist: once EncryptKeys
// succeeds the store holds only encrypted secrets, and it can never
// go back.
type Store struct {
	mu sync.Mutex

	keys    map[string]*secure.Secret
	crypted map[string][]byte

	// master is nil when the store is locked or unencrypted.
	master    *secure.Key
	useCrypto bool

	cipher     Cipher
	gen        Generator
	secretSize int

	watchers []func(*Store)
}

// New returns an empty, unencrypted store using the default crypter
// and 32-byte secrets.
func New(gen Generator) *Store {
	return NewStore(crypter.Default, gen, SecretSize)
}

// NewStore returns an empty, unencrypted store. A nil cipher selects
// the default crypter, and a non-positive size selects SecretSize.
func NewStore(c Cipher, gen Generator, secretSize int) *Store {
	if c == nil {
		c = crypter.Default
	}
	if secretSize <= 0 {
		secretSize = SecretSize
	}

	return &Store{
		keys:       map[string]*secure.Secret{},
		crypted:    map[string][]byte{},
		cipher:     c,
		gen:        gen,
		secretSize: secretSize,
	}
}

// NewCryptedStore returns a locked, encrypted store holding the
// encrypted secrets in entries, keyed by identifier. It is used to
// restore a store whose entries were saved after encryption; Unlock
// must be called with the master key before secrets can be read.
func NewCryptedStore(c Cipher, gen Generator, secretSize int, entries map[string][]byte) (*Store, error) {
	s := NewStore(c, gen, secretSize)
	for id, ct := range entries {
		if len(id) == 0 {
			return nil, ErrInvalidIdentifier
		} else if len(ct) == 0 {
			return nil, ErrInvalidKey
		}
		if err := s.addCryptedKey([]byte(id), ct); err != nil {
			return nil, err
		}
	}

	s.setCrypted()
	return s, nil
}

// SecretSize returns the fixed length of secrets in the store.
func (s *Store) SecretSize() int {
	return s.secretSize
}

// Subscribe registers fn to be called after every successful change
// to the store. Callbacks run on the caller's goroutine after the
// store's lock is released, so they may call back into the store.
func (s *Store) Subscribe(fn func(*Store)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	watchers := make([]func(*Store), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
}

// AddKey stores a plaintext secret under identifier, replacing any
// plaintext secret already stored there. The store keeps its own
// copy of secret. Plaintext keys can't be added once the store is
// encrypted.
func (s *Store) AddKey(identifier, secret []byte) error {
	if len(identifier) == 0 {
		return ErrInvalidIdentifier
	} else if len(secret) != s.secretSize {
		return ErrLengthMismatch
	}

	s.mu.Lock()
	err := s.addKey(identifier, secret)
	s.mu.Unlock()

	if err == nil {
		s.notify()
	}
	return err
}

// addKey must be called with the lock held.
func (s *Store) addKey(identifier, secret []byte) error {
	if s.useCrypto {
		return ErrCrypted
	}

	id := string(identifier)
	if _, ok := s.crypted[id]; ok {
		return ErrKeyExists
	}

	if old, ok := s.keys[id]; ok {
		old.Zero()
	}
	s.keys[id] = secure.NewSecret(secret)
	return nil
}

// AddCryptedKey stores an encrypted secret under identifier. This is
// permitted in either mode and whether or not the store is locked;
// it is how previously encrypted keys are loaded. The ciphertext is
// not checked until the key is used.
func (s *Store) AddCryptedKey(identifier, ciphertext []byte) error {
	if len(identifier) == 0 {
		return ErrInvalidIdentifier
	} else if len(ciphertext) == 0 {
		return ErrInvalidKey
	}

	s.mu.Lock()
	err := s.addCryptedKey(identifier, ciphertext)
	s.mu.Unlock()

	if err == nil {
		s.notify()
	}
	return err
}

// addCryptedKey must be called with the lock held.
func (s *Store) addCryptedKey(identifier, ciphertext []byte) error {
	id := string(identifier)
	if _, ok := s.keys[id]; ok {
		return ErrKeyExists
	}

	ct := make([]byte, len(ciphertext))
	copy(ct, ciphertext)
	s.crypted[id] = ct
	return nil
}

// HaveKey returns true if the store holds a key for identifier. Only
// the mapping for the current mode is consulted.
func (s *Store) HaveKey(identifier []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useCrypto {
		_, ok := s.crypted[string(identifier)]
		return ok
	}
	_, ok := s.keys[string(identifier)]
	return ok
}

// GetPrivKey returns a copy of the secret for identifier, decrypting
// it if the store is encrypted. The caller should zero the returned
// slice when it is done with it.
func (s *Store) GetPrivKey(identifier []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.useCrypto {
		secret, ok := s.keys[string(identifier)]
		if !ok {
			return nil, ErrNotFound
		}
		return secret.Copy(), nil
	}

	ct, ok := s.crypted[string(identifier)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.decrypt(s.master, identifier, ct)
}

// decrypt opens ct with master. A nil master fails.
func (s *Store) decrypt(master *secure.Key, identifier, ct []byte) ([]byte, error) {
	var secret []byte
	ok := master.With(func(key []byte) bool {
		var ok bool
		secret, ok = s.cipher.Decrypt(key, ct, s.cipher.Bind(identifier))
		return ok
	})
	if !ok {
		return nil, ErrDecryptFailed
	}

	if len(secret) != s.secretSize {
		util.Zero(secret)
		return nil, ErrLengthMismatch
	}
	return secret, nil
}

// GetCryptedKey returns a copy of the encrypted secret stored for
// identifier, for callers that persist the store.
func (s *Store) GetCryptedKey(identifier []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ct, ok := s.crypted[string(identifier)]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(ct))
	copy(out, ct)
	return out, nil
}

// GenerateNewKey creates a new key pair, stores it, and returns its
// identifier. In an encrypted store the new secret is encrypted under
// the master key before it is stored, which requires the store to be
// unlocked.
func (s *Store) GenerateNewKey() ([]byte, error) {
	if s.gen == nil {
		return nil, ErrNoGenerator
	}

	identifier, secret, err := s.gen.Generate()
	if err != nil {
		return nil, err
	}
	defer util.Zero(secret)

	if len(identifier) == 0 {
		return nil, ErrInvalidIdentifier
	} else if len(secret) != s.secretSize {
		return nil, ErrLengthMismatch
	}

	s.mu.Lock()
	if s.useCrypto {
		err = s.addGenerated(identifier, secret)
	} else {
		err = s.addKey(identifier, secret)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.notify()
	return identifier, nil
}

// addGenerated encrypts a new secret and stores it in the encrypted
// mapping. It must be called with the lock held.
func (s *Store) addGenerated(identifier, secret []byte) error {
	if s.master.Empty() {
		return ErrLocked
	}

	var ct []byte
	ok := s.master.With(func(key []byte) bool {
		var ok bool
		ct, ok = s.cipher.Encrypt(key, secret, s.cipher.Bind(identifier))
		return ok
	})
	if !ok {
		return ErrEncryptFailed
	}
	return s.addCryptedKey(identifier, ct)
}

// IsCrypted returns true once the store has been encrypted.
func (s *Store) IsCrypted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useCrypto
}

// IsLocked returns true if the store is encrypted and no master key
// is present. An unencrypted store is never locked.
func (s *Store) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.useCrypto {
		return false
	}
	return s.master.Empty()
}

// Lock discards the master key. Locking a locked store succeeds;
// locking an unencrypted store is an invalid transition.
func (s *Store) Lock() error {
	s.mu.Lock()
	if !s.useCrypto {
		s.mu.Unlock()
		return ErrInvalidTransition
	}

	s.master.Destroy()
	s.master = nil
	s.mu.Unlock()

	s.notify()
	return nil
}

// Unlock installs candidate as the master key after checking that it
// decrypts a stored secret. A candidate that fails the check is
// discarded and the store is left as it was. An encrypted store with
// no entries accepts any non-empty candidate. The store keeps its own
// copy of candidate.
func (s *Store) Unlock(candidate []byte) error {
	s.mu.Lock()
	err := s.unlock(candidate)
	s.mu.Unlock()

	if err == nil {
		s.notify()
	}
	return err
}

// unlock must be called with the lock held.
func (s *Store) unlock(candidate []byte) error {
	if !s.useCrypto {
		return ErrInvalidTransition
	}

	key := secure.NewKey(candidate)
	if key.Empty() {
		return ErrDecryptFailed
	}

	if id, ok := s.probe(); ok {
		secret, err := s.decrypt(key, []byte(id), s.crypted[id])
		if err != nil {
			key.Destroy()
			return err
		}
		util.Zero(secret)
	}

	s.master.Destroy()
	s.master = key
	return nil
}

// probe picks the entry used to check a master key: the smallest
// identifier, so the choice doesn't depend on map order.
func (s *Store) probe() (string, bool) {
	var (
		probe string
		found bool
	)
	for id := range s.crypted {
		if !found || id < probe {
			probe = id
			found = true
		}
	}
	return probe, found
}

// setCrypted latches the store into encrypted mode. It refuses while
// plaintext keys remain, and setting it twice is harmless. It must be
// called with the lock held.
func (s *Store) setCrypted() bool {
	if len(s.keys) > 0 {
		return false
	}
	s.useCrypto = true
	return true
}

// EncryptKeys encrypts every plaintext secret under master, replaces
// the plaintext secrets with the encrypted ones, and leaves the store
// encrypted and unlocked with master installed. Either every secret
// is migrated or none is. A store can only be encrypted once.
// Encrypted entries already in the store must decrypt under master;
// if one doesn't, its decryption error is returned and nothing
// changes.
//
// EncryptKeys is meant to be driven by a wallet that derives master
// from a passphrase; the store keeps its own copy of master.
func (s *Store) EncryptKeys(master []byte) error {
	if len(master) == 0 {
		return ErrInvalidKey
	}

	s.mu.Lock()
	err := s.encryptKeys(master)
	s.mu.Unlock()

	if err == nil {
		s.notify()
	}
	return err
}

// encryptKeys must be called with the lock held.
func (s *Store) encryptKeys(master []byte) error {
	if s.useCrypto {
		return ErrInvalidTransition
	}

	key := secure.NewKey(master)
	if key.Empty() {
		return ErrInvalidKey
	}

	// Entries loaded with AddCryptedKey must already be sealed under
	// master, or the store would hold secrets under two keys.
	for id, ct := range s.crypted {
		secret, err := s.decrypt(key, []byte(id), ct)
		if err != nil {
			key.Destroy()
			return err
		}
		util.Zero(secret)
	}

	staged := make(map[string][]byte, len(s.keys))
	for id, secret := range s.keys {
		ct, ok := s.cipher.Encrypt(master, secret.Bytes(), s.cipher.Bind([]byte(id)))
		if !ok {
			key.Destroy()
			return ErrPartialMigrationAborted
		}
		staged[id] = ct
	}

	for id, ct := range staged {
		s.crypted[id] = ct
	}
	for id, secret := range s.keys {
		secret.Zero()
		delete(s.keys, id)
	}

	s.master = key
	if !s.setCrypted() {
		panic("keystore: plaintext keys remain after migration")
	}
	s.checkInvariants()
	return nil
}

// checkInvariants panics if the store's mappings are inconsistent
// with its mode. It must be called with the lock held.
func (s *Store) checkInvariants() {
	if s.useCrypto && len(s.keys) != 0 {
		panic("keystore: encrypted store holds plaintext keys")
	}

	for id := range s.keys {
		if _, ok := s.crypted[id]; ok {
			panic("keystore: key stored in both plaintext and encrypted form")
		}
	}
}

// Keys returns the identifiers held in the mapping for the current
// mode, in sorted order.
func (s *Store) Keys() [][]byte {
	s.mu.Lock()
	var ids []string
	if s.useCrypto {
		for id := range s.crypted {
			ids = append(ids, id)
		}
	} else {
		for id := range s.keys {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	sort.Strings(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, []byte(id))
	}
	return out
}

// Stats returns the number of plaintext and encrypted entries.
func (s *Store) Stats() (plain, crypted int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys), len(s.crypted)
}

// Close zeroises every plaintext secret, discards the master key and
// drops all entries. The store is left empty and, if it was
// encrypted, locked.
func (s *Store) Close() {
	s.mu.Lock()
	for id, secret := range s.keys {
		secret.Zero()
		delete(s.keys, id)
	}
	for id := range s.crypted {
		delete(s.crypted, id)
	}
	s.master.Destroy()
	s.master = nil
	s.mu.Unlock()

	s.notify()
}
