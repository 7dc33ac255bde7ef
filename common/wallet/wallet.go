// Package wallet ties a keystore to a passphrase. Encrypting a wallet
// generates a random master key, wraps it with a key derived from the
// passphrase using Scrypt, and moves the keystore into encrypted mode
// under the master key. The passphrase is only needed again to unlock
// the keystore or to change the passphrase; the master key itself
// never changes.
package wallet

import (
	"errors"
	"sync"

	"github.com/kisom/walletkeys/common/crypter"
	"github.com/kisom/walletkeys/common/keypair"
	"github.com/kisom/walletkeys/common/keystore"
	"github.com/kisom/walletkeys/common/util"
)

// These errors are returned by wallet operations. Errors from the
// keystore are returned unchanged.
var (
	ErrEmptyPassphrase  = errors.New("wallet: empty passphrase")
	ErrAlreadyEncrypted = errors.New("wallet: wallet is already encrypted")
	ErrNotEncrypted     = errors.New("wallet: wallet is not encrypted")
	ErrWrongPassphrase  = errors.New("wallet: wrong passphrase")
	ErrInvalidMasterKey = errors.New("wallet: invalid master key record")
	ErrPRNG             = errors.New("wallet: PRNG failure")
)

// A MasterKey is the wallet's master key, encrypted under a
// passphrase. It holds everything needed to recover the master key
// from the passphrase.
type MasterKey struct {
	Salt    []byte
	Crypted []byte
	Params  crypter.Params
}

func (m *MasterKey) valid() bool {
	return m != nil && len(m.Salt) == crypter.SaltSize && len(m.Crypted) > crypter.Overhead
}

func (m *MasterKey) copy() *MasterKey {
	out := &MasterKey{
		Salt:    make([]byte, len(m.Salt)),
		Crypted: make([]byte, len(m.Crypted)),
		Params:  m.Params,
	}
	copy(out.Salt, m.Salt)
	copy(out.Crypted, m.Crypted)
	return out
}

// wrapMasterKey encrypts mk under a key derived from passphrase and a
// fresh salt.
func wrapMasterKey(mk, passphrase []byte, p crypter.Params) (*MasterKey, error) {
	salt := util.RandBytes(crypter.SaltSize)
	if salt == nil {
		return nil, ErrPRNG
	}

	key, ok := crypter.DeriveKey(passphrase, salt, p)
	if !ok {
		return nil, ErrInvalidMasterKey
	}
	defer util.Zero(key[:])

	ct, ok := crypter.Seal(key, mk)
	if !ok {
		return nil, ErrPRNG
	}

	return &MasterKey{Salt: salt, Crypted: ct, Params: p}, nil
}

// unwrap recovers the master key. The caller must zero it.
func (m *MasterKey) unwrap(passphrase []byte) ([]byte, error) {
	key, ok := crypter.DeriveKey(passphrase, m.Salt, m.Params)
	if !ok {
		return nil, ErrInvalidMasterKey
	}
	defer util.Zero(key[:])

	mk, ok := crypter.Open(key, m.Crypted)
	if !ok {
		return nil, ErrWrongPassphrase
	}
	return mk, nil
}

// A Wallet owns a keystore and the passphrase-wrapped master key that
// encrypts it.
type Wallet struct {
	// mu serialises the passphrase operations and guards master.
	mu     sync.Mutex
	master *MasterKey
	params crypter.Params

	store  *keystore.Store
	scheme keypair.Scheme
}

// New returns an unencrypted wallet whose keys are generated with
// scheme.
func New(scheme keypair.Scheme) *Wallet {
	return &Wallet{
		params: crypter.DefaultParams,
		store:  keystore.NewStore(crypter.Default, scheme, keypair.SecretSize),
		scheme: scheme,
	}
}

// Load restores an encrypted wallet from its master key record and
// its encrypted secrets, keyed by identifier. The wallet starts out
// locked.
func Load(scheme keypair.Scheme, record *MasterKey, entries map[string][]byte) (*Wallet, error) {
	if !record.valid() {
		return nil, ErrInvalidMasterKey
	}

	store, err := keystore.NewCryptedStore(crypter.Default, scheme, keypair.SecretSize, entries)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		master: record.copy(),
		params: record.Params,
		store:  store,
		scheme: scheme,
	}, nil
}

// Store returns the wallet's keystore. Callbacks registered on it
// with Subscribe must not call the wallet's passphrase operations.
func (w *Wallet) Store() *keystore.Store {
	return w.store
}

// Scheme returns the signature scheme used by the wallet.
func (w *Wallet) Scheme() keypair.Scheme {
	return w.scheme
}

// MasterKeyRecord returns a copy of the wrapped master key, or nil if
// the wallet isn't encrypted.
func (w *Wallet) MasterKeyRecord() *MasterKey {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.master == nil {
		return nil
	}
	return w.master.copy()
}

// NewKey generates and stores a new key, returning its identifier.
// An encrypted wallet must be unlocked.
func (w *Wallet) NewKey() ([]byte, error) {
	return w.store.GenerateNewKey()
}

// Encrypt encrypts every key in the wallet under a new master key
// protected by passphrase. The wallet is left unlocked.
func (w *Wallet) Encrypt(passphrase []byte) error {
	if len(passphrase) == 0 {
		return ErrEmptyPassphrase
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.master != nil || w.store.IsCrypted() {
		return ErrAlreadyEncrypted
	}

	mk := crypter.GenerateMasterKey()
	if mk == nil {
		return ErrPRNG
	}
	defer util.Zero(mk)

	record, err := wrapMasterKey(mk, passphrase, w.params)
	if err != nil {
		return err
	}

	if err = w.store.EncryptKeys(mk); err != nil {
		return err
	}

	w.master = record
	return nil
}

// Unlock recovers the master key with passphrase and unlocks the
// keystore with it.
func (w *Wallet) Unlock(passphrase []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.master == nil {
		return ErrNotEncrypted
	}

	mk, err := w.master.unwrap(passphrase)
	if err != nil {
		return err
	}
	defer util.Zero(mk)

	return w.store.Unlock(mk)
}

// Lock discards the master key from memory.
func (w *Wallet) Lock() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.master == nil {
		return ErrNotEncrypted
	}
	return w.store.Lock()
}

// IsLocked returns true if the wallet is encrypted and locked.
func (w *Wallet) IsLocked() bool {
	return w.store.IsLocked()
}

// IsCrypted returns true if the wallet is encrypted.
func (w *Wallet) IsCrypted() bool {
	return w.store.IsCrypted()
}

// ChangePassphrase rewraps the master key under newPass. The keys and
// the lock state of the wallet are unchanged.
func (w *Wallet) ChangePassphrase(oldPass, newPass []byte) error {
	if len(newPass) == 0 {
		return ErrEmptyPassphrase
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.master == nil {
		return ErrNotEncrypted
	}

	mk, err := w.master.unwrap(oldPass)
	if err != nil {
		return err
	}
	defer util.Zero(mk)

	record, err := wrapMasterKey(mk, newPass, w.params)
	if err != nil {
		return err
	}

	w.master = record
	return nil
}

// Sign signs message with the key named by identifier.
func (w *Wallet) Sign(identifier, message []byte) ([]byte, error) {
	secret, err := w.store.GetPrivKey(identifier)
	if err != nil {
		return nil, err
	}
	defer util.Zero(secret)

	return w.scheme.Sign(secret, message)
}

// Verify checks a signature made by the key named by identifier. It
// only needs the public key, so it works on a locked wallet.
func (w *Wallet) Verify(identifier, message, sig []byte) bool {
	return w.scheme.Verify(identifier, message, sig)
}

// Close zeroises the wallet's keys.
func (w *Wallet) Close() {
	w.store.Close()
}
