// keysrv is a signing server holding a wallet of private keys.
package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/kisom/walletkeys/common/keypair"
	"github.com/kisom/walletkeys/common/keystore"
	"github.com/kisom/walletkeys/common/secure"
	"github.com/kisom/walletkeys/common/util"
	"github.com/kisom/walletkeys/common/wallet"
)

// maxBody caps request bodies; messages and passphrases are small.
const maxBody = 1 << 20

type server struct {
	w *wallet.Wallet
}

type status struct {
	Scheme  string `json:"scheme"`
	Crypted bool   `json:"crypted"`
	Locked  bool   `json:"locked"`
	Keys    int    `json:"keys"`
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, keystore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, keystore.ErrDecryptFailed),
		errors.Is(err, keystore.ErrLocked),
		errors.Is(err, wallet.ErrWrongPassphrase):
		return http.StatusForbidden
	case errors.Is(err, keystore.ErrInvalidTransition),
		errors.Is(err, wallet.ErrAlreadyEncrypted),
		errors.Is(err, wallet.ErrNotEncrypted):
		return http.StatusConflict
	case errors.Is(err, keystore.ErrLengthMismatch),
		errors.Is(err, keystore.ErrPartialMigrationAborted),
		errors.Is(err, keystore.ErrEncryptFailed),
		errors.Is(err, wallet.ErrPRNG):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.WriteHeader(statusCode(err))
	w.Write([]byte(err.Error()))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
}

func identifier(r *http.Request) ([]byte, error) {
	id, err := hex.DecodeString(mux.Vars(r)["id"])
	if err != nil || len(id) == 0 {
		return nil, keystore.ErrInvalidIdentifier
	}
	return id, nil
}

func (s *server) getStatus(w http.ResponseWriter, r *http.Request) {
	st := status{
		Scheme:  s.w.Scheme().Name(),
		Crypted: s.w.IsCrypted(),
		Locked:  s.w.IsLocked(),
		Keys:    len(s.w.Store().Keys()),
	}

	out, err := json.Marshal(st)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

func (s *server) listKeys(w http.ResponseWriter, r *http.Request) {
	for _, id := range s.w.Store().Keys() {
		fmt.Fprintln(w, hex.EncodeToString(id))
	}
}

func (s *server) newKey(w http.ResponseWriter, r *http.Request) {
	id, err := s.w.NewKey()
	if err != nil {
		log.Printf("key generation failed: %v", err)
		writeError(w, err)
		return
	}
	log.Printf("generated key %x", id)
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintln(w, hex.EncodeToString(id))
}

func (s *server) haveKey(w http.ResponseWriter, r *http.Request) {
	id, err := identifier(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !s.w.Store().HaveKey(id) {
		writeError(w, keystore.ErrNotFound)
		return
	}
	fmt.Fprintln(w, hex.EncodeToString(id))
}

func (s *server) sign(w http.ResponseWriter, r *http.Request) {
	id, err := identifier(r)
	if err != nil {
		writeError(w, err)
		return
	}

	msg, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	sig, err := s.w.Sign(id, msg)
	if err != nil {
		log.Printf("signing with %x failed: %v", id, err)
		writeError(w, err)
		return
	}
	fmt.Fprintln(w, hex.EncodeToString(sig))
}

func (s *server) verify(w http.ResponseWriter, r *http.Request) {
	id, err := identifier(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sig, err := hex.DecodeString(r.URL.Query().Get("sig"))
	if err != nil || len(sig) == 0 {
		writeError(w, errors.New("keysrv: invalid signature"))
		return
	}

	msg, err := readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if !s.w.Verify(id, msg, sig) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("signature is not valid"))
		return
	}
	w.Write([]byte("signature is valid"))
}

// passphraseOp runs op with the request body as the passphrase.
func (s *server) passphraseOp(op func([]byte) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		passphrase, err := readBody(w, r)
		if err != nil {
			writeError(w, err)
			return
		}
		defer util.Zero(passphrase)

		if err = op(passphrase); err != nil {
			writeError(w, err)
			return
		}
		w.Write([]byte("OK"))
	}
}

func (s *server) lock(w http.ResponseWriter, r *http.Request) {
	if err := s.w.Lock(); err != nil {
		writeError(w, err)
		return
	}
	w.Write([]byte("OK"))
}

// logRequest tags every request with an ID and logs it.
func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		log.Printf("%s %s %s", id, r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func newRouter(s *server) *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequest)
	router.HandleFunc("/status", s.getStatus).Methods("GET")
	router.HandleFunc("/keys", s.listKeys).Methods("GET")
	router.HandleFunc("/keys", s.newKey).Methods("POST")
	router.HandleFunc("/keys/{id}", s.haveKey).Methods("GET")
	router.HandleFunc("/sign/{id}", s.sign).Methods("POST")
	router.HandleFunc("/verify/{id}", s.verify).Methods("POST")
	router.HandleFunc("/encrypt", s.passphraseOp(s.w.Encrypt)).Methods("POST")
	router.HandleFunc("/unlock", s.passphraseOp(s.w.Unlock)).Methods("POST")
	router.HandleFunc("/lock", s.lock).Methods("POST")
	return router
}

func logStatus(ks *keystore.Store) {
	plain, crypted := ks.Stats()
	log.Printf("keystore changed: crypted=%v locked=%v plain=%d encrypted=%d",
		ks.IsCrypted(), ks.IsLocked(), plain, crypted)
}

// autoLock locks the wallet every interval.
func autoLock(w *wallet.Wallet, interval time.Duration) {
	for {
		<-time.After(interval)
		if !w.IsCrypted() || w.IsLocked() {
			continue
		}
		log.Println("locking wallet")
		if err := w.Lock(); err != nil {
			log.Printf("WARNING: failed to lock wallet: %v", err)
		}
	}
}

type config struct {
	address  string
	scheme   string
	encrypt  bool
	keyFile  string
	certFile string
	lockMem  bool
	interval time.Duration
}

func (cfg config) serve(h http.Handler) error {
	log.Printf("keysrv %s listening on %s", util.VersionString(), cfg.address)
	if cfg.certFile != "" && cfg.keyFile != "" {
		return http.ListenAndServeTLS(cfg.address, cfg.certFile, cfg.keyFile, h)
	}
	return http.ListenAndServe(cfg.address, h)
}

// run builds the wallet and hands its router to serve. The wallet is
// zeroised when serve returns.
func run(cfg config, serve func(http.Handler) error) error {
	if cfg.lockMem {
		level, err := secure.LockMemory()
		if err != nil {
			log.Printf("WARNING: %v", err)
		}
		log.Printf("memory protection: %s", level)
	}

	scheme, err := keypair.ByName(cfg.scheme)
	if err != nil {
		return err
	}

	w := wallet.New(scheme)
	defer w.Close()
	w.Store().Subscribe(logStatus)

	if cfg.encrypt {
		passphrase, err := util.PassPrompt("wallet passphrase> ")
		if err != nil {
			return err
		}
		err = w.Encrypt(passphrase)
		util.Zero(passphrase)
		if err != nil {
			return fmt.Errorf("failed to encrypt wallet: %w", err)
		}
	}

	if cfg.interval > 0 {
		go autoLock(w, cfg.interval)
	}

	return serve(newRouter(&server{w: w}))
}

func main() {
	var cfg config
	flag.StringVar(&cfg.address, "a", "127.0.0.1:8443", "listening address")
	flag.StringVar(&cfg.scheme, "s", "secp256k1", "signature scheme (secp256k1 or ed25519)")
	flag.BoolVar(&cfg.encrypt, "e", false, "prompt for a passphrase and encrypt the wallet")
	flag.StringVar(&cfg.keyFile, "k", "", "TLS key")
	flag.StringVar(&cfg.certFile, "c", "", "TLS certificate")
	flag.BoolVar(&cfg.lockMem, "m", false, "lock process memory")
	flag.DurationVar(&cfg.interval, "t", 0, "lock the wallet at this interval (0 disables)")
	flag.Parse()

	err := run(cfg, cfg.serve)
	memguard.Purge()
	if err != nil {
		log.Fatal(err)
	}
}
