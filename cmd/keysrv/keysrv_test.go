package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kisom/walletkeys/common/crypter"
	"github.com/kisom/walletkeys/common/keypair"
	"github.com/kisom/walletkeys/common/keystore"
	"github.com/kisom/walletkeys/common/wallet"
)

func init() {
	crypter.DefaultParams = crypter.Params{N: 1024, R: 8, P: 1}
}

func testServer(t *testing.T) *httptest.Server {
	w := wallet.New(keypair.Ed25519{})
	w.Store().Subscribe(logStatus)
	return httptest.NewServer(newRouter(&server{w: w}))
}

func do(t *testing.T, method, url, body string) (int, string) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("%v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%v", err)
	}
	defer resp.Body.Close()

	out, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return resp.StatusCode, strings.TrimSpace(string(out))
}

func getStatus(t *testing.T, url string) status {
	code, body := do(t, "GET", url+"/status", "")
	if code != http.StatusOK {
		t.Fatalf("keysrv: status returned %d", code)
	}

	var st status
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("%v", err)
	}
	return st
}

func TestSigning(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	code, id := do(t, "POST", srv.URL+"/keys", "")
	if code != http.StatusCreated {
		t.Fatalf("keysrv: key generation returned %d (%s)", code, id)
	}

	if code, _ = do(t, "GET", srv.URL+"/keys/"+id, ""); code != http.StatusOK {
		t.Fatalf("keysrv: expected key lookup to succeed, have %d", code)
	}
	if code, _ = do(t, "GET", srv.URL+"/keys/00ff", ""); code != http.StatusNotFound {
		t.Fatalf("keysrv: expected 404, have %d", code)
	}
	if code, _ = do(t, "GET", srv.URL+"/keys/zz", ""); code != http.StatusBadRequest {
		t.Fatalf("keysrv: expected 400, have %d", code)
	}

	_, list := do(t, "GET", srv.URL+"/keys", "")
	if list != id {
		t.Fatalf("keysrv: expected key list %s, have %s", id, list)
	}

	code, sig := do(t, "POST", srv.URL+"/sign/"+id, "hello")
	if code != http.StatusOK {
		t.Fatalf("keysrv: signing returned %d (%s)", code, sig)
	}
	if _, err := hex.DecodeString(sig); err != nil {
		t.Fatalf("%v", err)
	}

	if code, _ = do(t, "POST", srv.URL+"/verify/"+id+"?sig="+sig, "hello"); code != http.StatusOK {
		t.Fatalf("keysrv: expected signature to verify, have %d", code)
	}
	if code, _ = do(t, "POST", srv.URL+"/verify/"+id+"?sig="+sig, "goodbye"); code != http.StatusUnauthorized {
		t.Fatalf("keysrv: expected signature to fail, have %d", code)
	}
	if code, _ = do(t, "POST", srv.URL+"/verify/"+id, "hello"); code != http.StatusBadRequest {
		t.Fatalf("keysrv: expected missing signature to fail, have %d", code)
	}
}

func TestLockLifecycle(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	_, id := do(t, "POST", srv.URL+"/keys", "")

	st := getStatus(t, srv.URL)
	if st.Scheme != "ed25519" || st.Crypted || st.Locked || st.Keys != 1 {
		t.Fatalf("keysrv: unexpected status %+v", st)
	}

	if code, _ := do(t, "POST", srv.URL+"/lock", ""); code != http.StatusConflict {
		t.Fatalf("keysrv: expected 409 locking a plaintext wallet, have %d", code)
	}
	if code, _ := do(t, "POST", srv.URL+"/encrypt", ""); code != http.StatusBadRequest {
		t.Fatalf("keysrv: expected 400 for an empty passphrase, have %d", code)
	}
	if code, body := do(t, "POST", srv.URL+"/encrypt", "passphrase"); code != http.StatusOK {
		t.Fatalf("keysrv: encrypt returned %d (%s)", code, body)
	}
	if code, _ := do(t, "POST", srv.URL+"/encrypt", "passphrase"); code != http.StatusConflict {
		t.Fatalf("keysrv: expected 409 encrypting twice, have %d", code)
	}

	st = getStatus(t, srv.URL)
	if !st.Crypted || st.Locked || st.Keys != 1 {
		t.Fatalf("keysrv: unexpected status %+v", st)
	}

	if code, _ := do(t, "POST", srv.URL+"/lock", ""); code != http.StatusOK {
		t.Fatalf("keysrv: lock returned %d", code)
	}
	if code, _ := do(t, "POST", srv.URL+"/sign/"+id, "hello"); code != http.StatusForbidden {
		t.Fatalf("keysrv: expected 403 signing with a locked wallet, have %d", code)
	}
	if code, _ := do(t, "POST", srv.URL+"/keys", ""); code != http.StatusForbidden {
		t.Fatalf("keysrv: expected 403 generating with a locked wallet, have %d", code)
	}
	if code, _ := do(t, "POST", srv.URL+"/unlock", "wrong"); code != http.StatusForbidden {
		t.Fatalf("keysrv: expected 403 for a wrong passphrase, have %d", code)
	}
	if !getStatus(t, srv.URL).Locked {
		t.Fatal("keysrv: wallet should still be locked")
	}

	if code, _ := do(t, "POST", srv.URL+"/unlock", "passphrase"); code != http.StatusOK {
		t.Fatalf("keysrv: unlock returned %d", code)
	}
	if code, _ := do(t, "POST", srv.URL+"/sign/"+id, "hello"); code != http.StatusOK {
		t.Fatalf("keysrv: signing after unlock returned %d", code)
	}
}

func TestRequestID(t *testing.T) {
	srv := testServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("%v", err)
	}
	resp.Body.Close()

	if _, err = uuid.Parse(resp.Header.Get("X-Request-Id")); err != nil {
		t.Fatalf("keysrv: invalid request ID: %v", err)
	}
}

func TestRunClosesWallet(t *testing.T) {
	if err := run(config{scheme: "rsa"}, nil); err != keypair.ErrUnknown {
		t.Fatalf("keysrv: expected unknown scheme, have %v", err)
	}

	errDone := errors.New("server stopped")
	var router http.Handler
	err := run(config{scheme: "ed25519"}, func(h http.Handler) error {
		router = h
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", "/keys", nil))
		if rec.Code != http.StatusCreated {
			t.Fatalf("keysrv: key generation returned %d", rec.Code)
		}
		return errDone
	})
	if err != errDone {
		t.Fatalf("keysrv: expected the serve error, have %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/keys", nil))
	if rec.Body.Len() != 0 {
		t.Fatal("keysrv: wallet keys survived shutdown")
	}
}

func TestStatusCode(t *testing.T) {
	if statusCode(keystore.ErrEncryptFailed) != http.StatusInternalServerError {
		t.Fatal("keysrv: encryption failure should be a server error")
	}
	if statusCode(wallet.ErrPRNG) != http.StatusInternalServerError {
		t.Fatal("keysrv: PRNG failure should be a server error")
	}
	if statusCode(keypair.ErrInvalidSecret) != http.StatusBadRequest {
		t.Fatal("keysrv: unknown errors should be bad requests")
	}
}
