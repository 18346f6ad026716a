package treasury

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestTransferSignsRequest(t *testing.T) {
	secret := []byte("test-secret")
	to := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}

		ts := r.Header.Get("X-Treasury-Timestamp")
		if ts != "1700000000" {
			t.Errorf("timestamp = %q", ts)
		}
		if got := r.Header.Get("X-Treasury-Key"); got != "key-id" {
			t.Errorf("key header = %q", got)
		}

		mac := hmac.New(sha256.New, secret)
		mac.Write([]byte(ts + http.MethodPost + transferPath + string(body)))
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("X-Treasury-Signature"); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}

		var req transferRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.To != to.Hex() || req.Amount != 750_000 {
			t.Errorf("request = %+v", req)
		}

		json.NewEncoder(w).Encode(transferResponse{ID: "t1", Status: "accepted"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-id", secret)
	c.nowUnix = func() int64 { return 1_700_000_000 }

	if err := c.Transfer(context.Background(), to, 750_000); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
}

func TestTransferRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transferResponse{ID: "t2", Status: "rejected"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", []byte("s"))
	if err := c.Transfer(context.Background(), common.Address{}, 1); err == nil {
		t.Fatal("expected error for rejected transfer")
	}
}

func TestTransferHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient funds", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", []byte("s"))
	if err := c.Transfer(context.Background(), common.Address{}, 1); err == nil {
		t.Fatal("expected error on HTTP 422")
	}
}

func TestSecretRoundTrip(t *testing.T) {
	blob, err := EncryptSecret([]byte("super-secret"), "pw")
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}

	got, err := DecryptSecret(blob, "pw")
	if err != nil {
		t.Fatalf("DecryptSecret: %v", err)
	}
	if string(got) != "super-secret" {
		t.Fatalf("decrypted %q", got)
	}

	if _, err := DecryptSecret(blob, "wrong"); err == nil {
		t.Fatal("expected failure with wrong password")
	}
}
