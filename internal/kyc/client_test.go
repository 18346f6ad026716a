package kyc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestIsOver18(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req checkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Op != opIsOver18 || req.Account != account.Hex() {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(checkResponse{OK: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	ok, err := c.IsOver18(context.Background(), account)
	if err != nil {
		t.Fatalf("IsOver18: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
}

func TestIsOver18Denied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(checkResponse{OK: false})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ok, err := c.IsOver18(context.Background(), common.Address{})
	if err != nil {
		t.Fatalf("IsOver18: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false")
	}
}

func TestIsOver18ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.IsOver18(context.Background(), common.Address{}); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}
