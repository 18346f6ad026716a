package identity

import (
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestRecoverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	body := []byte(`{"op":"place_bet","match_id":1}`)
	sig, err := crypto.Sign(textHash(body), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := Recover(body, hexutil.Encode(sig))
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if got != addr {
		t.Fatalf("recovered %s, want %s", got.Hex(), addr.Hex())
	}
	if err := Verify(addr, body, hexutil.Encode(sig)); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestRecoverWalletStyleV(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	body := []byte("hello")
	sig, err := crypto.Sign(textHash(body), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	got, err := Recover(body, hexutil.Encode(sig))
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if got != addr {
		t.Fatalf("recovered %s, want %s", got.Hex(), addr.Hex())
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := crypto.Sign(textHash([]byte("original")), key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := Verify(addr, []byte("tampered"), hexutil.Encode(sig)); err == nil {
		t.Fatal("expected mismatch error for tampered body")
	}
}

func TestRecoverRejectsGarbage(t *testing.T) {
	if _, err := Recover([]byte("x"), "not-hex"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := Recover([]byte("x"), "0xdead"); err == nil {
		t.Fatal("expected length error")
	}
}
