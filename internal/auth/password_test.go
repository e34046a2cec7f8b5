package auth

import "testing"

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(4) // minimum cost, keeps the test fast

	hash, err := h.Hash("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the plaintext credential")
	}

	if !h.Verify(hash, "hunter2") {
		t.Fatal("expected matching credential to verify")
	}
	if h.Verify(hash, "hunter3") {
		t.Fatal("expected mismatched credential to fail")
	}
}
