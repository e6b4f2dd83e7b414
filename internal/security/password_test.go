package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if hash == "password123" {
		t.Fatalf("hash must not equal the plaintext")
	}

	if err := h.Compare(hash, "password123"); err != nil {
		t.Fatalf("Compare with the right password: %v", err)
	}

	if err := h.Compare(hash, "password124"); err == nil {
		t.Fatalf("Compare with the wrong password should fail")
	}
}

func TestBcryptHasher_SaltsEachHash(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	a, _ := h.Hash("same")
	b, _ := h.Hash("same")

	if a == b {
		t.Fatalf("two hashes of the same password should differ")
	}
}

func TestHashPassword_DefaultCost(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("cost = %d, want %d", cost, bcrypt.DefaultCost)
	}

	if err := CheckPassword(hash, "secret1"); err != nil {
		t.Fatalf("CheckPassword: %v", err)
	}
}
