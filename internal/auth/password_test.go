package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if hash == "correct-horse" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("hash = %q, want bcrypt hash", hash)
	}

	ok, err := h.Compare(hash, "correct-horse")
	if err != nil || !ok {
		t.Errorf("Compare(correct) = %v, %v; want true, nil", ok, err)
	}

	ok, err = h.Compare(hash, "wrong-horse")
	if err != nil || ok {
		t.Errorf("Compare(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestBcryptHasher_CompareMalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	if _, err := h.Compare("not-a-hash", "password"); err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestNewBcryptHasher_OutOfRangeCostFallsBack(t *testing.T) {
	for _, cost := range []int{0, bcrypt.MaxCost + 1} {
		if h := NewBcryptHasher(cost); h.cost != bcrypt.DefaultCost {
			t.Errorf("NewBcryptHasher(%d).cost = %d, want %d", cost, h.cost, bcrypt.DefaultCost)
		}
	}
}
