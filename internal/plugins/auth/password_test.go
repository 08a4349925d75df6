package auth

import (
	"strings"
	"testing"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := hashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$") {
		t.Errorf("unexpected PHC prefix: %s", hash)
	}
	if !verifyPassword("correct horse battery", hash) {
		t.Error("expected password to verify")
	}
	if verifyPassword("correct horse battery!", hash) {
		t.Error("expected wrong password to fail")
	}
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	a, _ := hashPassword("same-password")
	b, _ := hashPassword("same-password")
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, h := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA",
	} {
		if verifyPassword("anything", h) {
			t.Errorf("verifyPassword accepted malformed hash %q", h)
		}
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := generateToken()
	if len(a) != 64 || a == b {
		t.Errorf("expected distinct 64-char tokens, got %q and %q", a, b)
	}
	if len(hashToken(a)) != 64 || hashToken(a) == a {
		t.Error("hashToken should return a different 64-char digest")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  Taro@Example.COM "); got != "taro@example.com" {
		t.Errorf("normalizeEmail = %q", got)
	}
}
