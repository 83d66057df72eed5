package antpool

import (
	"strings"
	"testing"

	"github.com/dreyes86/poolwatch/internal/credentials"
)

var testCreds = credentials.Triple{
	AccessKey: "access-key",
	SecretKey: "secret-key",
	UserID:    "miner01",
}

func TestSign_Deterministic(t *testing.T) {
	a := sign(testCreds, "1700000000000")
	b := sign(testCreds, "1700000000000")
	if a != b {
		t.Errorf("same inputs produced different signatures: %q vs %q", a, b)
	}
}

func TestSign_UppercaseHex(t *testing.T) {
	sig := sign(testCreds, "1700000000000")
	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64 (SHA-256 hex)", len(sig))
	}
	if sig != strings.ToUpper(sig) {
		t.Errorf("signature %q is not uppercase", sig)
	}
}

func TestSign_ChangesWithEachInput(t *testing.T) {
	base := sign(testCreds, "1700000000000")

	if got := sign(testCreds, "1700000000001"); got == base {
		t.Error("different nonce produced identical signature")
	}

	other := testCreds
	other.SecretKey = "other-secret"
	if got := sign(other, "1700000000000"); got == base {
		t.Error("different secret produced identical signature")
	}

	other = testCreds
	other.UserID = "miner02"
	if got := sign(other, "1700000000000"); got == base {
		t.Error("different user id produced identical signature")
	}
}

func TestAuthParams_IncludesSignedFields(t *testing.T) {
	v := authParams(testCreds, "1700000000000")

	if v.Get("key") != "access-key" {
		t.Errorf("key = %q, want access-key", v.Get("key"))
	}
	if v.Get("nonce") != "1700000000000" {
		t.Errorf("nonce = %q, want 1700000000000", v.Get("nonce"))
	}
	if v.Get("signature") != sign(testCreds, "1700000000000") {
		t.Error("signature field does not match sign()")
	}
	if v.Get("userId") != "miner01" || v.Get("clientUserId") != "miner01" {
		t.Error("userId/clientUserId not set from credentials")
	}
}

func TestNextNonce_NeverRepeats(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := nextNonce()
		if seen[n] {
			t.Fatalf("nonce %q repeated", n)
		}
		seen[n] = true
	}
}
