package ingest

import (
	"strings"
	"testing"
)

func TestCanonicalStringShape(t *testing.T) {
	canonical := CanonicalString("post", "/ingest/events", "1700000000", "nonce-1", "idem-1", []byte(`{"a":1}`))
	parts := strings.Split(canonical, "\n")
	if len(parts) != 6 {
		t.Fatalf("canonical string has %d parts, want 6", len(parts))
	}
	if parts[0] != "POST" {
		t.Fatalf("method not upper-cased: %q", parts[0])
	}
	if len(parts[5]) != 64 {
		t.Fatalf("body digest length = %d, want 64 hex chars", len(parts[5]))
	}
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	secret := []byte("shared-secret")
	canonical := CanonicalString("POST", "/ingest/events", "1700000000", "n1", "k1", []byte("{}"))
	sig := ComputeSignature(secret, canonical)

	if !VerifySignature(secret, canonical, sig) {
		t.Fatal("valid signature rejected")
	}
	if !VerifySignature(secret, canonical, strings.ToUpper(sig)) {
		t.Fatal("case-insensitive hex must verify")
	}
	if VerifySignature(secret, canonical, sig[:len(sig)-2]+"00") {
		t.Fatal("tampered signature accepted")
	}
	if VerifySignature([]byte("other-secret"), canonical, sig) {
		t.Fatal("wrong secret accepted")
	}
	if VerifySignature(secret, canonical, "zz"+sig[2:]) {
		t.Fatal("non-hex signature accepted")
	}
	if VerifySignature(secret, canonical, "") {
		t.Fatal("empty signature accepted")
	}
}

func TestSignatureCoversEveryField(t *testing.T) {
	secret := []byte("s")
	base := []string{"POST", "/ingest/events", "1700000000", "n1", "k1"}
	body := []byte(`{"x":true}`)
	sig := ComputeSignature(secret, CanonicalString(base[0], base[1], base[2], base[3], base[4], body))

	mutations := []struct {
		name      string
		canonical string
	}{
		{"method", CanonicalString("PUT", base[1], base[2], base[3], base[4], body)},
		{"path", CanonicalString(base[0], "/other", base[2], base[3], base[4], body)},
		{"timestamp", CanonicalString(base[0], base[1], "1700000001", base[3], base[4], body)},
		{"nonce", CanonicalString(base[0], base[1], base[2], "n2", base[4], body)},
		{"idempotency key", CanonicalString(base[0], base[1], base[2], base[3], "k2", body)},
		{"body", CanonicalString(base[0], base[1], base[2], base[3], base[4], []byte(`{"x":false}`))},
	}
	for _, m := range mutations {
		if VerifySignature(secret, m.canonical, sig) {
			t.Fatalf("changing %s did not invalidate the signature", m.name)
		}
	}
}
