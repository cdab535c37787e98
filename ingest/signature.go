package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SignatureAlgorithm is the only accepted value of the algorithm header.
const SignatureAlgorithm = "HMAC-SHA256"

// CanonicalString builds the exact byte sequence both sides sign:
// method, path, timestamp, nonce, idempotency key, and the lowercase hex
// SHA-256 of the raw body, joined by newlines. The body digest stands in for
// the body itself so the string stays bounded.
func CanonicalString(method, path, timestamp, nonce, idempotencyKey string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	parts := []string{
		strings.ToUpper(method),
		path,
		timestamp,
		nonce,
		idempotencyKey,
		hex.EncodeToString(bodyHash[:]),
	}
	return strings.Join(parts, "\n")
}

// ComputeSignature returns the lowercase hex HMAC-SHA256 of the canonical
// string under the shared secret.
func ComputeSignature(secret []byte, canonical string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected signature and compares in constant
// time. The presented value is hex-decoded first so case differences and
// malformed values fail without leaking position information.
func VerifySignature(secret []byte, canonical, presented string) bool {
	expected := ComputeSignature(secret, canonical)

	presentedRaw, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(presented)))
	if err != nil {
		return false
	}
	expectedRaw, _ := hex.DecodeString(expected)
	if len(presentedRaw) != len(expectedRaw) {
		return false
	}
	return subtle.ConstantTimeCompare(presentedRaw, expectedRaw) == 1
}
