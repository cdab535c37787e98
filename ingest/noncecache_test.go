package ingest

import (
	"testing"
	"time"
)

func TestRedisNonceCacheErrorsWithoutRedis(t *testing.T) {
	c := NewRedisNonceCache()
	claimed, err := c.Claim("nonce-x", time.Minute)
	if err == nil {
		t.Fatal("expected an error when redis is not configured")
	}
	if claimed {
		t.Fatal("nonce must not be claimed without redis")
	}
}

func TestGateNonceBackendOutageIsRetryable(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)
	g.nonces = NewRedisNonceCache()

	// A nonce-store outage must not read as a replay rejection.
	req := signedRequest(g, now, "nonce-1", "idem-1", []byte("{}"))
	err := g.Verify(req)
	if err == nil || err.Reason != ReasonTransient || !err.Retryable() {
		t.Fatalf("got %v, want retryable %s", err, ReasonTransient)
	}
}
