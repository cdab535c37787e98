package ingest

import (
	"strconv"
	"testing"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/utils"
)

func hashForTest(s string) (string, error) {
	b, err := utils.HashSecret(s)
	return string(b), err
}

func testGate(now time.Time) (*Gate, *MemoryNonceCache) {
	nonces := NewMemoryNonceCache()
	nonces.Now = func() time.Time { return now }
	g := &Gate{
		bearerToken:   []byte("bearer-secret"),
		signingSecret: []byte("signing-secret"),
		drift:         5 * time.Minute,
		nonceTTL:      10 * time.Minute,
		nonces:        nonces,
		now:           func() time.Time { return now },
	}
	return g, nonces
}

func signedRequest(g *Gate, ts time.Time, nonce, idemKey string, body []byte) Request {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	canonical := CanonicalString("POST", "/ingest/events", timestamp, nonce, idemKey, body)
	return Request{
		Method:         "POST",
		Path:           "/ingest/events",
		Body:           body,
		Authorization:  "Bearer bearer-secret",
		Algorithm:      SignatureAlgorithm,
		Signature:      ComputeSignature(g.signingSecret, canonical),
		Timestamp:      timestamp,
		Nonce:          nonce,
		IdempotencyKey: idemKey,
	}
}

func TestGateAcceptsValidRequest(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)

	req := signedRequest(g, now, "nonce-1", "idem-1", []byte(`{"eventType":"payment.settled"}`))
	if err := g.Verify(req); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestGateRejectsBadBearer(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)

	req := signedRequest(g, now, "nonce-1", "idem-1", []byte("{}"))
	req.Authorization = "Bearer wrong"
	err := g.Verify(req)
	if err == nil || err.Reason != ReasonAuthBearer {
		t.Fatalf("got %v, want %s", err, ReasonAuthBearer)
	}

	req.Authorization = ""
	if err := g.Verify(req); err == nil || err.Reason != ReasonAuthBearer {
		t.Fatalf("missing authorization: got %v, want %s", err, ReasonAuthBearer)
	}
}

func TestGateRejectsTamperedBody(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)

	req := signedRequest(g, now, "nonce-1", "idem-1", []byte(`{"amount":100}`))
	req.Body = []byte(`{"amount":999}`)
	if err := g.Verify(req); err == nil || err.Reason != ReasonAuthSignature {
		t.Fatalf("got %v, want %s", err, ReasonAuthSignature)
	}
}

func TestGateRejectsUnsupportedAlgorithm(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)

	req := signedRequest(g, now, "nonce-1", "idem-1", []byte("{}"))
	req.Algorithm = "HMAC-MD5"
	if err := g.Verify(req); err == nil || err.Reason != ReasonAuthAlgorithm {
		t.Fatalf("got %v, want %s", err, ReasonAuthAlgorithm)
	}

	// Omitting the algorithm header is not an implicit opt-in to the default.
	req2 := signedRequest(g, now, "nonce-2", "idem-2", []byte("{}"))
	req2.Algorithm = ""
	if err := g.Verify(req2); err == nil || err.Reason != ReasonMissingHeader {
		t.Fatalf("empty algorithm: got %v, want %s", err, ReasonMissingHeader)
	}
}

func TestGateTimestampDriftBoundary(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)

	// Exactly at the drift limit passes, one second beyond fails, in both
	// directions.
	cases := []struct {
		name   string
		ts     time.Time
		nonce  string
		wantOK bool
	}{
		{"at limit past", now.Add(-5 * time.Minute), "n1", true},
		{"beyond limit past", now.Add(-5*time.Minute - time.Second), "n2", false},
		{"at limit future", now.Add(5 * time.Minute), "n3", true},
		{"beyond limit future", now.Add(5*time.Minute + time.Second), "n4", false},
	}
	for _, tc := range cases {
		req := signedRequest(g, tc.ts, tc.nonce, "idem-"+tc.nonce, []byte("{}"))
		err := g.Verify(req)
		if tc.wantOK && err != nil {
			t.Fatalf("%s: rejected: %v", tc.name, err)
		}
		if !tc.wantOK && (err == nil || err.Reason != ReasonStaleTimestamp) {
			t.Fatalf("%s: got %v, want %s", tc.name, err, ReasonStaleTimestamp)
		}
	}
}

func TestGateRejectsNonceReplay(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)

	req := signedRequest(g, now, "nonce-once", "idem-1", []byte("{}"))
	if err := g.Verify(req); err != nil {
		t.Fatalf("first delivery rejected: %v", err)
	}

	// Identical, fully valid delivery with the same nonce must be refused.
	replay := signedRequest(g, now, "nonce-once", "idem-2", []byte("{}"))
	if err := g.Verify(replay); err == nil || err.Reason != ReasonNonceReplay {
		t.Fatalf("got %v, want %s", err, ReasonNonceReplay)
	}
}

func TestGateNonceReusableAfterTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, nonces := testGate(now)

	req := signedRequest(g, now, "nonce-ttl", "idem-1", []byte("{}"))
	if err := g.Verify(req); err != nil {
		t.Fatalf("first delivery rejected: %v", err)
	}

	later := now.Add(11 * time.Minute)
	nonces.Now = func() time.Time { return later }
	g.now = func() time.Time { return later }

	again := signedRequest(g, later, "nonce-ttl", "idem-2", []byte("{}"))
	if err := g.Verify(again); err != nil {
		t.Fatalf("nonce after TTL expiry rejected: %v", err)
	}
}

func TestGateRequiresHeaders(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)

	req := signedRequest(g, now, "nonce-1", "idem-1", []byte("{}"))
	req.IdempotencyKey = ""
	if err := g.Verify(req); err == nil || err.Reason != ReasonMissingHeader {
		t.Fatalf("got %v, want %s", err, ReasonMissingHeader)
	}
}

func TestGateBcryptBearer(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)
	hashed, err := hashForTest("bearer-secret")
	if err != nil {
		t.Fatal(err)
	}
	g.bearerBcrypt = hashed
	g.bearerToken = nil

	req := signedRequest(g, now, "nonce-1", "idem-1", []byte("{}"))
	if err := g.Verify(req); err != nil {
		t.Fatalf("bcrypt bearer rejected: %v", err)
	}

	req2 := signedRequest(g, now, "nonce-2", "idem-2", []byte("{}"))
	req2.Authorization = "Bearer wrong"
	if err := g.Verify(req2); err == nil || err.Reason != ReasonAuthBearer {
		t.Fatalf("got %v, want %s", err, ReasonAuthBearer)
	}
}
