package ingest

import (
	"crypto/subtle"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/utils"
)

// Header names the gate reads.
const (
	HeaderAlgorithm      = "X-Signature-Algorithm"
	HeaderSignature      = "X-Signature"
	HeaderTimestamp      = "X-Timestamp"
	HeaderNonce          = "X-Nonce"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

// Request carries everything the gate verifies about one inbound delivery.
type Request struct {
	Method         string
	Path           string
	Body           []byte
	Authorization  string
	Algorithm      string
	Signature      string
	Timestamp      string
	Nonce          string
	IdempotencyKey string
}

// Gate authenticates inbound webhook deliveries. Checks run in a fixed order
// so a rejected request always reports the first failing layer: bearer,
// signature, timestamp freshness, then nonce replay. Idempotency dedupe is
// the DB layer's job after the gate passes.
type Gate struct {
	bearerToken   []byte
	bearerBcrypt  string
	signingSecret []byte
	drift         time.Duration
	nonceTTL      time.Duration
	nonces        NonceCache
	now           func() time.Time
}

// NewGate wires a gate from the environment. WEBHOOK_BEARER_BCRYPT takes
// precedence over WEBHOOK_BEARER_TOKEN when both are set.
func NewGate(nonces NonceCache) *Gate {
	settings := config.GetIngestSettings()
	return &Gate{
		bearerToken:   []byte(strings.TrimSpace(os.Getenv("WEBHOOK_BEARER_TOKEN"))),
		bearerBcrypt:  strings.TrimSpace(os.Getenv("WEBHOOK_BEARER_BCRYPT")),
		signingSecret: []byte(strings.TrimSpace(os.Getenv("WEBHOOK_SIGNING_SECRET"))),
		drift:         settings.TimestampDrift,
		nonceTTL:      settings.NonceTTL,
		nonces:        nonces,
		now:           time.Now,
	}
}

// Verify runs every gate layer against one delivery. A nil return means the
// request is authentic, fresh, and first-seen.
func (g *Gate) Verify(req Request) *Error {
	if req.Algorithm == "" || req.Signature == "" || req.Timestamp == "" || req.Nonce == "" || req.IdempotencyKey == "" {
		return authErr(ReasonMissingHeader, "algorithm, signature, timestamp, nonce and idempotency key are required")
	}

	if err := g.verifyBearer(req.Authorization); err != nil {
		return err
	}

	if !strings.EqualFold(req.Algorithm, SignatureAlgorithm) {
		return authErr(ReasonAuthAlgorithm, "unsupported signature algorithm")
	}

	canonical := CanonicalString(req.Method, req.Path, req.Timestamp, req.Nonce, req.IdempotencyKey, req.Body)
	if !VerifySignature(g.signingSecret, canonical, req.Signature) {
		return authErr(ReasonAuthSignature, "signature mismatch")
	}

	ts, ok := parseTimestamp(req.Timestamp)
	if !ok {
		return authErr(ReasonStaleTimestamp, "unparseable timestamp")
	}
	drift := g.now().Sub(ts)
	if drift < 0 {
		drift = -drift
	}
	if drift > g.drift {
		return authErr(ReasonStaleTimestamp, "timestamp outside accepted drift")
	}

	claimed, err := g.nonces.Claim(req.Nonce, g.nonceTTL)
	if err != nil {
		return RetryableErr(ReasonTransient, err)
	}
	if !claimed {
		return authErr(ReasonNonceReplay, "nonce already seen")
	}

	return nil
}

func (g *Gate) verifyBearer(authorization string) *Error {
	token := strings.TrimSpace(authorization)
	if !strings.HasPrefix(token, "Bearer ") {
		return authErr(ReasonAuthBearer, "missing bearer token")
	}
	token = strings.TrimPrefix(token, "Bearer ")

	if g.bearerBcrypt != "" {
		if err := utils.CompareSecret(g.bearerBcrypt, token); err != nil {
			return authErr(ReasonAuthBearer, "bearer token rejected")
		}
		return nil
	}
	if len(g.bearerToken) == 0 {
		return authErr(ReasonAuthBearer, "no bearer credential configured")
	}
	if subtle.ConstantTimeCompare([]byte(token), g.bearerToken) != 1 {
		return authErr(ReasonAuthBearer, "bearer token rejected")
	}
	return nil
}

// parseTimestamp accepts RFC 3339 or unix seconds.
func parseTimestamp(raw string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}
