package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"github.com/gin-gonic/gin"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type fakeEventStore struct {
	createErr error
	created   []*models.IngestionEvent
	existing  *models.IngestionEvent
}

func (s *fakeEventStore) CreateEvent(ctx context.Context, event *models.IngestionEvent) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, event)
	return nil
}

func (s *fakeEventStore) FindByIdempotencyKey(ctx context.Context, businessId, idempotencyKey string) (*models.IngestionEvent, error) {
	if s.existing == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.existing, nil
}

func submitRouter(g *Gate, store EventStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ingest/events", SubmitEventHandler(g, store))
	return r
}

func signedHTTPRequest(g *Gate, ts time.Time, nonce, idemKey string, body []byte) *http.Request {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	canonical := CanonicalString("POST", "/ingest/events", timestamp, nonce, idemKey, body)
	req := httptest.NewRequest(http.MethodPost, "/ingest/events", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer bearer-secret")
	req.Header.Set(HeaderAlgorithm, SignatureAlgorithm)
	req.Header.Set(HeaderSignature, ComputeSignature(g.signingSecret, canonical))
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderIdempotencyKey, idemKey)
	return req
}

var submitBody = []byte(`{"businessId":"biz1","eventType":"payment.settled","data":{"channelCode":"DIRECT","reference":"PAY-1"}}`)

func TestSubmitEventAccepted(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)
	store := &fakeEventStore{}
	r := submitRouter(g, store)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedHTTPRequest(g, now, "nonce-1", "idem-1", submitBody))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["idempotentReplay"] != false {
		t.Fatalf("idempotentReplay = %v, want false", resp["idempotentReplay"])
	}
	if len(store.created) != 1 {
		t.Fatalf("created %d events, want 1", len(store.created))
	}
	event := store.created[0]
	if event.Status != models.IngestionStatusReceived {
		t.Fatalf("event status = %s, want %s", event.Status, models.IngestionStatusReceived)
	}
	if event.IdempotencyKey != "idem-1" || event.BusinessId != "biz1" {
		t.Fatalf("event not keyed to the delivery: %+v", event)
	}
}

func TestSubmitEventIdempotentReplay(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)
	store := &fakeEventStore{
		createErr: &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"},
		existing: &models.IngestionEvent{
			EventId:        "evt-original",
			BusinessId:     "biz1",
			IdempotencyKey: "idem-1",
			Status:         models.IngestionStatusDone,
		},
	}
	r := submitRouter(g, store)

	// Same idempotency key, fresh nonce: the original event comes back
	// without a second row being written.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedHTTPRequest(g, now, "nonce-2", "idem-1", submitBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["idempotentReplay"] != true {
		t.Fatalf("idempotentReplay = %v, want true", resp["idempotentReplay"])
	}
	if resp["eventId"] != "evt-original" {
		t.Fatalf("eventId = %v, want the original event", resp["eventId"])
	}
	if len(store.created) != 0 {
		t.Fatalf("replay must not persist a new event, created %d", len(store.created))
	}
}

func TestSubmitEventRejectsUnsignedDelivery(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := testGate(now)
	store := &fakeEventStore{}
	r := submitRouter(g, store)

	req := signedHTTPRequest(g, now, "nonce-3", "idem-3", submitBody)
	req.Header.Del(HeaderSignature)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(store.created) != 0 {
		t.Fatalf("rejected delivery must not persist, created %d", len(store.created))
	}
}
