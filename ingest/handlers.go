package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/mergesync"
	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var validate = validator.New()

// submitEnvelope is the outer shape of a POST /ingest/events body. The inner
// event payload stays raw so the stored bytes match what was signed.
type submitEnvelope struct {
	BusinessId string          `json:"businessId" validate:"required"`
	EventType  string          `json:"eventType" validate:"required"`
	Data       json.RawMessage `json:"data" validate:"required"`
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// EventStore persists inbound events. The handler depends on this narrow
// surface rather than on gorm directly.
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.IngestionEvent) error
	FindByIdempotencyKey(ctx context.Context, businessId, idempotencyKey string) (*models.IngestionEvent, error)
}

type dbEventStore struct{}

func NewEventStore() EventStore { return dbEventStore{} }

func (dbEventStore) CreateEvent(ctx context.Context, event *models.IngestionEvent) error {
	return config.GetDB().WithContext(ctx).Create(event).Error
}

func (dbEventStore) FindByIdempotencyKey(ctx context.Context, businessId, idempotencyKey string) (*models.IngestionEvent, error) {
	var existing models.IngestionEvent
	if err := config.GetDB().WithContext(ctx).
		Where("business_id = ? AND idempotency_key = ?", businessId, idempotencyKey).
		Take(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// SubmitEventHandler accepts one authenticated event. The gate rejects bad
// deliveries before anything is persisted; an already-seen idempotency key
// returns the original event without reprocessing.
func SubmitEventHandler(gate *Gate, store EventStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		req := Request{
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			Body:           body,
			Authorization:  c.GetHeader("Authorization"),
			Algorithm:      c.GetHeader(HeaderAlgorithm),
			Signature:      c.GetHeader(HeaderSignature),
			Timestamp:      c.GetHeader(HeaderTimestamp),
			Nonce:          c.GetHeader(HeaderNonce),
			IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
		}
		if gateErr := gate.Verify(req); gateErr != nil {
			status := http.StatusUnauthorized
			if gateErr.Reason == ReasonMissingHeader {
				status = http.StatusBadRequest
			}
			if gateErr.Class == ClassRetryable {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": gateErr.Reason})
			return
		}

		var envelope submitEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ReasonInvalidPayload})
			return
		}
		if err := validate.Struct(&envelope); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ReasonInvalidPayload, "detail": err.Error()})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), envelope.BusinessId)
		correlationId, _ := utils.GetCorrelationIdFromContext(c.Request.Context())

		now := time.Now().UTC()
		event := models.IngestionEvent{
			EventId:        uuid.NewString(),
			BusinessId:     envelope.BusinessId,
			IdempotencyKey: req.IdempotencyKey,
			EventType:      envelope.EventType,
			Status:         models.IngestionStatusReceived,
			Payload:        []byte(envelope.Data),
			NextAttemptAt:  &now,
			CorrelationId:  correlationId,
		}
		if err := store.CreateEvent(ctx, &event); err != nil {
			if !isDuplicateKeyErr(err) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			existing, err := store.FindByIdempotencyKey(ctx, envelope.BusinessId, req.IdempotencyKey)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"eventId":          existing.EventId,
				"status":           existing.Status,
				"idempotentReplay": true,
			})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"eventId":          event.EventId,
			"status":           event.Status,
			"idempotentReplay": false,
		})
	}
}

// EventStatusHandler returns one event by its public id.
func EventStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := mergesync.ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB().WithContext(ctx)

		var event models.IngestionEvent
		if err := db.Where("event_id = ? AND business_id = ?", c.Param("id"), businessId).
			Take(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

// ReplayEventHandler requeues a dead or failed event at attempt zero.
func ReplayEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := mergesync.ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		db := config.GetDB().WithContext(ctx)

		var event models.IngestionEvent
		if err := db.Where("event_id = ? AND business_id = ?", c.Param("id"), businessId).
			Take(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if event.Status == models.IngestionStatusProcessing {
			c.JSON(http.StatusConflict, gin.H{"error": "event is currently processing"})
			return
		}

		if err := ReplayEvent(ctx, db, &event, time.Now().UTC()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"eventId": event.EventId, "status": models.IngestionStatusReceived})
	}
}

// DeadLettersHandler lists dead-letter rows, optionally filtered by status.
func DeadLettersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := mergesync.ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 100
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		status := models.DeadLetterStatus(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
		if status != "" && !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		records, err := models.ListDeadLetters(ctx, status, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deadLetters": records})
	}
}

// UpdateDeadLetterHandler moves a dead-letter row through its review lifecycle.
func UpdateDeadLetterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := mergesync.ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		record, err := models.UpdateDeadLetterStatus(ctx, c.Param("id"),
			models.DeadLetterStatus(strings.ToUpper(strings.TrimSpace(req.Status))))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "dead letter not found"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

// MetricsHandler serves the ingestion health snapshot.
func MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := mergesync.ResolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		metrics, err := CollectMetrics(ctx, config.GetDB(), businessId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, metrics)
	}
}
