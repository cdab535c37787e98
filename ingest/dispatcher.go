package ingest

import (
	"context"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessorFunc applies one claimed event. Failures are classified by
// Classify and routed through the retry schedule.
type ProcessorFunc func(ctx context.Context, db *gorm.DB, event *models.IngestionEvent) error

// Dispatcher drains due ingestion events. Claiming uses row locks with
// SKIP LOCKED so several instances can run; the optional redis lock keeps
// only one instance polling at a time to avoid wasted claim transactions.
type Dispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Processor    ProcessorFunc
	DispatcherID string

	BatchSize    int
	PollInterval time.Duration
	LockTimeout  time.Duration

	Settings config.IngestSettings
	Now      func() time.Time
}

func NewDispatcher(db *gorm.DB, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		DB:           db,
		Logger:       logger,
		Processor:    ProcessEvent,
		DispatcherID: uuid.NewString(),
		BatchSize:    50,
		PollInterval: time.Second,
		LockTimeout:  30 * time.Second,
		Settings:     config.GetIngestSettings(),
		Now:          time.Now,
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *Dispatcher) dispatchOnce(ctx context.Context) {
	if d.DB == nil {
		return
	}

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "ingest:dispatcher", d.LockTimeout, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer func() { _ = lock.Release(ctx) }()
		}
	}

	claimed := d.claimBatch(ctx)
	for i := range claimed {
		d.processOne(ctx, &claimed[i])
	}
}

// claimBatch marks a batch of due events PROCESSING under row locks.
// Eligible rows: RECEIVED and due, or PROCESSING with a stale lock from a
// crashed worker.
func (d *Dispatcher) claimBatch(ctx context.Context) []models.IngestionEvent {
	now := d.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.IngestionEvent
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where(`
				(
					status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, models.IngestionStatusReceived, now, models.IngestionStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = models.IngestionStatusProcessing
			claimed[i].AttemptNumber++
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			if err := tx.Model(&models.IngestionEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":          models.IngestionStatusProcessing,
				"attempt_number":  gorm.Expr("attempt_number + 1"),
				"locked_at":       &now,
				"locked_by":       &d.DispatcherID,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithField("dispatcher_id", d.DispatcherID).Error("ingest claim batch failed: " + err.Error())
		}
		return nil
	}
	return claimed
}

func (d *Dispatcher) processOne(ctx context.Context, event *models.IngestionEvent) {
	eventCtx := utils.SetBusinessIdInContext(ctx, event.BusinessId)
	if event.CorrelationId != "" {
		eventCtx = utils.SetCorrelationIdInContext(eventCtx, event.CorrelationId)
	}

	err := d.Processor(eventCtx, d.DB, event)
	if err == nil {
		now := d.Now().UTC()
		_ = d.DB.WithContext(eventCtx).Model(&models.IngestionEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"status":       models.IngestionStatusDone,
				"processed_at": &now,
				"last_error":   nil,
				"locked_at":    nil,
				"locked_by":    nil,
			}).Error
		_ = resolveDeadLetter(eventCtx, d.DB, event)
		return
	}

	cause := Classify(err)
	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"event_id":    event.EventId,
			"business_id": event.BusinessId,
			"event_type":  event.EventType,
			"attempt":     event.AttemptNumber,
			"reason":      cause.Reason,
			"retryable":   cause.Retryable(),
		}).Warn("ingest event attempt failed")
	}
	if hErr := HandleFailure(eventCtx, d.DB, event, cause, d.Settings, d.Now().UTC()); hErr != nil {
		config.LogError(config.GetLogger(), "ingest", "processOne", "failure handling failed", event.EventId, hErr)
	}
}
