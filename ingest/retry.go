package ingest

import (
	"context"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DelayForAttempt returns the wait before the given attempt (1-based) runs
// again. Attempts beyond the schedule reuse its last entry.
func DelayForAttempt(schedule []time.Duration, attempt int) time.Duration {
	if len(schedule) == 0 {
		return time.Minute
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}

// failureAction is the verdict for one failed attempt: either the event dead
// letters with a reason, or it waits NextDelay before the next attempt.
type failureAction struct {
	DeadLetter bool
	Reason     string
	NextDelay  time.Duration
}

// decideFailure applies the retry policy to a classified failure.
func decideFailure(cause *Error, attemptNumber int, settings config.IngestSettings) failureAction {
	if cause.Class == ClassFatal {
		return failureAction{DeadLetter: true, Reason: cause.Reason}
	}
	if attemptNumber >= settings.MaxAttempts {
		return failureAction{DeadLetter: true, Reason: ReasonMaxAttempts}
	}
	return failureAction{NextDelay: DelayForAttempt(settings.RetrySchedule, attemptNumber)}
}

// newDeadLetterRecord mirrors a poisoned event into the review queue. Always
// lands OPEN; operators move it through IN_REVIEW and RESOLVED.
func newDeadLetterRecord(event *models.IngestionEvent, reason, detail, archiveURL string) models.DeadLetterRecord {
	return models.DeadLetterRecord{
		DeadLetterKey: uuid.NewString(),
		BusinessId:    event.BusinessId,
		EventKey:      event.EventId,
		ReasonCode:    reason,
		ReasonDetail:  detail,
		Status:        models.DeadLetterStatusOpen,
		AttemptCount:  event.AttemptNumber,
		ArchiveURL:    archiveURL,
	}
}

// HandleFailure decides what happens to an event after a failed attempt:
// schedule the next retry, or move it to the dead-letter queue when the
// failure is fatal or the attempt budget is spent.
func HandleFailure(ctx context.Context, db *gorm.DB, event *models.IngestionEvent, cause *Error, settings config.IngestSettings, now time.Time) error {
	detail := cause.Error()

	action := decideFailure(cause, event.AttemptNumber, settings)
	if action.DeadLetter {
		return deadLetter(ctx, db, event, action.Reason, detail)
	}

	next := now.Add(action.NextDelay)
	return db.WithContext(ctx).Model(&models.IngestionEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]interface{}{
			"status":          models.IngestionStatusReceived,
			"next_attempt_at": next,
			"last_error":      &detail,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error
}

// deadLetter freezes the event as FAILED and mirrors it into the dead-letter
// queue with a stable reason code. The raw payload is archived to object
// storage when a bucket is configured.
func deadLetter(ctx context.Context, db *gorm.DB, event *models.IngestionEvent, reason, detail string) error {
	archiveURL, err := utils.ArchiveDeadLetterPayload(ctx, event.EventId, event.Payload)
	if err != nil {
		config.LogError(config.GetLogger(), "ingest", "deadLetter", "payload archive failed", event.EventId, err)
		archiveURL = ""
	}

	record := newDeadLetterRecord(event, reason, detail, archiveURL)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return tx.Model(&models.IngestionEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"status":          models.IngestionStatusFailed,
				"last_error":      &detail,
				"next_attempt_at": nil,
				"locked_at":       nil,
				"locked_by":       nil,
			}).Error
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"event_id":    event.EventId,
		"business_id": event.BusinessId,
		"reason":      reason,
		"attempts":    event.AttemptNumber,
	}).Warn("event moved to dead letter queue")
	return nil
}

// ReplayEvent requeues a dead event for immediate processing with a fresh
// attempt budget. The dead-letter row, if any, moves to IN_REVIEW so the
// operator can track the outcome.
func ReplayEvent(ctx context.Context, db *gorm.DB, event *models.IngestionEvent, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.IngestionEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"status":          models.IngestionStatusReceived,
				"attempt_number":  0,
				"next_attempt_at": now,
				"last_error":      nil,
				"locked_at":       nil,
				"locked_by":       nil,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.DeadLetterRecord{}).
			Where("business_id = ? AND event_key = ? AND status = ?",
				event.BusinessId, event.EventId, models.DeadLetterStatusOpen).
			Update("status", models.DeadLetterStatusInReview).Error
	})
}

// resolveDeadLetter closes the review loop after a replayed event finally
// processes. No-op when the event never dead-lettered.
func resolveDeadLetter(ctx context.Context, db *gorm.DB, event *models.IngestionEvent) error {
	return db.WithContext(ctx).Model(&models.DeadLetterRecord{}).
		Where("business_id = ? AND event_key = ? AND status = ?",
			event.BusinessId, event.EventId, models.DeadLetterStatusInReview).
		Update("status", models.DeadLetterStatusResolved).Error
}
