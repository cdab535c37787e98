package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/utils"
	"gorm.io/gorm"
)

// DeadLetterStatus tracks the out-of-band recovery lifecycle of a poisoned event.
type DeadLetterStatus string

const (
	DeadLetterStatusOpen      DeadLetterStatus = "OPEN"
	DeadLetterStatusInReview  DeadLetterStatus = "IN_REVIEW"
	DeadLetterStatusResolved  DeadLetterStatus = "RESOLVED"
	DeadLetterStatusSucceeded DeadLetterStatus = "SUCCEEDED"
	DeadLetterStatusClosed    DeadLetterStatus = "CLOSED"
	DeadLetterStatusFailed    DeadLetterStatus = "FAILED"
)

func (s DeadLetterStatus) Valid() bool {
	switch s {
	case DeadLetterStatusOpen, DeadLetterStatusInReview, DeadLetterStatusResolved,
		DeadLetterStatusSucceeded, DeadLetterStatusClosed, DeadLetterStatusFailed:
		return true
	}
	return false
}

// DeadLetterRecord mirrors an event that exhausted retries or failed fatally.
// ReasonCode is stable and machine-matchable; ReasonDetail is free text.
type DeadLetterRecord struct {
	ID            uint             `gorm:"primary_key" json:"id"`
	DeadLetterKey string           `gorm:"size:36;uniqueIndex;not null" json:"dead_letter_key"`
	BusinessId    string           `gorm:"index;size:64;not null" json:"business_id"`
	EventKey      string           `gorm:"size:36;index;not null" json:"event_key"`
	ReasonCode    string           `gorm:"size:64;index;not null" json:"reason_code"`
	ReasonDetail  string           `gorm:"type:text" json:"reason_detail"`
	Status        DeadLetterStatus `gorm:"size:20;index;not null" json:"status"`
	AttemptCount  int              `json:"attempt_count"`
	ArchiveURL    string           `gorm:"size:512" json:"archive_url"`
	ResolvedAt    *time.Time       `json:"resolved_at"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListDeadLetters returns dead-letter rows for the business, optionally
// filtered by status, newest first.
func ListDeadLetters(ctx context.Context, status DeadLetterStatus, limit int) ([]DeadLetterRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	db := config.GetDB()
	q := db.WithContext(ctx).Where("business_id = ?", businessId)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var records []DeadLetterRecord
	if err := q.Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateDeadLetterStatus moves a dead-letter row to a new status by key.
func UpdateDeadLetterStatus(ctx context.Context, deadLetterKey string, status DeadLetterStatus) (*DeadLetterRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if !status.Valid() {
		return nil, errors.New("invalid dead letter status")
	}

	db := config.GetDB()
	var rec DeadLetterRecord
	if err := db.WithContext(ctx).
		Where("business_id = ? AND dead_letter_key = ?", businessId, deadLetterKey).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	updates := map[string]interface{}{"status": status}
	if status == DeadLetterStatusResolved || status == DeadLetterStatusSucceeded || status == DeadLetterStatusClosed {
		now := time.Now().UTC()
		updates["resolved_at"] = &now
	}
	if err := db.WithContext(ctx).Model(&DeadLetterRecord{}).
		Where("id = ?", rec.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	rec.Status = status
	return &rec, nil
}
