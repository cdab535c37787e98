package models

import "time"

// Ingestion event statuses. Keep these as strings (DB values).
const (
	IngestionStatusReceived   = "RECEIVED"
	IngestionStatusProcessing = "PROCESSING"
	IngestionStatusDone       = "DONE"
	IngestionStatusFailed     = "FAILED"
)

// IngestionEvent is one authenticated inbound event. IdempotencyKey is unique
// per business: replays return the original row without reprocessing.
type IngestionEvent struct {
	ID             uint       `gorm:"primary_key" json:"id"`
	EventId        string     `gorm:"size:36;uniqueIndex;not null" json:"event_id"`
	BusinessId     string     `gorm:"uniqueIndex:uniq_ingest_idem,priority:1;size:64;not null" json:"business_id"`
	IdempotencyKey string     `gorm:"uniqueIndex:uniq_ingest_idem,priority:2;size:191;not null" json:"idempotency_key"`
	EventType      string     `gorm:"size:64;index;not null" json:"event_type"`
	Status         string     `gorm:"size:20;index;not null" json:"status"`
	AttemptNumber  int        `gorm:"default:0" json:"attempt_number"`
	Payload        []byte     `gorm:"type:json" json:"payload"`
	LastError      *string    `gorm:"type:text" json:"last_error"`
	NextAttemptAt  *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt       *time.Time `json:"locked_at"`
	LockedBy       *string    `gorm:"size:64" json:"locked_by"`
	CorrelationId  string     `gorm:"size:64;index" json:"correlation_id"`
	ProcessedAt    *time.Time `json:"processed_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
