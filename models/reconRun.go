package models

import "time"

// Reconciliation run statuses.
const (
	ReconRunStatusQueued  = "queued"
	ReconRunStatusRunning = "running"
	ReconRunStatusSuccess = "success"
	ReconRunStatusFailed  = "failed"
	ReconRunStatusPartial = "partial"
)

// Run trigger sources.
const (
	ReconTriggeredManual = "manual"
	ReconTriggeredRetry  = "retry"
	ReconTriggeredSystem = "system"
)

// ReconRun is one reconciliation batch over the source feeds.
type ReconRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	BusinessId    string     `gorm:"index;not null;size:64" json:"business_id"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	DryRun        bool       `gorm:"default:false" json:"dry_run"`
	StatsJSON     []byte     `gorm:"type:json" json:"stats"`
	RecordsMerged int        `json:"records_merged"`
	ErrorCount    int        `json:"error_count"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReconRunError is a per-record failure captured during a run. Retryable
// failures are picked up again by the next run; non-retryable ones need a
// source-side fix.
type ReconRunError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	RunId       uint      `gorm:"index;not null" json:"run_id"`
	BusinessId  string    `gorm:"index;not null;size:64" json:"business_id"`
	EntityType  string    `gorm:"size:32" json:"entity_type"`
	SourceKey   string    `gorm:"size:191" json:"source_key"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
