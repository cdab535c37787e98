package mergesync

import (
	"encoding/json"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"github.com/shopspring/decimal"
)

// SourceRecord is one row read verbatim from a source system, plus the
// signals used for primary selection. Immutable once read; lives for one run.
type SourceRecord struct {
	SourceSystem     string
	SourceTable      string
	SourcePrimaryKey string

	ChannelCode       models.ChannelCode
	ExternalReference string

	// Raw status/payment fields as the source reports them.
	StatusText           string
	PaymentStatusText    string
	PaidFlag             *bool
	PaymentEvidenceCount int

	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	CustomerLocation string

	ProductCode string
	AdultCount  int
	ChildCount  int
	TotalAmount decimal.Decimal
	Currency    string
	TravelDate  *time.Time
	UpdatedAt   time.Time

	Items []SourceLineItem
}

// SourceLineItem is an itemized component row from a source, when it has one.
type SourceLineItem struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
}

// SourceProduct is one catalog row from a source system.
type SourceProduct struct {
	SourceSystem     string
	SourceTable      string
	SourcePrimaryKey string

	ProductCode  string
	Name         string
	Description  string
	DurationDays int
	AdultPrice   decimal.Decimal
	ChildPrice   decimal.Decimal
	Currency     string
	Active       bool
	UpdatedAt    time.Time
}

// SourcePayment is one payment row from a source system. BookingReference is
// the source's pointer back to its booking, used to build finance bridges.
type SourcePayment struct {
	SourceSystem     string
	SourceTable      string
	SourcePrimaryKey string

	ChannelCode      models.ChannelCode
	PaymentReference string
	BookingReference string
	StatusText       string
	Amount           decimal.Decimal
	Currency         string
	Method           string
	PaidAt           *time.Time
	UpdatedAt        time.Time
}

// GroupKey identifies one canonical entity across sources.
// ExternalReference is normalized (upper-cased, trimmed) before keying.
type GroupKey struct {
	ChannelCode       models.ChannelCode
	ExternalReference string
}

// IdentityGroup is the set of source records believed to be the same entity.
// Sources reference their group by key, never by pointer.
type IdentityGroup struct {
	Key     GroupKey
	Primary SourceRecord
	Sources []SourceRecord
}

// MergedBooking is the resolved field set for one identity group, ready for
// the sync worker to upsert.
type MergedBooking struct {
	CanonicalKey      string
	BusinessId        string
	ChannelCode       models.ChannelCode
	ExternalReference string
	PrimarySource     string
	PrimarySourceKey  string
	SourceScore       int

	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	CustomerLocation string

	PaymentStatus     models.PaymentStatus
	FulfillmentStatus models.FulfillmentStatus

	ProductCode string
	AdultCount  int
	ChildCount  int
	TotalAmount decimal.Decimal
	Currency    string
	TravelDate  *time.Time

	Items   []models.BookingItem
	Sources []SourceRecord
}

// ReconPubSubPayload triggers one run via Pub/Sub.
type ReconPubSubPayload struct {
	RunId      uint   `json:"run_id"`
	BusinessId string `json:"business_id"`
	DryRun     bool   `json:"dry_run"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type TriggerRunRequest struct {
	DryRun bool `json:"dryRun"`
}

type RunResponse struct {
	ID            uint    `json:"id"`
	Status        string  `json:"status"`
	DryRun        bool    `json:"dryRun"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
	DurationMs    int64   `json:"durationMs"`
	RecordsMerged int     `json:"recordsMerged"`
	ErrorCount    int     `json:"errorCount"`
	TriggeredBy   string  `json:"triggeredBy"`
}

type RunDetailResponse struct {
	RunResponse
	Stats  map[string]int     `json:"stats"`
	Errors []RunErrorResponse `json:"errors"`
}

type RunErrorResponse struct {
	ID         uint   `json:"id"`
	EntityType string `json:"entityType"`
	SourceKey  string `json:"sourceKey"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

func DecodeStats(raw []byte) map[string]int {
	if len(raw) == 0 {
		return map[string]int{}
	}
	var stats map[string]int
	if err := json.Unmarshal(raw, &stats); err != nil {
		return map[string]int{}
	}
	return stats
}
