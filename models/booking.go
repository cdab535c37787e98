package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking is the canonical merged booking. Addressed by its derived key;
// never deleted by reconciliation (soft states only).
type Booking struct {
	CanonicalKey      string            `gorm:"primary_key;size:36" json:"canonical_key"`
	BusinessId        string            `gorm:"uniqueIndex:idx_booking_identity,priority:1;size:64;not null" json:"business_id"`
	ChannelCode       ChannelCode       `gorm:"uniqueIndex:idx_booking_identity,priority:2;size:32;not null" json:"channel_code"`
	ExternalReference string            `gorm:"uniqueIndex:idx_booking_identity,priority:3;size:128;not null" json:"external_reference"`
	PrimarySource     string            `gorm:"size:32;not null" json:"primary_source"`
	PrimarySourceKey  string            `gorm:"size:128" json:"primary_source_key"`

	CustomerName          string        `gorm:"size:255" json:"customer_name"`
	CustomerEmail         string        `gorm:"size:255" json:"customer_email"`
	CustomerPhone         string        `gorm:"size:64" json:"customer_phone"`
	CustomerLocation      string        `gorm:"size:255" json:"customer_location"`
	CustomerPaymentStatus PaymentStatus `gorm:"size:32;index;not null" json:"customer_payment_status"`

	FulfillmentStatus FulfillmentStatus `gorm:"size:32;index;not null" json:"fulfillment_status"`
	MappingState      MappingState      `gorm:"size:16;index;not null;default:MAPPED" json:"mapping_state"`

	TourProductKey *string         `gorm:"size:36;index" json:"tour_product_key"`
	AdultCount     int             `json:"adult_count"`
	ChildCount     int             `json:"child_count"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_amount"`
	Currency       string          `gorm:"size:8" json:"currency"`

	TravelDate    *time.Time `json:"travel_date"`
	SourceScore   int        `json:"source_score"`
	LastRunId     uint       `gorm:"index" json:"last_run_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Items []BookingItem `gorm:"foreignKey:BookingKey;references:CanonicalKey" json:"items"`
}

// BookingItem is one component line of a booking. Synthetic rows are derived
// from the aggregate head record when a source supplies no itemized data.
type BookingItem struct {
	ID         uint            `gorm:"primary_key" json:"id"`
	BookingKey string          `gorm:"uniqueIndex:idx_booking_item,priority:1;size:36;not null" json:"booking_key"`
	LineNo     int             `gorm:"uniqueIndex:idx_booking_item,priority:2;not null" json:"line_no"`
	BusinessId string          `gorm:"index;size:64;not null" json:"business_id"`
	Name       string          `gorm:"size:255" json:"name"`
	TravelerNo int             `json:"traveler_no"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_price"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	Synthetic  bool            `gorm:"default:false" json:"synthetic"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
