package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRecord is the canonical merged payment. A booking may have several
// payment records (deposit + balance, or refunds via validated events).
type PaymentRecord struct {
	CanonicalKey     string          `gorm:"primary_key;size:36" json:"canonical_key"`
	BusinessId       string          `gorm:"uniqueIndex:idx_payment_identity,priority:1;size:64;not null" json:"business_id"`
	ChannelCode      ChannelCode     `gorm:"uniqueIndex:idx_payment_identity,priority:2;size:32;not null" json:"channel_code"`
	PaymentReference string          `gorm:"uniqueIndex:idx_payment_identity,priority:3;size:128;not null" json:"payment_reference"`
	BookingKey       *string         `gorm:"size:36;index" json:"booking_key"`
	Status           PaymentStatus   `gorm:"size:32;index;not null" json:"status"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	Currency         string          `gorm:"size:8" json:"currency"`
	PaymentMethod    string          `gorm:"size:64" json:"payment_method"`
	PaidAt           *time.Time      `json:"paid_at"`
	PrimarySource    string          `gorm:"size:32;not null" json:"primary_source"`
	LastRunId        uint            `gorm:"index" json:"last_run_id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FinanceBridge links a booking to the payment records that settle it, with
// the allocation amount. Derived during merge; one row per (booking, payment).
type FinanceBridge struct {
	ID         uint            `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;size:64;not null" json:"business_id"`
	BookingKey string          `gorm:"uniqueIndex:idx_finance_bridge,priority:1;size:36;not null" json:"booking_key"`
	PaymentKey string          `gorm:"uniqueIndex:idx_finance_bridge,priority:2;size:36;not null" json:"payment_key"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
