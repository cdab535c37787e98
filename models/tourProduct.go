package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TourProduct is the canonical catalog item (tour/package) after merging
// the catalogs of both source systems.
type TourProduct struct {
	CanonicalKey string `gorm:"primary_key;size:36" json:"canonical_key"`
	BusinessId   string `gorm:"uniqueIndex:idx_product_identity,priority:1;size:64;not null" json:"business_id"`
	ProductCode  string `gorm:"uniqueIndex:idx_product_identity,priority:2;size:128;not null" json:"product_code"`

	Name          string          `gorm:"size:255;not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	DurationDays  int             `json:"duration_days"`
	AdultPrice    decimal.Decimal `gorm:"type:decimal(20,4)" json:"adult_price"`
	ChildPrice    decimal.Decimal `gorm:"type:decimal(20,4)" json:"child_price"`
	Currency      string          `gorm:"size:8" json:"currency"`
	Active        bool            `gorm:"default:true" json:"active"`
	PrimarySource string          `gorm:"size:32;not null" json:"primary_source"`
	MappingState  MappingState    `gorm:"size:16;index;not null;default:MAPPED" json:"mapping_state"`

	LastRunId uint      `gorm:"index" json:"last_run_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
