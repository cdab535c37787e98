package models

import "time"

// RefKind classifies what an external reference value is.
type RefKind string

const (
	RefKindSourcePK  RefKind = "source_pk"  // primary key in a source system table
	RefKindReference RefKind = "reference"  // the channel-facing reference string
	RefKindCanonical RefKind = "canonical"  // self-row for the canonical identity
)

// ExternalRef maps a source identifier to a canonical key. One row per
// contributing source record plus one for the canonical identity itself.
// Unique on (business, entity type, channel, kind, value) so later runs join
// back to existing canonical entities instead of creating duplicates.
type ExternalRef struct {
	ID           uint        `gorm:"primary_key" json:"id"`
	BusinessId   string      `gorm:"uniqueIndex:idx_external_ref,priority:1;size:64;not null" json:"business_id"`
	EntityType   string      `gorm:"uniqueIndex:idx_external_ref,priority:2;size:32;not null" json:"entity_type"`
	ChannelCode  ChannelCode `gorm:"uniqueIndex:idx_external_ref,priority:3;size:32;not null" json:"channel_code"`
	RefKind      RefKind     `gorm:"uniqueIndex:idx_external_ref,priority:4;size:16;not null" json:"ref_kind"`
	RefValue     string      `gorm:"uniqueIndex:idx_external_ref,priority:5;size:191;not null" json:"ref_value"`
	CanonicalKey string      `gorm:"size:36;index;not null" json:"canonical_key"`
	SourceSystem string      `gorm:"size:32" json:"source_system"`
	LastSeenAt   *time.Time  `json:"last_seen_at"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Entity type values for ExternalRef.EntityType.
const (
	EntityTypeBooking     = "booking"
	EntityTypeTourProduct = "tour_product"
	EntityTypePayment     = "payment"
)
