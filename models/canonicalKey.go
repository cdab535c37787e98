package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Fixed derivation namespaces. These must never change once data exists:
// canonical keys are content-addressed and re-runs must reproduce them.
var (
	NamespaceBooking     = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	NamespaceTourProduct = uuid.MustParse("b04965e6-a9bb-591f-8f8a-1adcb2c8dc39")
	NamespacePayment     = uuid.MustParse("4b166dbe-d99d-5091-abdd-95b83330ed3a")
	NamespaceSourceRef   = uuid.MustParse("98123fde-012f-5ff3-8b50-881449dac91a")
)

// DeriveKey derives a stable 128-bit canonical key from a namespace and a
// semantic name (UUIDv5 semantics: SHA-1 over namespace||name truncated to
// 128 bits with version/variant bits overwritten). Same inputs always yield
// the same key, so repeated reconciliation runs address the same rows.
func DeriveKey(namespace uuid.UUID, name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(name))
}

// SourceRecordKey addresses one raw row of one source system.
func SourceRecordKey(sourceSystem, sourceTable, sourcePrimaryKey string) uuid.UUID {
	return DeriveKey(NamespaceSourceRef, fmt.Sprintf("%s:%s:%s", sourceSystem, sourceTable, sourcePrimaryKey))
}

// BookingKey addresses the canonical booking for a channel/reference identity.
func BookingKey(businessId string, channelCode ChannelCode, externalReference string) uuid.UUID {
	return DeriveKey(NamespaceBooking, fmt.Sprintf("%s:%s:%s", businessId, channelCode, externalReference))
}

// TourProductKey addresses the canonical catalog item.
func TourProductKey(businessId string, productCode string) uuid.UUID {
	return DeriveKey(NamespaceTourProduct, fmt.Sprintf("%s:%s", businessId, productCode))
}

// PaymentKey addresses the canonical payment record.
func PaymentKey(businessId string, channelCode ChannelCode, paymentReference string) uuid.UUID {
	return DeriveKey(NamespacePayment, fmt.Sprintf("%s:%s:%s", businessId, channelCode, paymentReference))
}
