package models

// Source systems feeding the canonical store.
const (
	SourceSystemTourdesk  = "tourdesk" // operations system of record, wins score ties
	SourceSystemWebPortal = "webportal"
)

// ChannelCode identifies the sales channel a booking came through.
type ChannelCode string

const (
	ChannelDirect ChannelCode = "DIRECT"
	ChannelOTA    ChannelCode = "OTA"
)

// PaymentStatus is the normalized customer payment state.
// Transitions are guarded by AllowPaymentTransition; routine reconciliation
// must never downgrade PAID.
type PaymentStatus string

const (
	PaymentStatusDraft   PaymentStatus = "DRAFT"
	PaymentStatusPending PaymentStatus = "PENDING_PAYMENT"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusRefund  PaymentStatus = "REFUNDED"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// AllowPaymentTransition reports whether a routine reconciliation write may
// move a stored payment status to the proposed one. Refunds and failures are
// only reachable through validated ingestion events (viaEvent).
func AllowPaymentTransition(current, proposed PaymentStatus, viaEvent bool) bool {
	if current == proposed {
		return true
	}
	switch current {
	case PaymentStatusPaid:
		// No downgrade through reconciliation; explicit events may refund/fail.
		if proposed == PaymentStatusRefund || proposed == PaymentStatusFailed {
			return viaEvent
		}
		return false
	case PaymentStatusRefund, PaymentStatusFailed:
		// Terminal for this subsystem.
		return false
	default:
		return true
	}
}

// FulfillmentStatus is the normalized operational state of a booking.
type FulfillmentStatus string

const (
	FulfillmentDraft     FulfillmentStatus = "DRAFT"
	FulfillmentConfirmed FulfillmentStatus = "CONFIRMED"
	FulfillmentFulfilled FulfillmentStatus = "FULFILLED"
	FulfillmentCancelled FulfillmentStatus = "CANCELLED"
)

// MappingState marks canonical entities still awaiting manual source mapping.
type MappingState string

const (
	MappingStateMapped  MappingState = "MAPPED"
	MappingStatePending MappingState = "PENDING"
)
