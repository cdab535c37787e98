package mergesync

import (
	"strings"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
)

// statusRule is one (predicate, result) pair. Rules are evaluated top-to-bottom
// so the mapping stays data-describable and testable in isolation.
type statusRule struct {
	match  func(s string) bool
	result models.PaymentStatus
}

func anyOf(words ...string) func(string) bool {
	return func(s string) bool {
		for _, w := range words {
			if s == w {
				return true
			}
		}
		return false
	}
}

var paymentStatusRules = []statusRule{
	{anyOf("PAID", "CONFIRMED", "COMPLETED", "SETTLED", "CAPTURED"), models.PaymentStatusPaid},
	{anyOf("PENDING", "UNPAID", "AWAITING", "AWAITING_PAYMENT", "PARTIAL"), models.PaymentStatusPending},
	{anyOf("DRAFT", "QUOTE", "QUOTED"), models.PaymentStatusDraft},
}

// NormalizePaymentStatus maps a source's free-text payment status onto the
// fixed vocabulary. A source-side boolean paid flag is the lowest-priority
// evidence: consulted only when no status string classifies the record.
// The deterministic fallback is PENDING_PAYMENT.
func NormalizePaymentStatus(statusText string, paidFlag *bool) models.PaymentStatus {
	s := strings.ToUpper(strings.TrimSpace(statusText))
	if s != "" {
		for _, rule := range paymentStatusRules {
			if rule.match(s) {
				return rule.result
			}
		}
	}
	if utils.DereferencePtr(paidFlag, false) {
		return models.PaymentStatusPaid
	}
	return models.PaymentStatusPending
}

type fulfillmentRule struct {
	match  func(s string) bool
	result models.FulfillmentStatus
}

var fulfillmentRules = []fulfillmentRule{
	{anyOf("FULFILLED", "COMPLETED", "DONE", "DEPARTED"), models.FulfillmentFulfilled},
	{anyOf("CONFIRMED", "BOOKED", "ACTIVE"), models.FulfillmentConfirmed},
	{anyOf("CANCELLED", "CANCELED", "VOID"), models.FulfillmentCancelled},
}

// NormalizeFulfillmentStatus maps a source's operational status; unknown
// values fall back to DRAFT.
func NormalizeFulfillmentStatus(statusText string) models.FulfillmentStatus {
	s := strings.ToUpper(strings.TrimSpace(statusText))
	if s != "" {
		for _, rule := range fulfillmentRules {
			if rule.match(s) {
				return rule.result
			}
		}
	}
	return models.FulfillmentDraft
}

// paymentStatusRank orders statuses by evidence strength for merge resolution.
// Refund/failure never come out of routine merging (events only), so they are
// not ranked here.
func paymentStatusRank(s models.PaymentStatus) int {
	switch s {
	case models.PaymentStatusPaid:
		return 2
	case models.PaymentStatusPending:
		return 1
	default:
		return 0
	}
}

// ResolvePaymentStatus picks the strongest normalized status across a group's
// sources. Score-based primary selection already favors PAID sources; this
// keeps the result stable when a stale primary lags a paid secondary.
func ResolvePaymentStatus(sources []SourceRecord) models.PaymentStatus {
	best := models.PaymentStatusDraft
	for _, src := range sources {
		s := NormalizePaymentStatus(src.PaymentStatusText, src.PaidFlag)
		if paymentStatusRank(s) > paymentStatusRank(best) {
			best = s
		}
	}
	return best
}
