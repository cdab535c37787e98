package mergesync

import (
	"testing"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
)

func TestNormalizePaymentStatus(t *testing.T) {
	cases := []struct {
		name     string
		status   string
		paidFlag *bool
		want     models.PaymentStatus
	}{
		{"paid keyword", "PAID", nil, models.PaymentStatusPaid},
		{"settled keyword", "settled", nil, models.PaymentStatusPaid},
		{"case and whitespace", "  Captured ", nil, models.PaymentStatusPaid},
		{"pending keyword", "AWAITING_PAYMENT", nil, models.PaymentStatusPending},
		{"partial is pending", "PARTIAL", nil, models.PaymentStatusPending},
		{"draft keyword", "QUOTE", nil, models.PaymentStatusDraft},
		{"unknown falls back to pending", "WEIRD_STATE", nil, models.PaymentStatusPending},
		{"empty falls back to pending", "", nil, models.PaymentStatusPending},
		{"paid flag used when string unknown", "", utils.NewTrue(), models.PaymentStatusPaid},
		{"paid flag ignored when string classifies", "UNPAID", utils.NewTrue(), models.PaymentStatusPending},
		{"false flag does not mark paid", "", utils.NewFalse(), models.PaymentStatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizePaymentStatus(tc.status, tc.paidFlag)
			if got != tc.want {
				t.Fatalf("NormalizePaymentStatus(%q) = %s, want %s", tc.status, got, tc.want)
			}
		})
	}
}

func TestNormalizeFulfillmentStatus(t *testing.T) {
	cases := []struct {
		status string
		want   models.FulfillmentStatus
	}{
		{"DEPARTED", models.FulfillmentFulfilled},
		{"completed", models.FulfillmentFulfilled},
		{"Booked", models.FulfillmentConfirmed},
		{"CANCELED", models.FulfillmentCancelled},
		{"CANCELLED", models.FulfillmentCancelled},
		{"something else", models.FulfillmentDraft},
		{"", models.FulfillmentDraft},
	}

	for _, tc := range cases {
		if got := NormalizeFulfillmentStatus(tc.status); got != tc.want {
			t.Fatalf("NormalizeFulfillmentStatus(%q) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestResolvePaymentStatusPicksStrongest(t *testing.T) {
	sources := []SourceRecord{
		{PaymentStatusText: "PENDING"},
		{PaymentStatusText: "PAID"},
		{PaymentStatusText: "DRAFT"},
	}
	if got := ResolvePaymentStatus(sources); got != models.PaymentStatusPaid {
		t.Fatalf("ResolvePaymentStatus = %s, want PAID", got)
	}

	if got := ResolvePaymentStatus([]SourceRecord{{PaymentStatusText: "QUOTE"}}); got != models.PaymentStatusDraft {
		t.Fatalf("ResolvePaymentStatus = %s, want DRAFT", got)
	}
}
