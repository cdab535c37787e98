package models

import "testing"

func TestAllowPaymentTransition(t *testing.T) {
	cases := []struct {
		name     string
		current  PaymentStatus
		proposed PaymentStatus
		viaEvent bool
		want     bool
	}{
		{"same status is a no-op", PaymentStatusPaid, PaymentStatusPaid, false, true},
		{"forward pending to paid", PaymentStatusPending, PaymentStatusPaid, false, true},
		{"forward draft to pending", PaymentStatusDraft, PaymentStatusPending, false, true},
		{"merge cannot downgrade paid", PaymentStatusPaid, PaymentStatusPending, false, false},
		{"merge cannot downgrade paid to draft", PaymentStatusPaid, PaymentStatusDraft, false, false},
		{"merge cannot refund", PaymentStatusPaid, PaymentStatusRefund, false, false},
		{"event may refund paid", PaymentStatusPaid, PaymentStatusRefund, true, true},
		{"event may fail paid", PaymentStatusPaid, PaymentStatusFailed, true, true},
		{"refunded is terminal even via event", PaymentStatusRefund, PaymentStatusPaid, true, false},
		{"failed is terminal even via event", PaymentStatusFailed, PaymentStatusPending, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AllowPaymentTransition(tc.current, tc.proposed, tc.viaEvent); got != tc.want {
				t.Fatalf("AllowPaymentTransition(%s, %s, %v) = %v, want %v",
					tc.current, tc.proposed, tc.viaEvent, got, tc.want)
			}
		})
	}
}
