package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	cases := []struct {
		ns   uuid.UUID
		name string
	}{
		{NamespaceBooking, "biz-1:DIRECT:WEB-1"},
		{NamespaceTourProduct, "biz-1:BAGAN-3D"},
		{NamespacePayment, "biz-1:OTA:PAY-778"},
		{NamespaceSourceRef, "tourdesk:bookings:42"},
	}
	for _, tc := range cases {
		a := DeriveKey(tc.ns, tc.name)
		b := DeriveKey(tc.ns, tc.name)
		if a != b {
			t.Fatalf("DeriveKey(%s, %q) not deterministic: %s != %s", tc.ns, tc.name, a, b)
		}
		if a.Version() != 5 {
			t.Fatalf("DeriveKey(%s, %q) version = %d, want 5", tc.ns, tc.name, a.Version())
		}
	}
}

func TestDeriveKey_DistinctNames(t *testing.T) {
	a := BookingKey("biz-1", ChannelDirect, "WEB-1")
	b := BookingKey("biz-1", ChannelDirect, "WEB-2")
	if a == b {
		t.Fatalf("distinct references derived the same key: %s", a)
	}

	// Same name under different namespaces must not collide either.
	c := DeriveKey(NamespaceBooking, "biz-1:DIRECT:WEB-1")
	d := DeriveKey(NamespacePayment, "biz-1:DIRECT:WEB-1")
	if c == d {
		t.Fatalf("namespaces did not separate keys: %s", c)
	}
}

func TestSourceRecordKey_StableAcrossRuns(t *testing.T) {
	const want = 3
	seen := map[uuid.UUID]bool{}
	for i := 0; i < want; i++ {
		seen[SourceRecordKey("tourdesk", "bookings", "42")] = true
		seen[SourceRecordKey("webportal", "bookings", "42")] = true
		seen[SourceRecordKey("tourdesk", "payments", "42")] = true
	}
	if len(seen) != want {
		t.Fatalf("expected %d distinct stable keys, got %d", want, len(seen))
	}
}
