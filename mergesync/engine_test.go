package mergesync

import (
	"testing"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
	"github.com/shopspring/decimal"
)

func TestEngineGroupsAcrossSources(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	// Same identity under different reference formatting, plus payment
	// evidence only on the portal side.
	desk := SourceRecord{
		SourceSystem:      models.SourceSystemTourdesk,
		SourceTable:       "tourdesk_bookings",
		SourcePrimaryKey:  "41",
		ChannelCode:       models.ChannelDirect,
		ExternalReference: "  bk-1001 ",
		PaymentStatusText: "PENDING",
		CustomerName:      "Guest",
		ProductCode:       "BAGAN-3D",
		AdultCount:        2,
		TotalAmount:       decimal.NewFromInt(200),
		UpdatedAt:         t0,
	}
	portal := SourceRecord{
		SourceSystem:         models.SourceSystemWebPortal,
		SourceTable:          "portal_orders",
		SourcePrimaryKey:     "9001",
		ChannelCode:          models.ChannelDirect,
		ExternalReference:    "BK-1001",
		PaymentStatusText:    "PAID",
		PaymentEvidenceCount: 2,
		CustomerName:         "Aung Kyaw",
		CustomerEmail:        "aung@example.com",
		ProductCode:          "BAGAN-3D",
		AdultCount:           2,
		TotalAmount:          decimal.NewFromInt(200),
		UpdatedAt:            t1,
	}

	engine := NewEngine("biz1")
	engine.Add(desk)
	engine.Add(portal)

	if engine.GroupCount() != 1 {
		t.Fatalf("group count = %d, want 1 merged identity", engine.GroupCount())
	}

	merged := engine.Resolve()
	if len(merged) != 1 {
		t.Fatalf("resolved %d bookings, want 1", len(merged))
	}
	m := merged[0]

	if m.PrimarySource != models.SourceSystemWebPortal {
		t.Fatalf("primary = %s, want the paid portal record", m.PrimarySource)
	}
	if m.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want PAID", m.PaymentStatus)
	}
	if m.ExternalReference != "BK-1001" {
		t.Fatalf("external reference = %q, want normalized BK-1001", m.ExternalReference)
	}
	if m.CustomerName != "Aung Kyaw" {
		t.Fatalf("customer name = %q, placeholder must lose", m.CustomerName)
	}
	if len(m.Sources) != 2 {
		t.Fatalf("sources kept = %d, want both", len(m.Sources))
	}

	wantKey := models.BookingKey("biz1", models.ChannelDirect, "BK-1001").String()
	if m.CanonicalKey != wantKey {
		t.Fatalf("canonical key = %s, want derived %s", m.CanonicalKey, wantKey)
	}
}

func TestEngineTourdeskWinsScoreTie(t *testing.T) {
	base := SourceRecord{
		ChannelCode:       models.ChannelOTA,
		ExternalReference: "OTA-7",
		PaymentStatusText: "PENDING",
	}
	desk := base
	desk.SourceSystem = models.SourceSystemTourdesk
	desk.StatusText = "CONFIRMED"
	portal := base
	portal.SourceSystem = models.SourceSystemWebPortal
	portal.StatusText = "DRAFT"

	// Order of arrival must not matter.
	for name, order := range map[string][]SourceRecord{
		"desk first":   {desk, portal},
		"portal first": {portal, desk},
	} {
		engine := NewEngine("biz1")
		for _, r := range order {
			engine.Add(r)
		}
		merged := engine.Resolve()
		if len(merged) != 1 {
			t.Fatalf("%s: resolved %d, want 1", name, len(merged))
		}
		if merged[0].PrimarySource != models.SourceSystemTourdesk {
			t.Fatalf("%s: primary = %s, want tourdesk on tie", name, merged[0].PrimarySource)
		}
		if merged[0].FulfillmentStatus != models.FulfillmentConfirmed {
			t.Fatalf("%s: fulfillment follows primary, got %s", name, merged[0].FulfillmentStatus)
		}
	}
}

func TestEngineDistinctChannelsStaySeparate(t *testing.T) {
	engine := NewEngine("biz1")
	engine.Add(SourceRecord{SourceSystem: models.SourceSystemTourdesk, ChannelCode: models.ChannelDirect, ExternalReference: "R-1"})
	engine.Add(SourceRecord{SourceSystem: models.SourceSystemTourdesk, ChannelCode: models.ChannelOTA, ExternalReference: "R-1"})

	if engine.GroupCount() != 2 {
		t.Fatalf("group count = %d, same reference on different channels must not merge", engine.GroupCount())
	}
}

func TestEngineResolveDeterministicOrder(t *testing.T) {
	recs := []SourceRecord{
		{SourceSystem: models.SourceSystemTourdesk, ChannelCode: models.ChannelOTA, ExternalReference: "B-2"},
		{SourceSystem: models.SourceSystemTourdesk, ChannelCode: models.ChannelDirect, ExternalReference: "A-9"},
		{SourceSystem: models.SourceSystemTourdesk, ChannelCode: models.ChannelDirect, ExternalReference: "A-1"},
	}

	forward := NewEngine("biz1")
	for _, r := range recs {
		forward.Add(r)
	}
	backward := NewEngine("biz1")
	for i := len(recs) - 1; i >= 0; i-- {
		backward.Add(recs[i])
	}

	a, b := forward.Resolve(), backward.Resolve()
	if len(a) != len(b) {
		t.Fatalf("resolve lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].CanonicalKey != b[i].CanonicalKey {
			t.Fatalf("resolve order differs at %d: %s vs %s", i, a[i].CanonicalKey, b[i].CanonicalKey)
		}
	}
}

func TestEngineSyntheticItemsFromPrimary(t *testing.T) {
	engine := NewEngine("biz1")
	engine.Add(SourceRecord{
		SourceSystem:      models.SourceSystemTourdesk,
		ChannelCode:       models.ChannelDirect,
		ExternalReference: "BK-5",
		ProductCode:       "INLE-2D",
		AdultCount:        1,
		ChildCount:        1,
		TotalAmount:       decimal.NewFromInt(150),
		PaidFlag:          utils.NewTrue(),
	})

	merged := engine.Resolve()
	if len(merged) != 1 || len(merged[0].Items) != 1 {
		t.Fatalf("want exactly one synthetic item")
	}
	if !merged[0].Items[0].Synthetic {
		t.Fatal("item not flagged synthetic")
	}
	if merged[0].PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("paid flag alone must classify as PAID, got %s", merged[0].PaymentStatus)
	}
}
