package mergesync

import (
	"testing"
	"time"
)

func rec(system, name, email, phone string, updatedAt time.Time) SourceRecord {
	return SourceRecord{
		SourceSystem:  system,
		CustomerName:  name,
		CustomerEmail: email,
		CustomerPhone: phone,
		UpdatedAt:     updatedAt,
	}
}

func TestIsPlaceholderName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"", true},
		{"  ", true},
		{"Guest", true},
		{"UNKNOWN", true},
		{"n/a", true},
		{"-", true},
		{"Aung Kyaw", false},
		{"Maria Santos", false},
	}
	for _, tc := range cases {
		if got := IsPlaceholderName(tc.name); got != tc.want {
			t.Fatalf("IsPlaceholderName(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsPlaceholderEmail(t *testing.T) {
	cases := []struct {
		email string
		want  bool
	}{
		{"", true},
		{"test@test.com", true},
		{"No@Email.com", true},
		{"not-an-email", true},
		{"maria@example.com", false},
	}
	for _, tc := range cases {
		if got := IsPlaceholderEmail(tc.email); got != tc.want {
			t.Fatalf("IsPlaceholderEmail(%q) = %v, want %v", tc.email, got, tc.want)
		}
	}
}

func TestPickContactPrefersRealOverRecentPlaceholder(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	sources := []SourceRecord{
		rec("tourdesk", "Aung Kyaw", "aung@example.com", "", t0),
		rec("webportal", "Guest", "test@test.com", "", t1),
	}

	if got := PickContactName(sources); got != "Aung Kyaw" {
		t.Fatalf("PickContactName = %q, want the older real name", got)
	}
	if got := PickContactEmail(sources); got != "aung@example.com" {
		t.Fatalf("PickContactEmail = %q, want the older real email", got)
	}
}

func TestPickContactAllPlaceholdersFallsBackToMostRecent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	sources := []SourceRecord{
		rec("tourdesk", "unknown", "", "", t0),
		rec("webportal", "Guest", "", "", t1),
	}
	if got := PickContactName(sources); got != "Guest" {
		t.Fatalf("PickContactName = %q, want the most recent placeholder", got)
	}
}

func TestPickContactPhoneMostRecentAndNormalized(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	sources := []SourceRecord{
		rec("tourdesk", "", "", "09 5123 4567", t1),
		rec("webportal", "", "", "+959111111111", t0),
	}
	// Local Myanmar format normalizes to E.164.
	if got := PickContactPhone(sources); got != "+95951234567" {
		t.Fatalf("PickContactPhone = %q, want normalized most recent number", got)
	}

	// Unparseable values are kept raw rather than dropped.
	raw := []SourceRecord{rec("tourdesk", "", "", "ext. 42", t0)}
	if got := PickContactPhone(raw); got != "ext. 42" {
		t.Fatalf("PickContactPhone = %q, want raw passthrough", got)
	}
}

func TestPickContactEmptySources(t *testing.T) {
	if got := PickContactName(nil); got != "" {
		t.Fatalf("PickContactName(nil) = %q, want empty", got)
	}
	if got := PickContactPhone(nil); got != "" {
		t.Fatalf("PickContactPhone(nil) = %q, want empty", got)
	}
}
