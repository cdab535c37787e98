package mergesync

import (
	"sort"
	"strings"

	"bitbucket.org/mmjourneys/travel_backend/utils"
	"github.com/ttacon/libphonenumber"
)

// Placeholder values legacy systems stuff into contact fields.
var placeholderBlocklist = map[string]bool{
	"guest":           true,
	"unknown":         true,
	"test":            true,
	"n/a":             true,
	"na":              true,
	"-":               true,
	"test@test.com":   true,
	"guest@guest.com": true,
	"no@email.com":    true,
	"none@none.com":   true,
}

// IsPlaceholderName reports whether a name is obviously fake.
func IsPlaceholderName(name string) bool {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return true
	}
	return placeholderBlocklist[s]
}

// IsPlaceholderEmail reports whether an email is empty, blocklisted, or fails
// the basic shape check.
func IsPlaceholderEmail(email string) bool {
	s := strings.ToLower(strings.TrimSpace(email))
	if s == "" {
		return true
	}
	if placeholderBlocklist[s] {
		return true
	}
	return !utils.IsValidEmail(s)
}

// sortByRecency orders sources most-recently-updated first. Source system name
// breaks exact timestamp ties so the order is stable across runs.
func sortByRecency(sources []SourceRecord) []SourceRecord {
	sorted := make([]SourceRecord, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].UpdatedAt.Equal(sorted[j].UpdatedAt) {
			return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
		}
		return sorted[i].SourceSystem < sorted[j].SourceSystem
	})
	return sorted
}

// pickFiltered returns the first non-placeholder candidate in recency order.
// When every candidate is a placeholder, the most recent placeholder wins
// rather than failing.
func pickFiltered(sources []SourceRecord, value func(SourceRecord) string, isPlaceholder func(string) bool) string {
	sorted := sortByRecency(sources)
	fallback := ""
	for _, src := range sorted {
		v := strings.TrimSpace(value(src))
		if v == "" {
			continue
		}
		if fallback == "" {
			fallback = v
		}
		if !isPlaceholder(v) {
			return v
		}
	}
	return fallback
}

// pickMostRecent returns the most-recently-updated non-empty value.
func pickMostRecent(sources []SourceRecord, value func(SourceRecord) string) string {
	for _, src := range sortByRecency(sources) {
		if v := strings.TrimSpace(value(src)); v != "" {
			return v
		}
	}
	return ""
}

// PickContactName resolves the customer name across a group's sources.
func PickContactName(sources []SourceRecord) string {
	return pickFiltered(sources, func(s SourceRecord) string { return s.CustomerName }, IsPlaceholderName)
}

// PickContactEmail resolves the customer email across a group's sources.
func PickContactEmail(sources []SourceRecord) string {
	return pickFiltered(sources, func(s SourceRecord) string { return s.CustomerEmail }, IsPlaceholderEmail)
}

// PickContactPhone resolves the phone: most-recent-non-empty, no placeholder
// filter. Valid numbers are normalized to E.164; unparseable values kept raw.
func PickContactPhone(sources []SourceRecord) string {
	phone := pickMostRecent(sources, func(s SourceRecord) string { return s.CustomerPhone })
	if phone == "" {
		return ""
	}
	if err := utils.ValidatePhoneNumber(phone, utils.CountryCode); err != nil {
		return phone
	}
	p, err := libphonenumber.Parse(phone, utils.CountryCode)
	if err != nil {
		return phone
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

// PickContactLocation resolves the location: most-recent-non-empty.
func PickContactLocation(sources []SourceRecord) string {
	return pickMostRecent(sources, func(s SourceRecord) string { return s.CustomerLocation })
}
