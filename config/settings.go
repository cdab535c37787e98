package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// IngestSettings holds the security-gate and retry knobs for inbound events.
type IngestSettings struct {
	TimestampDrift time.Duration
	NonceTTL       time.Duration
	MaxAttempts    int
	RetrySchedule  []time.Duration
}

var defaultRetrySchedule = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

func GetIngestSettings() IngestSettings {
	s := IngestSettings{
		TimestampDrift: 5 * time.Minute,
		NonceTTL:       10 * time.Minute,
		MaxAttempts:    5,
		RetrySchedule:  defaultRetrySchedule,
	}

	if v := strings.TrimSpace(os.Getenv("INGEST_TIMESTAMP_DRIFT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			s.TimestampDrift = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("INGEST_NONCE_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			s.NonceTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("INGEST_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.MaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("INGEST_RETRY_SCHEDULE")); v != "" {
		if sched := parseSchedule(v); len(sched) > 0 {
			s.RetrySchedule = sched
		}
	}
	return s
}

func parseSchedule(raw string) []time.Duration {
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil || d <= 0 {
			return nil
		}
		out = append(out, d)
	}
	return out
}

// GateThresholds holds the reconciliation-gate limits. Ratios are fractions (0.02 = 2%).
type GateThresholds struct {
	MaxDuplicateGroups      int
	MaxOrphanRatio          float64
	MaxNullIdentityRows     int
	MaxFulfilledUnpaidRatio float64
	MaxUnmappedRatio        float64
	MaxSyntheticRatio       float64
	EmptyDenominatorPasses  bool
}

func GetGateThresholds() GateThresholds {
	t := GateThresholds{
		MaxDuplicateGroups:      0,
		MaxOrphanRatio:          0,
		MaxNullIdentityRows:     0,
		MaxFulfilledUnpaidRatio: 0.02,
		MaxUnmappedRatio:        0.05,
		MaxSyntheticRatio:       1.0,
		EmptyDenominatorPasses:  true,
	}

	if v := strings.TrimSpace(os.Getenv("GATE_MAX_DUPLICATE_GROUPS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			t.MaxDuplicateGroups = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GATE_MAX_ORPHAN_RATIO")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			t.MaxOrphanRatio = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("GATE_MAX_NULL_IDENTITY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			t.MaxNullIdentityRows = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GATE_MAX_FULFILLED_UNPAID_RATIO")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			t.MaxFulfilledUnpaidRatio = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("GATE_MAX_UNMAPPED_RATIO")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			t.MaxUnmappedRatio = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("GATE_MAX_SYNTHETIC_RATIO")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			t.MaxSyntheticRatio = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("GATE_EMPTY_DENOMINATOR_PASSES")); v != "" {
		t.EmptyDenominatorPasses = EnvBoolDefault("GATE_EMPTY_DENOMINATOR_PASSES", true)
	}
	return t
}

func EnvBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

// IsDryRun reports the process-wide dry-run flag. The run worker ORs it with
// the per-run payload flag and carries the result in context.
func IsDryRun() bool {
	return EnvBoolDefault("DRY_RUN", false)
}
