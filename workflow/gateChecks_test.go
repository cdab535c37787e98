package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/models"
)

func defaultThresholds() config.GateThresholds {
	return config.GateThresholds{
		MaxDuplicateGroups:      0,
		MaxOrphanRatio:          0,
		MaxNullIdentityRows:     0,
		MaxFulfilledUnpaidRatio: 0.02,
		MaxUnmappedRatio:        0.05,
		MaxSyntheticRatio:       1.0,
		EmptyDenominatorPasses:  true,
	}
}

func checkByName(t *testing.T, report models.GateReport, name string) models.GateCheck {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s missing from report", name)
	return models.GateCheck{}
}

func TestEvaluateGateCleanDataPasses(t *testing.T) {
	metrics := GateMetrics{
		TotalBookings:  100,
		Fulfilled:      50,
		TotalItems:     120,
		SyntheticItems: 30,
	}
	report := EvaluateGate(metrics, defaultThresholds(), 7, "biz1", "corr-1", time.Now())

	if !report.Passed() {
		t.Fatalf("clean metrics must pass, got %s", report.Summary())
	}
	if len(report.Checks) != 6 {
		t.Fatalf("report has %d checks, want 6", len(report.Checks))
	}
	if report.RunId != 7 || report.BusinessId != "biz1" {
		t.Fatal("report identity fields not carried")
	}
}

func TestEvaluateGateRatioBoundary(t *testing.T) {
	thresholds := defaultThresholds()

	// Exactly at the threshold passes.
	atLimit := GateMetrics{TotalBookings: 100, Fulfilled: 100, FulfilledUnpaid: 2}
	report := EvaluateGate(atLimit, thresholds, 1, "biz1", "", time.Now())
	if c := checkByName(t, report, CheckFulfilledUnpaidRatio); !c.Passed {
		t.Fatalf("ratio exactly at threshold must pass: %s", c.Detail)
	}
	if !report.Passed() {
		t.Fatal("report must pass at the boundary")
	}

	// One record above fails the check and the whole gate.
	aboveLimit := GateMetrics{TotalBookings: 100, Fulfilled: 100, FulfilledUnpaid: 3}
	report = EvaluateGate(aboveLimit, thresholds, 1, "biz1", "", time.Now())
	if c := checkByName(t, report, CheckFulfilledUnpaidRatio); c.Passed {
		t.Fatalf("ratio above threshold must fail: %s", c.Detail)
	}
	if report.Passed() {
		t.Fatal("any failed check must fail the gate")
	}
}

func TestEvaluateGateCountBoundary(t *testing.T) {
	thresholds := defaultThresholds()

	zero := GateMetrics{TotalBookings: 10}
	if c := checkByName(t, EvaluateGate(zero, thresholds, 1, "biz1", "", time.Now()), CheckDuplicateIdentity); !c.Passed {
		t.Fatal("zero duplicates at max 0 must pass")
	}

	one := GateMetrics{TotalBookings: 10, DuplicateGroups: 1}
	report := EvaluateGate(one, thresholds, 1, "biz1", "", time.Now())
	if c := checkByName(t, report, CheckDuplicateIdentity); c.Passed {
		t.Fatal("one duplicate at max 0 must fail")
	}
	if report.Result != models.GateResultFail {
		t.Fatalf("result = %s, want FAIL", report.Result)
	}
}

func TestEvaluateGateEmptyDenominator(t *testing.T) {
	thresholds := defaultThresholds()
	empty := GateMetrics{}

	report := EvaluateGate(empty, thresholds, 1, "biz1", "", time.Now())
	if !report.Passed() {
		t.Fatalf("empty tables must pass by default: %s", report.Summary())
	}

	thresholds.EmptyDenominatorPasses = false
	report = EvaluateGate(empty, thresholds, 1, "biz1", "", time.Now())
	if report.Passed() {
		t.Fatal("empty tables must fail when the default is overridden")
	}
}

func TestEvaluateGateDeterministic(t *testing.T) {
	metrics := GateMetrics{TotalBookings: 40, Fulfilled: 20, UnmappedPending: 1, TotalItems: 50, SyntheticItems: 10}
	ranAt := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	a := EvaluateGate(metrics, defaultThresholds(), 3, "biz1", "c", ranAt)
	b := EvaluateGate(metrics, defaultThresholds(), 3, "biz1", "c", ranAt)

	if a.Result != b.Result || len(a.Checks) != len(b.Checks) {
		t.Fatal("same inputs must produce the same report")
	}
	for i := range a.Checks {
		if a.Checks[i] != b.Checks[i] {
			t.Fatalf("check %d differs between identical evaluations", i)
		}
	}
}
