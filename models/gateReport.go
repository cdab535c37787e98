package models

import (
	"time"
)

// Gate results.
const (
	GateResultPass = "PASS"
	GateResultFail = "FAIL"
)

// GateCheck is one named check's outcome inside a gate report.
type GateCheck struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Detail    string  `json:"detail"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// GateReport is the full verdict of one gate run. Immutable once produced;
// superseded by the next run's report.
type GateReport struct {
	RunId         uint               `json:"run_id"`
	BusinessId    string             `json:"business_id"`
	CorrelationId string             `json:"correlation_id"`
	Result        string             `json:"result"`
	Checks        []GateCheck        `json:"checks"`
	Metrics       map[string]float64 `json:"metrics"`
	Thresholds    map[string]float64 `json:"thresholds"`
	RanAt         time.Time          `json:"ran_at"`
}

func (r *GateReport) Passed() bool {
	return r.Result == GateResultPass
}

// Summary renders the human-readable one-line-per-check view for CLI output.
func (r *GateReport) Summary() string {
	out := "reconciliation gate: " + r.Result + "\n"
	for _, c := range r.Checks {
		mark := "PASS"
		if !c.Passed {
			mark = "FAIL"
		}
		out += "  [" + mark + "] " + c.Name + ": " + c.Detail + "\n"
	}
	return out
}

// GateRun is the persisted record of one gate invocation (latest wins for the
// /recon/gate/latest endpoint; history kept for auditing).
type GateRun struct {
	ID            uint      `gorm:"primary_key" json:"id"`
	BusinessId    string    `gorm:"index;not null;size:64" json:"business_id"`
	Result        string    `gorm:"size:8;index;not null" json:"result"`
	ReportJSON    []byte    `gorm:"type:json" json:"report"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
