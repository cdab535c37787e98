package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/models"
	"gorm.io/gorm"
)

// Gate check names. Stable identifiers: dashboards and runbooks key on them.
const (
	CheckDuplicateIdentity    = "duplicate_identity"
	CheckOrphanRefs           = "orphan_refs"
	CheckNullIdentityFields   = "null_identity_fields"
	CheckFulfilledUnpaidRatio = "fulfilled_unpaid_ratio"
	CheckUnmappedRatio        = "unmapped_pending_ratio"
	CheckSyntheticItemRatio   = "synthetic_item_ratio"
)

// GateMetrics is the raw counts the checks evaluate. Collected read-only;
// evaluation never touches the database.
type GateMetrics struct {
	TotalBookings    int64
	DuplicateGroups  int64
	OrphanRefs       int64
	NullIdentityRows int64
	Fulfilled        int64
	FulfilledUnpaid  int64
	UnmappedPending  int64
	TotalItems       int64
	SyntheticItems   int64
}

// CollectGateMetrics gathers the counts with read-only queries over the
// canonical tables. It never writes.
func CollectGateMetrics(ctx context.Context, db *gorm.DB, businessId string) (GateMetrics, error) {
	var m GateMetrics
	session := db.WithContext(ctx)

	if err := session.Model(&models.Booking{}).
		Where("business_id = ?", businessId).
		Count(&m.TotalBookings).Error; err != nil {
		return m, err
	}

	// An identity (channel, reference) must resolve to exactly one canonical
	// key. More than one means the deriver or a manual fix split an entity.
	if err := session.Raw(`
		SELECT COUNT(*) FROM (
			SELECT channel_code, ref_value
			FROM external_refs
			WHERE business_id = ? AND entity_type = ? AND ref_kind = ?
			GROUP BY channel_code, ref_value
			HAVING COUNT(DISTINCT canonical_key) > 1
		) dup`, businessId, models.EntityTypeBooking, models.RefKindReference).
		Scan(&m.DuplicateGroups).Error; err != nil {
		return m, err
	}

	if err := session.Raw(`
		SELECT COUNT(*) FROM external_refs r
		LEFT JOIN bookings b ON b.canonical_key = r.canonical_key
		WHERE r.business_id = ? AND r.entity_type = ? AND b.canonical_key IS NULL`,
		businessId, models.EntityTypeBooking).
		Scan(&m.OrphanRefs).Error; err != nil {
		return m, err
	}

	if err := session.Model(&models.Booking{}).
		Where("business_id = ? AND (channel_code = '' OR external_reference = '')", businessId).
		Count(&m.NullIdentityRows).Error; err != nil {
		return m, err
	}

	if err := session.Model(&models.Booking{}).
		Where("business_id = ? AND fulfillment_status = ?", businessId, models.FulfillmentFulfilled).
		Count(&m.Fulfilled).Error; err != nil {
		return m, err
	}
	if err := session.Model(&models.Booking{}).
		Where("business_id = ? AND fulfillment_status = ? AND customer_payment_status <> ?",
			businessId, models.FulfillmentFulfilled, models.PaymentStatusPaid).
		Count(&m.FulfilledUnpaid).Error; err != nil {
		return m, err
	}

	if err := session.Model(&models.Booking{}).
		Where("business_id = ? AND mapping_state = ?", businessId, models.MappingStatePending).
		Count(&m.UnmappedPending).Error; err != nil {
		return m, err
	}

	if err := session.Model(&models.BookingItem{}).
		Where("business_id = ?", businessId).
		Count(&m.TotalItems).Error; err != nil {
		return m, err
	}
	if err := session.Model(&models.BookingItem{}).
		Where("business_id = ? AND synthetic = ?", businessId, true).
		Count(&m.SyntheticItems).Error; err != nil {
		return m, err
	}

	return m, nil
}

// EvaluateGate applies the thresholds to collected metrics and produces the
// full report. Pure; deterministic for the same inputs.
func EvaluateGate(metrics GateMetrics, thresholds config.GateThresholds, runId uint, businessId, correlationId string, ranAt time.Time) models.GateReport {
	report := models.GateReport{
		RunId:         runId,
		BusinessId:    businessId,
		CorrelationId: correlationId,
		RanAt:         ranAt,
		Metrics:       map[string]float64{},
		Thresholds:    map[string]float64{},
	}

	addCount := func(name string, value, max int64) {
		passed := value <= max
		report.Checks = append(report.Checks, models.GateCheck{
			Name:      name,
			Passed:    passed,
			Value:     float64(value),
			Threshold: float64(max),
			Detail:    fmt.Sprintf("%d (max %d)", value, max),
		})
		report.Metrics[name] = float64(value)
		report.Thresholds[name] = float64(max)
	}
	addRatio := func(name string, numerator, denominator int64, max float64) {
		if denominator == 0 {
			passed := thresholds.EmptyDenominatorPasses
			report.Checks = append(report.Checks, models.GateCheck{
				Name:      name,
				Passed:    passed,
				Value:     0,
				Threshold: max,
				Detail:    "no rows in denominator",
			})
			report.Metrics[name] = 0
			report.Thresholds[name] = max
			return
		}
		ratio := float64(numerator) / float64(denominator)
		passed := ratio <= max
		report.Checks = append(report.Checks, models.GateCheck{
			Name:      name,
			Passed:    passed,
			Value:     ratio,
			Threshold: max,
			Detail:    fmt.Sprintf("%d/%d = %.4f (max %.4f)", numerator, denominator, ratio, max),
		})
		report.Metrics[name] = ratio
		report.Thresholds[name] = max
	}

	addCount(CheckDuplicateIdentity, metrics.DuplicateGroups, int64(thresholds.MaxDuplicateGroups))
	addRatio(CheckOrphanRefs, metrics.OrphanRefs, metrics.TotalBookings, thresholds.MaxOrphanRatio)
	addCount(CheckNullIdentityFields, metrics.NullIdentityRows, int64(thresholds.MaxNullIdentityRows))
	addRatio(CheckFulfilledUnpaidRatio, metrics.FulfilledUnpaid, metrics.Fulfilled, thresholds.MaxFulfilledUnpaidRatio)
	addRatio(CheckUnmappedRatio, metrics.UnmappedPending, metrics.TotalBookings, thresholds.MaxUnmappedRatio)
	addRatio(CheckSyntheticItemRatio, metrics.SyntheticItems, metrics.TotalItems, thresholds.MaxSyntheticRatio)

	report.Result = models.GateResultPass
	for _, check := range report.Checks {
		if !check.Passed {
			report.Result = models.GateResultFail
			break
		}
	}
	return report
}

// RunGate collects metrics, evaluates every check, and persists the report.
// The canonical tables are only read; the single write is the report row.
func RunGate(ctx context.Context, db *gorm.DB, businessId string, runId uint, correlationId string) (*models.GateReport, error) {
	start := time.Now()

	metrics, err := CollectGateMetrics(ctx, db, businessId)
	if err != nil {
		return nil, err
	}

	report := EvaluateGate(metrics, config.GetGateThresholds(), runId, businessId, correlationId, start)

	reportJSON, err := json.Marshal(&report)
	if err != nil {
		return nil, err
	}
	row := models.GateRun{
		BusinessId:    businessId,
		Result:        report.Result,
		ReportJSON:    reportJSON,
		CorrelationId: correlationId,
		DurationMs:    time.Since(start).Milliseconds(),
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	if err := config.SetRedisObject(latestGateCacheKey(businessId), &report, 10*time.Minute); err != nil {
		config.LogError(config.GetLogger(), "workflow", "RunGate", "gate report cache write failed", businessId, err)
	}
	return &report, nil
}

func latestGateCacheKey(businessId string) string {
	return "gate:latest:" + businessId
}

// LatestGateReport serves the most recent report, redis first and the
// persisted gate_runs row as fallback.
func LatestGateReport(ctx context.Context, db *gorm.DB, businessId string) (*models.GateReport, error) {
	var cached models.GateReport
	if found, err := config.GetRedisObject(latestGateCacheKey(businessId), &cached); err == nil && found {
		return &cached, nil
	}

	var row models.GateRun
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("id DESC").
		Take(&row).Error; err != nil {
		return nil, err
	}
	var report models.GateReport
	if err := json.Unmarshal(row.ReportJSON, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
