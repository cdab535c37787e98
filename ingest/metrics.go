package ingest

import (
	"context"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"gorm.io/gorm"
)

// Metrics is the ingestion health snapshot served to operators.
type Metrics struct {
	Events      map[string]int64 `json:"events"`
	DeadLetters map[string]int64 `json:"deadLetters"`
	DueNow      int64            `json:"dueNow"`
}

// CollectMetrics counts events and dead letters by status for one business.
func CollectMetrics(ctx context.Context, db *gorm.DB, businessId string) (*Metrics, error) {
	m := &Metrics{
		Events:      map[string]int64{},
		DeadLetters: map[string]int64{},
	}

	type statusCount struct {
		Status string
		Total  int64
	}

	var eventCounts []statusCount
	if err := db.WithContext(ctx).Model(&models.IngestionEvent{}).
		Select("status, COUNT(*) AS total").
		Where("business_id = ?", businessId).
		Group("status").
		Scan(&eventCounts).Error; err != nil {
		return nil, err
	}
	for _, c := range eventCounts {
		m.Events[c.Status] = c.Total
	}

	var dlqCounts []statusCount
	if err := db.WithContext(ctx).Model(&models.DeadLetterRecord{}).
		Select("status, COUNT(*) AS total").
		Where("business_id = ?", businessId).
		Group("status").
		Scan(&dlqCounts).Error; err != nil {
		return nil, err
	}
	for _, c := range dlqCounts {
		m.DeadLetters[c.Status] = c.Total
	}

	if err := db.WithContext(ctx).Model(&models.IngestionEvent{}).
		Where("business_id = ? AND status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())",
			businessId, models.IngestionStatusReceived).
		Count(&m.DueNow).Error; err != nil {
		return nil, err
	}

	return m, nil
}
