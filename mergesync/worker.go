package mergesync

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/config"
	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
	"bitbucket.org/mmjourneys/travel_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// sourceSystems in read order. Order does not affect the merge outcome; the
// engine resolves primaries by score, not arrival.
var sourceSystems = []string{models.SourceSystemTourdesk, models.SourceSystemWebPortal}

type sourceBatch struct {
	system   string
	bookings []SourceRecord
	products []SourceProduct
	payments []SourcePayment
	err      error
}

// ProcessReconRun executes one reconciliation run end to end: read both
// source feeds, group and merge, then apply everything in one transaction.
// Safe to call more than once for the same run; terminal runs are skipped
// and all writes are keyed by derived canonical keys.
func ProcessReconRun(ctx context.Context, payload ReconPubSubPayload) error {
	if payload.RunId == 0 || payload.BusinessId == "" {
		return errors.New("invalid payload")
	}

	ctx = utils.SetBusinessIdInContext(ctx, payload.BusinessId)
	db := config.GetDB().WithContext(ctx)

	var run models.ReconRun
	if err := db.Where("id = ? AND business_id = ?", payload.RunId, payload.BusinessId).Take(&run).Error; err != nil {
		return err
	}
	if run.Status == models.ReconRunStatusSuccess || run.Status == models.ReconRunStatusFailed || run.Status == models.ReconRunStatusPartial {
		return nil
	}

	acquired, release, err := workflow.AcquireRunLock(ctx, db, payload.BusinessId)
	if err != nil {
		return err
	}
	if !acquired {
		return errors.New("another reconciliation run holds the lock")
	}
	defer release()

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.ReconRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	dryRun := payload.DryRun || config.IsDryRun()
	ctx = utils.SetDryRunInContext(ctx, dryRun)

	batches := readSources(ctx, db, payload.BusinessId)

	stats := map[string]int{}
	errorCount := 0
	engine := NewEngine(payload.BusinessId)
	var products []SourceProduct
	var payments []SourcePayment

	for _, batch := range batches {
		if batch.err != nil {
			errorCount++
			_ = createRunError(ctx, db, run.ID, payload.BusinessId, batch.system, "", "source_read_failed", batch.err.Error(), nil, true)
			continue
		}
		for _, rec := range batch.bookings {
			if rec.ExternalReference == "" {
				errorCount++
				_ = createRunError(ctx, db, run.ID, payload.BusinessId, models.EntityTypeBooking,
					models.SourceRecordKey(rec.SourceSystem, rec.SourceTable, rec.SourcePrimaryKey).String(),
					"missing_reference", "booking has no external reference", nil, false)
				continue
			}
			engine.Add(rec)
		}
		products = append(products, batch.products...)
		payments = append(payments, batch.payments...)
		stats["read_"+batch.system] = len(batch.bookings) + len(batch.products) + len(batch.payments)
	}

	merged := engine.Resolve()
	stats["identity_groups"] = engine.GroupCount()

	applied := applyStats{}
	txErr := db.Transaction(func(tx *gorm.DB) error {
		productKeys, err := applyProducts(ctx, tx, run.ID, payload.BusinessId, products, &applied)
		if err != nil {
			return err
		}
		bookingKeys, err := applyBookings(ctx, tx, run.ID, payload.BusinessId, merged, productKeys, &applied)
		if err != nil {
			return err
		}
		if err := applyPayments(ctx, tx, run.ID, payload.BusinessId, payments, bookingKeys, &applied); err != nil {
			return err
		}
		if dry, _ := utils.GetDryRunFromContext(ctx); dry {
			return errDryRunRollback
		}
		return nil
	})
	if txErr != nil && !errors.Is(txErr, errDryRunRollback) {
		errorCount++
		_ = createRunError(ctx, db, run.ID, payload.BusinessId, "run", "", "apply_failed", txErr.Error(), nil, true)
	}

	stats["bookings"] = applied.bookings
	stats["products"] = applied.products
	stats["payments"] = applied.payments
	stats["finance_bridges"] = applied.bridges
	stats["synthetic_items"] = applied.syntheticItems
	stats["downgrades_blocked"] = applied.downgradesBlocked
	stats["orphan_payments"] = applied.orphanPayments

	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()
	status := models.ReconRunStatusSuccess
	if txErr != nil && !errors.Is(txErr, errDryRunRollback) {
		status = models.ReconRunStatusFailed
	} else if errorCount > 0 {
		status = models.ReconRunStatusPartial
	}

	statsJSON, _ := json.Marshal(stats)
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":         status,
		"finished_at":    finishedAt,
		"duration_ms":    durationMs,
		"records_merged": applied.bookings,
		"error_count":    errorCount,
		"stats_json":     statsJSON,
	}).Error; err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"run_id":      run.ID,
		"business_id": payload.BusinessId,
		"status":      status,
		"dry_run":     dryRun,
		"duration_ms": durationMs,
		"merged":      applied.bookings,
		"errors":      errorCount,
	}).Info("reconciliation run finished")

	return nil
}

// errDryRunRollback aborts the apply transaction after a dry run has gone
// through every write path. Not a failure.
var errDryRunRollback = errors.New("dry run rollback")

type applyStats struct {
	bookings          int
	products          int
	payments          int
	bridges           int
	syntheticItems    int
	downgradesBlocked int
	orphanPayments    int
}

// readSources fans out one goroutine per source system. Each batch carries
// its own error so one slow or broken source never hides the other.
func readSources(ctx context.Context, db *gorm.DB, businessId string) []sourceBatch {
	batches := make([]sourceBatch, len(sourceSystems))
	done := make(chan int, len(sourceSystems))

	for i, system := range sourceSystems {
		go func(i int, system string) {
			defer func() { done <- i }()
			reader := NewSourceReader(db, system)
			batch := sourceBatch{system: system}
			batch.bookings, batch.err = reader.ReadBookings(ctx, businessId)
			if batch.err == nil {
				batch.products, batch.err = reader.ReadProducts(ctx, businessId)
			}
			if batch.err == nil {
				batch.payments, batch.err = reader.ReadPayments(ctx, businessId)
			}
			batches[i] = batch
		}(i, system)
	}
	for range sourceSystems {
		<-done
	}
	return batches
}

func applyProducts(ctx context.Context, tx *gorm.DB, runID uint, businessId string, products []SourceProduct, applied *applyStats) (map[string]string, error) {
	// Group by product code; the operations system of record wins, then the
	// most recently updated row.
	byCode := map[string][]SourceProduct{}
	var codes []string
	for _, p := range products {
		code := utils.NormalizeExternalReference(p.ProductCode)
		if code == "" {
			continue
		}
		if _, ok := byCode[code]; !ok {
			codes = append(codes, code)
		}
		byCode[code] = append(byCode[code], p)
	}
	sort.Strings(codes)

	keys := make(map[string]string, len(codes))
	for _, code := range codes {
		group := byCode[code]
		sort.Slice(group, func(i, j int) bool {
			if (group[i].SourceSystem == models.SourceSystemTourdesk) != (group[j].SourceSystem == models.SourceSystemTourdesk) {
				return group[i].SourceSystem == models.SourceSystemTourdesk
			}
			return group[i].UpdatedAt.After(group[j].UpdatedAt)
		})
		winner := group[0]

		canonicalKey := models.TourProductKey(businessId, code).String()
		keys[code] = canonicalKey

		row := models.TourProduct{
			CanonicalKey:  canonicalKey,
			BusinessId:    businessId,
			ProductCode:   code,
			Name:          winner.Name,
			Description:   winner.Description,
			DurationDays:  winner.DurationDays,
			AdultPrice:    winner.AdultPrice,
			ChildPrice:    winner.ChildPrice,
			Currency:      winner.Currency,
			Active:        winner.Active,
			PrimarySource: winner.SourceSystem,
			MappingState:  models.MappingStateMapped,
			LastRunId:     runID,
		}

		var existing models.TourProduct
		err := tx.Where("canonical_key = ?", canonicalKey).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&row).Error; err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			if err := tx.Model(&models.TourProduct{}).Where("canonical_key = ?", canonicalKey).Updates(map[string]interface{}{
				"name":           row.Name,
				"description":    row.Description,
				"duration_days":  row.DurationDays,
				"adult_price":    row.AdultPrice,
				"child_price":    row.ChildPrice,
				"currency":       row.Currency,
				"active":         row.Active,
				"primary_source": row.PrimarySource,
				"mapping_state":  row.MappingState,
				"last_run_id":    runID,
			}).Error; err != nil {
				return nil, err
			}
		}
		applied.products++

		for _, p := range group {
			if err := upsertExternalRef(tx, businessId, models.EntityTypeTourProduct, "", models.RefKindSourcePK,
				p.SourceSystem+":"+p.SourceTable+":"+p.SourcePrimaryKey, canonicalKey, p.SourceSystem); err != nil {
				return nil, err
			}
		}
		if err := upsertExternalRef(tx, businessId, models.EntityTypeTourProduct, "", models.RefKindCanonical,
			code, canonicalKey, ""); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func applyBookings(ctx context.Context, tx *gorm.DB, runID uint, businessId string, merged []MergedBooking, productKeys map[string]string, applied *applyStats) (map[GroupKey]string, error) {
	bookingKeys := make(map[GroupKey]string, len(merged))

	for _, m := range merged {
		bookingKeys[GroupKey{ChannelCode: m.ChannelCode, ExternalReference: m.ExternalReference}] = m.CanonicalKey

		mappingState := models.MappingStatePending
		var productKey *string
		if code := utils.NormalizeExternalReference(m.ProductCode); code != "" {
			if key, ok := productKeys[code]; ok {
				productKey = &key
				mappingState = models.MappingStateMapped
			}
		}

		updates := map[string]interface{}{
			"primary_source":     m.PrimarySource,
			"primary_source_key": m.PrimarySourceKey,
			"customer_name":      m.CustomerName,
			"customer_email":     m.CustomerEmail,
			"customer_phone":     m.CustomerPhone,
			"customer_location":  m.CustomerLocation,
			"fulfillment_status": m.FulfillmentStatus,
			"mapping_state":      mappingState,
			"tour_product_key":   productKey,
			"adult_count":        m.AdultCount,
			"child_count":        m.ChildCount,
			"total_amount":       m.TotalAmount,
			"currency":           m.Currency,
			"travel_date":        m.TravelDate,
			"source_score":       m.SourceScore,
			"last_run_id":        runID,
		}

		var existing models.Booking
		err := tx.Where("canonical_key = ?", m.CanonicalKey).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := models.Booking{
				CanonicalKey:          m.CanonicalKey,
				BusinessId:            businessId,
				ChannelCode:           m.ChannelCode,
				ExternalReference:     m.ExternalReference,
				PrimarySource:         m.PrimarySource,
				PrimarySourceKey:      m.PrimarySourceKey,
				CustomerName:          m.CustomerName,
				CustomerEmail:         m.CustomerEmail,
				CustomerPhone:         m.CustomerPhone,
				CustomerLocation:      m.CustomerLocation,
				CustomerPaymentStatus: m.PaymentStatus,
				FulfillmentStatus:     m.FulfillmentStatus,
				MappingState:          mappingState,
				TourProductKey:        productKey,
				AdultCount:            m.AdultCount,
				ChildCount:            m.ChildCount,
				TotalAmount:           m.TotalAmount,
				Currency:              m.Currency,
				TravelDate:            m.TravelDate,
				SourceScore:           m.SourceScore,
				LastRunId:             runID,
			}
			if err := tx.Create(&row).Error; err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			// Merge output never moves a stored payment status backwards.
			// Only validated payment events may do that, and those run
			// through the ingestion path, not here.
			if models.AllowPaymentTransition(existing.CustomerPaymentStatus, m.PaymentStatus, false) {
				updates["customer_payment_status"] = m.PaymentStatus
			} else {
				applied.downgradesBlocked++
			}
			if err := tx.Model(&models.Booking{}).Where("canonical_key = ?", m.CanonicalKey).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		applied.bookings++

		// Line items are fully owned by the merge; replace wholesale.
		if err := tx.Where("booking_key = ?", m.CanonicalKey).Delete(&models.BookingItem{}).Error; err != nil {
			return nil, err
		}
		for i := range m.Items {
			m.Items[i].ID = 0
			if m.Items[i].Synthetic {
				applied.syntheticItems++
			}
			if err := tx.Create(&m.Items[i]).Error; err != nil {
				return nil, err
			}
		}

		for _, src := range m.Sources {
			if err := upsertExternalRef(tx, businessId, models.EntityTypeBooking, string(m.ChannelCode), models.RefKindSourcePK,
				src.SourceSystem+":"+src.SourceTable+":"+src.SourcePrimaryKey, m.CanonicalKey, src.SourceSystem); err != nil {
				return nil, err
			}
		}
		if err := upsertExternalRef(tx, businessId, models.EntityTypeBooking, string(m.ChannelCode), models.RefKindReference,
			m.ExternalReference, m.CanonicalKey, ""); err != nil {
			return nil, err
		}
		if err := upsertExternalRef(tx, businessId, models.EntityTypeBooking, string(m.ChannelCode), models.RefKindCanonical,
			m.CanonicalKey, m.CanonicalKey, ""); err != nil {
			return nil, err
		}
	}
	return bookingKeys, nil
}

func applyPayments(ctx context.Context, tx *gorm.DB, runID uint, businessId string, payments []SourcePayment, bookingKeys map[GroupKey]string, applied *applyStats) error {
	byRef := map[GroupKey][]SourcePayment{}
	var refs []GroupKey
	for _, p := range payments {
		ref := utils.NormalizeExternalReference(p.PaymentReference)
		if ref == "" {
			continue
		}
		key := GroupKey{ChannelCode: p.ChannelCode, ExternalReference: ref}
		if _, ok := byRef[key]; !ok {
			refs = append(refs, key)
		}
		byRef[key] = append(byRef[key], p)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].ChannelCode != refs[j].ChannelCode {
			return refs[i].ChannelCode < refs[j].ChannelCode
		}
		return refs[i].ExternalReference < refs[j].ExternalReference
	})

	for _, ref := range refs {
		group := byRef[ref]
		sort.Slice(group, func(i, j int) bool {
			if (group[i].SourceSystem == models.SourceSystemTourdesk) != (group[j].SourceSystem == models.SourceSystemTourdesk) {
				return group[i].SourceSystem == models.SourceSystemTourdesk
			}
			return group[i].UpdatedAt.After(group[j].UpdatedAt)
		})
		winner := group[0]

		canonicalKey := models.PaymentKey(businessId, ref.ChannelCode, ref.ExternalReference).String()
		status := NormalizePaymentStatus(winner.StatusText, nil)

		var bookingKey *string
		if bookingRef := utils.NormalizeExternalReference(winner.BookingReference); bookingRef != "" {
			if key, ok := bookingKeys[GroupKey{ChannelCode: ref.ChannelCode, ExternalReference: bookingRef}]; ok {
				bookingKey = &key
			} else {
				applied.orphanPayments++
			}
		} else {
			applied.orphanPayments++
		}

		var existing models.PaymentRecord
		err := tx.Where("canonical_key = ?", canonicalKey).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := models.PaymentRecord{
				CanonicalKey:     canonicalKey,
				BusinessId:       businessId,
				ChannelCode:      ref.ChannelCode,
				PaymentReference: ref.ExternalReference,
				BookingKey:       bookingKey,
				Status:           status,
				Amount:           winner.Amount,
				Currency:         winner.Currency,
				PaymentMethod:    winner.Method,
				PaidAt:           winner.PaidAt,
				PrimarySource:    winner.SourceSystem,
				LastRunId:        runID,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			updates := map[string]interface{}{
				"booking_key":    bookingKey,
				"amount":         winner.Amount,
				"currency":       winner.Currency,
				"payment_method": winner.Method,
				"paid_at":        winner.PaidAt,
				"primary_source": winner.SourceSystem,
				"last_run_id":    runID,
			}
			if models.AllowPaymentTransition(existing.Status, status, false) {
				updates["status"] = status
			} else {
				applied.downgradesBlocked++
			}
			if err := tx.Model(&models.PaymentRecord{}).Where("canonical_key = ?", canonicalKey).Updates(updates).Error; err != nil {
				return err
			}
		}
		applied.payments++

		if bookingKey != nil {
			bridge := models.FinanceBridge{
				BusinessId: businessId,
				BookingKey: *bookingKey,
				PaymentKey: canonicalKey,
				Amount:     winner.Amount,
			}
			var existingBridge models.FinanceBridge
			err := tx.Where("booking_key = ? AND payment_key = ?", *bookingKey, canonicalKey).Take(&existingBridge).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&bridge).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&existingBridge).Update("amount", winner.Amount).Error; err != nil {
					return err
				}
			}
			applied.bridges++
		}

		for _, p := range group {
			if err := upsertExternalRef(tx, businessId, models.EntityTypePayment, string(ref.ChannelCode), models.RefKindSourcePK,
				p.SourceSystem+":"+p.SourceTable+":"+p.SourcePrimaryKey, canonicalKey, p.SourceSystem); err != nil {
				return err
			}
		}
		if err := upsertExternalRef(tx, businessId, models.EntityTypePayment, string(ref.ChannelCode), models.RefKindCanonical,
			ref.ExternalReference, canonicalKey, ""); err != nil {
			return err
		}
	}
	return nil
}

func upsertExternalRef(tx *gorm.DB, businessId, entityType, channelCode string, kind models.RefKind, value, canonicalKey, sourceSystem string) error {
	now := time.Now()
	var existing models.ExternalRef
	err := tx.Where("business_id = ? AND entity_type = ? AND channel_code = ? AND ref_kind = ? AND ref_value = ?",
		businessId, entityType, channelCode, kind, value).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return tx.Create(&models.ExternalRef{
			BusinessId:   businessId,
			EntityType:   entityType,
			ChannelCode:  models.ChannelCode(channelCode),
			RefKind:      kind,
			RefValue:     value,
			CanonicalKey: canonicalKey,
			SourceSystem: sourceSystem,
			LastSeenAt:   &now,
		}).Error
	case err != nil:
		return err
	default:
		return tx.Model(&existing).Updates(map[string]interface{}{
			"canonical_key": canonicalKey,
			"last_seen_at":  now,
		}).Error
	}
}

func createRunError(ctx context.Context, db *gorm.DB, runID uint, businessId, entityType, sourceKey, code, message string, payload []byte, retryable bool) error {
	row := models.ReconRunError{
		RunId:       runID,
		BusinessId:  businessId,
		EntityType:  entityType,
		SourceKey:   sourceKey,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	if err := db.Create(&row).Error; err != nil {
		config.LogError(config.GetLogger(), "mergesync", "createRunError", "failed to record run error", runID, err)
		return err
	}
	return nil
}
