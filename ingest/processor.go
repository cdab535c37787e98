package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"bitbucket.org/mmjourneys/travel_backend/utils"
	"gorm.io/gorm"
)

// Event types the processor understands.
const (
	EventPaymentSettled   = "payment.settled"
	EventPaymentRefunded  = "payment.refunded"
	EventPaymentFailed    = "payment.failed"
	EventBookingCancelled = "booking.cancelled"
)

// EventPayload is the body of an inbound event. Validated at submission time
// by the binding tags, and again here on replay.
type EventPayload struct {
	ChannelCode string     `json:"channelCode" binding:"required"`
	Reference   string     `json:"reference" binding:"required"`
	OccurredAt  *time.Time `json:"occurredAt"`
	Note        string     `json:"note"`
}

// ProcessEvent applies one ingestion event to the canonical tables. Payment
// events are the only path allowed to move a record out of PAID; the merge
// engine never does that.
func ProcessEvent(ctx context.Context, db *gorm.DB, event *models.IngestionEvent) error {
	var payload EventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return FatalErr(ReasonInvalidPayload, err.Error())
	}
	channel := models.ChannelCode(strings.ToUpper(strings.TrimSpace(payload.ChannelCode)))
	reference := utils.NormalizeExternalReference(payload.Reference)
	if channel == "" || reference == "" {
		return FatalErr(ReasonInvalidPayload, "channelCode and reference are required")
	}

	switch event.EventType {
	case EventPaymentSettled:
		return applyPaymentEvent(ctx, db, event.BusinessId, channel, reference, models.PaymentStatusPaid)
	case EventPaymentRefunded:
		return applyPaymentEvent(ctx, db, event.BusinessId, channel, reference, models.PaymentStatusRefund)
	case EventPaymentFailed:
		return applyPaymentEvent(ctx, db, event.BusinessId, channel, reference, models.PaymentStatusFailed)
	case EventBookingCancelled:
		return applyBookingCancelled(ctx, db, event.BusinessId, channel, reference)
	default:
		return FatalErr(ReasonUnknownEventType, event.EventType)
	}
}

func applyPaymentEvent(ctx context.Context, db *gorm.DB, businessId string, channel models.ChannelCode, reference string, proposed models.PaymentStatus) error {
	paymentKey := models.PaymentKey(businessId, channel, reference).String()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.PaymentRecord
		err := tx.Where("canonical_key = ? AND business_id = ?", paymentKey, businessId).Take(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// The payment may simply not have been merged yet.
			return RetryableErr(ReasonConflict, errors.New("payment record not found: "+reference))
		}
		if err != nil {
			return err
		}

		if !models.AllowPaymentTransition(payment.Status, proposed, true) {
			return FatalErr(ReasonConflict,
				"transition "+string(payment.Status)+" -> "+string(proposed)+" is not allowed")
		}
		if err := tx.Model(&models.PaymentRecord{}).
			Where("canonical_key = ?", paymentKey).
			Update("status", proposed).Error; err != nil {
			return err
		}

		if payment.BookingKey == nil {
			return nil
		}
		var booking models.Booking
		err = tx.Where("canonical_key = ?", *payment.BookingKey).Take(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if models.AllowPaymentTransition(booking.CustomerPaymentStatus, proposed, true) {
			return tx.Model(&models.Booking{}).
				Where("canonical_key = ?", booking.CanonicalKey).
				Update("customer_payment_status", proposed).Error
		}
		return nil
	})
}

func applyBookingCancelled(ctx context.Context, db *gorm.DB, businessId string, channel models.ChannelCode, reference string) error {
	bookingKey := models.BookingKey(businessId, channel, reference).String()

	result := db.WithContext(ctx).Model(&models.Booking{}).
		Where("canonical_key = ? AND business_id = ?", bookingKey, businessId).
		Update("fulfillment_status", models.FulfillmentCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return RetryableErr(ReasonConflict, errors.New("booking not found: "+reference))
	}
	return nil
}
