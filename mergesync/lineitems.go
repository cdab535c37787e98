package mergesync

import (
	"strings"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"github.com/shopspring/decimal"
)

// BuildBookingItems converts the primary source's line items for a merged
// booking. When the source supplies no itemized data, one synthetic line item
// is derived from the aggregate head record: quantity = adults + children,
// total price divided evenly across travelers, flagged synthetic so downstream
// consumers can tell real decomposition from approximation.
func BuildBookingItems(businessId, bookingKey string, primary SourceRecord) []models.BookingItem {
	if len(primary.Items) > 0 {
		items := make([]models.BookingItem, 0, len(primary.Items))
		for i, src := range primary.Items {
			qty := src.Quantity
			if qty <= 0 {
				qty = 1
			}
			amount := src.Amount
			if amount.IsZero() {
				amount = src.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
			}
			unit := src.UnitPrice
			if unit.IsZero() && qty > 0 {
				unit = amount.Div(decimal.NewFromInt(int64(qty))).Round(4)
			}
			name := strings.TrimSpace(src.Name)
			if name == "" {
				name = primary.ProductCode
			}
			items = append(items, models.BookingItem{
				BookingKey: bookingKey,
				BusinessId: businessId,
				LineNo:     i + 1,
				Name:       name,
				Quantity:   qty,
				UnitPrice:  unit,
				Amount:     amount,
				Synthetic:  false,
			})
		}
		return items
	}

	travelers := primary.AdultCount + primary.ChildCount
	if travelers <= 0 {
		travelers = 1
	}
	unit := primary.TotalAmount.Div(decimal.NewFromInt(int64(travelers))).Round(4)
	name := strings.TrimSpace(primary.ProductCode)
	if name == "" {
		name = "Booking total"
	}

	return []models.BookingItem{{
		BookingKey: bookingKey,
		BusinessId: businessId,
		LineNo:     1,
		Name:       name,
		TravelerNo: travelers,
		Quantity:   travelers,
		UnitPrice:  unit,
		Amount:     primary.TotalAmount,
		Synthetic:  true,
	}}
}
