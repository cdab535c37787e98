package mergesync

import (
	"context"
	"time"

	"bitbucket.org/mmjourneys/travel_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SourceReader reads one source system's records in bulk for a run.
// Implementations must be read-only.
type SourceReader interface {
	System() string
	ReadBookings(ctx context.Context, businessId string) ([]SourceRecord, error)
	ReadProducts(ctx context.Context, businessId string) ([]SourceProduct, error)
	ReadPayments(ctx context.Context, businessId string) ([]SourcePayment, error)
}

// legacy table names per source system. The legacy schemas are replicated
// into the same MySQL instance by the ETL job; this subsystem only reads them.
var legacyTables = map[string]struct {
	bookings string
	products string
	payments string
}{
	models.SourceSystemTourdesk:  {"tourdesk_bookings", "tourdesk_tours", "tourdesk_payments"},
	models.SourceSystemWebPortal: {"portal_orders", "portal_products", "portal_transactions"},
}

type dbSourceReader struct {
	db     *gorm.DB
	system string
}

// NewSourceReader returns a reader over the replicated legacy tables for one
// source system.
func NewSourceReader(db *gorm.DB, system string) SourceReader {
	return &dbSourceReader{db: db, system: system}
}

func (r *dbSourceReader) System() string { return r.system }

type legacyBookingRow struct {
	ID                string
	ChannelCode       string
	ExternalReference string
	Status            string
	PaymentStatus     string
	IsPaid            *bool
	PaymentEvents     int
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	CustomerLocation  string
	ProductCode       string
	AdultCount        int
	ChildCount        int
	TotalAmount       decimal.Decimal
	Currency          string
	TravelDate        *time.Time
	UpdatedAt         time.Time
}

type legacyItemRow struct {
	BookingId string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
}

func (r *dbSourceReader) ReadBookings(ctx context.Context, businessId string) ([]SourceRecord, error) {
	tables, ok := legacyTables[r.system]
	if !ok {
		return nil, nil
	}

	var rows []legacyBookingRow
	if err := r.db.WithContext(ctx).
		Table(tables.bookings).
		Where("business_id = ?", businessId).
		Order("id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	// Itemized child rows, keyed by booking id.
	var itemRows []legacyItemRow
	if err := r.db.WithContext(ctx).
		Table(tables.bookings+"_items").
		Where("business_id = ?", businessId).
		Order("id ASC").
		Scan(&itemRows).Error; err != nil {
		// Some legacy schemas have no item table at all; the synthetic
		// line-item fallback covers them.
		itemRows = nil
	}
	itemsByBooking := map[string][]SourceLineItem{}
	for _, it := range itemRows {
		itemsByBooking[it.BookingId] = append(itemsByBooking[it.BookingId], SourceLineItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Amount:    it.Amount,
		})
	}

	records := make([]SourceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, SourceRecord{
			SourceSystem:         r.system,
			SourceTable:          tables.bookings,
			SourcePrimaryKey:     row.ID,
			ChannelCode:          models.ChannelCode(row.ChannelCode),
			ExternalReference:    row.ExternalReference,
			StatusText:           row.Status,
			PaymentStatusText:    row.PaymentStatus,
			PaidFlag:             row.IsPaid,
			PaymentEvidenceCount: row.PaymentEvents,
			CustomerName:         row.CustomerName,
			CustomerEmail:        row.CustomerEmail,
			CustomerPhone:        row.CustomerPhone,
			CustomerLocation:     row.CustomerLocation,
			ProductCode:          row.ProductCode,
			AdultCount:           row.AdultCount,
			ChildCount:           row.ChildCount,
			TotalAmount:          row.TotalAmount,
			Currency:             row.Currency,
			TravelDate:           row.TravelDate,
			UpdatedAt:            row.UpdatedAt,
			Items:                itemsByBooking[row.ID],
		})
	}
	return records, nil
}

type legacyProductRow struct {
	ID           string
	ProductCode  string
	Name         string
	Description  string
	DurationDays int
	AdultPrice   decimal.Decimal
	ChildPrice   decimal.Decimal
	Currency     string
	Active       bool
	UpdatedAt    time.Time
}

func (r *dbSourceReader) ReadProducts(ctx context.Context, businessId string) ([]SourceProduct, error) {
	tables, ok := legacyTables[r.system]
	if !ok {
		return nil, nil
	}

	var rows []legacyProductRow
	if err := r.db.WithContext(ctx).
		Table(tables.products).
		Where("business_id = ?", businessId).
		Order("id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]SourceProduct, 0, len(rows))
	for _, row := range rows {
		records = append(records, SourceProduct{
			SourceSystem:     r.system,
			SourceTable:      tables.products,
			SourcePrimaryKey: row.ID,
			ProductCode:      row.ProductCode,
			Name:             row.Name,
			Description:      row.Description,
			DurationDays:     row.DurationDays,
			AdultPrice:       row.AdultPrice,
			ChildPrice:       row.ChildPrice,
			Currency:         row.Currency,
			Active:           row.Active,
			UpdatedAt:        row.UpdatedAt,
		})
	}
	return records, nil
}

type legacyPaymentRow struct {
	ID               string
	ChannelCode      string
	PaymentReference string
	BookingReference string
	Status           string
	Amount           decimal.Decimal
	Currency         string
	Method           string
	PaidAt           *time.Time
	UpdatedAt        time.Time
}

func (r *dbSourceReader) ReadPayments(ctx context.Context, businessId string) ([]SourcePayment, error) {
	tables, ok := legacyTables[r.system]
	if !ok {
		return nil, nil
	}

	var rows []legacyPaymentRow
	if err := r.db.WithContext(ctx).
		Table(tables.payments).
		Where("business_id = ?", businessId).
		Order("id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]SourcePayment, 0, len(rows))
	for _, row := range rows {
		records = append(records, SourcePayment{
			SourceSystem:     r.system,
			SourceTable:      tables.payments,
			SourcePrimaryKey: row.ID,
			ChannelCode:      models.ChannelCode(row.ChannelCode),
			PaymentReference: row.PaymentReference,
			BookingReference: row.BookingReference,
			StatusText:       row.Status,
			Amount:           row.Amount,
			Currency:         row.Currency,
			Method:           row.Method,
			PaidAt:           row.PaidAt,
			UpdatedAt:        row.UpdatedAt,
		})
	}
	return records, nil
}
