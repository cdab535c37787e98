package models

import "gorm.io/gorm"

// Migrate runs AutoMigrate for every table this subsystem owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Booking{},
		&BookingItem{},
		&TourProduct{},
		&PaymentRecord{},
		&FinanceBridge{},
		&ExternalRef{},
		&IngestionEvent{},
		&DeadLetterRecord{},
		&GateRun{},
		&ReconRun{},
		&ReconRunError{},
		&IdempotencyKey{},
	)
}
