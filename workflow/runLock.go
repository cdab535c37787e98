package workflow

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// AcquireRunLock serializes reconciliation runs per business across instances
// using MySQL advisory locks. GET_LOCK is connection-scoped, so the returned
// release closure must run on the same *gorm.DB session that acquired it.
// Returns false without error when another run holds the lock.
func AcquireRunLock(ctx context.Context, db *gorm.DB, businessId string) (bool, func(), error) {
	lockName := fmt.Sprintf("recon_run:%s", businessId)
	session := db.WithContext(ctx)

	var ok int
	if err := session.Raw("SELECT GET_LOCK(?, 5)", lockName).Scan(&ok).Error; err != nil {
		return false, nil, err
	}
	if ok != 1 {
		return false, nil, nil
	}
	release := func() {
		var _ok int
		_ = session.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
	}
	return true, release, nil
}
