package workflow

import (
	"fmt"

	"github.com/dealerbooks/dealer_backend/utils"
	"gorm.io/gorm"
)

// AcquireBusinessLock serializes a maintenance job per business across instances using a MySQL advisory lock.
// NOTE: GET_LOCK is connection-scoped, so conn must be pinned to one connection (gorm's DB.Connection).
func AcquireBusinessLock(conn *gorm.DB, job string, businessId string) error {
	var ok int
	if err := conn.Raw("SELECT GET_LOCK(?, 30)", businessLockName(job, businessId)).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return utils.ConflictError(nil, "could not acquire %s lock for business_id=%s", job, businessId)
	}
	return nil
}

func ReleaseBusinessLock(conn *gorm.DB, job string, businessId string) {
	var _ok int
	_ = conn.Raw("SELECT RELEASE_LOCK(?)", businessLockName(job, businessId)).Scan(&_ok).Error
}

func businessLockName(job string, businessId string) string {
	return fmt.Sprintf("%s:%s", job, businessId)
}
