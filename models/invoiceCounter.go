package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/dealerbooks/dealer_backend/utils"
	"gorm.io/gorm"
)

// Invoice prefixes per sale kind.
const (
	InvoicePrefixMotorcycle = "DHD"
	InvoicePrefixProduct    = "PRD"
	InvoicePrefixSparepart  = "SPR"
)

// ErrInvoiceConflict is returned when the counter row could not be taken
// (deadlock, lock wait timeout). The enclosing transaction should be retried.
var ErrInvoiceConflict = utils.ConflictError(nil, "invoice number allocation conflict")

// InvoiceCounter holds the last issued sequence per (business, prefix, year, month).
type InvoiceCounter struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;not null;uniqueIndex:idx_invoice_counter_key,priority:1" json:"business_id"`
	Prefix     string    `gorm:"size:10;not null;uniqueIndex:idx_invoice_counter_key,priority:2" json:"prefix"`
	Year       int       `gorm:"not null;uniqueIndex:idx_invoice_counter_key,priority:3" json:"year"`
	Month      int       `gorm:"not null;uniqueIndex:idx_invoice_counter_key,priority:4" json:"month"`
	LastNumber int       `gorm:"not null;default:0" json:"last_number"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func InvoicePrefixFor(assetType AssetType) (string, error) {
	switch assetType {
	case AssetTypeMotorcycle:
		return InvoicePrefixMotorcycle, nil
	case AssetTypeProduct:
		return InvoicePrefixProduct, nil
	case AssetTypeSparepart:
		return InvoicePrefixSparepart, nil
	}
	return "", utils.ValidationError("no invoice prefix for asset type %q", assetType)
}

// FormatInvoiceNumber renders {prefix}-{YY}{MM}-{NNNN}. Sequences past 9999 keep growing in width.
func FormatInvoiceNumber(prefix string, year int, month int, seq int) string {
	return fmt.Sprintf("%s-%02d%02d-%04d", prefix, year%100, month, seq)
}

// NextInvoiceNumber allocates the next number for prefix in date's month on tx.
//
// The upsert takes the counter row lock, which is held until tx ends: concurrent
// callers on the same key queue behind it, other keys are untouched, and a
// rollback returns the number.
func NextInvoiceNumber(tx *gorm.DB, businessId string, prefix string, date time.Time) (string, error) {
	if businessId == "" || prefix == "" {
		return "", utils.ValidationError("business id and prefix are required")
	}
	year, month := date.Year(), int(date.Month())
	now := time.Now().UTC()

	err := tx.Exec(`INSERT INTO invoice_counters (business_id, prefix, year, month, last_number, created_at, updated_at)
VALUES (?, ?, ?, ?, 1, ?, ?)
ON DUPLICATE KEY UPDATE last_number = last_number + 1, updated_at = VALUES(updated_at)`,
		businessId, prefix, year, month, now, now).Error
	if err != nil {
		return "", invoiceCounterError(err)
	}

	var counter InvoiceCounter
	err = tx.Where("business_id = ? AND prefix = ? AND year = ? AND month = ?", businessId, prefix, year, month).
		Take(&counter).Error
	if err != nil {
		return "", invoiceCounterError(err)
	}
	return FormatInvoiceNumber(prefix, year, month, counter.LastNumber), nil
}

func invoiceCounterError(err error) error {
	if utils.IsRetryableDBError(err) {
		return &utils.CoreError{Kind: utils.KindConflict, Message: ErrInvoiceConflict.Error(), Err: err}
	}
	return err
}

// IsInvoiceConflict reports whether err came from losing the counter race.
func IsInvoiceConflict(err error) bool {
	return errors.Is(err, ErrInvoiceConflict)
}
