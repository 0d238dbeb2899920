package models

import (
	"context"
	"errors"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cash flow reference types name the record that produced the movement.
const (
	CashFlowRefCost            = "COST"
	CashFlowRefSale            = "SALE"
	CashFlowRefStockAdjustment = "STOCK_ADJUSTMENT"
	CashFlowRefSparepartSale   = "SPAREPART_SALE"
	CashFlowRefExpense         = "EXPENSE"
	CashFlowRefManual          = "MANUAL"
)

// CashFlow is one funds movement, reported in the ledger currency through AmountIdr.
type CashFlow struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"size:64;not null;index:idx_cash_flow_date,priority:1" json:"business_id"`
	Type            CashFlowType    `gorm:"size:10;not null" json:"type"`
	Category        string          `gorm:"size:50;not null;index" json:"category"`
	Description     string          `gorm:"size:255" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency        CurrencyCode    `gorm:"size:3;not null" json:"currency"`
	ExchangeRate    decimal.Decimal `gorm:"type:decimal(20,6);not null;default:1" json:"exchange_rate"`
	AmountIdr       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_idr"`
	IsFallbackRate  bool            `gorm:"not null;default:false" json:"is_fallback_rate"`
	TransactionDate time.Time       `gorm:"not null;index:idx_cash_flow_date,priority:2" json:"transaction_date"`
	ReferenceType   string          `gorm:"size:30;not null;default:'MANUAL'" json:"reference_type"`
	ReferenceKey    string          `gorm:"size:64;index" json:"reference_key"`
	CreatedBy       int             `gorm:"not null;default:0" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (cf *CashFlow) validate() error {
	if cf.BusinessId == "" {
		return utils.ValidationError("business id is required")
	}
	if !cf.Type.IsValid() {
		return utils.ValidationError("invalid cash flow type %q", cf.Type)
	}
	if cf.Category == "" {
		return utils.ValidationError("cash flow category is required")
	}
	if cf.Amount.IsNegative() {
		return utils.ValidationError("cash flow amount must not be negative")
	}
	return nil
}

// CreateCashFlow inserts cf and its outbox event on tx.
func CreateCashFlow(ctx context.Context, tx *gorm.DB, cf *CashFlow) error {
	if err := cf.validate(); err != nil {
		return err
	}
	if cf.TransactionDate.IsZero() {
		cf.TransactionDate = time.Now()
	}
	if cf.ReferenceType == "" {
		cf.ReferenceType = CashFlowRefManual
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		cf.CreatedBy = userId
	}
	if err := tx.Create(cf).Error; err != nil {
		return err
	}
	return recordCashFlowEvent(ctx, tx, nil, cf)
}

// CashFlowChange is a correction of an existing cash flow's money fields.
type CashFlowChange struct {
	Description     *string
	Category        *string
	Amount          decimal.Decimal
	Currency        CurrencyCode
	ExchangeRate    decimal.Decimal
	AmountIdr       decimal.Decimal
	IsFallbackRate  bool
	TransactionDate *time.Time
}

// UpdateCashFlow applies change to cash flow id on tx. A missing id is ignored
// since not every historical cost carries a cash flow.
func UpdateCashFlow(ctx context.Context, tx *gorm.DB, businessId string, id *int, change CashFlowChange) error {
	if id == nil || *id == 0 {
		return nil
	}
	var old CashFlow
	if err := tx.Where("business_id = ?", businessId).First(&old, *id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	updated := old
	if change.Description != nil {
		updated.Description = *change.Description
	}
	if change.Category != nil {
		updated.Category = *change.Category
	}
	if change.TransactionDate != nil {
		updated.TransactionDate = *change.TransactionDate
	}
	updated.Amount = change.Amount
	updated.Currency = change.Currency
	updated.ExchangeRate = change.ExchangeRate
	updated.AmountIdr = change.AmountIdr
	updated.IsFallbackRate = change.IsFallbackRate

	if err := tx.Model(&old).Updates(map[string]interface{}{
		"description":      updated.Description,
		"category":         updated.Category,
		"amount":           updated.Amount,
		"currency":         updated.Currency,
		"exchange_rate":    updated.ExchangeRate,
		"amount_idr":       updated.AmountIdr,
		"is_fallback_rate": updated.IsFallbackRate,
		"transaction_date": updated.TransactionDate,
	}).Error; err != nil {
		return err
	}
	return recordCashFlowEvent(ctx, tx, &old, &updated)
}

// DeleteCashFlow removes cash flow id on tx. A missing id is ignored.
func DeleteCashFlow(ctx context.Context, tx *gorm.DB, businessId string, id *int) error {
	if id == nil || *id == 0 {
		return nil
	}
	var old CashFlow
	if err := tx.Where("business_id = ?", businessId).First(&old, *id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := tx.Delete(&old).Error; err != nil {
		return err
	}
	return recordCashFlowEvent(ctx, tx, &old, nil)
}

type CashFlowFilter struct {
	From     *time.Time
	To       *time.Time
	Type     *CashFlowType
	Category *string
	Limit    int
}

func ListCashFlows(ctx context.Context, businessId string, filter CashFlowFilter) ([]*CashFlow, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter.From != nil {
		q = q.Where("transaction_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("transaction_date < ?", *filter.To)
	}
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	if filter.Category != nil {
		q = q.Where("category = ?", *filter.Category)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var results []*CashFlow
	err := q.Order("transaction_date DESC").Order("id DESC").Find(&results).Error
	return results, err
}
