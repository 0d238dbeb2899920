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

// AssetCost is one acquisition or refurbishment cost of an asset.
// ExchangeRate and AmountIdr are frozen when the entry is written.
type AssetCost struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"size:64;not null;index" json:"business_id"`
	AssetType       AssetType       `gorm:"size:20;not null;index:idx_asset_cost_asset,priority:1" json:"asset_type"`
	AssetId         int             `gorm:"not null;index:idx_asset_cost_asset,priority:2" json:"asset_id"`
	Component       string          `gorm:"size:50;not null" json:"component"`
	Description     string          `gorm:"size:255;not null" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency        CurrencyCode    `gorm:"size:3;not null" json:"currency"`
	ExchangeRate    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"exchange_rate"`
	AmountIdr       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_idr"`
	IsFallbackRate  bool            `gorm:"not null;default:false" json:"is_fallback_rate"`
	TransactionDate time.Time       `gorm:"not null" json:"transaction_date"`
	PaymentMethod   string          `gorm:"size:30" json:"payment_method"`
	Receipt         string          `gorm:"size:255" json:"receipt"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CashFlowId      *int            `gorm:"index" json:"cash_flow_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *AssetCost) Ref() AssetRef {
	return AssetRef{Type: c.AssetType, Id: c.AssetId}
}

type NewAssetCost struct {
	Component       string          `json:"component" validate:"required,max=50"`
	Description     string          `json:"description" validate:"required,max=255"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency        CurrencyCode    `json:"currency" validate:"required"`
	TransactionDate *time.Time      `json:"transaction_date"`
	PaymentMethod   string          `json:"payment_method" validate:"max=30"`
	Receipt         string          `json:"receipt" validate:"max=255"`
	Notes           string          `json:"notes"`
}

func (input *NewAssetCost) Validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if !input.Currency.IsValid() {
		return utils.ValidationError("unsupported currency %q", input.Currency)
	}
	return nil
}

// AssetCostPatch corrects an existing entry. Nil fields are left as they are.
// The frozen rate is kept unless Amount's currency changes or ExchangeRate is given.
type AssetCostPatch struct {
	Component       *string          `json:"component" validate:"omitempty,max=50"`
	Description     *string          `json:"description" validate:"omitempty,max=255"`
	Amount          *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	Currency        *CurrencyCode    `json:"currency"`
	ExchangeRate    *decimal.Decimal `json:"exchange_rate" validate:"omitempty,gt=0"`
	TransactionDate *time.Time       `json:"transaction_date"`
	PaymentMethod   *string          `json:"payment_method" validate:"omitempty,max=30"`
	Receipt         *string          `json:"receipt" validate:"omitempty,max=255"`
	Notes           *string          `json:"notes"`
}

func (input *AssetCostPatch) Validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.Currency != nil && !input.Currency.IsValid() {
		return utils.ValidationError("unsupported currency %q", *input.Currency)
	}
	return nil
}

// NeedsFreshRate reports whether applying the patch to cost requires a new rate lookup.
func (input *AssetCostPatch) NeedsFreshRate(cost *AssetCost) bool {
	if input.ExchangeRate != nil {
		return false
	}
	return input.Currency != nil && *input.Currency != cost.Currency
}

// LockAssetCost loads a cost entry of ref with a row lock on tx.
func LockAssetCost(tx *gorm.DB, businessId string, ref AssetRef, costId int) (*AssetCost, error) {
	var cost AssetCost
	err := tx.Clauses(lockingForUpdate()).
		Where("business_id = ? AND asset_type = ? AND asset_id = ?", businessId, ref.Type, ref.Id).
		First(&cost, costId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("cost %d not found for %s %d", costId, ref.Type, ref.Id)
		}
		return nil, err
	}
	return &cost, nil
}

// SumAssetCostIdr re-sums every live cost entry of ref in the ledger currency.
// Amounts are added in Go so the result is exact decimal arithmetic.
func SumAssetCostIdr(tx *gorm.DB, businessId string, ref AssetRef) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := tx.Model(&AssetCost{}).
		Where("business_id = ? AND asset_type = ? AND asset_id = ?", businessId, ref.Type, ref.Id).
		Pluck("amount_idr", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}

func ListAssetCosts(ctx context.Context, businessId string, ref AssetRef) ([]*AssetCost, error) {
	db := config.GetDB()
	var costs []*AssetCost
	err := db.WithContext(ctx).
		Where("business_id = ? AND asset_type = ? AND asset_id = ?", businessId, ref.Type, ref.Id).
		Order("transaction_date").Order("id").
		Find(&costs).Error
	return costs, err
}

func assetCostsOf(tx *gorm.DB, businessId string, ref AssetRef) ([]*AssetCost, error) {
	var costs []*AssetCost
	err := tx.Where("business_id = ? AND asset_type = ? AND asset_id = ?", businessId, ref.Type, ref.Id).
		Find(&costs).Error
	return costs, err
}

// DeleteAssetCosts removes every cost entry of ref together with its cash flow on tx.
func DeleteAssetCosts(ctx context.Context, tx *gorm.DB, businessId string, ref AssetRef) error {
	costs, err := assetCostsOf(tx, businessId, ref)
	if err != nil {
		return err
	}
	for _, c := range costs {
		if err := DeleteCashFlow(ctx, tx, businessId, c.CashFlowId); err != nil {
			return err
		}
	}
	return tx.Where("business_id = ? AND asset_type = ? AND asset_id = ?", businessId, ref.Type, ref.Id).
		Delete(&AssetCost{}).Error
}
