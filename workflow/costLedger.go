package workflow

import (
	"context"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const moneyScale = 4

// AddCost books a new cost entry on an unsold asset and refreshes its totals.
func (e *Engine) AddCost(ctx context.Context, businessId string, ref models.AssetRef, input *models.NewAssetCost) (*models.AssetCost, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	var cost *models.AssetCost
	err := e.inTx(ctx, "CostLedger.AddCost", businessId, refAttrs(ref), func(ctx context.Context, tx *gorm.DB) error {
		asset, err := models.LockAsset(tx, businessId, ref)
		if err != nil {
			return err
		}
		if asset.Financials().IsSold() {
			return utils.InvalidStateError("asset already sold")
		}
		cost, err = e.addCostTx(ctx, tx, businessId, asset, input)
		if err != nil {
			return err
		}
		_, err = e.refreshTotals(ctx, tx, businessId, asset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cost, nil
}

// addCostTx writes the entry and its OUTCOME cash flow with the rate frozen now.
// Totals are left to the caller.
func (e *Engine) addCostTx(ctx context.Context, tx *gorm.DB, businessId string, asset models.Asset, input *models.NewAssetCost) (*models.AssetCost, error) {
	conv, err := e.converter(tx).ToCanonical(ctx, businessId, input.Amount, input.Currency)
	if err != nil {
		return nil, err
	}
	date := dateOrNow(input.TransactionDate, e.now())
	ref := asset.Ref()

	cf := models.CashFlow{
		BusinessId:      businessId,
		Type:            models.CashFlowTypeOutcome,
		Category:        input.Component,
		Description:     costDescription(asset, input.Description),
		Amount:          input.Amount,
		Currency:        input.Currency,
		ExchangeRate:    conv.Rate,
		AmountIdr:       conv.Amount.Round(moneyScale),
		IsFallbackRate:  conv.IsFallback,
		TransactionDate: date,
		ReferenceType:   models.CashFlowRefCost,
		ReferenceKey:    ref.String(),
	}
	if err := models.CreateCashFlow(ctx, tx, &cf); err != nil {
		return nil, err
	}

	cost := models.AssetCost{
		BusinessId:      businessId,
		AssetType:       ref.Type,
		AssetId:         ref.Id,
		Component:       input.Component,
		Description:     input.Description,
		Amount:          input.Amount,
		Currency:        input.Currency,
		ExchangeRate:    conv.Rate,
		AmountIdr:       cf.AmountIdr,
		IsFallbackRate:  conv.IsFallback,
		TransactionDate: date,
		PaymentMethod:   input.PaymentMethod,
		Receipt:         input.Receipt,
		Notes:           input.Notes,
		CashFlowId:      &cf.ID,
	}
	if err := tx.Create(&cost).Error; err != nil {
		return nil, err
	}
	return &cost, nil
}

func costDescription(asset models.Asset, description string) string {
	label := asset.Label()
	if label == "" {
		return description
	}
	return label + ": " + description
}

// UpdateCost corrects an entry. The frozen rate is kept unless the patch sets a
// rate or moves the entry to another currency.
func (e *Engine) UpdateCost(ctx context.Context, businessId string, ref models.AssetRef, costId int, patch *models.AssetCostPatch) (*models.AssetCost, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	attrs := append(refAttrs(ref), attribute.Int("cost_id", costId))
	var cost *models.AssetCost
	err := e.inTx(ctx, "CostLedger.UpdateCost", businessId, attrs, func(ctx context.Context, tx *gorm.DB) error {
		asset, err := e.lockForCorrection(tx, businessId, ref)
		if err != nil {
			return err
		}
		cost, err = models.LockAssetCost(tx, businessId, ref, costId)
		if err != nil {
			return err
		}
		if err := e.applyCostPatch(ctx, tx, businessId, cost, patch); err != nil {
			return err
		}
		if err := tx.Model(cost).Updates(map[string]interface{}{
			"component":        cost.Component,
			"description":      cost.Description,
			"amount":           cost.Amount,
			"currency":         cost.Currency,
			"exchange_rate":    cost.ExchangeRate,
			"amount_idr":       cost.AmountIdr,
			"is_fallback_rate": cost.IsFallbackRate,
			"transaction_date": cost.TransactionDate,
			"payment_method":   cost.PaymentMethod,
			"receipt":          cost.Receipt,
			"notes":            cost.Notes,
		}).Error; err != nil {
			return err
		}
		description := costDescription(asset, cost.Description)
		if err := models.UpdateCashFlow(ctx, tx, businessId, cost.CashFlowId, models.CashFlowChange{
			Description:     &description,
			Category:        &cost.Component,
			Amount:          cost.Amount,
			Currency:        cost.Currency,
			ExchangeRate:    cost.ExchangeRate,
			AmountIdr:       cost.AmountIdr,
			IsFallbackRate:  cost.IsFallbackRate,
			TransactionDate: &cost.TransactionDate,
		}); err != nil {
			return err
		}
		_, err = e.refreshTotals(ctx, tx, businessId, asset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cost, nil
}

func (e *Engine) applyCostPatch(ctx context.Context, tx *gorm.DB, businessId string, cost *models.AssetCost, patch *models.AssetCostPatch) error {
	freshRate := patch.NeedsFreshRate(cost)
	if patch.Component != nil {
		cost.Component = *patch.Component
	}
	if patch.Description != nil {
		cost.Description = *patch.Description
	}
	if patch.Amount != nil {
		cost.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		cost.Currency = *patch.Currency
	}
	if patch.TransactionDate != nil {
		cost.TransactionDate = *patch.TransactionDate
	}
	if patch.PaymentMethod != nil {
		cost.PaymentMethod = *patch.PaymentMethod
	}
	if patch.Receipt != nil {
		cost.Receipt = *patch.Receipt
	}
	if patch.Notes != nil {
		cost.Notes = *patch.Notes
	}

	switch {
	case cost.Currency.IsCanonical():
		cost.ExchangeRate = decimal.NewFromInt(1)
		cost.IsFallbackRate = false
	case patch.ExchangeRate != nil:
		cost.ExchangeRate = patch.ExchangeRate.Round(models.RateScale)
		cost.IsFallbackRate = false
	case freshRate:
		conv, err := e.converter(tx).ToCanonical(ctx, businessId, cost.Amount, cost.Currency)
		if err != nil {
			return err
		}
		cost.ExchangeRate = conv.Rate
		cost.IsFallbackRate = conv.IsFallback
	}
	cost.AmountIdr = cost.Amount.Mul(cost.ExchangeRate).Round(moneyScale)
	return nil
}

// RemoveCost deletes an entry with its cash flow and refreshes the totals.
func (e *Engine) RemoveCost(ctx context.Context, businessId string, ref models.AssetRef, costId int) error {
	attrs := append(refAttrs(ref), attribute.Int("cost_id", costId))
	return e.inTx(ctx, "CostLedger.RemoveCost", businessId, attrs, func(ctx context.Context, tx *gorm.DB) error {
		asset, err := e.lockForCorrection(tx, businessId, ref)
		if err != nil {
			return err
		}
		cost, err := models.LockAssetCost(tx, businessId, ref, costId)
		if err != nil {
			return err
		}
		if err := models.DeleteCashFlow(ctx, tx, businessId, cost.CashFlowId); err != nil {
			return err
		}
		if err := tx.Delete(cost).Error; err != nil {
			return err
		}
		_, err = e.refreshTotals(ctx, tx, businessId, asset)
		return err
	})
}

// RecomputeTotal re-sums the asset's entries, re-projects them at the current
// rate and re-runs the profit cascade.
func (e *Engine) RecomputeTotal(ctx context.Context, businessId string, ref models.AssetRef) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := e.inTx(ctx, "CostLedger.RecomputeTotal", businessId, refAttrs(ref), func(ctx context.Context, tx *gorm.DB) error {
		asset, err := models.LockAsset(tx, businessId, ref)
		if err != nil {
			return err
		}
		total, err = e.refreshTotals(ctx, tx, businessId, asset)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// lockForCorrection locks the asset for an update or removal of an existing entry.
// Sold assets accept corrections unless the strict lock flag is on.
func (e *Engine) lockForCorrection(tx *gorm.DB, businessId string, ref models.AssetRef) (models.Asset, error) {
	asset, err := models.LockAsset(tx, businessId, ref)
	if err != nil {
		return nil, err
	}
	if asset.Financials().IsSold() && config.StrictCostLockAfterSale() {
		return nil, utils.InvalidStateError("asset already sold")
	}
	return asset, nil
}

// refreshTotals is the full rescan: sum, project, persist, cascade.
func (e *Engine) refreshTotals(ctx context.Context, tx *gorm.DB, businessId string, asset models.Asset) (decimal.Decimal, error) {
	totalIdr, err := models.SumAssetCostIdr(tx, businessId, asset.Ref())
	if err != nil {
		return decimal.Zero, err
	}
	total, err := e.projectTotal(ctx, tx, businessId, totalIdr, asset.Financials().Currency)
	if err != nil {
		return decimal.Zero, err
	}
	if err := models.SaveAssetTotals(tx, asset, totalIdr, total); err != nil {
		return decimal.Zero, err
	}
	if err := OnCostChanged(tx, businessId, asset, totalIdr); err != nil {
		return decimal.Zero, err
	}
	return totalIdr, nil
}

func (e *Engine) projectTotal(ctx context.Context, tx *gorm.DB, businessId string, totalIdr decimal.Decimal, currency models.CurrencyCode) (decimal.Decimal, error) {
	if currency == "" || currency.IsCanonical() {
		return totalIdr, nil
	}
	conv, err := e.converter(tx).FromCanonical(ctx, businessId, totalIdr, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return conv.Amount.Round(moneyScale), nil
}

func dateOrNow(t *time.Time, now time.Time) time.Time {
	if t == nil || t.IsZero() {
		return now
	}
	return *t
}
