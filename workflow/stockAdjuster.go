package workflow

import (
	"context"
	"fmt"

	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type StockAdjustmentResult struct {
	Adjustment *models.StockAdjustment `json:"stock_adjustment"`
	CashFlow   *models.CashFlow        `json:"cash_flow"`
	Sparepart  *models.Sparepart       `json:"sparepart"`
}

// AdjustStock moves a sparepart's stock by a signed quantity and books the
// movement at purchase price as an OUTCOME, in one transaction.
func (e *Engine) AdjustStock(ctx context.Context, businessId string, sparepartId int, input *models.AdjustStockInput) (*StockAdjustmentResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	attrs := []attribute.KeyValue{
		attribute.Int("sparepart_id", sparepartId),
		attribute.Int("quantity", input.Quantity),
		attribute.String("type", string(input.Type)),
	}
	var result *StockAdjustmentResult
	err := e.inTx(ctx, "StockAdjuster.Adjust", businessId, attrs, func(ctx context.Context, tx *gorm.DB) error {
		parts, err := models.LockSpareparts(tx, businessId, []int{sparepartId})
		if err != nil {
			return err
		}
		sparepart := parts[sparepartId]
		if sparepart.IsService() {
			return utils.InvalidStateError("SERVICE items carry no stock")
		}
		change, err := models.ComputeStockChange(sparepart.Stock, input.Quantity, input.Type)
		if err != nil {
			return err
		}

		value := models.StockMovementValue(input.Quantity, sparepart.PurchasePrice)
		conv, err := e.converter(tx).ToCanonical(ctx, businessId, value, sparepart.Currency)
		if err != nil {
			return err
		}
		cf := models.CashFlow{
			BusinessId:      businessId,
			Type:            models.CashFlowTypeOutcome,
			Category:        change.Category,
			Description:     stockMovementDescription(sparepart, input),
			Amount:          value,
			Currency:        sparepart.Currency,
			ExchangeRate:    conv.Rate,
			AmountIdr:       conv.Amount.Round(moneyScale),
			IsFallbackRate:  conv.IsFallback,
			TransactionDate: e.now(),
			ReferenceType:   models.CashFlowRefStockAdjustment,
			ReferenceKey:    sparepart.Ref().String(),
		}
		if err := models.CreateCashFlow(ctx, tx, &cf); err != nil {
			return err
		}

		adj := models.StockAdjustment{
			Type:           input.Type,
			Quantity:       input.Quantity,
			PreviousStock:  change.PreviousStock,
			NewStock:       change.NewStock,
			UnitCost:       sparepart.PurchasePrice,
			Currency:       sparepart.Currency,
			ExchangeRate:   conv.Rate,
			TotalAmount:    value,
			TotalAmountIdr: cf.AmountIdr,
			Reason:         input.Reason,
			CashFlowId:     &cf.ID,
		}
		if err := models.RecordStockMovement(tx, sparepart, &adj); err != nil {
			return err
		}
		result = &StockAdjustmentResult{Adjustment: &adj, CashFlow: &cf, Sparepart: sparepart}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func stockMovementDescription(sparepart *models.Sparepart, input *models.AdjustStockInput) string {
	if input.Quantity > 0 {
		return fmt.Sprintf("Stock purchase: %s (%d unit)", sparepart.Name, input.Quantity)
	}
	verb := "Stock adjustment"
	if input.Type == models.StockAdjustmentTypeLoss {
		verb = "Stock loss"
	}
	desc := fmt.Sprintf("%s: %s (%d unit)", verb, sparepart.Name, -input.Quantity)
	if input.Reason != "" {
		desc += " - " + input.Reason
	}
	return desc
}
