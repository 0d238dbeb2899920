package models

import (
	"context"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockAdjustment is one signed stock movement of a sparepart.
// NewStock = PreviousStock + Quantity always holds.
type StockAdjustment struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	BusinessId      string              `gorm:"size:64;not null;index" json:"business_id"`
	SparepartId     int                 `gorm:"not null;index" json:"sparepart_id"`
	Type            StockAdjustmentType `gorm:"size:20;not null" json:"type"`
	Quantity        int                 `gorm:"not null" json:"quantity"`
	PreviousStock   int                 `gorm:"not null" json:"previous_stock"`
	NewStock        int                 `gorm:"not null" json:"new_stock"`
	UnitCost        decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"unit_cost"`
	Currency        CurrencyCode        `gorm:"size:3;not null" json:"currency"`
	ExchangeRate    decimal.Decimal     `gorm:"type:decimal(20,6);not null;default:1" json:"exchange_rate"`
	TotalAmount     decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	TotalAmountIdr  decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount_idr"`
	Reason          string              `gorm:"size:255" json:"reason"`
	SparepartSaleId *int                `gorm:"index" json:"sparepart_sale_id"`
	CashFlowId      *int                `gorm:"index" json:"cash_flow_id"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

type AdjustStockInput struct {
	Quantity int                 `json:"quantity"`
	Type     StockAdjustmentType `json:"type" validate:"required"`
	Reason   string              `json:"reason" validate:"max=255"`
}

func (input *AdjustStockInput) Validate() error {
	if input.Quantity == 0 {
		return utils.ValidationError("quantity must not be zero")
	}
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if !input.Type.IsManual() {
		return utils.ValidationError("invalid adjustment type %q", input.Type)
	}
	return nil
}

type StockChange struct {
	PreviousStock int
	NewStock      int
	// Category is the cash flow category of the movement.
	Category string
}

// ComputeStockChange applies a signed quantity to current stock.
// Increases are purchases; decreases are losses when typed LOSS and adjustments otherwise.
func ComputeStockChange(current int, quantity int, adjustmentType StockAdjustmentType) (StockChange, error) {
	if quantity == 0 {
		return StockChange{}, utils.ValidationError("quantity must not be zero")
	}
	newStock := current + quantity
	if newStock < 0 {
		return StockChange{}, utils.InvalidStateError("insufficient stock: have %d, need %d", current, -quantity)
	}
	category := CashFlowCategorySparepartAdjustment
	switch {
	case quantity > 0:
		category = CashFlowCategorySparepartPurchase
	case adjustmentType == StockAdjustmentTypeLoss:
		category = CashFlowCategorySparepartLoss
	}
	return StockChange{PreviousStock: current, NewStock: newStock, Category: category}, nil
}

// StockMovementValue is |quantity| x unit cost, the amount booked for a manual movement.
func StockMovementValue(quantity int, unitCost decimal.Decimal) decimal.Decimal {
	q := int64(quantity)
	if q < 0 {
		q = -q
	}
	return unitCost.Mul(decimal.NewFromInt(q))
}

// RecordStockMovement writes adj and moves the sparepart to adj.NewStock on tx.
func RecordStockMovement(tx *gorm.DB, sparepart *Sparepart, adj *StockAdjustment) error {
	if adj.NewStock != adj.PreviousStock+adj.Quantity {
		return utils.InvalidStateError("stock movement does not add up")
	}
	adj.BusinessId = sparepart.BusinessId
	adj.SparepartId = sparepart.ID
	if err := tx.Create(adj).Error; err != nil {
		return err
	}
	return SaveSparepartStock(tx, sparepart, adj.NewStock)
}

func ListStockAdjustments(ctx context.Context, businessId string, sparepartId int) ([]*StockAdjustment, error) {
	if _, err := utils.FetchModel[Sparepart](ctx, businessId, sparepartId); err != nil {
		return nil, err
	}
	db := config.GetDB()
	var results []*StockAdjustment
	err := db.WithContext(ctx).
		Where("business_id = ? AND sparepart_id = ?", businessId, sparepartId).
		Order("id DESC").
		Find(&results).Error
	return results, err
}

func deleteStockAdjustmentsOf(ctx context.Context, tx *gorm.DB, businessId string, sparepartId int) error {
	var adjustments []*StockAdjustment
	if err := tx.Where("business_id = ? AND sparepart_id = ?", businessId, sparepartId).Find(&adjustments).Error; err != nil {
		return err
	}
	for _, a := range adjustments {
		if err := DeleteCashFlow(ctx, tx, businessId, a.CashFlowId); err != nil {
			return err
		}
	}
	return tx.Where("business_id = ? AND sparepart_id = ?", businessId, sparepartId).Delete(&StockAdjustment{}).Error
}

// DeleteSparepartHistory removes a sparepart's stock history and its cash flows on tx.
// Spareparts referenced by a sale are kept.
func DeleteSparepartHistory(ctx context.Context, tx *gorm.DB, sparepart *Sparepart) error {
	var sold int64
	if err := tx.Model(&SparepartSaleItem{}).Where("sparepart_id = ?", sparepart.ID).Count(&sold).Error; err != nil {
		return err
	}
	if sold > 0 {
		return utils.InvalidStateError("sparepart %d appears on %d sale lines", sparepart.ID, sold)
	}
	return deleteStockAdjustmentsOf(ctx, tx, sparepart.BusinessId, sparepart.ID)
}
