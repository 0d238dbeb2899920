package workflow

import (
	"context"
	"fmt"

	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// SellSpareparts sells a basket of counter items. Stock is checked and moved
// under row locks taken in id order, so two baskets sharing items never deadlock
// on each other. SERVICE lines are billed without touching stock.
func (e *Engine) SellSpareparts(ctx context.Context, businessId string, input *models.NewSparepartSale) (*models.SparepartSale, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	attrs := []attribute.KeyValue{attribute.Int("items", len(input.Items))}
	var sale *models.SparepartSale
	err := retry(ctx, e.Retry, isConflict, func(attempt int) error {
		return e.inTx(ctx, "SparepartSale.Sell", businessId, append(attrs, attribute.Int("attempt", attempt)), func(ctx context.Context, tx *gorm.DB) error {
			var err error
			sale, err = e.sellSparepartsTx(ctx, tx, businessId, input)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (e *Engine) sellSparepartsTx(ctx context.Context, tx *gorm.DB, businessId string, input *models.NewSparepartSale) (*models.SparepartSale, error) {
	parts, err := models.LockSpareparts(tx, businessId, input.SparepartIds())
	if err != nil {
		return nil, err
	}
	for id, qty := range input.QuantitiesBySparepart() {
		p := parts[id]
		if !p.IsService() && p.Stock < qty {
			return nil, utils.InvalidStateError("insufficient stock for %s: have %d, need %d", p.Name, p.Stock, qty)
		}
	}

	converter := e.converter(tx)
	items := make([]*models.SparepartSaleItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for _, it := range input.Items {
		p := parts[it.SparepartId]
		unitPrice := utils.DereferencePtr(it.UnitPrice)
		if it.UnitPrice == nil {
			conv, err := converter.ToCanonical(ctx, businessId, p.UnitPrice, p.Currency)
			if err != nil {
				return nil, err
			}
			unitPrice = conv.Amount.Round(moneyScale)
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, &models.SparepartSaleItem{
			SparepartId: it.SparepartId,
			Quantity:    it.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    lineTotal,
		})
	}
	if input.Discount.GreaterThan(subtotal) {
		return nil, utils.ValidationError("discount exceeds subtotal")
	}
	total := subtotal.Sub(input.Discount)
	saleDate := dateOrNow(input.SaleDate, e.now())

	invoiceNumber, err := models.NextInvoiceNumber(tx, businessId, models.InvoicePrefixSparepart, saleDate)
	if err != nil {
		return nil, err
	}

	cf := models.CashFlow{
		BusinessId:      businessId,
		Type:            models.CashFlowTypeIncome,
		Category:        models.CashFlowCategorySparepartSale,
		Description:     fmt.Sprintf("Sparepart sale %s - %s", invoiceNumber, input.CustomerName),
		Amount:          total,
		Currency:        models.CanonicalCurrency,
		ExchangeRate:    decimal.NewFromInt(1),
		AmountIdr:       total,
		TransactionDate: saleDate,
		ReferenceType:   models.CashFlowRefSparepartSale,
		ReferenceKey:    invoiceNumber,
	}
	if err := models.CreateCashFlow(ctx, tx, &cf); err != nil {
		return nil, err
	}

	sale := models.SparepartSale{
		BusinessId:    businessId,
		InvoiceNumber: invoiceNumber,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		PaymentMethod: input.PaymentMethod,
		Subtotal:      subtotal,
		Discount:      input.Discount,
		Total:         total,
		PaidAmount:    total,
		Currency:      models.CanonicalCurrency,
		SaleDate:      saleDate,
		Notes:         input.Notes,
		CashFlowId:    &cf.ID,
		Items:         items,
	}
	if err := tx.Create(&sale).Error; err != nil {
		return nil, err
	}

	for _, item := range items {
		p := parts[item.SparepartId]
		if p.IsService() {
			continue
		}
		if err := moveStock(tx, p, -item.Quantity, models.StockAdjustmentTypeSale, "Sale "+invoiceNumber, &sale.ID); err != nil {
			return nil, err
		}
	}
	return &sale, nil
}

type DeleteSparepartSaleResult struct {
	InvoiceNumber string `json:"deleted_invoice"`
	ItemsRestored int    `json:"items_restored"`
}

// DeleteSparepartSale voids a sale: stock comes back through SALE_VOID movements,
// the income cash flow is removed and the sale is deleted, atomically.
func (e *Engine) DeleteSparepartSale(ctx context.Context, businessId string, saleId int) (*DeleteSparepartSaleResult, error) {
	var result *DeleteSparepartSaleResult
	err := e.inTx(ctx, "SparepartSale.Delete", businessId, []attribute.KeyValue{attribute.Int("sale_id", saleId)}, func(ctx context.Context, tx *gorm.DB) error {
		sale, err := models.LockSparepartSale(tx, businessId, saleId)
		if err != nil {
			return err
		}
		ids := make([]int, 0, len(sale.Items))
		for _, it := range sale.Items {
			ids = append(ids, it.SparepartId)
		}
		parts, err := models.LockSpareparts(tx, businessId, ids)
		if err != nil {
			return err
		}

		restored := 0
		for _, it := range sale.Items {
			p := parts[it.SparepartId]
			if p.IsService() {
				continue
			}
			if err := moveStock(tx, p, it.Quantity, models.StockAdjustmentTypeSaleVoid, "Void "+sale.InvoiceNumber, nil); err != nil {
				return err
			}
			restored++
		}
		if err := models.DeleteCashFlow(ctx, tx, businessId, sale.CashFlowId); err != nil {
			return err
		}
		if err := models.DeleteSparepartSaleRecord(tx, sale); err != nil {
			return err
		}
		result = &DeleteSparepartSaleResult{InvoiceNumber: sale.InvoiceNumber, ItemsRestored: restored}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// moveStock records a system stock movement without a cash flow of its own.
func moveStock(tx *gorm.DB, sparepart *models.Sparepart, quantity int, adjustmentType models.StockAdjustmentType, reason string, saleId *int) error {
	change, err := models.ComputeStockChange(sparepart.Stock, quantity, adjustmentType)
	if err != nil {
		return err
	}
	adj := models.StockAdjustment{
		Type:            adjustmentType,
		Quantity:        quantity,
		PreviousStock:   change.PreviousStock,
		NewStock:        change.NewStock,
		UnitCost:        sparepart.PurchasePrice,
		Currency:        sparepart.Currency,
		ExchangeRate:    decimal.NewFromInt(1),
		TotalAmount:     models.StockMovementValue(quantity, sparepart.PurchasePrice),
		Reason:          reason,
		SparepartSaleId: saleId,
	}
	return models.RecordStockMovement(tx, sparepart, &adj)
}
