package workflow

import (
	"context"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Sell sells a motorcycle or product. The sale price is converted with a rate
// frozen on the sale, the cost is re-summed from the ledger and the invoice number
// is allocated last, all on one transaction holding the asset row lock.
// Lost counter races and deadlocks rerun the transaction a bounded number of times.
func (e *Engine) Sell(ctx context.Context, businessId string, ref models.AssetRef, input *models.SellInput) (*models.SaleTransaction, error) {
	if ref.Type == models.AssetTypeSparepart {
		return nil, utils.ValidationError("spareparts are sold through a sparepart sale")
	}
	if !ref.Type.IsValid() {
		return nil, utils.ValidationError("invalid asset type %q", ref.Type)
	}
	if err := input.Validate(models.CanonicalCurrency); err != nil {
		return nil, err
	}

	lockKey := utils.LockKey("sale", businessId, ref.Type, ref.Id)
	release, locked := utils.TryLock(ctx, lockKey, config.SaleLockTTL(), "workflow", "Sell")
	defer release()
	if !locked && e.Logger != nil && config.GetRedisLock() != nil {
		e.Logger.WithFields(logrus.Fields{
			"field":       "Sell",
			"business_id": businessId,
			"asset":       ref.String(),
		}).Warn("sale lock not obtained, relying on row lock")
	}

	attrs := append(refAttrs(ref), attribute.String("currency", string(input.Currency)))
	var sale *models.SaleTransaction
	err := retry(ctx, e.Retry, isConflict, func(attempt int) error {
		return e.inTx(ctx, "SaleProcessor.Sell", businessId, append(attrs, attribute.Int("attempt", attempt)), func(ctx context.Context, tx *gorm.DB) error {
			var err error
			sale, err = e.sellTx(ctx, tx, businessId, ref, input)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (e *Engine) sellTx(ctx context.Context, tx *gorm.DB, businessId string, ref models.AssetRef, input *models.SellInput) (*models.SaleTransaction, error) {
	asset, err := models.LockAsset(tx, businessId, ref)
	if err != nil {
		return nil, err
	}
	if err := models.CheckSellable(asset.Financials().Status); err != nil {
		return nil, err
	}

	price, err := e.converter(tx).ToCanonical(ctx, businessId, input.SellingPrice, input.Currency)
	if err != nil {
		return nil, err
	}
	sellingPriceIdr := price.Amount.Round(moneyScale)
	totalCostIdr, err := models.SumAssetCostIdr(tx, businessId, ref)
	if err != nil {
		return nil, err
	}
	figures := models.ComputeSaleFigures(sellingPriceIdr, price.Rate, totalCostIdr)
	saleDate := dateOrNow(input.SaleDate, e.now())
	paid, remaining := input.PaidAndRemaining()

	prefix, err := models.InvoicePrefixFor(ref.Type)
	if err != nil {
		return nil, err
	}
	invoiceNumber, err := models.NextInvoiceNumber(tx, businessId, prefix, saleDate)
	if err != nil {
		return nil, err
	}

	cf := models.CashFlow{
		BusinessId:      businessId,
		Type:            models.CashFlowTypeIncome,
		Category:        saleCategory(ref.Type),
		Description:     "Sale " + invoiceNumber + " " + asset.Label(),
		Amount:          input.SellingPrice,
		Currency:        input.Currency,
		ExchangeRate:    price.Rate,
		AmountIdr:       sellingPriceIdr,
		IsFallbackRate:  price.IsFallback,
		TransactionDate: saleDate,
		ReferenceType:   models.CashFlowRefSale,
		ReferenceKey:    invoiceNumber,
	}
	if err := models.CreateCashFlow(ctx, tx, &cf); err != nil {
		return nil, err
	}

	sale := models.SaleTransaction{
		BusinessId:      businessId,
		InvoiceNumber:   invoiceNumber,
		AssetType:       ref.Type,
		AssetId:         ref.Id,
		SellingPrice:    input.SellingPrice,
		Currency:        input.Currency,
		ExchangeRate:    price.Rate,
		IsFallbackRate:  price.IsFallback,
		SellingPriceIdr: sellingPriceIdr,
		BuyerName:       input.BuyerName,
		BuyerPhone:      input.BuyerPhone,
		BuyerAddress:    input.BuyerAddress,
		PaymentMethod:   input.PaymentMethod,
		PaidAmount:      paid,
		RemainingAmount: remaining,
		SaleDate:        saleDate,
		Notes:           input.Notes,
		CashFlowId:      &cf.ID,
	}
	sale.ApplyFigures(figures)
	if err := tx.Create(&sale).Error; err != nil {
		return nil, err
	}

	// the asset keeps its cost figures in its own currency
	total, err := e.projectTotal(ctx, tx, businessId, totalCostIdr, asset.Financials().Currency)
	if err != nil {
		return nil, err
	}
	if err := models.SaveAssetTotals(tx, asset, totalCostIdr, total); err != nil {
		return nil, err
	}
	if err := models.MarkAssetSold(tx, asset, input.SellingPrice, figures.Profit, saleDate); err != nil {
		return nil, err
	}
	return &sale, nil
}

func saleCategory(assetType models.AssetType) string {
	if assetType == models.AssetTypeProduct {
		return models.CashFlowCategoryProductSale
	}
	return models.CashFlowCategoryMotorcycleSale
}
