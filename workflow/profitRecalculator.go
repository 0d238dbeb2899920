package workflow

import (
	"github.com/dealerbooks/dealer_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OnCostChanged re-derives the sale figures of a sold asset after its cost moved.
// The sale's frozen rate is reused; no rate lookup happens here. An unsold asset
// is left alone.
func OnCostChanged(tx *gorm.DB, businessId string, asset models.Asset, totalCostIdr decimal.Decimal) error {
	sale, err := models.FindSaleForUpdate(tx, businessId, asset.Ref())
	if err != nil {
		return err
	}
	if sale == nil {
		return nil
	}
	figures := models.ComputeSaleFigures(sale.SellingPriceIdr, sale.ExchangeRate, totalCostIdr)
	if err := models.SaveSaleFigures(tx, sale, figures); err != nil {
		return err
	}
	return models.SaveAssetProfit(tx, asset, figures.Profit)
}
