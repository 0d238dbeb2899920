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

// SaleTransaction is the sale of one motorcycle or product. An asset is sold at most once.
//
// ExchangeRate is frozen at the sale (sale currency -> IDR) and every later
// profit recalculation reuses it.
type SaleTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"size:64;not null;uniqueIndex:idx_sale_invoice,priority:1" json:"business_id"`
	InvoiceNumber   string          `gorm:"size:30;not null;uniqueIndex:idx_sale_invoice,priority:2" json:"invoice_number"`
	AssetType       AssetType       `gorm:"size:20;not null;uniqueIndex:idx_sale_asset,priority:1" json:"asset_type"`
	AssetId         int             `gorm:"not null;uniqueIndex:idx_sale_asset,priority:2" json:"asset_id"`
	SellingPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"selling_price"`
	Currency        CurrencyCode    `gorm:"size:3;not null" json:"currency"`
	ExchangeRate    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"exchange_rate"`
	IsFallbackRate  bool            `gorm:"not null;default:false" json:"is_fallback_rate"`
	SellingPriceIdr decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"selling_price_idr"`
	TotalCostIdr    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_cost_idr"`
	TotalCost       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_cost"`
	ProfitIdr       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"profit_idr"`
	Profit          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"profit"`
	ProfitMargin    decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"profit_margin"`
	BuyerName       string          `gorm:"size:100;not null" json:"buyer_name"`
	BuyerPhone      string          `gorm:"size:20" json:"buyer_phone"`
	BuyerAddress    string          `gorm:"size:255" json:"buyer_address"`
	PaymentMethod   string          `gorm:"size:30;not null" json:"payment_method"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"paid_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"remaining_amount"`
	SaleDate        time.Time       `gorm:"not null;index" json:"sale_date"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CashFlowId      *int            `gorm:"index" json:"cash_flow_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *SaleTransaction) Ref() AssetRef {
	return AssetRef{Type: s.AssetType, Id: s.AssetId}
}

// ApplyFigures copies derived figures onto the sale.
func (s *SaleTransaction) ApplyFigures(f SaleFigures) {
	s.TotalCostIdr = f.TotalCostIdr
	s.TotalCost = f.TotalCost
	s.ProfitIdr = f.ProfitIdr
	s.Profit = f.Profit
	s.ProfitMargin = f.ProfitMargin
}

type SellInput struct {
	SellingPrice  decimal.Decimal  `json:"selling_price" validate:"gt=0"`
	Currency      CurrencyCode     `json:"currency"`
	BuyerName     string           `json:"buyer_name" validate:"required,max=100"`
	BuyerPhone    string           `json:"buyer_phone"`
	BuyerAddress  string           `json:"buyer_address" validate:"max=255"`
	PaymentMethod string           `json:"payment_method" validate:"max=30"`
	PaidAmount    *decimal.Decimal `json:"paid_amount" validate:"omitempty,gte=0"`
	SaleDate      *time.Time       `json:"sale_date"`
	Notes         string           `json:"notes"`
}

// Validate checks the input and fills defaults. Currency defaults to defaultCurrency.
func (input *SellInput) Validate(defaultCurrency CurrencyCode) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.Currency == "" {
		input.Currency = currencyOrDefault(defaultCurrency)
	}
	if !input.Currency.IsValid() {
		return utils.ValidationError("unsupported currency %q", input.Currency)
	}
	if input.PaidAmount != nil && input.PaidAmount.GreaterThan(input.SellingPrice) {
		return utils.ValidationError("paid amount exceeds selling price")
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = "CASH"
	}
	phone, err := utils.NormalizePhoneNumber(input.BuyerPhone)
	if err != nil {
		return err
	}
	input.BuyerPhone = phone
	return nil
}

// CheckSellable reports why an asset in status cannot be sold. A sold asset gets
// its own message so a double submit is told apart from a not-ready asset.
func CheckSellable(status AssetStatus) error {
	switch status {
	case AssetStatusSold:
		return utils.InvalidStateError("asset already sold")
	case AssetStatusAvailable:
		return nil
	}
	return utils.InvalidStateError("asset must be AVAILABLE to be sold")
}

// PaidAndRemaining defaults the paid amount to the full price.
func (input *SellInput) PaidAndRemaining() (decimal.Decimal, decimal.Decimal) {
	paid := utils.DereferencePtr(input.PaidAmount, input.SellingPrice)
	return paid, input.SellingPrice.Sub(paid)
}

// SaleFigures are the derived numbers of a sale for a given cost.
type SaleFigures struct {
	TotalCostIdr decimal.Decimal
	TotalCost    decimal.Decimal
	ProfitIdr    decimal.Decimal
	Profit       decimal.Decimal
	ProfitMargin decimal.Decimal
}

const (
	moneyScale  = 4
	marginScale = 4
)

var hundred = decimal.NewFromInt(100)

// ComputeSaleFigures derives profit from the ledger-currency price and cost.
// saleRate converts one unit of the sale currency into IDR; sale-currency
// figures are IDR figures divided by it. Margin is 0 for a zero price.
func ComputeSaleFigures(sellingPriceIdr decimal.Decimal, saleRate decimal.Decimal, totalCostIdr decimal.Decimal) SaleFigures {
	if !saleRate.IsPositive() {
		saleRate = decimalOne
	}
	profitIdr := sellingPriceIdr.Sub(totalCostIdr)
	margin := decimal.Zero
	if !sellingPriceIdr.IsZero() {
		margin = profitIdr.Div(sellingPriceIdr).Mul(hundred).Round(marginScale)
	}
	return SaleFigures{
		TotalCostIdr: totalCostIdr,
		TotalCost:    totalCostIdr.Div(saleRate).Round(moneyScale),
		ProfitIdr:    profitIdr,
		Profit:       profitIdr.Div(saleRate).Round(moneyScale),
		ProfitMargin: margin,
	}
}

// FindSaleForUpdate returns the sale of ref locked on tx, or nil when unsold.
func FindSaleForUpdate(tx *gorm.DB, businessId string, ref AssetRef) (*SaleTransaction, error) {
	var sale SaleTransaction
	err := tx.Clauses(lockingForUpdate()).
		Where("business_id = ? AND asset_type = ? AND asset_id = ?", businessId, ref.Type, ref.Id).
		Take(&sale).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func SaveSaleFigures(tx *gorm.DB, sale *SaleTransaction, f SaleFigures) error {
	sale.ApplyFigures(f)
	return tx.Model(sale).Updates(map[string]interface{}{
		"total_cost_idr": f.TotalCostIdr,
		"total_cost":     f.TotalCost,
		"profit_idr":     f.ProfitIdr,
		"profit":         f.Profit,
		"profit_margin":  f.ProfitMargin,
	}).Error
}

func GetSaleTransaction(ctx context.Context, businessId string, id int) (*SaleTransaction, error) {
	return utils.FetchModel[SaleTransaction](ctx, businessId, id)
}

func GetSaleOfAsset(ctx context.Context, businessId string, ref AssetRef) (*SaleTransaction, error) {
	db := config.GetDB()
	var sale SaleTransaction
	err := db.WithContext(ctx).
		Where("business_id = ? AND asset_type = ? AND asset_id = ?", businessId, ref.Type, ref.Id).
		Take(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("%s %d has no sale", ref.Type, ref.Id)
		}
		return nil, err
	}
	return &sale, nil
}

type SaleFilter struct {
	AssetType *AssetType
	From      *time.Time
	To        *time.Time
}

func ListSaleTransactions(ctx context.Context, businessId string, filter SaleFilter) ([]*SaleTransaction, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter.AssetType != nil {
		q = q.Where("asset_type = ?", *filter.AssetType)
	}
	if filter.From != nil {
		q = q.Where("sale_date >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("sale_date < ?", *filter.To)
	}
	var sales []*SaleTransaction
	err := q.Order("sale_date DESC").Order("id DESC").Find(&sales).Error
	return sales, err
}

// DeleteSaleTransaction removes sale and its cash flow on tx.
func DeleteSaleTransaction(ctx context.Context, tx *gorm.DB, sale *SaleTransaction) error {
	if err := DeleteCashFlow(ctx, tx, sale.BusinessId, sale.CashFlowId); err != nil {
		return err
	}
	return tx.Delete(sale).Error
}
