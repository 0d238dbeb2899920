package reports

import (
	"context"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/models"
	"github.com/shopspring/decimal"
)

type SalesProfitRow struct {
	AssetType       models.AssetType `json:"asset_type"`
	SaleCount       int              `json:"sale_count"`
	SellingPriceIdr decimal.Decimal  `json:"selling_price_idr"`
	TotalCostIdr    decimal.Decimal  `json:"total_cost_idr"`
	ProfitIdr       decimal.Decimal  `json:"profit_idr"`
}

// GetSalesProfitReport sums motorcycle and product sales per asset type for [from, to).
func GetSalesProfitReport(ctx context.Context, businessId string, from time.Time, to time.Time) ([]*SalesProfitRow, error) {
	db := config.GetDB()
	var rows []*SalesProfitRow
	err := db.WithContext(ctx).Model(&models.SaleTransaction{}).
		Select(`asset_type,
			COUNT(*) AS sale_count,
			COALESCE(SUM(selling_price_idr), 0) AS selling_price_idr,
			COALESCE(SUM(total_cost_idr), 0) AS total_cost_idr,
			COALESCE(SUM(profit_idr), 0) AS profit_idr`).
		Where("business_id = ? AND sale_date >= ? AND sale_date < ?", businessId, from, to).
		Group("asset_type").
		Order("asset_type").
		Scan(&rows).Error
	return rows, err
}

// ProfitLossReport nets the profit of the period's sales against its operating
// expenses. Margins are percentages of revenue.
type ProfitLossReport struct {
	PeriodStart      time.Time                      `json:"period_start"`
	PeriodEnd        time.Time                      `json:"period_end"`
	Sales            []*SalesProfitRow              `json:"sales"`
	RevenueIdr       decimal.Decimal                `json:"revenue_idr"`
	CostOfSalesIdr   decimal.Decimal                `json:"cost_of_sales_idr"`
	GrossProfitIdr   decimal.Decimal                `json:"gross_profit_idr"`
	Expenses         []*models.ExpenseCategoryTotal `json:"expenses"`
	TotalExpensesIdr decimal.Decimal                `json:"total_expenses_idr"`
	NetProfitIdr     decimal.Decimal                `json:"net_profit_idr"`
	GrossMargin      decimal.Decimal                `json:"gross_margin"`
	NetMargin        decimal.Decimal                `json:"net_margin"`
}

func BuildProfitLoss(sales []*SalesProfitRow, expenses []*models.ExpenseCategoryTotal, from time.Time, to time.Time) *ProfitLossReport {
	r := &ProfitLossReport{
		PeriodStart:      from,
		PeriodEnd:        to,
		Sales:            sales,
		Expenses:         expenses,
		RevenueIdr:       decimal.Zero,
		CostOfSalesIdr:   decimal.Zero,
		GrossProfitIdr:   decimal.Zero,
		TotalExpensesIdr: decimal.Zero,
	}
	for _, s := range sales {
		r.RevenueIdr = r.RevenueIdr.Add(s.SellingPriceIdr)
		r.CostOfSalesIdr = r.CostOfSalesIdr.Add(s.TotalCostIdr)
		r.GrossProfitIdr = r.GrossProfitIdr.Add(s.ProfitIdr)
	}
	for _, x := range expenses {
		r.TotalExpensesIdr = r.TotalExpensesIdr.Add(x.TotalIdr)
	}
	r.NetProfitIdr = r.GrossProfitIdr.Sub(r.TotalExpensesIdr)
	r.GrossMargin = percentOf(r.GrossProfitIdr, r.RevenueIdr)
	r.NetMargin = percentOf(r.NetProfitIdr, r.RevenueIdr)
	return r
}

func percentOf(part decimal.Decimal, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2)
}

// GetProfitLossReport builds the profit and loss statement for [from, to).
func GetProfitLossReport(ctx context.Context, businessId string, from time.Time, to time.Time) (*ProfitLossReport, error) {
	sales, err := GetSalesProfitReport(ctx, businessId, from, to)
	if err != nil {
		return nil, err
	}
	expenses, err := models.SumExpensesByCategory(ctx, businessId, models.ExpenseFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	return BuildProfitLoss(sales, expenses, from, to), nil
}
