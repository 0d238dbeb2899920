package reports

import (
	"testing"
	"time"

	"github.com/dealerbooks/dealer_backend/models"
	"github.com/shopspring/decimal"
)

func TestBuildProfitLoss(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sales := []*SalesProfitRow{
		{AssetType: models.AssetTypeMotorcycle, SaleCount: 1, SellingPriceIdr: decimal.NewFromInt(2000000), TotalCostIdr: decimal.NewFromInt(1500000), ProfitIdr: decimal.NewFromInt(500000)},
		{AssetType: models.AssetTypeProduct, SaleCount: 2, SellingPriceIdr: decimal.NewFromInt(1000000), TotalCostIdr: decimal.NewFromInt(700000), ProfitIdr: decimal.NewFromInt(300000)},
	}
	expenses := []*models.ExpenseCategoryTotal{
		{Category: "RENT", Count: 1, TotalIdr: decimal.NewFromInt(600000)},
		{Category: "SALARY", Count: 2, TotalIdr: decimal.NewFromInt(500000)},
	}

	r := BuildProfitLoss(sales, expenses, start, start.AddDate(0, 1, 0))

	if !r.RevenueIdr.Equal(decimal.NewFromInt(3000000)) || !r.CostOfSalesIdr.Equal(decimal.NewFromInt(2200000)) {
		t.Fatalf("unexpected revenue %s / cost %s", r.RevenueIdr, r.CostOfSalesIdr)
	}
	if !r.GrossProfitIdr.Equal(decimal.NewFromInt(800000)) || !r.TotalExpensesIdr.Equal(decimal.NewFromInt(1100000)) {
		t.Fatalf("unexpected gross %s / expenses %s", r.GrossProfitIdr, r.TotalExpensesIdr)
	}
	if !r.NetProfitIdr.Equal(decimal.NewFromInt(-300000)) {
		t.Fatalf("expenses above gross profit make a loss, got %s", r.NetProfitIdr)
	}
	if !r.GrossMargin.Equal(decimal.RequireFromString("26.67")) || !r.NetMargin.Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("unexpected margins %s / %s", r.GrossMargin, r.NetMargin)
	}
}

func TestBuildProfitLoss_NoRevenue(t *testing.T) {
	expenses := []*models.ExpenseCategoryTotal{{Category: "RENT", Count: 1, TotalIdr: decimal.NewFromInt(600000)}}
	r := BuildProfitLoss(nil, expenses, time.Now(), time.Now())
	if !r.NetProfitIdr.Equal(decimal.NewFromInt(-600000)) || !r.NetMargin.IsZero() {
		t.Fatalf("unexpected report %+v", r)
	}
}
