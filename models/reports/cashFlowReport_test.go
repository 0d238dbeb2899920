package reports

import (
	"bytes"
	"testing"
	"time"

	"github.com/dealerbooks/dealer_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func sampleCashFlows() []*models.CashFlow {
	return []*models.CashFlow{
		{Type: models.CashFlowTypeIncome, Category: models.CashFlowCategoryMotorcycleSale, AmountIdr: decimal.NewFromInt(2000000)},
		{Type: models.CashFlowTypeOutcome, Category: "PURCHASE", AmountIdr: decimal.NewFromInt(1500000)},
		{Type: models.CashFlowTypeOutcome, Category: "PAINT", AmountIdr: decimal.NewFromInt(250000)},
		{Type: models.CashFlowTypeOutcome, Category: "PURCHASE", AmountIdr: decimal.NewFromInt(100000)},
	}
}

func TestSummarizeCashFlows(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	s := SummarizeCashFlows(sampleCashFlows(), start, end)

	if !s.TotalIncome.Equal(decimal.NewFromInt(2000000)) {
		t.Fatalf("income: got %s", s.TotalIncome)
	}
	if !s.TotalOutcome.Equal(decimal.NewFromInt(1850000)) {
		t.Fatalf("outcome: got %s", s.TotalOutcome)
	}
	if !s.NetCashFlow.Equal(decimal.NewFromInt(150000)) {
		t.Fatalf("net: got %s", s.NetCashFlow)
	}
	if len(s.ByCategory) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(s.ByCategory))
	}
	if s.ByCategory[0].Category != models.CashFlowCategoryMotorcycleSale || s.ByCategory[1].Category != "PAINT" || s.ByCategory[2].Category != "PURCHASE" {
		t.Fatalf("categories not sorted: %+v", s.ByCategory)
	}
	if !s.ByCategory[2].Outcome.Equal(decimal.NewFromInt(1600000)) {
		t.Fatalf("PURCHASE outcome: got %s", s.ByCategory[2].Outcome)
	}
}

func TestSummarizeCashFlows_Empty(t *testing.T) {
	s := SummarizeCashFlows(nil, time.Now(), time.Now().Add(time.Hour))
	if !s.NetCashFlow.IsZero() || len(s.ByCategory) != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}

func TestWriteCashFlowExcel(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := SummarizeCashFlows(sampleCashFlows(), start, start.AddDate(0, 1, 0))

	var buf bytes.Buffer
	if err := WriteCashFlowExcel(&buf, s); err != nil {
		t.Fatalf("WriteCashFlowExcel: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	period, err := f.GetCellValue(cashFlowSheet, "B1")
	if err != nil {
		t.Fatalf("read B1: %v", err)
	}
	if period != "2024-03-01" {
		t.Fatalf("expected period start 2024-03-01, got %q", period)
	}
}
