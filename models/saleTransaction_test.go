package models

import (
	"testing"

	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
)

func TestComputeSaleFigures_Idr(t *testing.T) {
	f := ComputeSaleFigures(decimal.NewFromInt(2000000), decimal.NewFromInt(1), decimal.NewFromInt(1500000))

	if !f.ProfitIdr.Equal(decimal.NewFromInt(500000)) {
		t.Fatalf("profit idr: expected 500000, got %s", f.ProfitIdr)
	}
	if !f.Profit.Equal(decimal.NewFromInt(500000)) {
		t.Fatalf("profit: expected 500000, got %s", f.Profit)
	}
	if !f.ProfitMargin.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("margin: expected 25, got %s", f.ProfitMargin)
	}
}

func TestComputeSaleFigures_ForeignCurrencyUsesSaleRate(t *testing.T) {
	// 1000 USD at 15500 against 12,400,000 IDR of cost
	f := ComputeSaleFigures(decimal.NewFromInt(15500000), decimal.NewFromInt(15500), decimal.NewFromInt(12400000))

	if !f.TotalCost.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("total cost: expected 800, got %s", f.TotalCost)
	}
	if !f.Profit.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("profit: expected 200, got %s", f.Profit)
	}
	if !f.ProfitIdr.Equal(decimal.NewFromInt(3100000)) {
		t.Fatalf("profit idr: expected 3100000, got %s", f.ProfitIdr)
	}
	if !f.ProfitMargin.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("margin: expected 20, got %s", f.ProfitMargin)
	}
}

func TestComputeSaleFigures_ZeroPriceHasZeroMargin(t *testing.T) {
	f := ComputeSaleFigures(decimal.Zero, decimal.NewFromInt(1), decimal.NewFromInt(100))

	if !f.ProfitMargin.IsZero() {
		t.Fatalf("expected margin 0, got %s", f.ProfitMargin)
	}
	if !f.ProfitIdr.Equal(decimal.NewFromInt(-100)) {
		t.Fatalf("expected loss of 100, got %s", f.ProfitIdr)
	}
}

func TestComputeSaleFigures_LossIsNegativeMargin(t *testing.T) {
	f := ComputeSaleFigures(decimal.NewFromInt(1000), decimal.NewFromInt(1), decimal.NewFromInt(1500))

	if !f.ProfitMargin.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("expected margin -50, got %s", f.ProfitMargin)
	}
}

func TestSellInputValidate_Defaults(t *testing.T) {
	input := SellInput{SellingPrice: decimal.NewFromInt(1000), BuyerName: "Budi"}
	if err := input.Validate(CurrencyUSD); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if input.Currency != CurrencyUSD {
		t.Fatalf("expected default currency USD, got %s", input.Currency)
	}
	if input.PaymentMethod != "CASH" {
		t.Fatalf("expected CASH, got %s", input.PaymentMethod)
	}
	paid, remaining := input.PaidAndRemaining()
	if !paid.Equal(decimal.NewFromInt(1000)) || !remaining.IsZero() {
		t.Fatalf("expected fully paid, got paid=%s remaining=%s", paid, remaining)
	}
}

func TestSellInputValidate_Rejects(t *testing.T) {
	over := decimal.NewFromInt(2000)
	cases := []struct {
		name  string
		input SellInput
	}{
		{"zero price", SellInput{SellingPrice: decimal.Zero, BuyerName: "Budi"}},
		{"missing buyer", SellInput{SellingPrice: decimal.NewFromInt(1000)}},
		{"overpaid", SellInput{SellingPrice: decimal.NewFromInt(1000), BuyerName: "Budi", PaidAmount: &over}},
		{"bad currency", SellInput{SellingPrice: decimal.NewFromInt(1000), BuyerName: "Budi", Currency: "EUR"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := tc.input
			err := input.Validate(CanonicalCurrency)
			if utils.KindOf(err) != utils.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCheckSellable(t *testing.T) {
	if err := CheckSellable(AssetStatusAvailable); err != nil {
		t.Fatalf("AVAILABLE must be sellable, got %v", err)
	}
	for _, status := range []AssetStatus{AssetStatusOnProgress, AssetStatusInspection, AssetStatusInactive} {
		err := CheckSellable(status)
		if utils.KindOf(err) != utils.KindInvalidState {
			t.Fatalf("%s: expected invalid state, got %v", status, err)
		}
		if err.Error() != "asset must be AVAILABLE to be sold" {
			t.Fatalf("%s: unexpected message %q", status, err.Error())
		}
	}
	if err := CheckSellable(AssetStatusSold); err == nil || err.Error() != "asset already sold" {
		t.Fatalf("SOLD: unexpected error %v", err)
	}
}
