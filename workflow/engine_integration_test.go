package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/models/reports"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/dealerbooks/dealer_backend/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine() *workflow.Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	e := workflow.NewEngine(config.GetDB(), logger)
	e.Retry = workflow.RetryPolicy{Attempts: 20, BaseDelay: 5 * time.Millisecond, MaxDelay: 100 * time.Millisecond}
	return e
}

func newBusiness(t *testing.T) (context.Context, string) {
	t.Helper()
	businessId := uuid.NewString()
	ctx := utils.SetBusinessIdInContext(context.Background(), businessId)
	return ctx, businessId
}

func availableMotorcycle(t *testing.T, e *workflow.Engine, ctx context.Context, businessId string, currency models.CurrencyCode) models.AssetRef {
	t.Helper()
	m, err := e.CreateMotorcycle(ctx, businessId, &models.NewMotorcycle{
		Vin:      "VIN" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Model:    "Softail Slim",
		Year:     2019,
		Currency: currency,
		Status:   models.AssetStatusAvailable,
	})
	if err != nil {
		t.Fatalf("CreateMotorcycle: %v", err)
	}
	return m.Ref()
}

func sellInput(price string, currency models.CurrencyCode) *models.SellInput {
	return &models.SellInput{SellingPrice: dec(price), Currency: currency, BuyerName: "Budi"}
}

func TestEngineIntegration(t *testing.T) {
	requireIntegration(t)
	setupDatabase(t)

	t.Run("idr sale derives profit and closes the cost ledger", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		ref := availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)

		if _, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "PURCHASE", Description: "Buy", Amount: dec("1000000"), Currency: models.CurrencyIDR}); err != nil {
			t.Fatalf("AddCost: %v", err)
		}
		if _, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "SERVICE", Description: "Tune up", Amount: dec("500000"), Currency: models.CurrencyIDR}); err != nil {
			t.Fatalf("AddCost: %v", err)
		}
		asset, err := models.GetAsset(ctx, biz, ref)
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		if !asset.Financials().TotalCostIdr.Equal(dec("1500000")) {
			t.Fatalf("expected both entries summed to 1500000, got %s", asset.Financials().TotalCostIdr)
		}
		sale, err := e.Sell(ctx, biz, ref, sellInput("2000000", models.CurrencyIDR))
		if err != nil {
			t.Fatalf("Sell: %v", err)
		}
		if !sale.TotalCostIdr.Equal(dec("1500000")) {
			t.Fatalf("sale total cost: expected 1500000, got %s", sale.TotalCostIdr)
		}
		if !sale.ProfitIdr.Equal(dec("500000")) || !sale.ProfitMargin.Equal(dec("25")) {
			t.Fatalf("unexpected profit %s margin %s", sale.ProfitIdr, sale.ProfitMargin)
		}
		if !strings.HasPrefix(sale.InvoiceNumber, "DHD-") {
			t.Fatalf("unexpected invoice %s", sale.InvoiceNumber)
		}

		asset, err = models.GetAsset(ctx, biz, ref)
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		f := asset.Financials()
		if f.Status != models.AssetStatusSold || f.Profit == nil || !f.Profit.Equal(dec("500000")) {
			t.Fatalf("asset not marked sold with profit: %+v", f)
		}

		_, err = e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "SERVICE", Description: "Late", Amount: dec("1"), Currency: models.CurrencyIDR})
		if utils.KindOf(err) != utils.KindInvalidState {
			t.Fatalf("expected post-sale cost to be rejected, got %v", err)
		}

		_, err = e.Sell(ctx, biz, ref, sellInput("2100000", models.CurrencyIDR))
		if utils.KindOf(err) != utils.KindInvalidState {
			t.Fatalf("expected second sale to be rejected, got %v", err)
		}

		flows, err := models.ListCashFlows(ctx, biz, models.CashFlowFilter{})
		if err != nil {
			t.Fatalf("ListCashFlows: %v", err)
		}
		if len(flows) != 3 {
			t.Fatalf("expected two cost and one sale cash flows, got %d", len(flows))
		}
	})

	t.Run("only available assets can be sold", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		m, err := e.CreateMotorcycle(ctx, biz, &models.NewMotorcycle{
			Vin:      "VIN" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
			Model:    "Street Bob",
			Year:     2021,
			Currency: models.CurrencyIDR,
			Status:   models.AssetStatusOnProgress,
		})
		if err != nil {
			t.Fatalf("CreateMotorcycle: %v", err)
		}
		ref := m.Ref()

		for _, status := range []models.AssetStatus{models.AssetStatusOnProgress, models.AssetStatusInspection, models.AssetStatusInactive} {
			if status != models.AssetStatusOnProgress {
				if _, err := e.UpdateAssetStatus(ctx, biz, ref, status); err != nil {
					t.Fatalf("UpdateAssetStatus %s: %v", status, err)
				}
			}
			_, err := e.Sell(ctx, biz, ref, sellInput("1000000", models.CurrencyIDR))
			if utils.KindOf(err) != utils.KindInvalidState || err.Error() != "asset must be AVAILABLE to be sold" {
				t.Fatalf("%s: expected the not-available error, got %v", status, err)
			}
		}

		if _, err := e.UpdateAssetStatus(ctx, biz, ref, models.AssetStatusAvailable); err != nil {
			t.Fatalf("UpdateAssetStatus: %v", err)
		}
		if _, err := e.Sell(ctx, biz, ref, sellInput("1000000", models.CurrencyIDR)); err != nil {
			t.Fatalf("Sell once available: %v", err)
		}
		if _, err := e.Sell(ctx, biz, ref, sellInput("1000000", models.CurrencyIDR)); err == nil || err.Error() != "asset already sold" {
			t.Fatalf("expected the sold error, got %v", err)
		}
		flows, err := models.ListCashFlows(ctx, biz, models.CashFlowFilter{})
		if err != nil {
			t.Fatalf("ListCashFlows: %v", err)
		}
		if len(flows) != 1 {
			t.Fatalf("rejected sales must write nothing, got %d cash flows", len(flows))
		}
	})

	t.Run("foreign cost keeps its frozen rate while the projection follows the market", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		now := time.Now()
		older, newer := now.Add(-2*time.Hour), now.Add(-time.Minute)

		if _, err := models.CreateExchangeRate(ctx, biz, &models.NewExchangeRate{FromCurrency: models.CurrencyUSD, Rate: dec("15500"), EffectiveDate: &older}); err != nil {
			t.Fatalf("CreateExchangeRate: %v", err)
		}
		p, err := e.CreateProduct(ctx, biz, &models.NewProduct{Category: "HELMET", Name: "Bell Custom 500", Currency: models.CurrencyUSD})
		if err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
		ref := p.Ref()

		cost, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "PURCHASE", Description: "Import", Amount: dec("100"), Currency: models.CurrencyUSD})
		if err != nil {
			t.Fatalf("AddCost: %v", err)
		}
		if !cost.AmountIdr.Equal(dec("1550000")) || !cost.ExchangeRate.Equal(dec("15500")) {
			t.Fatalf("unexpected frozen cost %s at %s", cost.AmountIdr, cost.ExchangeRate)
		}

		if _, err := models.CreateExchangeRate(ctx, biz, &models.NewExchangeRate{FromCurrency: models.CurrencyUSD, Rate: dec("16000"), EffectiveDate: &newer}); err != nil {
			t.Fatalf("CreateExchangeRate: %v", err)
		}
		totalIdr, err := e.RecomputeTotal(ctx, biz, ref)
		if err != nil {
			t.Fatalf("RecomputeTotal: %v", err)
		}
		if !totalIdr.Equal(dec("1550000")) {
			t.Fatalf("ledger total moved with the rate: %s", totalIdr)
		}
		asset, err := models.GetAsset(ctx, biz, ref)
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		if got := asset.Financials().TotalCost; !got.Equal(dec("96.875")) {
			t.Fatalf("expected projection 96.875, got %s", got)
		}

		if _, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "SHIPPING", Description: "Courier", Amount: dec("10"), Currency: models.CurrencyUSD}); err != nil {
			t.Fatalf("AddCost: %v", err)
		}
		asset, err = models.GetAsset(ctx, biz, ref)
		if err != nil {
			t.Fatalf("GetAsset: %v", err)
		}
		f := asset.Financials()
		if !f.TotalCostIdr.Equal(dec("1710000")) || !f.TotalCost.Equal(dec("106.875")) {
			t.Fatalf("expected 1710000 IDR / 106.875 USD, got %s / %s", f.TotalCostIdr, f.TotalCost)
		}
	})

	t.Run("costs priced through an inverse rate do not drift on edits", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		effective := time.Now().Add(-time.Hour)
		if _, err := models.CreateExchangeRate(ctx, biz, &models.NewExchangeRate{FromCurrency: models.CurrencyIDR, ToCurrency: models.CurrencyUSD, Rate: dec("0.0000645"), EffectiveDate: &effective}); err != nil {
			t.Fatalf("CreateExchangeRate: %v", err)
		}
		ref := availableMotorcycle(t, e, ctx, biz, models.CurrencyUSD)

		cost, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "PURCHASE", Description: "Import", Amount: dec("100"), Currency: models.CurrencyUSD})
		if err != nil {
			t.Fatalf("AddCost: %v", err)
		}
		if !cost.ExchangeRate.Equal(dec("15503.875969")) || !cost.AmountIdr.Equal(dec("1550387.5969")) {
			t.Fatalf("unexpected frozen cost %s at %s", cost.AmountIdr, cost.ExchangeRate)
		}

		notes := "receipt scanned"
		updated, err := e.UpdateCost(ctx, biz, ref, cost.ID, &models.AssetCostPatch{Notes: &notes})
		if err != nil {
			t.Fatalf("UpdateCost: %v", err)
		}
		if !updated.AmountIdr.Equal(cost.AmountIdr) {
			t.Fatalf("a notes edit moved the cost from %s to %s", cost.AmountIdr, updated.AmountIdr)
		}
		totalIdr, err := e.RecomputeTotal(ctx, biz, ref)
		if err != nil {
			t.Fatalf("RecomputeTotal: %v", err)
		}
		if !totalIdr.Equal(dec("1550387.5969")) {
			t.Fatalf("unexpected total %s", totalIdr)
		}
	})

	t.Run("a dated rate takes effect without waiting for the cache", func(t *testing.T) {
		ctx, biz := newBusiness(t)
		now := time.Now()
		current, pending := now.Add(-time.Hour), now.Add(2*time.Second)
		for _, r := range []struct {
			rate string
			at   *time.Time
		}{{"15500", &current}, {"16000", &pending}} {
			if _, err := models.CreateExchangeRate(ctx, biz, &models.NewExchangeRate{FromCurrency: models.CurrencyUSD, Rate: dec(r.rate), EffectiveDate: r.at}); err != nil {
				t.Fatalf("CreateExchangeRate: %v", err)
			}
		}
		rates := models.NewDBRateProvider(config.GetDB())
		q, err := rates.LatestRate(ctx, biz, models.CurrencyUSD, models.CurrencyIDR)
		if err != nil || !q.Rate.Equal(dec("15500")) {
			t.Fatalf("expected the current rate 15500, got %s (%v)", q.Rate, err)
		}
		time.Sleep(time.Until(pending) + 1500*time.Millisecond)
		q, err = rates.LatestRate(ctx, biz, models.CurrencyUSD, models.CurrencyIDR)
		if err != nil || !q.Rate.Equal(dec("16000")) {
			t.Fatalf("expected the dated rate 16000 once effective, got %s (%v)", q.Rate, err)
		}
	})

	t.Run("cost corrections after a sale re-derive its profit", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		ref := availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)

		cost, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "PURCHASE", Description: "Buy", Amount: dec("1500000"), Currency: models.CurrencyIDR})
		if err != nil {
			t.Fatalf("AddCost: %v", err)
		}
		if _, err := e.Sell(ctx, biz, ref, sellInput("2000000", models.CurrencyIDR)); err != nil {
			t.Fatalf("Sell: %v", err)
		}

		amount := dec("1600000")
		if _, err := e.UpdateCost(ctx, biz, ref, cost.ID, &models.AssetCostPatch{Amount: &amount}); err != nil {
			t.Fatalf("UpdateCost: %v", err)
		}
		sale, err := models.GetSaleOfAsset(ctx, biz, ref)
		if err != nil {
			t.Fatalf("GetSaleOfAsset: %v", err)
		}
		if !sale.ProfitIdr.Equal(dec("400000")) || !sale.ProfitMargin.Equal(dec("20")) {
			t.Fatalf("expected 400000 / 20%%, got %s / %s", sale.ProfitIdr, sale.ProfitMargin)
		}

		t.Setenv("STRICT_COST_LOCK_AFTER_SALE", "true")
		if err := e.RemoveCost(ctx, biz, ref, cost.ID); utils.KindOf(err) != utils.KindInvalidState {
			t.Fatalf("strict lock: expected invalid state, got %v", err)
		}
		t.Setenv("STRICT_COST_LOCK_AFTER_SALE", "")

		if err := e.RemoveCost(ctx, biz, ref, cost.ID); err != nil {
			t.Fatalf("RemoveCost: %v", err)
		}
		sale, err = models.GetSaleOfAsset(ctx, biz, ref)
		if err != nil {
			t.Fatalf("GetSaleOfAsset: %v", err)
		}
		if !sale.ProfitIdr.Equal(dec("2000000")) || !sale.ProfitMargin.Equal(dec("100")) {
			t.Fatalf("expected 2000000 / 100%%, got %s / %s", sale.ProfitIdr, sale.ProfitMargin)
		}
	})

	t.Run("sold asset deletion requires removing the sale", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		ref := availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)
		if _, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "PURCHASE", Description: "Buy", Amount: dec("1000"), Currency: models.CurrencyIDR}); err != nil {
			t.Fatalf("AddCost: %v", err)
		}
		if _, err := e.Sell(ctx, biz, ref, sellInput("1500", models.CurrencyIDR)); err != nil {
			t.Fatalf("Sell: %v", err)
		}

		err := e.DeleteAsset(ctx, biz, ref, workflow.DeleteAssetOptions{})
		if utils.KindOf(err) != utils.KindInvalidState {
			t.Fatalf("expected invalid state, got %v", err)
		}
		if err := e.DeleteAsset(ctx, biz, ref, workflow.DeleteAssetOptions{IncludeSale: true}); err != nil {
			t.Fatalf("DeleteAsset: %v", err)
		}
		if _, err := models.GetAsset(ctx, biz, ref); utils.KindOf(err) != utils.KindNotFound {
			t.Fatalf("expected asset gone, got %v", err)
		}
		flows, err := models.ListCashFlows(ctx, biz, models.CashFlowFilter{})
		if err != nil {
			t.Fatalf("ListCashFlows: %v", err)
		}
		if len(flows) != 0 {
			t.Fatalf("expected cash flows removed with the asset, got %d", len(flows))
		}
	})

	t.Run("concurrent sells of one asset produce one sale", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		ref := availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = e.Sell(ctx, biz, ref, sellInput("2000000", models.CurrencyIDR))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case utils.KindOf(err) != utils.KindInvalidState:
				t.Fatalf("unexpected error kind: %v", err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("expected exactly one sale, got %d", succeeded)
		}
		sales, err := models.ListSaleTransactions(ctx, biz, models.SaleFilter{})
		if err != nil {
			t.Fatalf("ListSaleTransactions: %v", err)
		}
		if len(sales) != 1 {
			t.Fatalf("expected one stored sale, got %d", len(sales))
		}
	})

	t.Run("concurrent sales get gapless distinct invoice numbers", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		saleDate := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

		const n = 10
		refs := make([]models.AssetRef, n)
		for i := range refs {
			refs[i] = availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)
		}

		var wg sync.WaitGroup
		invoices := make([]string, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				in := sellInput("1000000", models.CurrencyIDR)
				in.SaleDate = &saleDate
				sale, err := e.Sell(ctx, biz, refs[i], in)
				errs[i] = err
				if err == nil {
					invoices[i] = sale.InvoiceNumber
				}
			}(i)
		}
		wg.Wait()

		seen := map[string]bool{}
		for i, err := range errs {
			if err != nil {
				t.Fatalf("Sell %d: %v", i, err)
			}
			seen[invoices[i]] = true
		}
		for seq := 1; seq <= n; seq++ {
			want := fmt.Sprintf("DHD-2403-%04d", seq)
			if !seen[want] {
				t.Fatalf("missing invoice %s in %v", want, invoices)
			}
		}
	})

	t.Run("stock adjustments move stock and book the movement", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		part, err := e.CreateSparepart(ctx, biz, &models.NewSparepart{Sku: "OIL-20W50", Name: "Engine oil", PurchasePrice: dec("20000"), UnitPrice: dec("35000"), Stock: 10})
		if err != nil {
			t.Fatalf("CreateSparepart: %v", err)
		}

		res, err := e.AdjustStock(ctx, biz, part.ID, &models.AdjustStockInput{Quantity: -5, Type: models.StockAdjustmentTypeLoss, Reason: "leak"})
		if err != nil {
			t.Fatalf("AdjustStock: %v", err)
		}
		if res.Adjustment.PreviousStock != 10 || res.Adjustment.NewStock != 5 || res.Sparepart.Stock != 5 {
			t.Fatalf("unexpected movement %+v", res.Adjustment)
		}
		if res.CashFlow.Type != models.CashFlowTypeOutcome || res.CashFlow.Category != models.CashFlowCategorySparepartLoss || !res.CashFlow.AmountIdr.Equal(dec("100000")) {
			t.Fatalf("unexpected cash flow %+v", res.CashFlow)
		}

		if _, err := e.AdjustStock(ctx, biz, part.ID, &models.AdjustStockInput{Quantity: 0, Type: models.StockAdjustmentTypeAdjustment}); utils.KindOf(err) != utils.KindValidation {
			t.Fatalf("zero quantity: expected validation error, got %v", err)
		}
		if _, err := e.AdjustStock(ctx, biz, part.ID, &models.AdjustStockInput{Quantity: -6, Type: models.StockAdjustmentTypeAdjustment}); utils.KindOf(err) != utils.KindInvalidState {
			t.Fatalf("overdraw: expected invalid state, got %v", err)
		}

		stored, err := models.GetSparepart(ctx, biz, part.ID)
		if err != nil {
			t.Fatalf("GetSparepart: %v", err)
		}
		if stored.Stock != 5 {
			t.Fatalf("expected stock 5 after rejected overdraw, got %d", stored.Stock)
		}
		history, err := models.ListStockAdjustments(ctx, biz, part.ID)
		if err != nil {
			t.Fatalf("ListStockAdjustments: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected OPENING and LOSS movements, got %d", len(history))
		}
	})

	t.Run("service items reject stock adjustments", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		labour, err := e.CreateSparepart(ctx, biz, &models.NewSparepart{Sku: "SVC-TUNE", Name: "Tune up labour", Category: models.SparepartCategoryService, UnitPrice: dec("150000")})
		if err != nil {
			t.Fatalf("CreateSparepart: %v", err)
		}
		for _, input := range []*models.AdjustStockInput{
			{Quantity: 3, Type: models.StockAdjustmentTypePurchase},
			{Quantity: -1, Type: models.StockAdjustmentTypeLoss},
		} {
			_, err := e.AdjustStock(ctx, biz, labour.ID, input)
			if utils.KindOf(err) != utils.KindInvalidState {
				t.Fatalf("qty %d: expected invalid state, got %v", input.Quantity, err)
			}
		}
		history, err := models.ListStockAdjustments(ctx, biz, labour.ID)
		if err != nil {
			t.Fatalf("ListStockAdjustments: %v", err)
		}
		if len(history) != 0 {
			t.Fatalf("rejected adjustments must write nothing, got %d movements", len(history))
		}
	})

	t.Run("sparepart sale and its void restore stock", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		part, err := e.CreateSparepart(ctx, biz, &models.NewSparepart{Sku: "PLUG-01", Name: "Spark plug", PurchasePrice: dec("30000"), UnitPrice: dec("50000"), Stock: 5})
		if err != nil {
			t.Fatalf("CreateSparepart: %v", err)
		}

		sale, err := e.SellSpareparts(ctx, biz, &models.NewSparepartSale{
			Items:        []models.NewSparepartSaleItem{{SparepartId: part.ID, Quantity: 2}},
			CustomerName: "Andi",
		})
		if err != nil {
			t.Fatalf("SellSpareparts: %v", err)
		}
		if !sale.Total.Equal(dec("100000")) || !strings.HasPrefix(sale.InvoiceNumber, "SPR-") {
			t.Fatalf("unexpected sale %s total %s", sale.InvoiceNumber, sale.Total)
		}
		stored, err := models.GetSparepart(ctx, biz, part.ID)
		if err != nil {
			t.Fatalf("GetSparepart: %v", err)
		}
		if stored.Stock != 3 {
			t.Fatalf("expected stock 3, got %d", stored.Stock)
		}

		_, err = e.SellSpareparts(ctx, biz, &models.NewSparepartSale{Items: []models.NewSparepartSaleItem{{SparepartId: part.ID, Quantity: 4}}})
		if utils.KindOf(err) != utils.KindInvalidState {
			t.Fatalf("expected insufficient stock, got %v", err)
		}

		voided, err := e.DeleteSparepartSale(ctx, biz, sale.ID)
		if err != nil {
			t.Fatalf("DeleteSparepartSale: %v", err)
		}
		if voided.ItemsRestored != 1 || voided.InvoiceNumber != sale.InvoiceNumber {
			t.Fatalf("unexpected void result %+v", voided)
		}
		stored, err = models.GetSparepart(ctx, biz, part.ID)
		if err != nil {
			t.Fatalf("GetSparepart: %v", err)
		}
		if stored.Stock != 5 {
			t.Fatalf("expected stock 5 after void, got %d", stored.Stock)
		}
	})

	t.Run("business recompute covers every asset", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)
		availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)
		if _, err := e.CreateSparepart(ctx, biz, &models.NewSparepart{Sku: "CHAIN", Name: "Chain", Stock: 1}); err != nil {
			t.Fatalf("CreateSparepart: %v", err)
		}

		summary, err := e.RecomputeBusiness(ctx, biz, 2)
		if err != nil {
			t.Fatalf("RecomputeBusiness: %v", err)
		}
		if summary.Assets != 3 || summary.Failed != 0 {
			t.Fatalf("unexpected summary %+v", summary)
		}
	})

	t.Run("operating expenses book cash flows and reduce net profit", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		from, to := time.Now().Add(-time.Hour), time.Now().Add(time.Hour)

		ref := availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)
		if _, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "PURCHASE", Description: "Buy", Amount: dec("1500000"), Currency: models.CurrencyIDR}); err != nil {
			t.Fatalf("AddCost: %v", err)
		}
		if _, err := e.Sell(ctx, biz, ref, sellInput("2000000", models.CurrencyIDR)); err != nil {
			t.Fatalf("Sell: %v", err)
		}

		rent, err := e.CreateExpense(ctx, biz, &models.NewExpense{Category: "rent", Description: "Workshop rent", Amount: dec("600000")})
		if err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
		usdRate := dec("16000")
		salary, err := e.CreateExpense(ctx, biz, &models.NewExpense{Category: "SALARY", Description: "Mechanic", Amount: dec("10"), Currency: models.CurrencyUSD, ExchangeRate: &usdRate})
		if err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
		if !salary.AmountIdr.Equal(dec("160000")) || salary.CashFlowId == nil {
			t.Fatalf("unexpected salary expense %+v", salary)
		}

		category := "EXPENSE_RENT"
		flows, err := models.ListCashFlows(ctx, biz, models.CashFlowFilter{Category: &category})
		if err != nil {
			t.Fatalf("ListCashFlows: %v", err)
		}
		if len(flows) != 1 || flows[0].Type != models.CashFlowTypeOutcome || flows[0].ReferenceKey != "EXPENSE#"+fmt.Sprint(rent.ID) {
			t.Fatalf("unexpected rent cash flows %+v", flows)
		}

		amount := dec("700000")
		if _, err := e.UpdateExpense(ctx, biz, rent.ID, &models.ExpensePatch{Amount: &amount}); err != nil {
			t.Fatalf("UpdateExpense: %v", err)
		}
		flows, err = models.ListCashFlows(ctx, biz, models.CashFlowFilter{Category: &category})
		if err != nil {
			t.Fatalf("ListCashFlows: %v", err)
		}
		if len(flows) != 1 || !flows[0].AmountIdr.Equal(amount) {
			t.Fatalf("the rent cash flow must follow the correction, got %+v", flows)
		}

		report, err := reports.GetProfitLossReport(ctx, biz, from, to)
		if err != nil {
			t.Fatalf("GetProfitLossReport: %v", err)
		}
		if !report.GrossProfitIdr.Equal(dec("500000")) || !report.TotalExpensesIdr.Equal(dec("860000")) || !report.NetProfitIdr.Equal(dec("-360000")) {
			t.Fatalf("unexpected profit and loss %s - %s = %s", report.GrossProfitIdr, report.TotalExpensesIdr, report.NetProfitIdr)
		}

		if err := e.DeleteExpense(ctx, biz, salary.ID); err != nil {
			t.Fatalf("DeleteExpense: %v", err)
		}
		if err := e.DeleteExpense(ctx, biz, salary.ID); utils.KindOf(err) != utils.KindNotFound {
			t.Fatalf("expected not found on a second delete, got %v", err)
		}
		salaryCategory := "EXPENSE_SALARY"
		flows, err = models.ListCashFlows(ctx, biz, models.CashFlowFilter{Category: &salaryCategory})
		if err != nil || len(flows) != 0 {
			t.Fatalf("the salary cash flow must be removed, got %d (%v)", len(flows), err)
		}
		report, err = reports.GetProfitLossReport(ctx, biz, from, to)
		if err != nil {
			t.Fatalf("GetProfitLossReport: %v", err)
		}
		if !report.NetProfitIdr.Equal(dec("-200000")) {
			t.Fatalf("expected net -200000 after the delete, got %s", report.NetProfitIdr)
		}
	})

	t.Run("outbox dispatcher relays committed cash flow events", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		ref := availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)
		cost, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "PURCHASE", Description: "Buy", Amount: dec("1000"), Currency: models.CurrencyIDR})
		if err != nil {
			t.Fatalf("AddCost: %v", err)
		}
		amount := dec("1500")
		if _, err := e.UpdateCost(ctx, biz, ref, cost.ID, &models.AssetCostPatch{Amount: &amount}); err != nil {
			t.Fatalf("UpdateCost: %v", err)
		}

		var mu sync.Mutex
		var mine []config.CashFlowMessage
		var keys []string
		d := workflow.NewOutboxDispatcher(config.GetDB(), logrus.New())
		d.Publish = func(ctx context.Context, orderingKey string, msg config.CashFlowMessage) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if msg.BusinessId == biz {
				mine = append(mine, msg)
				keys = append(keys, orderingKey)
			}
			return fmt.Sprintf("msg-%d", msg.EventId), nil
		}
		for d.DispatchOnce(context.Background()) > 0 {
		}

		mu.Lock()
		defer mu.Unlock()
		if len(mine) != 2 {
			t.Fatalf("expected two events for the business, got %d", len(mine))
		}
		if mine[0].Action != string(models.CashFlowRecorded) || mine[1].Action != string(models.CashFlowCorrected) {
			t.Fatalf("events out of order: %s then %s", mine[0].Action, mine[1].Action)
		}
		if !mine[0].BalanceDeltaIdr.Equal(dec("-1000")) || !mine[1].BalanceDeltaIdr.Equal(dec("-500")) {
			t.Fatalf("unexpected balance deltas %s, %s", mine[0].BalanceDeltaIdr, mine[1].BalanceDeltaIdr)
		}
		if keys[0] != biz+"/"+ref.String() || keys[1] != keys[0] {
			t.Fatalf("both events must be ordered under the asset, got %v", keys)
		}
		stats, err := models.GetOutboxStats(ctx, biz)
		if err != nil {
			t.Fatalf("GetOutboxStats: %v", err)
		}
		if len(stats) != 1 || stats[0].PublishStatus != models.OutboxPublishStatusSent || stats[0].Count != 2 {
			t.Fatalf("unexpected outbox stats %+v", stats)
		}
	})

	t.Run("failed publishes park events as dead and can be requeued", func(t *testing.T) {
		e := newTestEngine()
		ctx, biz := newBusiness(t)
		ref := availableMotorcycle(t, e, ctx, biz, models.CurrencyIDR)
		if _, err := e.AddCost(ctx, biz, ref, &models.NewAssetCost{Component: "PURCHASE", Description: "Buy", Amount: dec("1000"), Currency: models.CurrencyIDR}); err != nil {
			t.Fatalf("AddCost: %v", err)
		}

		d := workflow.NewOutboxDispatcher(config.GetDB(), logrus.New())
		d.MaxAttempts = 2
		d.BatchSize = 500
		d.Publish = func(ctx context.Context, orderingKey string, msg config.CashFlowMessage) (string, error) {
			if msg.BusinessId == biz {
				return "", errors.New("topic unavailable")
			}
			return "ok", nil
		}
		for i := 0; i < 3; i++ {
			d.DispatchOnce(context.Background())
		}
		stats, err := models.GetOutboxStats(ctx, biz)
		if err != nil {
			t.Fatalf("GetOutboxStats: %v", err)
		}
		if len(stats) != 1 || stats[0].PublishStatus != models.OutboxPublishStatusDead {
			t.Fatalf("expected the event to be DEAD, got %+v", stats)
		}
		n, err := models.RequeueDeadOutbox(ctx, biz)
		if err != nil || n != 1 {
			t.Fatalf("RequeueDeadOutbox: n=%d err=%v", n, err)
		}
	})
}
