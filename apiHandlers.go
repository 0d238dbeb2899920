package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/middlewares"
	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/models/reports"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/dealerbooks/dealer_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// api holds the engine once the database is up. Until then the readiness gate answers 503.
type api struct {
	engine atomic.Pointer[workflow.Engine]
}

func (a *api) register(r gin.IRouter) {
	r.POST("/exchange-rates", a.createExchangeRate)
	r.GET("/exchange-rates", a.listExchangeRates)
	r.GET("/exchange-rates/latest", a.latestExchangeRate)

	r.POST("/motorcycles", a.createMotorcycle)
	r.GET("/motorcycles", a.listMotorcycles)
	r.GET("/motorcycles/:id", a.getMotorcycle)
	r.PATCH("/motorcycles/:id", a.updateMotorcycle)

	r.POST("/products", a.createProduct)
	r.GET("/products", a.listProducts)
	r.GET("/products/:id", a.getProduct)
	r.PATCH("/products/:id", a.updateProduct)

	r.POST("/spareparts", a.createSparepart)
	r.GET("/spareparts", a.listSpareparts)
	r.GET("/spareparts/:id", a.getSparepart)
	r.PATCH("/spareparts/:id", a.updateSparepart)
	r.POST("/spareparts/:id/stock-adjustments", a.adjustStock)
	r.GET("/spareparts/:id/stock-adjustments", a.listStockAdjustments)

	assets := r.Group("/assets/:type/:id")
	assets.GET("/costs", a.listCosts)
	assets.POST("/costs", a.addCost)
	assets.PATCH("/costs/:costId", a.updateCost)
	assets.DELETE("/costs/:costId", a.removeCost)
	assets.POST("/recompute", a.recomputeTotal)
	assets.POST("/sell", a.sell)
	assets.GET("/sale", a.saleOfAsset)
	assets.POST("/toggle-status", a.toggleStatus)
	assets.PUT("/status", a.updateStatus)
	assets.DELETE("", a.deleteAsset)

	r.GET("/sales", a.listSales)
	r.GET("/sales/:id", a.getSale)

	r.POST("/sparepart-sales", a.sellSpareparts)
	r.GET("/sparepart-sales", a.listSparepartSales)
	r.GET("/sparepart-sales/:id", a.getSparepartSale)
	r.DELETE("/sparepart-sales/:id", a.deleteSparepartSale)

	r.GET("/cash-flows", a.listCashFlows)
	r.GET("/cash-flows/summary", a.cashFlowSummary)
	r.GET("/cash-flows/export", a.exportCashFlows)
	r.GET("/reports/sales-profit", a.salesProfitReport)
	r.GET("/reports/profit-loss", a.profitLossReport)

	r.POST("/expenses", a.createExpense)
	r.GET("/expenses", a.listExpenses)
	r.GET("/expenses/:id", a.getExpense)
	r.PATCH("/expenses/:id", a.updateExpense)
	r.DELETE("/expenses/:id", a.deleteExpense)

	r.POST("/logout", a.logout)

	r.GET("/ops/outbox", a.outboxStats)
	r.POST("/ops/outbox/requeue", a.requeueOutbox)
}

/* helpers */

func businessOf(c *gin.Context) (context.Context, string) {
	ctx := c.Request.Context()
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	return ctx, businessId
}

func statusOf(err error) int {
	switch utils.KindOf(err) {
	case utils.KindNotFound:
		return http.StatusNotFound
	case utils.KindInvalidState, utils.KindConflict:
		return http.StatusConflict
	case utils.KindValidation:
		return http.StatusUnprocessableEntity
	case utils.KindExternalDependency:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": utils.KindOf(err)})
}

func bind(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		writeError(c, utils.ValidationError("invalid request body: %v", err))
		return false
	}
	return true
}

func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		writeError(c, utils.ValidationError("invalid %s", name))
		return 0, false
	}
	return id, true
}

func assetRefParam(c *gin.Context) (models.AssetRef, bool) {
	var t models.AssetType
	if err := t.UnmarshalText([]byte(c.Param("type"))); err != nil {
		writeError(c, utils.ValidationError("invalid asset type %q", c.Param("type")))
		return models.AssetRef{}, false
	}
	id, ok := intParam(c, "id")
	if !ok {
		return models.AssetRef{}, false
	}
	return models.AssetRef{Type: t, Id: id}, true
}

// dateQuery parses YYYY-MM-DD or RFC3339; empty gives nil.
func dateQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	writeError(c, utils.ValidationError("invalid %s date %q", name, raw))
	return nil, false
}

func respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, v)
}

/* exchange rates */

func (a *api) createExchangeRate(c *gin.Context) {
	ctx, businessId := businessOf(c)
	var input models.NewExchangeRate
	if !bind(c, &input) {
		return
	}
	rate, err := models.CreateExchangeRate(ctx, businessId, &input)
	respond(c, http.StatusCreated, rate, err)
}

func (a *api) listExchangeRates(c *gin.Context) {
	ctx, businessId := businessOf(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rates, err := models.ListExchangeRates(ctx, businessId, models.CurrencyCode(strings.ToUpper(c.Query("from"))), limit)
	respond(c, http.StatusOK, rates, err)
}

func (a *api) latestExchangeRate(c *gin.Context) {
	ctx, businessId := businessOf(c)
	from := models.CurrencyCode(strings.ToUpper(c.DefaultQuery("from", string(models.CurrencyUSD))))
	to := models.CurrencyCode(strings.ToUpper(c.DefaultQuery("to", string(models.CanonicalCurrency))))
	latest, err := models.GetLatestExchangeRate(ctx, businessId, from, to)
	respond(c, http.StatusOK, latest, err)
}

/* motorcycles */

func (a *api) createMotorcycle(c *gin.Context) {
	ctx, businessId := businessOf(c)
	var input models.NewMotorcycle
	if !bind(c, &input) {
		return
	}
	m, err := a.engine.Load().CreateMotorcycle(ctx, businessId, &input)
	respond(c, http.StatusCreated, m, err)
}

func statusQuery(c *gin.Context) (*models.AssetStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	var s models.AssetStatus
	if err := s.UnmarshalText([]byte(raw)); err != nil {
		writeError(c, utils.ValidationError("invalid status %q", raw))
		return nil, false
	}
	return &s, true
}

func (a *api) listMotorcycles(c *gin.Context) {
	ctx, businessId := businessOf(c)
	status, ok := statusQuery(c)
	if !ok {
		return
	}
	list, err := models.ListMotorcycles(ctx, businessId, status)
	respond(c, http.StatusOK, list, err)
}

func (a *api) getMotorcycle(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	m, err := models.GetMotorcycle(ctx, businessId, id)
	respond(c, http.StatusOK, m, err)
}

func (a *api) updateMotorcycle(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var patch models.MotorcyclePatch
	if !bind(c, &patch) {
		return
	}
	m, err := models.UpdateMotorcycle(ctx, businessId, id, &patch)
	respond(c, http.StatusOK, m, err)
}

/* products */

func (a *api) createProduct(c *gin.Context) {
	ctx, businessId := businessOf(c)
	var input models.NewProduct
	if !bind(c, &input) {
		return
	}
	p, err := a.engine.Load().CreateProduct(ctx, businessId, &input)
	respond(c, http.StatusCreated, p, err)
}

func (a *api) listProducts(c *gin.Context) {
	ctx, businessId := businessOf(c)
	status, ok := statusQuery(c)
	if !ok {
		return
	}
	list, err := models.ListProducts(ctx, businessId, status)
	respond(c, http.StatusOK, list, err)
}

func (a *api) getProduct(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	p, err := models.GetProduct(ctx, businessId, id)
	respond(c, http.StatusOK, p, err)
}

func (a *api) updateProduct(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var patch models.ProductPatch
	if !bind(c, &patch) {
		return
	}
	p, err := models.UpdateProduct(ctx, businessId, id, &patch)
	respond(c, http.StatusOK, p, err)
}

/* spareparts */

func (a *api) createSparepart(c *gin.Context) {
	ctx, businessId := businessOf(c)
	var input models.NewSparepart
	if !bind(c, &input) {
		return
	}
	s, err := a.engine.Load().CreateSparepart(ctx, businessId, &input)
	respond(c, http.StatusCreated, s, err)
}

func (a *api) listSpareparts(c *gin.Context) {
	ctx, businessId := businessOf(c)
	lowStock, _ := strconv.ParseBool(c.DefaultQuery("low_stock", "false"))
	list, err := models.ListSpareparts(ctx, businessId, lowStock)
	respond(c, http.StatusOK, list, err)
}

func (a *api) getSparepart(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	s, err := models.GetSparepart(ctx, businessId, id)
	respond(c, http.StatusOK, s, err)
}

func (a *api) updateSparepart(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var patch models.SparepartPatch
	if !bind(c, &patch) {
		return
	}
	s, err := models.UpdateSparepart(ctx, businessId, id, &patch)
	respond(c, http.StatusOK, s, err)
}

func (a *api) adjustStock(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var input models.AdjustStockInput
	if !bind(c, &input) {
		return
	}
	result, err := a.engine.Load().AdjustStock(ctx, businessId, id, &input)
	respond(c, http.StatusCreated, result, err)
}

func (a *api) listStockAdjustments(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	list, err := models.ListStockAdjustments(ctx, businessId, id)
	respond(c, http.StatusOK, list, err)
}

/* costs and sales of an asset */

func (a *api) listCosts(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	if _, err := models.GetAsset(ctx, businessId, ref); err != nil {
		writeError(c, err)
		return
	}
	costs, err := models.ListAssetCosts(ctx, businessId, ref)
	respond(c, http.StatusOK, costs, err)
}

func (a *api) addCost(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	var input models.NewAssetCost
	if !bind(c, &input) {
		return
	}
	cost, err := a.engine.Load().AddCost(ctx, businessId, ref, &input)
	respond(c, http.StatusCreated, cost, err)
}

func (a *api) updateCost(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	costId, ok := intParam(c, "costId")
	if !ok {
		return
	}
	var patch models.AssetCostPatch
	if !bind(c, &patch) {
		return
	}
	cost, err := a.engine.Load().UpdateCost(ctx, businessId, ref, costId, &patch)
	respond(c, http.StatusOK, cost, err)
}

func (a *api) removeCost(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	costId, ok := intParam(c, "costId")
	if !ok {
		return
	}
	if err := a.engine.Load().RemoveCost(ctx, businessId, ref, costId); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) recomputeTotal(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	total, err := a.engine.Load().RecomputeTotal(ctx, businessId, ref)
	respond(c, http.StatusOK, gin.H{"total_cost_idr": total}, err)
}

func (a *api) sell(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	var input models.SellInput
	if !bind(c, &input) {
		return
	}
	sale, err := a.engine.Load().Sell(ctx, businessId, ref, &input)
	respond(c, http.StatusCreated, sale, err)
}

func (a *api) saleOfAsset(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	sale, err := models.GetSaleOfAsset(ctx, businessId, ref)
	respond(c, http.StatusOK, sale, err)
}

func (a *api) toggleStatus(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	asset, err := a.engine.Load().ToggleAssetStatus(ctx, businessId, ref)
	respond(c, http.StatusOK, asset, err)
}

type statusRequest struct {
	Status models.AssetStatus `json:"status"`
}

func (a *api) updateStatus(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if !bind(c, &req) {
		return
	}
	asset, err := a.engine.Load().UpdateAssetStatus(ctx, businessId, ref, req.Status)
	respond(c, http.StatusOK, asset, err)
}

func (a *api) deleteAsset(c *gin.Context) {
	ctx, businessId := businessOf(c)
	ref, ok := assetRefParam(c)
	if !ok {
		return
	}
	includeSale, _ := strconv.ParseBool(c.DefaultQuery("include_sale", "false"))
	if err := a.engine.Load().DeleteAsset(ctx, businessId, ref, workflow.DeleteAssetOptions{IncludeSale: includeSale}); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) listSales(c *gin.Context) {
	ctx, businessId := businessOf(c)
	from, ok := dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return
	}
	filter := models.SaleFilter{From: from, To: to}
	if raw := c.Query("asset_type"); raw != "" {
		var t models.AssetType
		if err := t.UnmarshalText([]byte(raw)); err != nil {
			writeError(c, utils.ValidationError("invalid asset type %q", raw))
			return
		}
		filter.AssetType = &t
	}
	sales, err := models.ListSaleTransactions(ctx, businessId, filter)
	respond(c, http.StatusOK, sales, err)
}

func (a *api) getSale(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	sale, err := models.GetSaleTransaction(ctx, businessId, id)
	respond(c, http.StatusOK, sale, err)
}

/* sparepart sales */

func (a *api) sellSpareparts(c *gin.Context) {
	ctx, businessId := businessOf(c)
	var input models.NewSparepartSale
	if !bind(c, &input) {
		return
	}
	sale, err := a.engine.Load().SellSpareparts(ctx, businessId, &input)
	respond(c, http.StatusCreated, sale, err)
}

func (a *api) listSparepartSales(c *gin.Context) {
	ctx, businessId := businessOf(c)
	from, ok := dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return
	}
	sales, err := models.ListSparepartSales(ctx, businessId, from, to)
	respond(c, http.StatusOK, sales, err)
}

func (a *api) getSparepartSale(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	sale, err := models.GetSparepartSale(ctx, businessId, id)
	respond(c, http.StatusOK, sale, err)
}

func (a *api) deleteSparepartSale(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	result, err := a.engine.Load().DeleteSparepartSale(ctx, businessId, id)
	respond(c, http.StatusOK, result, err)
}

/* cash flows and reports */

func (a *api) listCashFlows(c *gin.Context) {
	ctx, businessId := businessOf(c)
	from, ok := dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return
	}
	filter := models.CashFlowFilter{From: from, To: to}
	if raw := c.Query("type"); raw != "" {
		var t models.CashFlowType
		if err := t.UnmarshalText([]byte(raw)); err != nil {
			writeError(c, utils.ValidationError("invalid cash flow type %q", raw))
			return
		}
		filter.Type = &t
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	list, err := models.ListCashFlows(ctx, businessId, filter)
	respond(c, http.StatusOK, list, err)
}

func (a *api) cashFlowSummaryFor(c *gin.Context) (*reports.CashFlowSummary, bool) {
	ctx, businessId := businessOf(c)
	from, ok := dateQuery(c, "from")
	if !ok {
		return nil, false
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return nil, false
	}
	summary, err := reports.GetCashFlowSummary(ctx, businessId, from, to)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return summary, true
}

func (a *api) cashFlowSummary(c *gin.Context) {
	if summary, ok := a.cashFlowSummaryFor(c); ok {
		c.JSON(http.StatusOK, summary)
	}
}

func (a *api) exportCashFlows(c *gin.Context) {
	summary, ok := a.cashFlowSummaryFor(c)
	if !ok {
		return
	}
	filename := "cashflow-" + summary.PeriodStart.Format("2006-01-02") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := reports.WriteCashFlowExcel(c.Writer, summary); err != nil {
		config.LogError(config.GetLogger(), "server", "exportCashFlows", "write xlsx", summary.PeriodStart, err)
		_ = c.Error(err)
	}
}

func (a *api) salesProfitReport(c *gin.Context) {
	ctx, businessId := businessOf(c)
	start, end, ok := periodQuery(c)
	if !ok {
		return
	}
	rows, err := reports.GetSalesProfitReport(ctx, businessId, start, end)
	respond(c, http.StatusOK, rows, err)
}

func (a *api) profitLossReport(c *gin.Context) {
	ctx, businessId := businessOf(c)
	start, end, ok := periodQuery(c)
	if !ok {
		return
	}
	report, err := reports.GetProfitLossReport(ctx, businessId, start, end)
	respond(c, http.StatusOK, report, err)
}

// periodQuery reads from/to, defaulting to the current month.
func periodQuery(c *gin.Context) (time.Time, time.Time, bool) {
	from, ok := dateQuery(c, "from")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	start, end := utils.MonthRange(time.Now())
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}
	return start, end, true
}

/* expenses */

func (a *api) createExpense(c *gin.Context) {
	ctx, businessId := businessOf(c)
	var input models.NewExpense
	if !bind(c, &input) {
		return
	}
	expense, err := a.engine.Load().CreateExpense(ctx, businessId, &input)
	respond(c, http.StatusCreated, expense, err)
}

func (a *api) listExpenses(c *gin.Context) {
	ctx, businessId := businessOf(c)
	from, ok := dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return
	}
	filter := models.ExpenseFilter{From: from, To: to}
	if category := c.Query("category"); category != "" && category != "all" {
		filter.Category = &category
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	list, err := models.ListExpenses(ctx, businessId, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	totals, err := models.SumExpensesByCategory(ctx, businessId, models.ExpenseFilter{From: from, To: to, Category: filter.Category})
	if err != nil {
		writeError(c, err)
		return
	}
	total := decimal.Zero
	for _, t := range totals {
		total = total.Add(t.TotalIdr)
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "summary": gin.H{"total_idr": total, "by_category": totals}})
}

func (a *api) getExpense(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	expense, err := models.GetExpense(ctx, businessId, id)
	respond(c, http.StatusOK, expense, err)
}

func (a *api) updateExpense(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var patch models.ExpensePatch
	if !bind(c, &patch) {
		return
	}
	expense, err := a.engine.Load().UpdateExpense(ctx, businessId, id, &patch)
	respond(c, http.StatusOK, expense, err)
}

func (a *api) deleteExpense(c *gin.Context) {
	ctx, businessId := businessOf(c)
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if err := a.engine.Load().DeleteExpense(ctx, businessId, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

/* session */

func (a *api) logout(c *gin.Context) {
	token := strings.TrimPrefix(c.Request.Header.Get("Authorization"), "Bearer ")
	ttl := time.Hour
	if claims, err := utils.JwtValidate(token); err == nil && claims.ExpiresAt > 0 {
		ttl = time.Until(time.Unix(claims.ExpiresAt, 0))
	}
	if ttl <= 0 {
		c.Status(http.StatusNoContent)
		return
	}
	if err := config.SetRedisValue(c.Request.Context(), middlewares.RevokedTokenKey(token), "1", ttl); err != nil {
		writeError(c, utils.ExternalDependencyError(err, "failed to revoke token"))
		return
	}
	c.Status(http.StatusNoContent)
}

/* ops */

func (a *api) outboxStats(c *gin.Context) {
	ctx, businessId := businessOf(c)
	stats, err := models.GetOutboxStats(ctx, businessId)
	respond(c, http.StatusOK, stats, err)
}

func (a *api) requeueOutbox(c *gin.Context) {
	ctx, businessId := businessOf(c)
	n, err := models.RequeueDeadOutbox(ctx, businessId)
	respond(c, http.StatusOK, gin.H{"requeued": n}, err)
}
