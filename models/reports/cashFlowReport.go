package reports

import (
	"context"
	"sort"
	"time"

	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
)

type CashFlowSummary struct {
	PeriodStart  time.Time          `json:"period_start"`
	PeriodEnd    time.Time          `json:"period_end"`
	TotalIncome  decimal.Decimal    `json:"total_income"`
	TotalOutcome decimal.Decimal    `json:"total_outcome"`
	NetCashFlow  decimal.Decimal    `json:"net_cash_flow"`
	ByCategory   []CategoryCashFlow `json:"by_category"`
	Entries      []*models.CashFlow `json:"-"`
}

type CategoryCashFlow struct {
	Category string          `json:"category"`
	Income   decimal.Decimal `json:"income"`
	Outcome  decimal.Decimal `json:"outcome"`
}

// GetCashFlowSummary totals a business's cash flows in [from, to) in the ledger currency.
// Without bounds it covers the current month.
func GetCashFlowSummary(ctx context.Context, businessId string, from *time.Time, to *time.Time) (*CashFlowSummary, error) {
	start, end := utils.MonthRange(time.Now())
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}
	if !end.After(start) {
		return nil, utils.ValidationError("period end must be after start")
	}
	entries, err := models.ListCashFlows(ctx, businessId, models.CashFlowFilter{From: &start, To: &end})
	if err != nil {
		return nil, err
	}
	return SummarizeCashFlows(entries, start, end), nil
}

// SummarizeCashFlows folds entries into totals and per-category sums, categories sorted by name.
func SummarizeCashFlows(entries []*models.CashFlow, start time.Time, end time.Time) *CashFlowSummary {
	summary := &CashFlowSummary{
		PeriodStart:  start,
		PeriodEnd:    end,
		TotalIncome:  decimal.Zero,
		TotalOutcome: decimal.Zero,
		Entries:      entries,
	}
	byCategory := map[string]*CategoryCashFlow{}
	for _, cf := range entries {
		c, ok := byCategory[cf.Category]
		if !ok {
			c = &CategoryCashFlow{Category: cf.Category, Income: decimal.Zero, Outcome: decimal.Zero}
			byCategory[cf.Category] = c
		}
		if cf.Type == models.CashFlowTypeIncome {
			summary.TotalIncome = summary.TotalIncome.Add(cf.AmountIdr)
			c.Income = c.Income.Add(cf.AmountIdr)
		} else {
			summary.TotalOutcome = summary.TotalOutcome.Add(cf.AmountIdr)
			c.Outcome = c.Outcome.Add(cf.AmountIdr)
		}
	}
	summary.NetCashFlow = summary.TotalIncome.Sub(summary.TotalOutcome)

	summary.ByCategory = make([]CategoryCashFlow, 0, len(byCategory))
	for _, c := range byCategory {
		summary.ByCategory = append(summary.ByCategory, *c)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		return summary.ByCategory[i].Category < summary.ByCategory[j].Category
	})
	return summary
}
