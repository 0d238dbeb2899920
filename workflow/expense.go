package workflow

import (
	"context"

	"github.com/dealerbooks/dealer_backend/models"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// CreateExpense books an operating expense with its OUTCOME cash flow.
func (e *Engine) CreateExpense(ctx context.Context, businessId string, input *models.NewExpense) (*models.Expense, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	var expense *models.Expense
	err := e.inTx(ctx, "Expenses.CreateExpense", businessId, nil, func(ctx context.Context, tx *gorm.DB) error {
		x := &models.Expense{
			BusinessId:      businessId,
			Category:        input.Category,
			Description:     input.Description,
			Amount:          input.Amount,
			Currency:        input.Currency,
			TransactionDate: dateOrNow(input.TransactionDate, e.now()),
			PaymentMethod:   input.PaymentMethod,
			Receipt:         input.Receipt,
			Notes:           input.Notes,
		}
		if userId, ok := utils.GetUserIdFromContext(ctx); ok {
			x.CreatedBy = userId
		}
		switch {
		case x.Currency.IsCanonical():
			x.ExchangeRate = decimal.NewFromInt(1)
		case input.ExchangeRate != nil:
			x.ExchangeRate = input.ExchangeRate.Round(models.RateScale)
		default:
			if err := e.freezeExpenseRate(ctx, tx, businessId, x); err != nil {
				return err
			}
		}
		x.AmountIdr = x.Amount.Mul(x.ExchangeRate).Round(moneyScale)

		if err := tx.Create(x).Error; err != nil {
			return err
		}
		cf := models.CashFlow{
			BusinessId:      businessId,
			Type:            models.CashFlowTypeOutcome,
			Category:        x.CashFlowCategory(),
			Description:     x.Description,
			Amount:          x.Amount,
			Currency:        x.Currency,
			ExchangeRate:    x.ExchangeRate,
			AmountIdr:       x.AmountIdr,
			IsFallbackRate:  x.IsFallbackRate,
			TransactionDate: x.TransactionDate,
			ReferenceType:   models.CashFlowRefExpense,
			ReferenceKey:    x.ReferenceKey(),
		}
		if err := models.CreateCashFlow(ctx, tx, &cf); err != nil {
			return err
		}
		x.CashFlowId = &cf.ID
		if err := tx.Model(x).Update("cash_flow_id", cf.ID).Error; err != nil {
			return err
		}
		expense = x
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateExpense corrects an expense and its cash flow. The frozen rate is kept
// unless the patch sets one or moves the expense to another currency.
func (e *Engine) UpdateExpense(ctx context.Context, businessId string, id int, patch *models.ExpensePatch) (*models.Expense, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	var expense *models.Expense
	attrs := []attribute.KeyValue{attribute.Int("expense_id", id)}
	err := e.inTx(ctx, "Expenses.UpdateExpense", businessId, attrs, func(ctx context.Context, tx *gorm.DB) error {
		x, err := models.LockExpense(tx, businessId, id)
		if err != nil {
			return err
		}
		if patch.Apply(x) {
			if err := e.freezeExpenseRate(ctx, tx, businessId, x); err != nil {
				return err
			}
		}
		x.AmountIdr = x.Amount.Mul(x.ExchangeRate).Round(moneyScale)

		if err := tx.Model(x).Updates(map[string]interface{}{
			"category":         x.Category,
			"description":      x.Description,
			"amount":           x.Amount,
			"currency":         x.Currency,
			"exchange_rate":    x.ExchangeRate,
			"amount_idr":       x.AmountIdr,
			"is_fallback_rate": x.IsFallbackRate,
			"transaction_date": x.TransactionDate,
			"payment_method":   x.PaymentMethod,
			"receipt":          x.Receipt,
			"notes":            x.Notes,
		}).Error; err != nil {
			return err
		}
		category := x.CashFlowCategory()
		if err := models.UpdateCashFlow(ctx, tx, businessId, x.CashFlowId, models.CashFlowChange{
			Description:     &x.Description,
			Category:        &category,
			Amount:          x.Amount,
			Currency:        x.Currency,
			ExchangeRate:    x.ExchangeRate,
			AmountIdr:       x.AmountIdr,
			IsFallbackRate:  x.IsFallbackRate,
			TransactionDate: &x.TransactionDate,
		}); err != nil {
			return err
		}
		expense = x
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// DeleteExpense removes an expense with its cash flow.
func (e *Engine) DeleteExpense(ctx context.Context, businessId string, id int) error {
	attrs := []attribute.KeyValue{attribute.Int("expense_id", id)}
	return e.inTx(ctx, "Expenses.DeleteExpense", businessId, attrs, func(ctx context.Context, tx *gorm.DB) error {
		x, err := models.LockExpense(tx, businessId, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(x).Error; err != nil {
			return err
		}
		return models.DeleteCashFlow(ctx, tx, businessId, x.CashFlowId)
	})
}

func (e *Engine) freezeExpenseRate(ctx context.Context, tx *gorm.DB, businessId string, x *models.Expense) error {
	conv, err := e.converter(tx).ToCanonical(ctx, businessId, x.Amount, x.Currency)
	if err != nil {
		return err
	}
	x.ExchangeRate = conv.Rate
	x.IsFallbackRate = conv.IsFallback
	return nil
}
