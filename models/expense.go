package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpenseCategoryPrefix marks the cash flows of operating expenses.
const ExpenseCategoryPrefix = "EXPENSE_"

// Expense is an operating cost not tied to an asset: rent, salaries, utilities.
// Like asset costs its rate is frozen when written.
type Expense struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"size:64;not null;index:idx_expense_date,priority:1" json:"business_id"`
	Category        string          `gorm:"size:40;not null;index" json:"category"`
	Description     string          `gorm:"size:255;not null" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency        CurrencyCode    `gorm:"size:3;not null" json:"currency"`
	ExchangeRate    decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"exchange_rate"`
	AmountIdr       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_idr"`
	IsFallbackRate  bool            `gorm:"not null;default:false" json:"is_fallback_rate"`
	TransactionDate time.Time       `gorm:"not null;index:idx_expense_date,priority:2" json:"transaction_date"`
	PaymentMethod   string          `gorm:"size:30" json:"payment_method"`
	Receipt         string          `gorm:"size:255" json:"receipt"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CashFlowId      *int            `gorm:"index" json:"cash_flow_id"`
	CreatedBy       int             `gorm:"not null;default:0" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReferenceKey is the key the expense's cash flow events are ordered under.
func (x *Expense) ReferenceKey() string {
	return fmt.Sprintf("EXPENSE#%d", x.ID)
}

// CashFlowCategory is the category of the OUTCOME cash flow backing x.
func (x *Expense) CashFlowCategory() string {
	return ExpenseCashFlowCategory(x.Category)
}

func ExpenseCashFlowCategory(category string) string {
	return ExpenseCategoryPrefix + category
}

func normalizeExpenseCategory(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}

type NewExpense struct {
	Category    string          `json:"category" validate:"required,max=40"`
	Description string          `json:"description" validate:"required,max=255"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency    CurrencyCode    `json:"currency"`
	// ExchangeRate freezes a known rate instead of looking one up.
	ExchangeRate    *decimal.Decimal `json:"exchange_rate" validate:"omitempty,gt=0"`
	TransactionDate *time.Time       `json:"transaction_date"`
	PaymentMethod   string           `json:"payment_method" validate:"max=30"`
	Receipt         string           `json:"receipt" validate:"max=255"`
	Notes           string           `json:"notes"`
}

func (input *NewExpense) Validate() error {
	input.Category = normalizeExpenseCategory(input.Category)
	input.Currency = currencyOrDefault(input.Currency)
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if !input.Currency.IsValid() {
		return utils.ValidationError("unsupported currency %q", input.Currency)
	}
	return nil
}

// ExpensePatch corrects an expense. Nil fields are left as they are.
type ExpensePatch struct {
	Category        *string          `json:"category" validate:"omitempty,max=40"`
	Description     *string          `json:"description" validate:"omitempty,max=255"`
	Amount          *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	Currency        *CurrencyCode    `json:"currency"`
	ExchangeRate    *decimal.Decimal `json:"exchange_rate" validate:"omitempty,gt=0"`
	TransactionDate *time.Time       `json:"transaction_date"`
	PaymentMethod   *string          `json:"payment_method" validate:"omitempty,max=30"`
	Receipt         *string          `json:"receipt" validate:"omitempty,max=255"`
	Notes           *string          `json:"notes"`
}

func (input *ExpensePatch) Validate() error {
	if input.Category != nil {
		category := normalizeExpenseCategory(*input.Category)
		if category == "" {
			return utils.ValidationError("category must not be blank")
		}
		input.Category = &category
	}
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.Currency != nil && !input.Currency.IsValid() {
		return utils.ValidationError("unsupported currency %q", *input.Currency)
	}
	return nil
}

// Apply copies the set fields onto x and reports whether the frozen rate has to
// be looked up again: only a currency change without an explicit rate does.
func (input *ExpensePatch) Apply(x *Expense) (freshRate bool) {
	freshRate = input.ExchangeRate == nil && input.Currency != nil && *input.Currency != x.Currency
	if input.Category != nil {
		x.Category = *input.Category
	}
	if input.Description != nil {
		x.Description = *input.Description
	}
	if input.Amount != nil {
		x.Amount = *input.Amount
	}
	if input.Currency != nil {
		x.Currency = *input.Currency
	}
	if input.ExchangeRate != nil {
		x.ExchangeRate = input.ExchangeRate.Round(RateScale)
		x.IsFallbackRate = false
	}
	if input.TransactionDate != nil {
		x.TransactionDate = *input.TransactionDate
	}
	if input.PaymentMethod != nil {
		x.PaymentMethod = *input.PaymentMethod
	}
	if input.Receipt != nil {
		x.Receipt = *input.Receipt
	}
	if input.Notes != nil {
		x.Notes = *input.Notes
	}
	if x.Currency.IsCanonical() {
		x.ExchangeRate = decimalOne
		x.IsFallbackRate = false
	}
	return freshRate
}

// LockExpense loads an expense with a row lock on tx.
func LockExpense(tx *gorm.DB, businessId string, id int) (*Expense, error) {
	var x Expense
	err := tx.Clauses(lockingForUpdate()).Where("business_id = ?", businessId).First(&x, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("expense %d not found", id)
		}
		return nil, err
	}
	return &x, nil
}

func GetExpense(ctx context.Context, businessId string, id int) (*Expense, error) {
	db := config.GetDB()
	var x Expense
	err := db.WithContext(ctx).Where("business_id = ?", businessId).First(&x, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("expense %d not found", id)
		}
		return nil, err
	}
	return &x, nil
}

type ExpenseFilter struct {
	From     *time.Time
	To       *time.Time
	Category *string
	Limit    int
}

func (f ExpenseFilter) apply(q *gorm.DB) *gorm.DB {
	if f.From != nil {
		q = q.Where("transaction_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("transaction_date < ?", *f.To)
	}
	if f.Category != nil {
		q = q.Where("category = ?", normalizeExpenseCategory(*f.Category))
	}
	return q
}

func ListExpenses(ctx context.Context, businessId string, filter ExpenseFilter) ([]*Expense, error) {
	db := config.GetDB()
	q := filter.apply(db.WithContext(ctx).Where("business_id = ?", businessId))
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var results []*Expense
	err := q.Order("transaction_date DESC").Order("created_at DESC").Order("id DESC").Find(&results).Error
	return results, err
}

type ExpenseCategoryTotal struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	TotalIdr decimal.Decimal `json:"total_idr"`
}

// SumExpensesByCategory totals the expenses matching filter per category.
func SumExpensesByCategory(ctx context.Context, businessId string, filter ExpenseFilter) ([]*ExpenseCategoryTotal, error) {
	db := config.GetDB()
	q := filter.apply(db.WithContext(ctx).Model(&Expense{}).Where("business_id = ?", businessId))
	var rows []*ExpenseCategoryTotal
	err := q.Select("category, COUNT(*) AS count, COALESCE(SUM(amount_idr), 0) AS total_idr").
		Group("category").
		Order("category").
		Scan(&rows).Error
	return rows, err
}
