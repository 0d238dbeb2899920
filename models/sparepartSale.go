package models

import (
	"context"
	"sort"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SparepartSale struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	BusinessId    string               `gorm:"size:64;not null;uniqueIndex:idx_sparepart_sale_invoice,priority:1" json:"business_id"`
	InvoiceNumber string               `gorm:"size:30;not null;uniqueIndex:idx_sparepart_sale_invoice,priority:2" json:"invoice_number"`
	CustomerName  string               `gorm:"size:100" json:"customer_name"`
	CustomerPhone string               `gorm:"size:20" json:"customer_phone"`
	PaymentMethod string               `gorm:"size:30;not null" json:"payment_method"`
	Subtotal      decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"subtotal"`
	Discount      decimal.Decimal      `gorm:"type:decimal(20,4);not null;default:0" json:"discount"`
	Total         decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"total"`
	PaidAmount    decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"paid_amount"`
	Currency      CurrencyCode         `gorm:"size:3;not null" json:"currency"`
	SaleDate      time.Time            `gorm:"not null;index" json:"sale_date"`
	Notes         string               `gorm:"type:text" json:"notes"`
	CashFlowId    *int                 `gorm:"index" json:"cash_flow_id"`
	Items         []*SparepartSaleItem `gorm:"foreignKey:SparepartSaleId" json:"items"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type SparepartSaleItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SparepartSaleId int             `gorm:"not null;index" json:"sparepart_sale_id"`
	SparepartId     int             `gorm:"not null;index" json:"sparepart_id"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"subtotal"`
}

type NewSparepartSaleItem struct {
	SparepartId int `json:"sparepart_id" validate:"required,gt=0"`
	Quantity    int `json:"quantity" validate:"required,gt=0"`
	// UnitPrice overrides the sparepart's list price when set.
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0"`
}

type NewSparepartSale struct {
	Items         []NewSparepartSaleItem `json:"items" validate:"required,min=1,dive"`
	CustomerName  string                 `json:"customer_name" validate:"max=100"`
	CustomerPhone string                 `json:"customer_phone"`
	PaymentMethod string                 `json:"payment_method" validate:"max=30"`
	Discount      decimal.Decimal        `json:"discount" validate:"gte=0"`
	SaleDate      *time.Time             `json:"sale_date"`
	Notes         string                 `json:"notes"`
}

func (input *NewSparepartSale) Validate() error {
	if len(input.Items) == 0 {
		return utils.ValidationError("sale has no items")
	}
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = "CASH"
	}
	if input.CustomerName == "" {
		input.CustomerName = "Cash Customer"
	}
	phone, err := utils.NormalizePhoneNumber(input.CustomerPhone)
	if err != nil {
		return err
	}
	input.CustomerPhone = phone
	return nil
}

// SparepartIds returns the distinct sparepart ids of the sale in ascending order.
func (input *NewSparepartSale) SparepartIds() []int {
	seen := make(map[int]bool, len(input.Items))
	ids := make([]int, 0, len(input.Items))
	for _, it := range input.Items {
		if !seen[it.SparepartId] {
			seen[it.SparepartId] = true
			ids = append(ids, it.SparepartId)
		}
	}
	sort.Ints(ids)
	return ids
}

// QuantitiesBySparepart sums item quantities per sparepart; one sparepart may appear on several lines.
func (input *NewSparepartSale) QuantitiesBySparepart() map[int]int {
	out := make(map[int]int, len(input.Items))
	for _, it := range input.Items {
		out[it.SparepartId] += it.Quantity
	}
	return out
}

func GetSparepartSale(ctx context.Context, businessId string, id int) (*SparepartSale, error) {
	return utils.FetchModel[SparepartSale](ctx, businessId, id, "Items")
}

func ListSparepartSales(ctx context.Context, businessId string, from *time.Time, to *time.Time) ([]*SparepartSale, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Where("business_id = ?", businessId).Preload("Items")
	if from != nil {
		q = q.Where("sale_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("sale_date < ?", *to)
	}
	var sales []*SparepartSale
	err := q.Order("sale_date DESC").Order("id DESC").Find(&sales).Error
	return sales, err
}

// LockSparepartSale loads a sale with its items, row-locked on tx.
func LockSparepartSale(tx *gorm.DB, businessId string, id int) (*SparepartSale, error) {
	sale, err := utils.LockModel[SparepartSale](tx, businessId, id)
	if err != nil {
		if utils.KindOf(err) == utils.KindNotFound {
			return nil, utils.NotFoundError("sparepart sale %d not found", id)
		}
		return nil, err
	}
	if err := tx.Where("sparepart_sale_id = ?", sale.ID).Order("id").Find(&sale.Items).Error; err != nil {
		return nil, err
	}
	return sale, nil
}

func DeleteSparepartSaleRecord(tx *gorm.DB, sale *SparepartSale) error {
	if err := tx.Where("sparepart_sale_id = ?", sale.ID).Delete(&SparepartSaleItem{}).Error; err != nil {
		return err
	}
	return tx.Delete(sale).Error
}
