package models

import (
	"context"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sparepart is a stocked counter item. Stock always equals the NewStock of its
// latest StockAdjustment. SERVICE category items carry no stock.
type Sparepart struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"size:64;not null;uniqueIndex:idx_sparepart_sku,priority:1" json:"business_id"`
	Sku             string          `gorm:"size:50;not null;uniqueIndex:idx_sparepart_sku,priority:2" json:"sku"`
	Name            string          `gorm:"size:150;not null" json:"name"`
	Category        string          `gorm:"size:50;not null;default:'OTHER'" json:"category"`
	Brand           string          `gorm:"size:100" json:"brand"`
	Description     string          `gorm:"type:text" json:"description"`
	PurchasePrice   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"purchase_price"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	Stock           int             `gorm:"not null;default:0" json:"stock"`
	MinStock        int             `gorm:"not null;default:1" json:"min_stock"`
	Supplier        string          `gorm:"size:150" json:"supplier"`
	AssetFinancials `gorm:"embedded"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Sparepart) Ref() AssetRef                 { return AssetRef{Type: AssetTypeSparepart, Id: s.ID} }
func (s *Sparepart) Financials() *AssetFinancials { return &s.AssetFinancials }
func (s *Sparepart) Label() string                { return s.Sku + " " + s.Name }

func (s *Sparepart) IsService() bool {
	return s.Category == SparepartCategoryService
}

func (s *Sparepart) IsLowStock() bool {
	return !s.IsService() && s.Stock <= s.MinStock
}

type NewSparepart struct {
	Sku           string          `json:"sku" validate:"required,max=50"`
	Name          string          `json:"name" validate:"required,max=150"`
	Category      string          `json:"category" validate:"max=50"`
	Brand         string          `json:"brand"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"gte=0"`
	UnitPrice     decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Currency      CurrencyCode    `json:"currency"`
	Stock         int             `json:"stock" validate:"gte=0"`
	MinStock      *int            `json:"min_stock" validate:"omitempty,gte=0"`
	Supplier      string          `json:"supplier"`
}

// CreateSparepart inserts the sparepart with zero stock. Opening stock is booked
// by the caller as an OPENING adjustment so the stock history starts complete.
func CreateSparepart(ctx context.Context, tx *gorm.DB, businessId string, input *NewSparepart) (*Sparepart, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	input.Currency = currencyOrDefault(input.Currency)
	if !input.Currency.IsValid() {
		return nil, utils.ValidationError("unsupported currency %q", input.Currency)
	}
	if err := utils.ValidateUnique[Sparepart](ctx, businessId, "sku", input.Sku, 0); err != nil {
		return nil, err
	}
	category := input.Category
	if category == "" {
		category = "OTHER"
	}
	if category == SparepartCategoryService && input.Stock != 0 {
		return nil, utils.ValidationError("SERVICE items carry no stock")
	}

	sparepart := Sparepart{
		BusinessId:    businessId,
		Sku:           input.Sku,
		Name:          input.Name,
		Category:      category,
		Brand:         input.Brand,
		Description:   input.Description,
		PurchasePrice: input.PurchasePrice,
		UnitPrice:     input.UnitPrice,
		MinStock:      utils.DereferencePtr(input.MinStock, 1),
		Supplier:      input.Supplier,
		AssetFinancials: AssetFinancials{
			Currency: input.Currency,
			Status:   AssetStatusAvailable,
		},
	}
	if err := tx.WithContext(ctx).Create(&sparepart).Error; err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return &sparepart, nil
}

type SparepartPatch struct {
	Name          *string          `json:"name" validate:"omitempty,max=150"`
	Category      *string          `json:"category" validate:"omitempty,max=50"`
	Brand         *string          `json:"brand"`
	Description   *string          `json:"description"`
	PurchasePrice *decimal.Decimal `json:"purchase_price" validate:"omitempty,gte=0"`
	UnitPrice     *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0"`
	MinStock      *int             `json:"min_stock" validate:"omitempty,gte=0"`
	Supplier      *string          `json:"supplier"`
}

// UpdateSparepart edits catalogue fields. Stock only moves through adjustments.
func UpdateSparepart(ctx context.Context, businessId string, id int, input *SparepartPatch) (*Sparepart, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	sparepart, err := utils.FetchModel[Sparepart](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if input.Category != nil && *input.Category == SparepartCategoryService && sparepart.Stock != 0 {
		return nil, utils.InvalidStateError("stocked item cannot become SERVICE")
	}
	values := map[string]interface{}{}
	setIfPresent(values, "name", input.Name)
	setIfPresent(values, "category", input.Category)
	setIfPresent(values, "brand", input.Brand)
	setIfPresent(values, "description", input.Description)
	setIfPresent(values, "purchase_price", input.PurchasePrice)
	setIfPresent(values, "unit_price", input.UnitPrice)
	setIfPresent(values, "min_stock", input.MinStock)
	setIfPresent(values, "supplier", input.Supplier)
	if len(values) == 0 {
		return sparepart, nil
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(sparepart).Updates(values).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Sparepart](ctx, businessId, id)
}

func GetSparepart(ctx context.Context, businessId string, id int) (*Sparepart, error) {
	return utils.FetchModel[Sparepart](ctx, businessId, id)
}

func ListSpareparts(ctx context.Context, businessId string, lowStockOnly bool) ([]*Sparepart, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Where("business_id = ?", businessId)
	if lowStockOnly {
		q = q.Where("category <> ? AND stock <= min_stock", SparepartCategoryService)
	}
	var results []*Sparepart
	err := q.Order("name").Find(&results).Error
	return results, err
}

// LockSpareparts locks every id on tx in ascending id order so that two
// multi-item sales can never deadlock on each other.
func LockSpareparts(tx *gorm.DB, businessId string, ids []int) (map[int]*Sparepart, error) {
	var rows []*Sparepart
	err := tx.Clauses(lockingForUpdate()).
		Where("business_id = ? AND id IN ?", businessId, ids).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	byId := make(map[int]*Sparepart, len(rows))
	for _, r := range rows {
		byId[r.ID] = r
	}
	for _, id := range ids {
		if _, ok := byId[id]; !ok {
			return nil, utils.NotFoundError("SPAREPART %d not found", id)
		}
	}
	return byId, nil
}

func SaveSparepartStock(tx *gorm.DB, sparepart *Sparepart, stock int) error {
	sparepart.Stock = stock
	return tx.Model(sparepart).Update("stock", stock).Error
}
