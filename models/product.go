package models

import (
	"context"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID              int       `gorm:"primary_key" json:"id"`
	BusinessId      string    `gorm:"size:64;not null;index" json:"business_id"`
	Category        string    `gorm:"size:50;not null" json:"category"`
	CustomCategory  *string   `gorm:"size:100" json:"custom_category"`
	Name            string    `gorm:"size:150;not null" json:"name"`
	Sku             *string   `gorm:"size:50" json:"sku"`
	Description     string    `gorm:"type:text" json:"description"`
	PurchaseDate    time.Time `json:"purchase_date"`
	Supplier        string    `gorm:"size:150" json:"supplier"`
	Notes           string    `gorm:"type:text" json:"notes"`
	AssetFinancials `gorm:"embedded"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) Ref() AssetRef                 { return AssetRef{Type: AssetTypeProduct, Id: p.ID} }
func (p *Product) Financials() *AssetFinancials { return &p.AssetFinancials }
func (p *Product) Label() string                { return p.Name }

type NewProduct struct {
	Category       string       `json:"category" validate:"required,max=50"`
	CustomCategory *string      `json:"custom_category"`
	Name           string       `json:"name" validate:"required,max=150"`
	Sku            *string      `json:"sku" validate:"omitempty,max=50"`
	Description    string       `json:"description"`
	Currency       CurrencyCode `json:"currency"`
	Status         AssetStatus  `json:"status"`
	PurchaseDate   *time.Time   `json:"purchase_date"`
	Supplier       string       `json:"supplier"`
	Notes          string       `json:"notes"`
	// PurchasePrice, when set, is booked as the first PURCHASE cost entry.
	PurchasePrice *decimal.Decimal `json:"purchase_price" validate:"omitempty,gt=0"`
}

func CreateProduct(ctx context.Context, tx *gorm.DB, businessId string, input *NewProduct) (*Product, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	input.Currency = currencyOrDefault(input.Currency)
	if !input.Currency.IsValid() {
		return nil, utils.ValidationError("unsupported currency %q", input.Currency)
	}
	status, err := initialStatus(input.Status, AssetStatusAvailable)
	if err != nil {
		return nil, err
	}

	product := Product{
		BusinessId:     businessId,
		Category:       input.Category,
		CustomCategory: input.CustomCategory,
		Name:           input.Name,
		Sku:            input.Sku,
		Description:    input.Description,
		PurchaseDate:   utils.DereferencePtr(input.PurchaseDate, time.Now()),
		Supplier:       input.Supplier,
		Notes:          input.Notes,
		AssetFinancials: AssetFinancials{
			Currency: input.Currency,
			Status:   status,
		},
	}
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return &product, nil
}

type ProductPatch struct {
	Category       *string `json:"category" validate:"omitempty,max=50"`
	CustomCategory *string `json:"custom_category"`
	Name           *string `json:"name" validate:"omitempty,max=150"`
	Sku            *string `json:"sku" validate:"omitempty,max=50"`
	Description    *string `json:"description"`
	Supplier       *string `json:"supplier"`
	Notes          *string `json:"notes"`
}

func UpdateProduct(ctx context.Context, businessId string, id int, input *ProductPatch) (*Product, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	values := map[string]interface{}{}
	setIfPresent(values, "category", input.Category)
	setIfPresent(values, "custom_category", input.CustomCategory)
	setIfPresent(values, "name", input.Name)
	setIfPresent(values, "sku", input.Sku)
	setIfPresent(values, "description", input.Description)
	setIfPresent(values, "supplier", input.Supplier)
	setIfPresent(values, "notes", input.Notes)
	if len(values) == 0 {
		return product, nil
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(product).Updates(values).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Product](ctx, businessId, id)
}

func GetProduct(ctx context.Context, businessId string, id int) (*Product, error) {
	return utils.FetchModel[Product](ctx, businessId, id)
}

func ListProducts(ctx context.Context, businessId string, status *AssetStatus) ([]*Product, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Where("business_id = ?", businessId)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var results []*Product
	err := q.Order("id DESC").Find(&results).Error
	return results, err
}
