package models

import (
	"context"
	"strings"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"gorm.io/gorm"
)

type Motorcycle struct {
	ID              int     `gorm:"primary_key" json:"id"`
	BusinessId      string  `gorm:"size:64;not null;uniqueIndex:idx_motorcycle_vin,priority:1" json:"business_id"`
	Vin             string  `gorm:"size:50;not null;uniqueIndex:idx_motorcycle_vin,priority:2" json:"vin"`
	Brand           string  `gorm:"size:100;not null" json:"brand"`
	Model           string  `gorm:"size:100;not null" json:"model"`
	CustomModel     *string `gorm:"size:100" json:"custom_model"`
	Year            int     `gorm:"not null" json:"year"`
	Color           string  `gorm:"size:50" json:"color"`
	Mileage         *int    `json:"mileage"`
	Condition       string  `gorm:"size:20;not null;default:'USED'" json:"condition"`
	OwnerName       string  `gorm:"size:100" json:"owner_name"`
	OwnerPhone      string  `gorm:"size:20" json:"owner_phone"`
	OwnerLocation   string  `gorm:"size:255" json:"owner_location"`
	Notes           string  `gorm:"type:text" json:"notes"`
	AssetFinancials `gorm:"embedded"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *Motorcycle) Ref() AssetRef                 { return AssetRef{Type: AssetTypeMotorcycle, Id: m.ID} }
func (m *Motorcycle) Financials() *AssetFinancials { return &m.AssetFinancials }
func (m *Motorcycle) Label() string {
	return strings.TrimSpace(m.Brand + " " + m.Model + " " + m.Vin)
}

type NewMotorcycle struct {
	Vin           string       `json:"vin" validate:"required,max=50"`
	Brand         string       `json:"brand" validate:"max=100"`
	Model         string       `json:"model" validate:"required,max=100"`
	CustomModel   *string      `json:"custom_model"`
	Year          int          `json:"year" validate:"required,gte=1900,lte=2100"`
	Color         string       `json:"color"`
	Mileage       *int         `json:"mileage" validate:"omitempty,gte=0"`
	Condition     string       `json:"condition"`
	Currency      CurrencyCode `json:"currency" validate:"required"`
	Status        AssetStatus  `json:"status"`
	OwnerName     string       `json:"owner_name"`
	OwnerPhone    string       `json:"owner_phone"`
	OwnerLocation string       `json:"owner_location"`
	Notes         string       `json:"notes"`
}

func (input *NewMotorcycle) validate(ctx context.Context, businessId string, exceptId int) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if !input.Currency.IsValid() {
		return utils.ValidationError("unsupported currency %q", input.Currency)
	}
	if err := utils.ValidateUnique[Motorcycle](ctx, businessId, "vin", input.Vin, exceptId); err != nil {
		return err
	}
	phone, err := utils.NormalizePhoneNumber(input.OwnerPhone)
	if err != nil {
		return err
	}
	input.OwnerPhone = phone
	return nil
}

func CreateMotorcycle(ctx context.Context, tx *gorm.DB, businessId string, input *NewMotorcycle) (*Motorcycle, error) {
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}
	status, err := initialStatus(input.Status, AssetStatusOnProgress)
	if err != nil {
		return nil, err
	}
	brand := input.Brand
	if brand == "" {
		brand = "Harley Davidson"
	}
	condition := input.Condition
	if condition == "" {
		condition = "USED"
	}

	motorcycle := Motorcycle{
		BusinessId:    businessId,
		Vin:           strings.TrimSpace(input.Vin),
		Brand:         brand,
		Model:         input.Model,
		CustomModel:   input.CustomModel,
		Year:          input.Year,
		Color:         input.Color,
		Mileage:       input.Mileage,
		Condition:     condition,
		OwnerName:     input.OwnerName,
		OwnerPhone:    input.OwnerPhone,
		OwnerLocation: input.OwnerLocation,
		Notes:         input.Notes,
		AssetFinancials: AssetFinancials{
			Currency: input.Currency,
			Status:   status,
		},
	}
	if err := tx.WithContext(ctx).Create(&motorcycle).Error; err != nil {
		return nil, utils.ClassifyDBError(err)
	}
	return &motorcycle, nil
}

type MotorcyclePatch struct {
	Brand         *string `json:"brand" validate:"omitempty,max=100"`
	Model         *string `json:"model" validate:"omitempty,max=100"`
	CustomModel   *string `json:"custom_model"`
	Year          *int    `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	Color         *string `json:"color"`
	Mileage       *int    `json:"mileage" validate:"omitempty,gte=0"`
	Condition     *string `json:"condition"`
	OwnerName     *string `json:"owner_name"`
	OwnerPhone    *string `json:"owner_phone"`
	OwnerLocation *string `json:"owner_location"`
	Notes         *string `json:"notes"`
}

// UpdateMotorcycle edits descriptive fields only. Money and status go through the workflow.
func UpdateMotorcycle(ctx context.Context, businessId string, id int, input *MotorcyclePatch) (*Motorcycle, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	motorcycle, err := utils.FetchModel[Motorcycle](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	values := map[string]interface{}{}
	setIfPresent(values, "brand", input.Brand)
	setIfPresent(values, "model", input.Model)
	setIfPresent(values, "custom_model", input.CustomModel)
	setIfPresent(values, "year", input.Year)
	setIfPresent(values, "color", input.Color)
	setIfPresent(values, "mileage", input.Mileage)
	setIfPresent(values, "condition", input.Condition)
	setIfPresent(values, "owner_name", input.OwnerName)
	setIfPresent(values, "owner_location", input.OwnerLocation)
	setIfPresent(values, "notes", input.Notes)
	if input.OwnerPhone != nil {
		phone, err := utils.NormalizePhoneNumber(*input.OwnerPhone)
		if err != nil {
			return nil, err
		}
		values["owner_phone"] = phone
	}
	if len(values) == 0 {
		return motorcycle, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(motorcycle).Updates(values).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Motorcycle](ctx, businessId, id)
}

func GetMotorcycle(ctx context.Context, businessId string, id int) (*Motorcycle, error) {
	return utils.FetchModel[Motorcycle](ctx, businessId, id)
}

func ListMotorcycles(ctx context.Context, businessId string, status *AssetStatus) ([]*Motorcycle, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Where("business_id = ?", businessId)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var results []*Motorcycle
	err := q.Order("id DESC").Find(&results).Error
	return results, err
}

func setIfPresent[T any](values map[string]interface{}, column string, v *T) {
	if v != nil {
		values[column] = *v
	}
}
