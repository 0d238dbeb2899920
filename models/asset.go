package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealerbooks/dealer_backend/config"
	"github.com/dealerbooks/dealer_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetFinancials is the money and lifecycle block shared by every sellable asset.
//
// TotalCostIdr is the sum of the asset's live cost entries in the ledger currency.
// TotalCost is the same figure in the asset's own currency at the current rate.
type AssetFinancials struct {
	Currency     CurrencyCode     `gorm:"size:3;not null;default:'IDR'" json:"currency"`
	TotalCost    decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"total_cost"`
	TotalCostIdr decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"total_cost_idr"`
	Status       AssetStatus      `gorm:"size:20;not null;index" json:"status"`
	SellingPrice *decimal.Decimal `gorm:"type:decimal(20,4)" json:"selling_price"`
	Profit       *decimal.Decimal `gorm:"type:decimal(20,4)" json:"profit"`
	SoldAt       *time.Time       `json:"sold_at"`
}

func (f *AssetFinancials) IsSold() bool {
	return f.Status == AssetStatusSold
}

type AssetRef struct {
	Type AssetType `json:"asset_type"`
	Id   int       `json:"asset_id"`
}

func (r AssetRef) String() string {
	return fmt.Sprintf("%s#%d", r.Type, r.Id)
}

type Asset interface {
	Ref() AssetRef
	Financials() *AssetFinancials
	Label() string
}

func NewAssetModel(assetType AssetType) (Asset, error) {
	switch assetType {
	case AssetTypeMotorcycle:
		return &Motorcycle{}, nil
	case AssetTypeProduct:
		return &Product{}, nil
	case AssetTypeSparepart:
		return &Sparepart{}, nil
	}
	return nil, utils.ValidationError("invalid asset type %q", assetType)
}

func lockingForUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func assetNotFound(ref AssetRef) error {
	return utils.NotFoundError("%s %d not found", ref.Type, ref.Id)
}

// LockAsset loads the asset with SELECT ... FOR UPDATE on tx.
func LockAsset(tx *gorm.DB, businessId string, ref AssetRef) (Asset, error) {
	asset, err := NewAssetModel(ref.Type)
	if err != nil {
		return nil, err
	}
	err = tx.Clauses(lockingForUpdate()).
		Where("business_id = ?", businessId).
		First(asset, ref.Id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, assetNotFound(ref)
		}
		return nil, err
	}
	return asset, nil
}

func GetAsset(ctx context.Context, businessId string, ref AssetRef) (Asset, error) {
	asset, err := NewAssetModel(ref.Type)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Where("business_id = ?", businessId).First(asset, ref.Id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, assetNotFound(ref)
		}
		return nil, err
	}
	return asset, nil
}

func updateAssetColumns(tx *gorm.DB, asset Asset, values map[string]interface{}) error {
	return tx.Model(asset).Updates(values).Error
}

// SaveAssetTotals persists both derived cost figures, even when unchanged.
func SaveAssetTotals(tx *gorm.DB, asset Asset, totalCostIdr decimal.Decimal, totalCost decimal.Decimal) error {
	f := asset.Financials()
	f.TotalCostIdr = totalCostIdr
	f.TotalCost = totalCost
	return updateAssetColumns(tx, asset, map[string]interface{}{
		"total_cost_idr": totalCostIdr,
		"total_cost":     totalCost,
	})
}

func MarkAssetSold(tx *gorm.DB, asset Asset, sellingPrice decimal.Decimal, profit decimal.Decimal, soldAt time.Time) error {
	f := asset.Financials()
	f.Status = AssetStatusSold
	f.SellingPrice = &sellingPrice
	f.Profit = &profit
	f.SoldAt = &soldAt
	return updateAssetColumns(tx, asset, map[string]interface{}{
		"status":        AssetStatusSold,
		"selling_price": sellingPrice,
		"profit":        profit,
		"sold_at":       soldAt,
	})
}

func SaveAssetProfit(tx *gorm.DB, asset Asset, profit decimal.Decimal) error {
	asset.Financials().Profit = &profit
	return updateAssetColumns(tx, asset, map[string]interface{}{"profit": profit})
}

func SaveAssetStatus(tx *gorm.DB, asset Asset, status AssetStatus) error {
	asset.Financials().Status = status
	return updateAssetColumns(tx, asset, map[string]interface{}{"status": status})
}

// CheckManualStatusChange guards status edits made outside a sale.
// SOLD is only entered by selling and never left.
func CheckManualStatusChange(from AssetStatus, to AssetStatus) error {
	if !to.IsValid() {
		return utils.ValidationError("invalid asset status %q", to)
	}
	if from == AssetStatusSold {
		return utils.InvalidStateError("asset already sold")
	}
	if to == AssetStatusSold {
		return utils.InvalidStateError("status SOLD is only set by a sale")
	}
	return nil
}

// ToggledStatus flips AVAILABLE to INACTIVE and any other unsold status to AVAILABLE.
func ToggledStatus(from AssetStatus) (AssetStatus, error) {
	switch from {
	case AssetStatusSold:
		return "", utils.InvalidStateError("asset already sold")
	case AssetStatusAvailable:
		return AssetStatusInactive, nil
	}
	return AssetStatusAvailable, nil
}

func initialStatus(requested AssetStatus, def AssetStatus) (AssetStatus, error) {
	if requested == "" {
		return def, nil
	}
	if err := CheckManualStatusChange(def, requested); err != nil {
		return "", err
	}
	return requested, nil
}

// ListAssetRefs returns every motorcycle, product and sparepart of a business.
func ListAssetRefs(ctx context.Context, db *gorm.DB, businessId string) ([]AssetRef, error) {
	var refs []AssetRef
	for _, t := range []AssetType{AssetTypeMotorcycle, AssetTypeProduct, AssetTypeSparepart} {
		model, err := NewAssetModel(t)
		if err != nil {
			return nil, err
		}
		var ids []int
		if err := db.WithContext(ctx).Model(model).Where("business_id = ?", businessId).Order("id").Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
		for _, id := range ids {
			refs = append(refs, AssetRef{Type: t, Id: id})
		}
	}
	return refs, nil
}

// DeleteAssetRecord removes the asset row itself on tx.
func DeleteAssetRecord(tx *gorm.DB, asset Asset) error {
	return tx.Delete(asset).Error
}
