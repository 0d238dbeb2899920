package models

import (
	"errors"
	"strings"
)

type AssetType string

const (
	AssetTypeMotorcycle AssetType = "MOTORCYCLE"
	AssetTypeProduct    AssetType = "PRODUCT"
	AssetTypeSparepart  AssetType = "SPAREPART"
)

func (t AssetType) IsValid() bool {
	switch t {
	case AssetTypeMotorcycle, AssetTypeProduct, AssetTypeSparepart:
		return true
	}
	return false
}

// convert input to enum type
func (t *AssetType) UnmarshalText(b []byte) error {
	v := AssetType(strings.ToUpper(strings.TrimSpace(string(b))))
	if !v.IsValid() {
		return errors.New("invalid asset type")
	}
	*t = v
	return nil
}

type AssetStatus string

const (
	AssetStatusOnProgress AssetStatus = "ON_PROGRESS"
	AssetStatusInspection AssetStatus = "INSPECTION"
	AssetStatusAvailable  AssetStatus = "AVAILABLE"
	AssetStatusInactive   AssetStatus = "INACTIVE"
	AssetStatusSold       AssetStatus = "SOLD"
)

func (s AssetStatus) IsValid() bool {
	switch s {
	case AssetStatusOnProgress, AssetStatusInspection, AssetStatusAvailable, AssetStatusInactive, AssetStatusSold:
		return true
	}
	return false
}

func (s *AssetStatus) UnmarshalText(b []byte) error {
	v := AssetStatus(strings.ToUpper(strings.TrimSpace(string(b))))
	if !v.IsValid() {
		return errors.New("invalid asset status")
	}
	*s = v
	return nil
}

type CashFlowType string

const (
	CashFlowTypeIncome  CashFlowType = "INCOME"
	CashFlowTypeOutcome CashFlowType = "OUTCOME"
)

func (t CashFlowType) IsValid() bool {
	return t == CashFlowTypeIncome || t == CashFlowTypeOutcome
}

func (t *CashFlowType) UnmarshalText(b []byte) error {
	v := CashFlowType(strings.ToUpper(strings.TrimSpace(string(b))))
	if !v.IsValid() {
		return errors.New("invalid cash flow type")
	}
	*t = v
	return nil
}

// Cash flow categories written by the engine. Cost entries use their component as category.
const (
	CashFlowCategoryMotorcycleSale      = "MOTORCYCLE_SALE"
	CashFlowCategoryProductSale         = "PRODUCT_SALE"
	CashFlowCategorySparepartSale       = "SPAREPART_SALE"
	CashFlowCategorySparepartPurchase   = "SPAREPART_PURCHASE"
	CashFlowCategorySparepartLoss       = "SPAREPART_LOSS"
	CashFlowCategorySparepartAdjustment = "SPAREPART_ADJUSTMENT"
)

type StockAdjustmentType string

const (
	StockAdjustmentTypePurchase   StockAdjustmentType = "PURCHASE"
	StockAdjustmentTypeAdjustment StockAdjustmentType = "ADJUSTMENT"
	StockAdjustmentTypeLoss       StockAdjustmentType = "LOSS"
	StockAdjustmentTypeReturn     StockAdjustmentType = "RETURN"

	// written by the system only
	StockAdjustmentTypeOpening  StockAdjustmentType = "OPENING"
	StockAdjustmentTypeSale     StockAdjustmentType = "SALE"
	StockAdjustmentTypeSaleVoid StockAdjustmentType = "SALE_VOID"
)

// IsManual reports the types a caller may submit to the stock adjuster.
func (t StockAdjustmentType) IsManual() bool {
	switch t {
	case StockAdjustmentTypePurchase, StockAdjustmentTypeAdjustment, StockAdjustmentTypeLoss, StockAdjustmentTypeReturn:
		return true
	}
	return false
}

func (t *StockAdjustmentType) UnmarshalText(b []byte) error {
	v := StockAdjustmentType(strings.ToUpper(strings.TrimSpace(string(b))))
	switch v {
	case StockAdjustmentTypePurchase, StockAdjustmentTypeAdjustment, StockAdjustmentTypeLoss, StockAdjustmentTypeReturn,
		StockAdjustmentTypeOpening, StockAdjustmentTypeSale, StockAdjustmentTypeSaleVoid:
		*t = v
		return nil
	}
	return errors.New("invalid stock adjustment type")
}

// SparepartCategoryService marks labour lines sold through the sparepart counter.
// They carry no stock.
const SparepartCategoryService = "SERVICE"

// CashFlowEventAction says what happened to the cash flow an event describes.
type CashFlowEventAction string

const (
	CashFlowRecorded  CashFlowEventAction = "RECORDED"
	CashFlowCorrected CashFlowEventAction = "CORRECTED"
	CashFlowRemoved   CashFlowEventAction = "REMOVED"
)
