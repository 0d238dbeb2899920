package models

import (
	"log"

	"github.com/dealerbooks/dealer_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ExchangeRate{}, &InvoiceCounter{},
		&Motorcycle{}, &Product{}, &Sparepart{},
		&AssetCost{}, &SaleTransaction{},
		&StockAdjustment{}, &SparepartSale{}, &SparepartSaleItem{},
		&CashFlow{}, &CashFlowEvent{}, &Expense{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
