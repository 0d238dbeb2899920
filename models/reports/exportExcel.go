package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const cashFlowSheet = "CashFlow"

// WriteCashFlowExcel renders the summary and its entries as an xlsx workbook.
func WriteCashFlowExcel(w io.Writer, summary *CashFlowSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", cashFlowSheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"Period", summary.PeriodStart.Format("2006-01-02"), summary.PeriodEnd.Format("2006-01-02")},
		{"Total Income (IDR)", summary.TotalIncome.InexactFloat64()},
		{"Total Outcome (IDR)", summary.TotalOutcome.InexactFloat64()},
		{"Net Cash Flow (IDR)", summary.NetCashFlow.InexactFloat64()},
		{},
		{"Category", "Income (IDR)", "Outcome (IDR)"},
	}
	for _, c := range summary.ByCategory {
		rows = append(rows, []interface{}{c.Category, c.Income.InexactFloat64(), c.Outcome.InexactFloat64()})
	}
	rows = append(rows, []interface{}{},
		[]interface{}{"Date", "Type", "Category", "Description", "Amount", "Currency", "Rate", "Amount (IDR)"})
	for _, cf := range summary.Entries {
		rows = append(rows, []interface{}{
			cf.TransactionDate.Format("2006-01-02"),
			string(cf.Type),
			cf.Category,
			cf.Description,
			cf.Amount.InexactFloat64(),
			string(cf.Currency),
			cf.ExchangeRate.InexactFloat64(),
			cf.AmountIdr.InexactFloat64(),
		})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(cashFlowSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f.Write(w)
}
