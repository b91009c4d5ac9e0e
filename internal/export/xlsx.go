// Package export renders the payment table as a spreadsheet download.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"splitpay/internal/core"
)

const (
	ledgerSheet  = "Ledger"
	summarySheet = "Summary"
)

// WriteXLSX writes a workbook with the payment table and the pricing summary.
func WriteXLSX(w io.Writer, s core.Summary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), ledgerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	table := s.Table()
	header := []interface{}{"Member"}
	for _, m := range table.Months {
		header = append(header, string(m))
	}
	header = append(header, "Status", "Debt ("+s.LocalCurrency+")")
	if err := f.SetSheetRow(ledgerSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range table.Rows {
		line := []interface{}{row.Member}
		for _, c := range row.Cells {
			if c.Paid {
				line = append(line, "paid")
			} else {
				line = append(line, "")
			}
		}
		status := row.Status
		if row.Contractor {
			status = "contractor"
		}
		line = append(line, status, int64(row.Debt))

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(ledgerSheet, cell, &line); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	summary := [][]interface{}{
		{"Service", s.ServiceName},
		{"Month", string(s.Current)},
		{"Price (" + s.BaseCurrency + ")", s.Price.Units()},
		{"Rate", s.Rate},
		{"Monthly total (" + s.LocalCurrency + ")", int64(s.Total)},
		{"Per head (" + s.LocalCurrency + ")", int64(s.PerHead)},
		{"Contractor", s.State.Contractor},
	}
	for i, line := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
