// Package sheets mirrors the payment table to a spreadsheet and reads an
// edited copy back so it can be applied to the ledger.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"splitpay/internal/core"
)

// Ports for outbound adapters.
type (
	// TableMirror overwrites the spreadsheet with the current table.
	TableMirror interface {
		MirrorTable(ctx context.Context, t core.Table) error
	}

	// TableSource reads the spreadsheet back as ledger edits.
	TableSource interface {
		ReadTable(ctx context.Context) (months []core.MonthKey, rows []core.TableRow, err error)
	}
)

// PaidMark is written in a cell whose member paid that month.
const PaidMark = "x"

var ErrEmptySheet = errors.New("sheet has no header row")

// Encode lays the table out as a grid: a header row of "Member" and the month
// keys, then one row per member with PaidMark in each paid cell.
func Encode(t core.Table) [][]any {
	header := make([]any, 0, len(t.Months)+1)
	header = append(header, "Member")
	for _, m := range t.Months {
		header = append(header, string(m))
	}
	out := [][]any{header}
	for _, row := range t.Rows {
		line := make([]any, 0, len(row.Cells)+1)
		line = append(line, row.Member)
		for _, c := range row.Cells {
			if c.Paid {
				line = append(line, PaidMark)
			} else {
				line = append(line, "")
			}
		}
		out = append(out, line)
	}
	return out
}

// Decode parses a grid produced by Encode, possibly edited by hand. Blank
// member rows are skipped; short rows count as unpaid.
func Decode(values [][]any) ([]core.MonthKey, []core.TableRow, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, nil, ErrEmptySheet
	}

	header := values[0]
	months := make([]core.MonthKey, 0, len(header)-1)
	for i, cell := range header[1:] {
		m, err := core.ParseMonthKey(strings.TrimSpace(cellString(cell)))
		if err != nil {
			return nil, nil, fmt.Errorf("header column %d: %w", i+2, err)
		}
		months = append(months, m)
	}

	var rows []core.TableRow
	for _, line := range values[1:] {
		if len(line) == 0 {
			continue
		}
		member := strings.TrimSpace(cellString(line[0]))
		if member == "" {
			continue
		}
		row := core.TableRow{Member: member, Paid: map[core.MonthKey]bool{}}
		for i, m := range months {
			if i+1 < len(line) && isPaid(cellString(line[i+1])) {
				row.Paid[m] = true
			}
		}
		rows = append(rows, row)
	}
	return months, rows, nil
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func isPaid(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "✓", "✔", "true", "yes", "1", "paid":
		return true
	}
	return false
}
