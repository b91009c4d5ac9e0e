package core

import (
	"fmt"
	"strings"
)

// Pricing describes the shared subscription.
type Pricing struct {
	ServiceName   string
	Price         Money
	BaseCurrency  string
	LocalCurrency string
}

// Summary is everything derived from a State for one point in time.
type Summary struct {
	Pricing
	Rate    float64
	Current MonthKey
	Total   Amount
	PerHead Amount
	State   State
	// Ledger is State.History seeded with the current month.
	Ledger  Ledger
	Debts   map[string]Amount
	Debtors []Debt
}

// Summarize computes the per-head amount and every member's debt.
func Summarize(st State, p Pricing, rate float64, current MonthKey) Summary {
	ledger := st.History.Seeded(current)
	perHead := PerHead(p.Price, rate, len(st.Members))
	debts := ComputeDebts(st.Members, st.Contractor, ledger, perHead, current)
	return Summary{
		Pricing: p,
		Rate:    rate,
		Current: current,
		Total:   TotalLocal(p.Price, rate),
		PerHead: perHead,
		State:   st,
		Ledger:  ledger,
		Debts:   debts,
		Debtors: Debtors(st.Members, debts),
	}
}

// FormatAmount renders an amount followed by the local currency code.
func (s Summary) FormatAmount(a Amount) string {
	return a.String() + " " + s.LocalCurrency
}

// Cell is one checkbox of the payment table.
type Cell struct {
	Month MonthKey
	Paid  bool
}

// Row is one member's line of the payment table.
type Row struct {
	Member     string
	Contractor bool
	Debt       Amount
	Status     string
	Cells      []Cell
}

// Table is the editable projection of the ledger: one row per member and one
// column per known month.
type Table struct {
	Months []MonthKey
	Rows   []Row
}

// Table projects the summary into the payment table.
func (s Summary) Table() Table {
	t := Table{Months: s.Ledger.Months()}
	for _, member := range s.State.Members {
		row := Row{
			Member:     member,
			Contractor: member == s.State.Contractor,
			Debt:       s.Debts[member],
			Status:     "settled",
		}
		if row.Debt > 0 {
			row.Status = "unpaid " + s.FormatAmount(row.Debt)
		}
		for _, m := range t.Months {
			row.Cells = append(row.Cells, Cell{Month: m, Paid: s.Ledger.HasPaid(m, member)})
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Notice builds the reminder meant to be pasted into a group chat.
func (s Summary) Notice() string {
	debtors := "none"
	if len(s.Debtors) > 0 {
		parts := make([]string, 0, len(s.Debtors))
		for _, d := range s.Debtors {
			parts = append(parts, fmt.Sprintf("%s (%s)", d.Member, s.FormatAmount(d.Amount)))
		}
		debtors = strings.Join(parts, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Notice] %s subscription collection\n", s.ServiceName)
	fmt.Fprintf(&b, "Rate: 1 %s = %.2f %s\n", s.BaseCurrency, s.Rate, s.LocalCurrency)
	fmt.Fprintf(&b, "Per head: %s/month\n", s.FormatAmount(s.PerHead))
	b.WriteString("\n")
	b.WriteString("Unpaid (through this month):\n")
	b.WriteString(debtors + "\n")
	b.WriteString("\n")
	b.WriteString("Please send your payment.")
	return b.String()
}
