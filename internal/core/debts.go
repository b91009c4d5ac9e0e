package core

// Debt is one member's outstanding balance.
type Debt struct {
	Member string
	Amount Amount
}

// ComputeDebts returns every member's outstanding balance up to and including
// current. Months after current are ignored and the contractor never owes.
// Callers pass a seeded ledger (see Ledger.Seeded).
func ComputeDebts(members []string, contractor string, ledger Ledger, perHead Amount, current MonthKey) map[string]Amount {
	debts := make(map[string]Amount, len(members))
	for _, member := range members {
		if member == contractor {
			debts[member] = 0
			continue
		}
		var unpaid int64
		for month := range ledger {
			if month > current {
				continue
			}
			if !ledger.HasPaid(month, member) {
				unpaid++
			}
		}
		debts[member] = perHead * Amount(unpaid)
	}
	return debts
}

// Debtors lists members with a positive balance, in member order.
func Debtors(members []string, debts map[string]Amount) []Debt {
	var out []Debt
	for _, m := range members {
		if a := debts[m]; a > 0 {
			out = append(out, Debt{Member: m, Amount: a})
		}
	}
	return out
}
