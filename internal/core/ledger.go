package core

import (
	"slices"
	"sort"
)

// Months returns the ledger's month keys in ascending order.
func (l Ledger) Months() []MonthKey {
	months := make([]MonthKey, 0, len(l))
	for m := range l {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
	return months
}

// Latest returns the greatest month key, if any.
func (l Ledger) Latest() (MonthKey, bool) {
	months := l.Months()
	if len(months) == 0 {
		return "", false
	}
	return months[len(months)-1], true
}

// HasPaid reports whether member is in the paid set for month.
func (l Ledger) HasPaid(month MonthKey, member string) bool {
	return slices.Contains(l[month], member)
}

// Clone returns a deep copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for m, paid := range l {
		out[m] = append([]string{}, paid...)
	}
	return out
}

// Seeded returns the ledger with the current month added as an empty slot
// when the ledger has no months at all. Debt is computed on the seeded
// ledger so the running month counts before anyone creates it.
func (l Ledger) Seeded(current MonthKey) Ledger {
	if len(l) > 0 {
		return l
	}
	return Ledger{current: {}}
}

// Equal compares two ledgers month by month with set semantics.
func (l Ledger) Equal(other Ledger) bool {
	if len(l) != len(other) {
		return false
	}
	for m, paid := range l {
		otherPaid, ok := other[m]
		if !ok {
			return false
		}
		if !sameSet(paid, otherPaid) {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}

// TableRow is one member's row of the editable payment table.
type TableRow struct {
	Member string
	Paid   map[MonthKey]bool
}

// RebuildLedger turns an edited table back into a ledger. Every listed month
// gets a fresh paid set holding exactly the members whose cell is checked,
// so an unchecked cell removes a previous payment.
func RebuildLedger(months []MonthKey, rows []TableRow) Ledger {
	out := make(Ledger, len(months))
	for _, m := range months {
		out[m] = []string{}
	}
	for _, row := range rows {
		for _, m := range months {
			if row.Paid[m] && !slices.Contains(out[m], row.Member) {
				out[m] = append(out[m], row.Member)
			}
		}
	}
	return out
}
