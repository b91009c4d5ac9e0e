package http

import (
	"net/http"
	"net/url"
	"strings"

	"splitpay/internal/core"
)

// tableCheckboxPrefix prefixes the checkbox name of every month column.
const tableCheckboxPrefix = "m:"

// ParseFormOrFail parses the request form. Returns a 400 response builder on
// failure, nil on success.
func ParseFormOrFail(r *http.Request) *ResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}

// ParseTableForm reads the submitted payment table. The form carries one
// "month" field per column, one "member" field per row and, for every checked
// cell, a "m:<month>" field whose value is the member.
func ParseTableForm(form url.Values) ([]core.MonthKey, []core.TableRow, error) {
	var months []core.MonthKey
	seen := make(map[core.MonthKey]bool)
	for _, raw := range form["month"] {
		m, err := core.ParseMonthKey(strings.TrimSpace(raw))
		if err != nil {
			return nil, nil, err
		}
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}

	var rows []core.TableRow
	index := make(map[string]int)
	for _, raw := range form["member"] {
		member := sanitizeInput(raw)
		if member == "" {
			continue
		}
		if _, dup := index[member]; dup {
			continue
		}
		index[member] = len(rows)
		rows = append(rows, core.TableRow{Member: member, Paid: make(map[core.MonthKey]bool)})
	}

	for _, m := range months {
		for _, raw := range form[tableCheckboxPrefix+string(m)] {
			if i, ok := index[sanitizeInput(raw)]; ok {
				rows[i].Paid[m] = true
			}
		}
	}
	return months, rows, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
