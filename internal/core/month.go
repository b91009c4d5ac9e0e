package core

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// ParseMonthKey validates s as a zero-padded "YYYY-MM" key.
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) != len(monthLayout) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthOf(t), nil
}

// MonthOf returns the key of the month containing t, in t's location.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// NextMonth returns the month after latest, rolling the year over after December.
func NextMonth(latest MonthKey) (MonthKey, error) {
	m, err := ParseMonthKey(string(latest))
	if err != nil {
		return "", err
	}
	t, _ := time.Parse(monthLayout, string(m))
	year, month := t.Year(), int(t.Month())
	if month == 12 {
		if year == 9999 {
			return "", fmt.Errorf("%w: no month after %q", ErrInvalidMonthKey, latest)
		}
		year++
		month = 1
	} else {
		month++
	}
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month)), nil
}

func (m MonthKey) String() string {
	return string(m)
}
