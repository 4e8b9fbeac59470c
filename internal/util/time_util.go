package util

import (
	"fmt"
	"time"
)

func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// MonthIndex maps a date to a running calendar month count so month
// differences ignore day-of-month
func MonthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// MonthsBetween is the number of calendar months from start to end
func MonthsBetween(start, end time.Time) int {
	return MonthIndex(end) - MonthIndex(start)
}

func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

func QuarterKey(t time.Time) string {
	return fmt.Sprintf("%dQ%d", t.Year(), (int(t.Month())-1)/3+1)
}

// ParseDate accepts the configured layout first, then a few common ones
func ParseDate(value string, preferred string) (time.Time, error) {
	layouts := []string{time.DateOnly, time.RFC3339, "2006-01-02 15:04:05", "2006-01", "01/02/2006"}
	if preferred != "" {
		layouts = append([]string{preferred}, layouts...)
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q", value)
}
