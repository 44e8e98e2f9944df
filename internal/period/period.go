// Package period holds the calendar arithmetic shared by leases, payments
// and receipts. Every date is stored as UTC midnight.
package period

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// Day truncates t to UTC midnight of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month.
func MonthStart(t time.Time) time.Time {
	return now.With(Day(t)).BeginningOfMonth()
}

// DaysIn returns the number of days of t's month.
func DaysIn(t time.Time) int {
	return now.With(Day(t)).EndOfMonth().Day()
}

// ClampDay returns the given day of month's month, clamped to the last
// valid day (31 in February gives the 28th or 29th).
func ClampDay(month time.Time, day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := DaysIn(month); day > last {
		day = last
	}
	start := MonthStart(month)
	return start.AddDate(0, 0, day-1)
}

// DaysBetween counts whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

func Parse(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: format attendu AAAA-MM-JJ", s)
	}
	return t.UTC(), nil
}

// ParseMonth accepts "2006-01" or a full date and returns the month start.
func ParseMonth(s string) (time.Time, error) {
	if t, err := time.Parse(MonthLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("mois %q: format attendu AAAA-MM", s)
	}
	return MonthStart(t), nil
}

func ParseOptional(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := Parse(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func Format(t time.Time) string {
	return t.Format(DateLayout)
}

func FormatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// Prefix is the yyyymm form used in receipt numbers and file paths.
func Prefix(month time.Time) string {
	return month.Format("200601")
}
