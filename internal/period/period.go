// Package period defines the calendar-month bucket used to group usage for
// billing. Periods are always passed explicitly so callers never reach for
// the wall clock inline.
package period

import (
	"errors"
	"fmt"
	"time"
)

// YearMonth identifies one billing period.
type YearMonth struct {
	Year  int
	Month time.Month
}

var ErrInvalidPeriod = errors.New("invalid_billing_period")

// FromTime buckets t into its calendar month, in UTC.
func FromTime(t time.Time) YearMonth {
	utc := t.UTC()
	return YearMonth{Year: utc.Year(), Month: utc.Month()}
}

// Previous returns the completed month before t. This is the period the
// monthly billing run settles.
func Previous(t time.Time) YearMonth {
	utc := t.UTC()
	first := time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, -1, 0)
	return YearMonth{Year: prev.Year(), Month: prev.Month()}
}

// Parse reads a YYYY-MM string.
func Parse(value string) (YearMonth, error) {
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return YearMonth{}, ErrInvalidPeriod
	}
	return YearMonth{Year: parsed.Year(), Month: parsed.Month()}, nil
}

// String formats as YYYY-MM, the ledger tag format.
func (p YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p YearMonth) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}
