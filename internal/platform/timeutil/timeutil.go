// Package timeutil contains time related helpers shared by the engine
package timeutil

import (
	"fmt"
	"math"
	"time"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
)

// DayLayout is the wire format for calendar dates
const DayLayout = "2006-01-02"

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Round2 rounds hours to two decimal places, half away from zero
func Round2(h float64) float64 {
	return math.Round(h*100) / 100
}

// DayKey formats t as an ISO calendar date in t's location
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// WeekKey formats t as an ISO year-week like 2026-W03
func WeekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// ParseDay parses a strict YYYY-MM-DD date in loc (UTC when loc is nil)
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DayLayout, s, loc)
	if err != nil {
		return time.Time{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
