package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const businessDateLayout = "2006-01-02"

// BusinessDate is a calendar day in the school's canonical payroll timezone.
// It is produced once at the system boundary so that every downstream
// comparison is plain equality, regardless of how the source timestamp was
// stored. The zero value is the empty string.
type BusinessDate string

// NewBusinessDate converts an instant to the calendar day it falls on in loc.
func NewBusinessDate(t time.Time, loc *time.Location) BusinessDate {
	if loc == nil {
		loc = time.UTC
	}
	return BusinessDate(t.In(loc).Format(businessDateLayout))
}

// ParseBusinessDate validates a YYYY-MM-DD string.
func ParseBusinessDate(raw string) (BusinessDate, error) {
	t, err := time.Parse(businessDateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("parse business date %q: %w", raw, err)
	}
	return BusinessDate(t.Format(businessDateLayout)), nil
}

// Time returns midnight of the day in loc.
func (d BusinessDate) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(businessDateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Weekday reports the day of week (time.Sunday..time.Saturday).
func (d BusinessDate) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

// DayOfMonth returns the calendar day number (1..31).
func (d BusinessDate) DayOfMonth() int {
	return d.Time(time.UTC).Day()
}

// Next returns the following calendar day.
func (d BusinessDate) Next() BusinessDate {
	return BusinessDate(d.Time(time.UTC).AddDate(0, 0, 1).Format(businessDateLayout))
}

// After reports whether d falls after other.
func (d BusinessDate) After(other BusinessDate) bool {
	return string(d) > string(other)
}

// IsZero reports whether the date is unset.
func (d BusinessDate) IsZero() bool {
	return d == ""
}

func (d BusinessDate) String() string {
	return string(d)
}

// Value implements driver.Valuer so the date is stored as a DATE column.
func (d BusinessDate) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return string(d), nil
}

// Scan implements sql.Scanner accepting DATE, text and byte column values.
func (d *BusinessDate) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ""
		return nil
	case time.Time:
		*d = BusinessDate(v.Format(businessDateLayout))
		return nil
	case string:
		*d = BusinessDate(v)
		return nil
	case []byte:
		*d = BusinessDate(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into BusinessDate", src)
	}
}
