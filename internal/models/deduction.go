package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeductionType distinguishes the two payroll penalty categories.
type DeductionType string

const (
	DeductionAbsence  DeductionType = "absence"
	DeductionLateness DeductionType = "lateness"
)

// Valid reports whether the type is known.
func (t DeductionType) Valid() bool {
	return t == DeductionAbsence || t == DeductionLateness
}

// DeductionWaiver cancels a computed payroll deduction for one teacher on one
// day. At most one waiver exists per (school, teacher, type, date); the
// database unique constraint on that tuple is the serialization point for
// concurrent reconciliation runs.
type DeductionWaiver struct {
	ID             string          `db:"id" json:"id"`
	SchoolID       string          `db:"school_id" json:"school_id"`
	TeacherID      string          `db:"teacher_id" json:"teacher_id"`
	DeductionType  DeductionType   `db:"deduction_type" json:"deduction_type"`
	DeductionDate  BusinessDate    `db:"deduction_date" json:"deduction_date"`
	OriginalAmount decimal.Decimal `db:"original_amount" json:"original_amount"`
	Reason         string          `db:"reason" json:"reason"`
	AdminID        string          `db:"admin_id" json:"admin_id"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// WaiverFilter narrows waiver listings.
type WaiverFilter struct {
	SchoolID      string
	TeacherID     string
	DeductionType DeductionType
	DateFrom      BusinessDate
	DateTo        BusinessDate
	Page          int
	PageSize      int
}

// AbsencePenalty is a manually entered absence penalty, kept from the era
// before penalties were derived from attendance data. Reconciliation waives
// these first so recomputation does not double-insert the same dates.
type AbsencePenalty struct {
	ID        string          `db:"id" json:"id"`
	SchoolID  string          `db:"school_id" json:"school_id"`
	TeacherID string          `db:"teacher_id" json:"teacher_id"`
	Date      BusinessDate    `db:"date" json:"date"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Note      string          `db:"note" json:"note"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ComputedAbsence is one day's derived absence deduction for a teacher,
// with the students that contributed to the total.
type ComputedAbsence struct {
	TeacherID string          `json:"teacher_id"`
	Date      BusinessDate    `json:"date"`
	Total     decimal.Decimal `json:"total"`
	Breakdown string          `json:"breakdown"`
}

// ComputedLateness is one day's aggregated lateness deduction for a teacher.
type ComputedLateness struct {
	TeacherID string          `json:"teacher_id"`
	Date      BusinessDate    `json:"date"`
	Total     decimal.Decimal `json:"total"`
	Breakdown string          `json:"breakdown"`
}

// PackageRate is the admin-configured deduction base for a student package.
type PackageRate struct {
	SchoolID      string          `db:"school_id" json:"school_id"`
	PackageName   string          `db:"package_name" json:"package_name"`
	LatenessBase  decimal.Decimal `db:"lateness_base_amount" json:"lateness_base_amount"`
	AbsenceBase   decimal.Decimal `db:"absence_base_amount" json:"absence_base_amount"`
}

// LatenessTier maps a lateness-minute range [StartMinute, EndMinute] to a
// percentage of the package lateness base. Tiers are ordered ascending by
// StartMinute; the first matching tier wins.
type LatenessTier struct {
	SchoolID    string `db:"school_id" json:"school_id"`
	StartMinute int    `db:"start_minute" json:"start_minute"`
	EndMinute   int    `db:"end_minute" json:"end_minute"`
	Percent     int    `db:"percent" json:"percent"`
}

// SchoolSettings holds per-tenant payroll toggles.
type SchoolSettings struct {
	SchoolID       string `db:"school_id" json:"school_id"`
	IncludeSundays bool   `db:"include_sundays" json:"include_sundays"`
	Timezone       string `db:"timezone" json:"timezone"`
}

// DeductionPolicy is the fully resolved configuration handed to the absence
// and lateness computers. It is assembled per request (and cached) rather
// than read from ambient state, so computations are deterministic under test.
type DeductionPolicy struct {
	Timezone       string                 `json:"timezone"`
	IncludeSundays bool                   `json:"include_sundays"`
	DefaultAbsence decimal.Decimal        `json:"default_absence"`
	Rates          map[string]PackageRate `json:"rates"`
	Tiers          []LatenessTier         `json:"tiers"`
}

// Location resolves the policy timezone, falling back to UTC.
func (p DeductionPolicy) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

// AbsenceRate returns the absence base for a package, or the default when the
// package has no configured rate.
func (p DeductionPolicy) AbsenceRate(packageName string) decimal.Decimal {
	if rate, ok := p.Rates[packageName]; ok && rate.AbsenceBase.IsPositive() {
		return rate.AbsenceBase
	}
	return p.DefaultAbsence
}

// LatenessBase returns the lateness base for a package, zero when absent.
func (p DeductionPolicy) LatenessBase(packageName string) decimal.Decimal {
	if rate, ok := p.Rates[packageName]; ok {
		return rate.LatenessBase
	}
	return decimal.Zero
}

// ExcusedThreshold is the minimum of all tier start minutes: lateness at or
// below it carries no penalty.
func (p DeductionPolicy) ExcusedThreshold() int {
	if len(p.Tiers) == 0 {
		return 0
	}
	min := p.Tiers[0].StartMinute
	for _, tier := range p.Tiers[1:] {
		if tier.StartMinute < min {
			min = tier.StartMinute
		}
	}
	return min
}

// TierPercent returns the percentage for the first tier containing minutes,
// or zero when no tier matches.
func (p DeductionPolicy) TierPercent(minutes int) int {
	for _, tier := range p.Tiers {
		if minutes >= tier.StartMinute && minutes <= tier.EndMinute {
			return tier.Percent
		}
	}
	return 0
}
