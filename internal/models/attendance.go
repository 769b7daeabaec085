package models

import "time"

// AttendanceStatus is an explicit per-day attendance override.
type AttendanceStatus string

const (
	AttendancePresent    AttendanceStatus = "PRESENT"
	AttendanceAbsent     AttendanceStatus = "ABSENT"
	AttendancePermission AttendanceStatus = "PERMISSION"
)

// Valid reports whether the status is one of the known values.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendancePermission:
		return true
	}
	return false
}

// AttendanceRecord is an explicit per-student, per-day attendance entry.
// PERMISSION suppresses an absence deduction regardless of session-link
// evidence.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	SchoolID  string           `db:"school_id" json:"school_id"`
	StudentID int64            `db:"student_id" json:"student_id"`
	Date      BusinessDate     `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
