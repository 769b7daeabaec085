package models

import "time"

// Student is an enrolled learner. DayPackage is the recurring weekly
// attendance pattern ("All Days", "MWF", explicit weekday lists); TimeSlot is
// the scheduled session start ("04:30 PM", "16:30").
type Student struct {
	ID          int64     `db:"id" json:"id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Email       string    `db:"email" json:"email"`
	PackageName string    `db:"package_name" json:"package_name"`
	DayPackage  string    `db:"day_package" json:"day_package"`
	TimeSlot    string    `db:"time_slot" json:"time_slot"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
