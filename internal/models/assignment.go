package models

import "time"

// TeacherAssignment is a period during which a teacher is responsible for a
// student's scheduled slot. Closed (EndAt set) on reassignment; history is
// preserved so backdated payroll computation still resolves correctly.
type TeacherAssignment struct {
	ID         string     `db:"id" json:"id"`
	SchoolID   string     `db:"school_id" json:"school_id"`
	TeacherID  string     `db:"teacher_id" json:"teacher_id"`
	StudentID  int64      `db:"student_id" json:"student_id"`
	OccupiedAt time.Time  `db:"occupied_at" json:"occupied_at"`
	EndAt      *time.Time `db:"end_at" json:"end_at,omitempty"`
	TimeSlot   string     `db:"time_slot" json:"time_slot"`
	DayPackage string     `db:"day_package" json:"day_package"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// TeacherChangeEvent is an append-only record of a student moving between
// teachers. When present for a date it supersedes the assignment window.
type TeacherChangeEvent struct {
	ID           string    `db:"id" json:"id"`
	StudentID    int64     `db:"student_id" json:"student_id"`
	OldTeacherID string    `db:"old_teacher_id" json:"old_teacher_id"`
	NewTeacherID string    `db:"new_teacher_id" json:"new_teacher_id"`
	ChangeDate   time.Time `db:"change_date" json:"change_date"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
