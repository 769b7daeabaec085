package models

import "time"

// SessionLink is evidence that a class meeting was initiated for a student:
// the teacher sent the join URL at SentAt. Its presence on a day counts as
// attendance for absence computation.
type SessionLink struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	StudentID int64     `db:"student_id" json:"student_id"`
	SentAt    time.Time `db:"sent_at" json:"sent_at"`
	JoinURL   string    `db:"join_url" json:"join_url"`
	Topic     string    `db:"topic" json:"topic"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SessionLinkFilter narrows session-link listings.
type SessionLinkFilter struct {
	TeacherID string
	StudentID int64
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
