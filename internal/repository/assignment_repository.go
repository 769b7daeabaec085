package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talimhub/school-ops-api/internal/models"
)

// AssignmentRepository reads teacher-student assignment history and the
// teacher-change event log.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListForTeacherOverlapping returns assignments for a teacher whose window
// overlaps [from, to]. Closed assignments remain visible for backdated
// computation.
func (r *AssignmentRepository) ListForTeacherOverlapping(ctx context.Context, teacherID string, from, to time.Time) ([]models.TeacherAssignment, error) {
	const query = `
SELECT id, school_id, teacher_id, student_id, occupied_at, end_at, time_slot, day_package, created_at
FROM teacher_assignments
WHERE teacher_id = $1
  AND occupied_at <= $3
  AND (end_at IS NULL OR end_at >= $2)
ORDER BY occupied_at ASC`
	var assignments []models.TeacherAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list assignments for teacher: %w", err)
	}
	return assignments, nil
}

// StudentsForTeacher returns the distinct students a teacher was assigned
// at any point during [from, to].
func (r *AssignmentRepository) StudentsForTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Student, error) {
	const query = `
SELECT DISTINCT s.id, s.school_id, s.full_name, s.email, s.package_name, s.day_package, s.time_slot, s.active, s.created_at, s.updated_at
FROM teacher_assignments ta
JOIN students s ON s.id = ta.student_id
WHERE ta.teacher_id = $1
  AND ta.occupied_at <= $3
  AND (ta.end_at IS NULL OR ta.end_at >= $2)
ORDER BY s.id ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list students for teacher: %w", err)
	}
	return students, nil
}

// ChangeEventsForStudents returns teacher-change events for the given
// students ordered oldest first.
func (r *AssignmentRepository) ChangeEventsForStudents(ctx context.Context, studentIDs []int64) ([]models.TeacherChangeEvent, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
SELECT id, student_id, old_teacher_id, new_teacher_id, change_date, created_at
FROM teacher_change_events
WHERE student_id IN (?)
ORDER BY student_id ASC, change_date ASC`, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("build change event query: %w", err)
	}
	query = r.db.Rebind(query)
	var events []models.TeacherChangeEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list change events: %w", err)
	}
	return events, nil
}
