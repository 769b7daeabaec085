package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talimhub/school-ops-api/internal/models"
)

// AttendanceRepository reads explicit attendance overrides.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListForStudentsBetween returns attendance records for the given students
// with dates inside [from, to].
func (r *AttendanceRepository) ListForStudentsBetween(ctx context.Context, studentIDs []int64, from, to models.BusinessDate) ([]models.AttendanceRecord, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
SELECT id, school_id, student_id, date, status, created_at
FROM attendance_records
WHERE student_id IN (?) AND date >= ? AND date <= ?
ORDER BY date ASC`, studentIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("build attendance query: %w", err)
	}
	query = r.db.Rebind(query)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}
