package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talimhub/school-ops-api/internal/models"
)

// PenaltyRepository reads manually entered absence penalty records kept from
// the pre-computation era.
type PenaltyRepository struct {
	db *sqlx.DB
}

// NewPenaltyRepository constructs the repository.
func NewPenaltyRepository(db *sqlx.DB) *PenaltyRepository {
	return &PenaltyRepository{db: db}
}

// ListForTeacherBetween returns a teacher's explicit penalties with dates
// inside [from, to].
func (r *PenaltyRepository) ListForTeacherBetween(ctx context.Context, schoolID, teacherID string, from, to models.BusinessDate) ([]models.AbsencePenalty, error) {
	const query = `
SELECT id, school_id, teacher_id, date, amount, note, created_at
FROM absence_penalties
WHERE school_id = $1 AND teacher_id = $2 AND date >= $3 AND date <= $4
ORDER BY date ASC`
	var penalties []models.AbsencePenalty
	if err := r.db.SelectContext(ctx, &penalties, query, schoolID, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list absence penalties: %w", err)
	}
	return penalties, nil
}
