package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// WaiverRepository persists deduction waivers. The unique constraint on
// (school_id, teacher_id, deduction_type, deduction_date) is what makes
// concurrent reconciliation runs safe; methods surface a violation as
// appErrors.ErrDuplicateKey so callers can treat it as idempotent success.
type WaiverRepository struct {
	db *sqlx.DB
}

// NewWaiverRepository constructs the repository.
func NewWaiverRepository(db *sqlx.DB) *WaiverRepository {
	return &WaiverRepository{db: db}
}

// DB exposes the underlying handle for transaction control.
func (r *WaiverRepository) DB() *sqlx.DB {
	return r.db
}

// ExistingDates returns the set of dates inside [from, to] that already have
// a waiver of the given type for the teacher.
func (r *WaiverRepository) ExistingDates(ctx context.Context, qe sqlx.ExtContext, schoolID, teacherID string, dtype models.DeductionType, from, to models.BusinessDate) (map[models.BusinessDate]struct{}, error) {
	const query = `
SELECT deduction_date FROM deduction_waivers
WHERE school_id = $1 AND teacher_id = $2 AND deduction_type = $3
  AND deduction_date >= $4 AND deduction_date <= $5`
	var dates []models.BusinessDate
	if err := sqlx.SelectContext(ctx, qe, &dates, query, schoolID, teacherID, dtype, from, to); err != nil {
		return nil, fmt.Errorf("list existing waiver dates: %w", err)
	}
	set := make(map[models.BusinessDate]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set, nil
}

// Upsert writes a waiver by natural key. It returns inserted=true when a new
// row was created and false when an existing row was refreshed, so callers
// can count newly affected records without catching driver error codes.
func (r *WaiverRepository) Upsert(ctx context.Context, qe sqlx.ExtContext, waiver *models.DeductionWaiver) (bool, error) {
	now := time.Now().UTC()
	if waiver.ID == "" {
		waiver.ID = uuid.NewString()
	}
	if waiver.CreatedAt.IsZero() {
		waiver.CreatedAt = now
	}
	waiver.UpdatedAt = now
	const query = `
INSERT INTO deduction_waivers
  (id, school_id, teacher_id, deduction_type, deduction_date, original_amount, reason, admin_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (school_id, teacher_id, deduction_type, deduction_date)
DO UPDATE SET original_amount = EXCLUDED.original_amount, reason = EXCLUDED.reason,
              admin_id = EXCLUDED.admin_id, updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`
	var inserted bool
	if err := sqlx.GetContext(ctx, qe, &inserted, query,
		waiver.ID, waiver.SchoolID, waiver.TeacherID, waiver.DeductionType, waiver.DeductionDate,
		waiver.OriginalAmount, waiver.Reason, waiver.AdminID, waiver.CreatedAt, waiver.UpdatedAt,
	); err != nil {
		return false, classifyWaiverErr(err)
	}
	return inserted, nil
}

// InsertSkipDuplicates bulk-inserts waivers, silently skipping rows whose
// natural key already exists. It returns the amounts of the rows actually
// inserted.
func (r *WaiverRepository) InsertSkipDuplicates(ctx context.Context, qe sqlx.ExtContext, waivers []models.DeductionWaiver) ([]decimal.Decimal, error) {
	if len(waivers) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	values := make([]string, 0, len(waivers))
	args := make([]interface{}, 0, len(waivers)*10)
	for i := range waivers {
		w := &waivers[i]
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		w.UpdatedAt = now
		base := len(args)
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))
		args = append(args, w.ID, w.SchoolID, w.TeacherID, w.DeductionType, w.DeductionDate,
			w.OriginalAmount, w.Reason, w.AdminID, w.CreatedAt, w.UpdatedAt)
	}
	query := fmt.Sprintf(`
INSERT INTO deduction_waivers
  (id, school_id, teacher_id, deduction_type, deduction_date, original_amount, reason, admin_id, created_at, updated_at)
VALUES %s
ON CONFLICT (school_id, teacher_id, deduction_type, deduction_date) DO NOTHING
RETURNING original_amount`, strings.Join(values, ", "))

	var amounts []decimal.Decimal
	if err := sqlx.SelectContext(ctx, qe, &amounts, query, args...); err != nil {
		return nil, fmt.Errorf("bulk insert waivers: %w", err)
	}
	return amounts, nil
}

// List returns paginated waivers matching the filter.
func (r *WaiverRepository) List(ctx context.Context, filter models.WaiverFilter) ([]models.DeductionWaiver, int, error) {
	where := []string{"school_id = $1"}
	args := []interface{}{filter.SchoolID}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.DeductionType != "" {
		where = append(where, fmt.Sprintf("deduction_type = $%d", len(args)+1))
		args = append(args, filter.DeductionType)
	}
	if !filter.DateFrom.IsZero() {
		where = append(where, fmt.Sprintf("deduction_date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		where = append(where, fmt.Sprintf("deduction_date <= $%d", len(args)+1))
		args = append(args, filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, school_id, teacher_id, deduction_type, deduction_date, original_amount, reason, admin_id, created_at, updated_at
FROM deduction_waivers WHERE %s
ORDER BY deduction_date DESC, teacher_id ASC
LIMIT %d OFFSET %d`, whereClause, size, offset)

	var waivers []models.DeductionWaiver
	if err := r.db.SelectContext(ctx, &waivers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list waivers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM deduction_waivers WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count waivers: %w", err)
	}
	return waivers, total, nil
}

// ListForExport returns every waiver in range ordered for the payroll export.
func (r *WaiverRepository) ListForExport(ctx context.Context, schoolID string, from, to models.BusinessDate) ([]models.DeductionWaiver, error) {
	const query = `
SELECT id, school_id, teacher_id, deduction_type, deduction_date, original_amount, reason, admin_id, created_at, updated_at
FROM deduction_waivers
WHERE school_id = $1 AND deduction_date >= $2 AND deduction_date <= $3
ORDER BY teacher_id ASC, deduction_date ASC`
	var waivers []models.DeductionWaiver
	if err := r.db.SelectContext(ctx, &waivers, query, schoolID, from, to); err != nil {
		return nil, fmt.Errorf("list waivers for export: %w", err)
	}
	return waivers, nil
}

func classifyWaiverErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return appErrors.ErrDuplicateKey
	}
	return fmt.Errorf("upsert waiver: %w", err)
}
