package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talimhub/school-ops-api/internal/models"
)

// SessionLinkRepository persists session-link (Zoom dispatch) evidence.
type SessionLinkRepository struct {
	db *sqlx.DB
}

// NewSessionLinkRepository constructs the repository.
func NewSessionLinkRepository(db *sqlx.DB) *SessionLinkRepository {
	return &SessionLinkRepository{db: db}
}

// Create inserts a session link.
func (r *SessionLinkRepository) Create(ctx context.Context, link *models.SessionLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO session_links (id, school_id, teacher_id, student_id, sent_at, join_url, topic, created_at)
VALUES (:id, :school_id, :teacher_id, :student_id, :sent_at, :join_url, :topic, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create session link: %w", err)
	}
	return nil
}

// ListByTeacherBetween returns every link a teacher sent within [from, to].
func (r *SessionLinkRepository) ListByTeacherBetween(ctx context.Context, teacherID string, from, to time.Time) ([]models.SessionLink, error) {
	const query = `
SELECT id, school_id, teacher_id, student_id, sent_at, join_url, topic, created_at
FROM session_links
WHERE teacher_id = $1 AND sent_at >= $2 AND sent_at <= $3
ORDER BY sent_at ASC`
	var links []models.SessionLink
	if err := r.db.SelectContext(ctx, &links, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list session links: %w", err)
	}
	return links, nil
}

// HasHistory reports whether the student ever received a session link.
func (r *SessionLinkRepository) HasHistory(ctx context.Context, studentID int64) (bool, error) {
	const query = `SELECT 1 FROM session_links WHERE student_id = $1 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check session link history: %w", err)
	}
	return true, nil
}

// List returns paginated session links matching the filter.
func (r *SessionLinkRepository) List(ctx context.Context, schoolID string, filter models.SessionLinkFilter) ([]models.SessionLink, int, error) {
	where := []string{"school_id = $1"}
	args := []interface{}{schoolID}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != 0 {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("sent_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("sent_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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

	query := fmt.Sprintf(`SELECT id, school_id, teacher_id, student_id, sent_at, join_url, topic, created_at
FROM session_links WHERE %s
ORDER BY sent_at DESC
LIMIT %d OFFSET %d`, whereClause, size, offset)

	var links []models.SessionLink
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list session links: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM session_links WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count session links: %w", err)
	}
	return links, total, nil
}
