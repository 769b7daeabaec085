package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/talimhub/school-ops-api/internal/models"
)

// AuditRepository persists administrative action records.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditInsertQuery = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Create inserts an audit row using the repository's connection.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.CreateIn(ctx, r.db, log)
}

// CreateIn inserts an audit row through qe, which may be a transaction so the
// audit entry commits atomically with the work it describes.
func (r *AuditRepository) CreateIn(ctx context.Context, qe sqlx.ExtContext, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if _, err := qe.ExecContext(ctx, auditInsertQuery,
		log.ID, log.UserID, log.Action, log.Resource, log.ResourceID,
		log.NewValues, log.IPAddress, log.UserAgent, log.CreatedAt,
	); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
