package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

// SubscriptionRepository persists student ↔ provider-subscription links.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository constructs the repository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindByProviderSubscriptionID loads the local link for a provider
// subscription, if any.
func (r *SubscriptionRepository) FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*models.StudentSubscription, error) {
	const query = `
SELECT id, school_id, student_id, provider_subscription_id, provider_customer_id, package_id, status, current_period_end, created_at, updated_at
FROM student_subscriptions WHERE provider_subscription_id = $1`
	var sub models.StudentSubscription
	if err := r.db.GetContext(ctx, &sub, query, providerSubID); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByStudent returns every subscription linked to the student.
func (r *SubscriptionRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.StudentSubscription, error) {
	const query = `
SELECT id, school_id, student_id, provider_subscription_id, provider_customer_id, package_id, status, current_period_end, created_at, updated_at
FROM student_subscriptions WHERE student_id = $1 ORDER BY created_at DESC`
	var subs []models.StudentSubscription
	if err := r.db.SelectContext(ctx, &subs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student subscriptions: %w", err)
	}
	return subs, nil
}

// Upsert writes a subscription link keyed by provider subscription ID. The
// student_id is never changed by the upsert: re-pointing an existing link at
// a different student is refused upstream, and the WHERE guard below makes
// the database enforce it as well.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *models.StudentSubscription) error {
	now := time.Now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	const query = `
INSERT INTO student_subscriptions
  (id, school_id, student_id, provider_subscription_id, provider_customer_id, package_id, status, current_period_end, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (provider_subscription_id)
DO UPDATE SET status = EXCLUDED.status, current_period_end = EXCLUDED.current_period_end,
              package_id = EXCLUDED.package_id, updated_at = EXCLUDED.updated_at
WHERE student_subscriptions.student_id = EXCLUDED.student_id`
	result, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.SchoolID, sub.StudentID, sub.ProviderSubscriptionID, sub.ProviderCustomerID,
		sub.PackageID, sub.Status, sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return appErrors.ErrDuplicateKey
		}
		return fmt.Errorf("upsert student subscription: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check upserted subscription rows: %w", err)
	}
	if affected == 0 {
		// Conflict row belongs to a different student; the guard refused it.
		return appErrors.ErrSubscriptionTaken
	}
	return nil
}
