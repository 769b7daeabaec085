package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/talimhub/school-ops-api/internal/models"
)

// PolicyRepository reads and writes the admin-configured deduction policy
// pieces: package rates, lateness tiers and per-school settings.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository constructs the repository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Rates returns every configured package rate for the school.
func (r *PolicyRepository) Rates(ctx context.Context, schoolID string) ([]models.PackageRate, error) {
	const query = `SELECT school_id, package_name, lateness_base_amount, absence_base_amount
FROM package_rates WHERE school_id = $1 ORDER BY package_name ASC`
	var rates []models.PackageRate
	if err := r.db.SelectContext(ctx, &rates, query, schoolID); err != nil {
		return nil, fmt.Errorf("list package rates: %w", err)
	}
	return rates, nil
}

// Tiers returns the lateness tier table ordered ascending by start minute.
func (r *PolicyRepository) Tiers(ctx context.Context, schoolID string) ([]models.LatenessTier, error) {
	const query = `SELECT school_id, start_minute, end_minute, percent
FROM lateness_tiers WHERE school_id = $1 ORDER BY start_minute ASC`
	var tiers []models.LatenessTier
	if err := r.db.SelectContext(ctx, &tiers, query, schoolID); err != nil {
		return nil, fmt.Errorf("list lateness tiers: %w", err)
	}
	return tiers, nil
}

// Settings returns the school's payroll settings, or defaults when none are
// stored yet.
func (r *PolicyRepository) Settings(ctx context.Context, schoolID string) (*models.SchoolSettings, error) {
	const query = `SELECT school_id, include_sundays, timezone FROM school_settings WHERE school_id = $1`
	var settings models.SchoolSettings
	if err := r.db.GetContext(ctx, &settings, query, schoolID); err != nil {
		if err == sql.ErrNoRows {
			return &models.SchoolSettings{SchoolID: schoolID}, nil
		}
		return nil, fmt.Errorf("load school settings: %w", err)
	}
	return &settings, nil
}

// UpsertRate writes a package rate by natural key.
func (r *PolicyRepository) UpsertRate(ctx context.Context, rate *models.PackageRate) error {
	const query = `
INSERT INTO package_rates (school_id, package_name, lateness_base_amount, absence_base_amount)
VALUES ($1, $2, $3, $4)
ON CONFLICT (school_id, package_name)
DO UPDATE SET lateness_base_amount = EXCLUDED.lateness_base_amount, absence_base_amount = EXCLUDED.absence_base_amount`
	if _, err := r.db.ExecContext(ctx, query, rate.SchoolID, rate.PackageName, rate.LatenessBase, rate.AbsenceBase); err != nil {
		return fmt.Errorf("upsert package rate: %w", err)
	}
	return nil
}

// ReplaceTiers swaps the school's lateness tier table atomically.
func (r *PolicyRepository) ReplaceTiers(ctx context.Context, schoolID string, tiers []models.LatenessTier) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tier replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM lateness_tiers WHERE school_id = $1`, schoolID); err != nil {
		return fmt.Errorf("clear lateness tiers: %w", err)
	}
	const insert = `INSERT INTO lateness_tiers (school_id, start_minute, end_minute, percent) VALUES ($1, $2, $3, $4)`
	for _, tier := range tiers {
		if _, err := tx.ExecContext(ctx, insert, schoolID, tier.StartMinute, tier.EndMinute, tier.Percent); err != nil {
			return fmt.Errorf("insert lateness tier: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tier replace: %w", err)
	}
	return nil
}

// UpsertSettings writes the school settings row.
func (r *PolicyRepository) UpsertSettings(ctx context.Context, settings *models.SchoolSettings) error {
	const query = `
INSERT INTO school_settings (school_id, include_sundays, timezone)
VALUES ($1, $2, $3)
ON CONFLICT (school_id)
DO UPDATE SET include_sundays = EXCLUDED.include_sundays, timezone = EXCLUDED.timezone`
	if _, err := r.db.ExecContext(ctx, query, settings.SchoolID, settings.IncludeSundays, settings.Timezone); err != nil {
		return fmt.Errorf("upsert school settings: %w", err)
	}
	return nil
}
