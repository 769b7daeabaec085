package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

type policyStore interface {
	Rates(ctx context.Context, schoolID string) ([]models.PackageRate, error)
	Tiers(ctx context.Context, schoolID string) ([]models.LatenessTier, error)
	Settings(ctx context.Context, schoolID string) (*models.SchoolSettings, error)
	UpsertRate(ctx context.Context, rate *models.PackageRate) error
	ReplaceTiers(ctx context.Context, schoolID string, tiers []models.LatenessTier) error
	UpsertSettings(ctx context.Context, settings *models.SchoolSettings) error
}

type policyCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PolicyDefaults configure fallbacks applied when a school has no stored
// settings of its own.
type PolicyDefaults struct {
	Timezone       string
	DefaultAbsence decimal.Decimal
	CacheTTL       time.Duration
}

// PolicyService assembles the fully resolved DeductionPolicy handed to the
// absence and lateness computers, caching the result per school.
type PolicyService struct {
	store     policyStore
	cache     policyCache
	defaults  PolicyDefaults
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPolicyService constructs the service.
func NewPolicyService(store policyStore, cache policyCache, defaults PolicyDefaults, validate *validator.Validate, logger *zap.Logger) *PolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{store: store, cache: cache, defaults: defaults, validator: validate, logger: logger}
}

func policyCacheKey(schoolID string) string {
	return "payroll:policy:" + schoolID
}

// Resolve returns the school's deduction policy, from cache when possible.
func (s *PolicyService) Resolve(ctx context.Context, schoolID string) (models.DeductionPolicy, error) {
	var cached models.DeductionPolicy
	if s.cache != nil {
		if err := s.cache.Get(ctx, policyCacheKey(schoolID), &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("policy cache read failed", zap.String("school_id", schoolID), zap.Error(err))
		}
	}

	settings, err := s.store.Settings(ctx, schoolID)
	if err != nil {
		return models.DeductionPolicy{}, fmt.Errorf("resolve settings: %w", err)
	}
	rates, err := s.store.Rates(ctx, schoolID)
	if err != nil {
		return models.DeductionPolicy{}, fmt.Errorf("resolve rates: %w", err)
	}
	tiers, err := s.store.Tiers(ctx, schoolID)
	if err != nil {
		return models.DeductionPolicy{}, fmt.Errorf("resolve tiers: %w", err)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].StartMinute < tiers[j].StartMinute })

	timezone := settings.Timezone
	if timezone == "" {
		timezone = s.defaults.Timezone
	}
	rateMap := make(map[string]models.PackageRate, len(rates))
	for _, rate := range rates {
		rateMap[rate.PackageName] = rate
	}

	policy := models.DeductionPolicy{
		Timezone:       timezone,
		IncludeSundays: settings.IncludeSundays,
		DefaultAbsence: s.defaults.DefaultAbsence,
		Rates:          rateMap,
		Tiers:          tiers,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, policyCacheKey(schoolID), policy, s.defaults.CacheTTL); err != nil {
			s.logger.Warn("policy cache write failed", zap.String("school_id", schoolID), zap.Error(err))
		}
	}
	return policy, nil
}

// PackageRateInput is one package's deduction bases.
type PackageRateInput struct {
	PackageName  string `json:"package_name" validate:"required"`
	LatenessBase string `json:"lateness_base_amount" validate:"required"`
	AbsenceBase  string `json:"absence_base_amount" validate:"required"`
}

// LatenessTierInput is one lateness tier row.
type LatenessTierInput struct {
	StartMinute int `json:"start_minute" validate:"min=0"`
	EndMinute   int `json:"end_minute" validate:"min=0"`
	Percent     int `json:"percent" validate:"min=1,max=100"`
}

// UpdatePolicyRequest replaces the school's configured policy pieces. Nil
// slices leave the corresponding piece untouched.
type UpdatePolicyRequest struct {
	Rates          []PackageRateInput  `json:"rates" validate:"omitempty,dive"`
	Tiers          []LatenessTierInput `json:"tiers" validate:"omitempty,dive"`
	IncludeSundays *bool               `json:"include_sundays"`
	Timezone       *string             `json:"timezone"`
}

// Update writes policy changes and invalidates the cache.
func (s *PolicyService) Update(ctx context.Context, schoolID string, req UpdatePolicyRequest) (models.DeductionPolicy, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.DeductionPolicy{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy payload")
	}

	for _, input := range req.Rates {
		lateness, err := decimal.NewFromString(input.LatenessBase)
		if err != nil {
			return models.DeductionPolicy{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid lateness base for %s", input.PackageName))
		}
		absence, err := decimal.NewFromString(input.AbsenceBase)
		if err != nil {
			return models.DeductionPolicy{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid absence base for %s", input.PackageName))
		}
		rate := &models.PackageRate{SchoolID: schoolID, PackageName: input.PackageName, LatenessBase: lateness, AbsenceBase: absence}
		if err := s.store.UpsertRate(ctx, rate); err != nil {
			return models.DeductionPolicy{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store package rate")
		}
	}

	if req.Tiers != nil {
		tiers := make([]models.LatenessTier, 0, len(req.Tiers))
		for _, input := range req.Tiers {
			if input.EndMinute < input.StartMinute {
				return models.DeductionPolicy{}, appErrors.Clone(appErrors.ErrValidation, "tier end minute precedes start minute")
			}
			tiers = append(tiers, models.LatenessTier{SchoolID: schoolID, StartMinute: input.StartMinute, EndMinute: input.EndMinute, Percent: input.Percent})
		}
		if err := s.store.ReplaceTiers(ctx, schoolID, tiers); err != nil {
			return models.DeductionPolicy{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store lateness tiers")
		}
	}

	if req.IncludeSundays != nil || req.Timezone != nil {
		settings, err := s.store.Settings(ctx, schoolID)
		if err != nil {
			return models.DeductionPolicy{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
		}
		if req.IncludeSundays != nil {
			settings.IncludeSundays = *req.IncludeSundays
		}
		if req.Timezone != nil {
			if _, err := time.LoadLocation(*req.Timezone); err != nil {
				return models.DeductionPolicy{}, appErrors.Clone(appErrors.ErrValidation, "unknown timezone")
			}
			settings.Timezone = *req.Timezone
		}
		if err := s.store.UpsertSettings(ctx, settings); err != nil {
			return models.DeductionPolicy{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store settings")
		}
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, policyCacheKey(schoolID)); err != nil {
			s.logger.Warn("policy cache invalidation failed", zap.String("school_id", schoolID), zap.Error(err))
		}
	}
	return s.Resolve(ctx, schoolID)
}
