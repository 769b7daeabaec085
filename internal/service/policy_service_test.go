package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

type policyStoreStub struct {
	rates    []models.PackageRate
	tiers    []models.LatenessTier
	settings models.SchoolSettings

	rateUpserts  []models.PackageRate
	tierReplaces [][]models.LatenessTier
	settingSaves []models.SchoolSettings
}

func (s *policyStoreStub) Rates(ctx context.Context, schoolID string) ([]models.PackageRate, error) {
	return s.rates, nil
}

func (s *policyStoreStub) Tiers(ctx context.Context, schoolID string) ([]models.LatenessTier, error) {
	return s.tiers, nil
}

func (s *policyStoreStub) Settings(ctx context.Context, schoolID string) (*models.SchoolSettings, error) {
	settings := s.settings
	settings.SchoolID = schoolID
	return &settings, nil
}

func (s *policyStoreStub) UpsertRate(ctx context.Context, rate *models.PackageRate) error {
	s.rateUpserts = append(s.rateUpserts, *rate)
	return nil
}

func (s *policyStoreStub) ReplaceTiers(ctx context.Context, schoolID string, tiers []models.LatenessTier) error {
	s.tierReplaces = append(s.tierReplaces, tiers)
	s.tiers = tiers
	return nil
}

func (s *policyStoreStub) UpsertSettings(ctx context.Context, settings *models.SchoolSettings) error {
	s.settingSaves = append(s.settingSaves, *settings)
	s.settings = *settings
	return nil
}

type cacheStub struct {
	values  map[string][]byte
	deletes []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: make(map[string][]byte)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	c.deletes = append(c.deletes, key)
	delete(c.values, key)
	return nil
}

func policyDefaults() PolicyDefaults {
	return PolicyDefaults{
		Timezone:       "Africa/Cairo",
		DefaultAbsence: decimal.NewFromInt(25),
		CacheTTL:       time.Minute,
	}
}

func TestPolicyResolveAssemblesAndCaches(t *testing.T) {
	store := &policyStoreStub{
		rates: []models.PackageRate{{PackageName: "premium", AbsenceBase: decimal.NewFromInt(40), LatenessBase: decimal.NewFromInt(100)}},
		tiers: []models.LatenessTier{
			{StartMinute: 16, EndMinute: 30, Percent: 25},
			{StartMinute: 5, EndMinute: 15, Percent: 10},
		},
	}
	cache := newCacheStub()
	svc := NewPolicyService(store, cache, policyDefaults(), nil, nil)

	policy, err := svc.Resolve(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, "Africa/Cairo", policy.Timezone)
	assert.True(t, policy.DefaultAbsence.Equal(decimal.NewFromInt(25)))
	// Tiers come back sorted ascending by start minute.
	require.Len(t, policy.Tiers, 2)
	assert.Equal(t, 5, policy.Tiers[0].StartMinute)
	assert.Equal(t, 5, policy.ExcusedThreshold())
	assert.Contains(t, cache.values, "payroll:policy:school-1")

	// A second resolve is served from cache even if the store changes.
	store.rates = nil
	cached, err := svc.Resolve(context.Background(), "school-1")
	require.NoError(t, err)
	assert.True(t, cached.AbsenceRate("premium").Equal(decimal.NewFromInt(40)))
}

func TestPolicyResolveSchoolTimezoneWins(t *testing.T) {
	store := &policyStoreStub{settings: models.SchoolSettings{Timezone: "Asia/Jakarta", IncludeSundays: true}}
	svc := NewPolicyService(store, newCacheStub(), policyDefaults(), nil, nil)

	policy, err := svc.Resolve(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", policy.Timezone)
	assert.True(t, policy.IncludeSundays)
}

func TestPolicyUpdateInvalidatesCache(t *testing.T) {
	store := &policyStoreStub{}
	cache := newCacheStub()
	svc := NewPolicyService(store, cache, policyDefaults(), nil, nil)

	_, err := svc.Resolve(context.Background(), "school-1")
	require.NoError(t, err)
	require.Contains(t, cache.values, "payroll:policy:school-1")

	_, err = svc.Update(context.Background(), "school-1", UpdatePolicyRequest{
		Rates: []PackageRateInput{{PackageName: "basic", LatenessBase: "50", AbsenceBase: "20"}},
		Tiers: []LatenessTierInput{{StartMinute: 5, EndMinute: 15, Percent: 10}},
	})
	require.NoError(t, err)
	assert.Contains(t, cache.deletes, "payroll:policy:school-1")
	require.Len(t, store.rateUpserts, 1)
	assert.True(t, store.rateUpserts[0].AbsenceBase.Equal(decimal.NewFromInt(20)))
	require.Len(t, store.tierReplaces, 1)
}

func TestPolicyUpdateRejectsBadInput(t *testing.T) {
	svc := NewPolicyService(&policyStoreStub{}, newCacheStub(), policyDefaults(), nil, nil)

	_, err := svc.Update(context.Background(), "school-1", UpdatePolicyRequest{
		Rates: []PackageRateInput{{PackageName: "basic", LatenessBase: "fifty", AbsenceBase: "20"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "school-1", UpdatePolicyRequest{
		Tiers: []LatenessTierInput{{StartMinute: 20, EndMinute: 10, Percent: 10}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	badTZ := "Mars/Olympus"
	_, err = svc.Update(context.Background(), "school-1", UpdatePolicyRequest{Timezone: &badTZ})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
