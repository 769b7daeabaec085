package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

type waiverStoreStub struct {
	existing   map[models.BusinessDate]struct{}
	upsertErr  error
	upserts    []models.DeductionWaiver
	bulkBatch  []models.DeductionWaiver
	bulkResult []decimal.Decimal
}

func (s *waiverStoreStub) ExistingDates(ctx context.Context, qe sqlx.ExtContext, schoolID, teacherID string, dtype models.DeductionType, from, to models.BusinessDate) (map[models.BusinessDate]struct{}, error) {
	out := make(map[models.BusinessDate]struct{}, len(s.existing))
	for d := range s.existing {
		out[d] = struct{}{}
	}
	return out, nil
}

func (s *waiverStoreStub) Upsert(ctx context.Context, qe sqlx.ExtContext, waiver *models.DeductionWaiver) (bool, error) {
	if s.upsertErr != nil {
		return false, s.upsertErr
	}
	s.upserts = append(s.upserts, *waiver)
	return true, nil
}

func (s *waiverStoreStub) InsertSkipDuplicates(ctx context.Context, qe sqlx.ExtContext, waivers []models.DeductionWaiver) ([]decimal.Decimal, error) {
	s.bulkBatch = append(s.bulkBatch, waivers...)
	if s.bulkResult != nil {
		return s.bulkResult, nil
	}
	amounts := make([]decimal.Decimal, len(waivers))
	for i, w := range waivers {
		amounts[i] = w.OriginalAmount
	}
	return amounts, nil
}

type penaltyReaderStub struct {
	penalties []models.AbsencePenalty
}

func (s penaltyReaderStub) ListForTeacherBetween(ctx context.Context, schoolID, teacherID string, from, to models.BusinessDate) ([]models.AbsencePenalty, error) {
	return s.penalties, nil
}

type teacherReaderStub struct {
	teachers []models.Teacher
}

func (s teacherReaderStub) ListByIDs(ctx context.Context, schoolID string, ids []string) ([]models.Teacher, error) {
	return s.teachers, nil
}

type absenceComputerStub struct {
	entries []models.ComputedAbsence
}

func (s absenceComputerStub) ComputeForTeacher(ctx context.Context, teacherID string, from, to models.BusinessDate, policy models.DeductionPolicy, studentFilter []string) ([]models.ComputedAbsence, error) {
	return s.entries, nil
}

type latenessComputerStub struct {
	entries []models.ComputedLateness
}

func (s latenessComputerStub) ComputeForTeacher(ctx context.Context, teacherID string, from, to models.BusinessDate, policy models.DeductionPolicy, slots []string) ([]models.ComputedLateness, error) {
	return s.entries, nil
}

type auditWriterStub struct {
	logs []models.AuditLog
}

func (s *auditWriterStub) CreateIn(ctx context.Context, qe sqlx.ExtContext, log *models.AuditLog) error {
	s.logs = append(s.logs, *log)
	return nil
}

type policyResolverStub struct{}

func (policyResolverStub) Resolve(ctx context.Context, schoolID string) (models.DeductionPolicy, error) {
	return testPolicy(), nil
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", SchoolID: "school-1", Role: models.RoleAdmin}
}

func absenceRequest() AdjustmentRequest {
	return AdjustmentRequest{
		AdjustmentType: AdjustmentWaiveAbsence,
		DateRange:      DateRange{StartDate: "2026-05-04", EndDate: "2026-05-08"},
		TeacherIDs:     []string{"t1"},
		Reason:         "teacher on approved leave",
	}
}

func TestApplyAdjustmentWaivesComputedAbsences(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	waivers := &waiverStoreStub{}
	audits := &auditWriterStub{}
	svc := NewAdjustmentService(db, waivers, penaltyReaderStub{}, teacherReaderStub{teachers: []models.Teacher{{ID: "t1"}}},
		absenceComputerStub{entries: []models.ComputedAbsence{
			{TeacherID: "t1", Date: mustDate(t, "2026-05-04"), Total: decimal.NewFromInt(25), Breakdown: "Amina (#7)"},
			{TeacherID: "t1", Date: mustDate(t, "2026-05-06"), Total: decimal.NewFromInt(25), Breakdown: "Amina (#7)"},
		}},
		latenessComputerStub{}, audits, policyResolverStub{}, 0, nil, nil)

	result, err := svc.ApplyAdjustment(context.Background(), adminClaims(), absenceRequest())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.RecordsAffected)
	assert.True(t, result.FinancialImpact.TotalAmountWaived.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 1, result.FinancialImpact.AffectedTeachers)

	require.Len(t, waivers.upserts, 2)
	assert.Equal(t, models.DeductionAbsence, waivers.upserts[0].DeductionType)
	assert.Equal(t, "admin-1", waivers.upserts[0].AdminID)
	assert.Contains(t, waivers.upserts[0].Reason, "teacher on approved leave")

	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionPayrollAdjustment, audits.logs[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAdjustmentRerunIsNoop(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	waivers := &waiverStoreStub{existing: map[models.BusinessDate]struct{}{
		mustDate(t, "2026-05-04"): {},
		mustDate(t, "2026-05-06"): {},
	}}
	svc := NewAdjustmentService(db, waivers, penaltyReaderStub{}, teacherReaderStub{teachers: []models.Teacher{{ID: "t1"}}},
		absenceComputerStub{entries: []models.ComputedAbsence{
			{TeacherID: "t1", Date: mustDate(t, "2026-05-04"), Total: decimal.NewFromInt(25)},
			{TeacherID: "t1", Date: mustDate(t, "2026-05-06"), Total: decimal.NewFromInt(25)},
		}},
		latenessComputerStub{}, &auditWriterStub{}, policyResolverStub{}, 0, nil, nil)

	result, err := svc.ApplyAdjustment(context.Background(), adminClaims(), absenceRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordsAffected)
	assert.True(t, result.FinancialImpact.TotalAmountWaived.IsZero())
	assert.Equal(t, 0, result.FinancialImpact.AffectedTeachers)
	assert.Empty(t, waivers.upserts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAdjustmentLegacyPenaltyTakesPrecedence(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	day := mustDate(t, "2026-05-04")
	waivers := &waiverStoreStub{}
	svc := NewAdjustmentService(db, waivers,
		penaltyReaderStub{penalties: []models.AbsencePenalty{{TeacherID: "t1", Date: day, Amount: decimal.NewFromInt(30)}}},
		teacherReaderStub{teachers: []models.Teacher{{ID: "t1"}}},
		absenceComputerStub{entries: []models.ComputedAbsence{
			{TeacherID: "t1", Date: day, Total: decimal.NewFromInt(25)},
		}},
		latenessComputerStub{}, &auditWriterStub{}, policyResolverStub{}, 0, nil, nil)

	result, err := svc.ApplyAdjustment(context.Background(), adminClaims(), absenceRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsAffected)
	// The manually entered penalty amount wins over the recomputed one.
	assert.True(t, result.FinancialImpact.TotalAmountWaived.Equal(decimal.NewFromInt(30)))
	require.Len(t, waivers.upserts, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAdjustmentLatenessBulkInsert(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	waivers := &waiverStoreStub{}
	svc := NewAdjustmentService(db, waivers, penaltyReaderStub{}, teacherReaderStub{teachers: []models.Teacher{{ID: "t1"}}},
		absenceComputerStub{},
		latenessComputerStub{entries: []models.ComputedLateness{
			{TeacherID: "t1", Date: mustDate(t, "2026-05-04"), Total: decimal.NewFromInt(10), Breakdown: "Amina (#7): 10m @10%"},
			{TeacherID: "t1", Date: mustDate(t, "2026-05-05"), Total: decimal.NewFromInt(25), Breakdown: "Amina (#7): 20m @25%"},
		}},
		&auditWriterStub{}, policyResolverStub{}, 0, nil, nil)

	req := absenceRequest()
	req.AdjustmentType = AdjustmentWaiveLateness

	result, err := svc.ApplyAdjustment(context.Background(), adminClaims(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsAffected)
	assert.True(t, result.FinancialImpact.TotalAmountWaived.Equal(decimal.NewFromInt(35)))
	require.Len(t, waivers.bulkBatch, 2)
	assert.Equal(t, models.DeductionLateness, waivers.bulkBatch[0].DeductionType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAdjustmentDuplicateKeyIsIdempotentSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	waivers := &waiverStoreStub{upsertErr: appErrors.ErrDuplicateKey}
	svc := NewAdjustmentService(db, waivers, penaltyReaderStub{}, teacherReaderStub{teachers: []models.Teacher{{ID: "t1"}}},
		absenceComputerStub{entries: []models.ComputedAbsence{
			{TeacherID: "t1", Date: mustDate(t, "2026-05-04"), Total: decimal.NewFromInt(25)},
		}},
		latenessComputerStub{}, &auditWriterStub{}, policyResolverStub{}, 0, nil, nil)

	result, err := svc.ApplyAdjustment(context.Background(), adminClaims(), absenceRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordsAffected)
	assert.True(t, result.FinancialImpact.TotalAmountWaived.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyAdjustmentRejectsUnknownTeacher(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewAdjustmentService(db, &waiverStoreStub{}, penaltyReaderStub{}, teacherReaderStub{},
		absenceComputerStub{}, latenessComputerStub{}, &auditWriterStub{}, policyResolverStub{}, 0, nil, nil)

	_, err := svc.ApplyAdjustment(context.Background(), adminClaims(), absenceRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApplyAdjustmentRejectsInvertedRange(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewAdjustmentService(db, &waiverStoreStub{}, penaltyReaderStub{}, teacherReaderStub{teachers: []models.Teacher{{ID: "t1"}}},
		absenceComputerStub{}, latenessComputerStub{}, &auditWriterStub{}, policyResolverStub{}, 0, nil, nil)

	req := absenceRequest()
	req.DateRange = DateRange{StartDate: "2026-05-08", EndDate: "2026-05-04"}

	_, err := svc.ApplyAdjustment(context.Background(), adminClaims(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApplyAdjustmentRejectsUnknownType(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewAdjustmentService(db, &waiverStoreStub{}, penaltyReaderStub{}, teacherReaderStub{teachers: []models.Teacher{{ID: "t1"}}},
		absenceComputerStub{}, latenessComputerStub{}, &auditWriterStub{}, policyResolverStub{}, 0, nil, nil)

	req := absenceRequest()
	req.AdjustmentType = "waive_everything"

	_, err := svc.ApplyAdjustment(context.Background(), adminClaims(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
