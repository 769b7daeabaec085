package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

type waiverStore interface {
	ExistingDates(ctx context.Context, qe sqlx.ExtContext, schoolID, teacherID string, dtype models.DeductionType, from, to models.BusinessDate) (map[models.BusinessDate]struct{}, error)
	Upsert(ctx context.Context, qe sqlx.ExtContext, waiver *models.DeductionWaiver) (bool, error)
	InsertSkipDuplicates(ctx context.Context, qe sqlx.ExtContext, waivers []models.DeductionWaiver) ([]decimal.Decimal, error)
}

type penaltyReader interface {
	ListForTeacherBetween(ctx context.Context, schoolID, teacherID string, from, to models.BusinessDate) ([]models.AbsencePenalty, error)
}

type teacherReader interface {
	ListByIDs(ctx context.Context, schoolID string, ids []string) ([]models.Teacher, error)
}

type absenceComputer interface {
	ComputeForTeacher(ctx context.Context, teacherID string, from, to models.BusinessDate, policy models.DeductionPolicy, studentFilter []string) ([]models.ComputedAbsence, error)
}

type latenessComputer interface {
	ComputeForTeacher(ctx context.Context, teacherID string, from, to models.BusinessDate, policy models.DeductionPolicy, slots []string) ([]models.ComputedLateness, error)
}

type auditWriter interface {
	CreateIn(ctx context.Context, qe sqlx.ExtContext, log *models.AuditLog) error
}

type policyResolver interface {
	Resolve(ctx context.Context, schoolID string) (models.DeductionPolicy, error)
}

// Adjustment types accepted by ApplyAdjustment.
const (
	AdjustmentWaiveAbsence  = "waive_absence"
	AdjustmentWaiveLateness = "waive_lateness"
)

// DateRange is an inclusive business-date range.
type DateRange struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
}

// AdjustmentRequest describes one payroll adjustment run.
type AdjustmentRequest struct {
	AdjustmentType string    `json:"adjustmentType" validate:"required,oneof=waive_absence waive_lateness"`
	DateRange      DateRange `json:"dateRange" validate:"required"`
	TeacherIDs     []string  `json:"teacherIds" validate:"required,min=1,dive,required"`
	TimeSlots      []string  `json:"timeSlots"`
	StudentIDs     []string  `json:"studentIds"`
	Reason         string    `json:"reason" validate:"required"`

	// Captured from the request for the audit row.
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// FinancialImpact summarizes the money side of an adjustment run.
type FinancialImpact struct {
	TotalAmountWaived decimal.Decimal `json:"totalAmountWaived"`
	AffectedTeachers  int             `json:"affectedTeachers"`
}

// AdjustmentResult is the outcome returned to the caller.
type AdjustmentResult struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	RecordsAffected int             `json:"recordsAffected"`
	FinancialImpact FinancialImpact `json:"financialImpact"`
}

// AdjustmentService runs deduction-waiver reconciliation: it recomputes what
// each teacher would be deducted over a date range and records waivers so
// payroll skips those deductions. Re-running the same request is a no-op for
// dates already waived; the operation commits atomically with its audit row.
type AdjustmentService struct {
	db        *sqlx.DB
	waivers   waiverStore
	penalties penaltyReader
	teachers  teacherReader
	absence   absenceComputer
	lateness  latenessComputer
	audits    auditWriter
	policies  policyResolver

	auditDetailLimit int
	validator        *validator.Validate
	logger           *zap.Logger
}

// NewAdjustmentService constructs the service. db must be the same handle the
// waiver and audit repositories write through, since writes run inside a
// transaction begun here.
func NewAdjustmentService(
	db *sqlx.DB,
	waivers waiverStore,
	penalties penaltyReader,
	teachers teacherReader,
	absence absenceComputer,
	lateness latenessComputer,
	audits auditWriter,
	policies policyResolver,
	auditDetailLimit int,
	validate *validator.Validate,
	logger *zap.Logger,
) *AdjustmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditDetailLimit <= 0 {
		auditDetailLimit = 2000
	}
	return &AdjustmentService{
		db:               db,
		waivers:          waivers,
		penalties:        penalties,
		teachers:         teachers,
		absence:          absence,
		lateness:         lateness,
		audits:           audits,
		policies:         policies,
		auditDetailLimit: auditDetailLimit,
		validator:        validate,
		logger:           logger,
	}
}

// ApplyAdjustment validates and executes one adjustment run on behalf of the
// authenticated admin. Individual per-date write failures are logged and
// skipped; only structural failures (bad input, unknown teachers, transaction
// errors) fail the whole run.
func (s *AdjustmentService) ApplyAdjustment(ctx context.Context, claims *models.JWTClaims, req AdjustmentRequest) (*AdjustmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid adjustment payload")
	}
	from, err := models.ParseBusinessDate(req.DateRange.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	to, err := models.ParseBusinessDate(req.DateRange.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if from.After(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date is after end date")
	}

	teachers, err := s.teachers.ListByIDs(ctx, claims.SchoolID, req.TeacherIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	if len(teachers) != len(uniqueStrings(req.TeacherIDs)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "one or more teachers do not belong to this school")
	}

	policy, err := s.policies.Resolve(ctx, claims.SchoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve deduction policy")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	records := 0
	total := decimal.Zero
	affected := 0

	for _, teacher := range teachers {
		var teacherRecords int
		var teacherTotal decimal.Decimal
		switch req.AdjustmentType {
		case AdjustmentWaiveAbsence:
			teacherRecords, teacherTotal, err = s.waiveAbsences(ctx, tx, claims, teacher.ID, from, to, policy, req)
		case AdjustmentWaiveLateness:
			teacherRecords, teacherTotal, err = s.waiveLateness(ctx, tx, claims, teacher.ID, from, to, policy, req)
		}
		if err != nil {
			return nil, err
		}
		records += teacherRecords
		total = total.Add(teacherTotal)
		if teacherRecords > 0 {
			affected++
		}
	}

	if err := s.writeAudit(ctx, tx, claims, req, from, to, records, total); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record audit entry")
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit adjustment")
	}

	s.logger.Info("payroll adjustment applied",
		zap.String("school_id", claims.SchoolID),
		zap.String("adjustment_type", req.AdjustmentType),
		zap.Int("records_affected", records),
		zap.String("total_amount_waived", total.String()),
		zap.Int("affected_teachers", affected))

	return &AdjustmentResult{
		Success:         true,
		Message:         fmt.Sprintf("%d deduction(s) waived", records),
		RecordsAffected: records,
		FinancialImpact: FinancialImpact{TotalAmountWaived: total, AffectedTeachers: affected},
	}, nil
}

// waiveAbsences covers both sources of absence deductions for one teacher:
// manually entered penalty rows and deductions recomputed from attendance
// data. Dates already waived are skipped so reruns do not double-count.
func (s *AdjustmentService) waiveAbsences(ctx context.Context, tx *sqlx.Tx, claims *models.JWTClaims, teacherID string, from, to models.BusinessDate, policy models.DeductionPolicy, req AdjustmentRequest) (int, decimal.Decimal, error) {
	waived, err := s.waivers.ExistingDates(ctx, tx, claims.SchoolID, teacherID, models.DeductionAbsence, from, to)
	if err != nil {
		return 0, decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing waivers")
	}

	records := 0
	total := decimal.Zero

	penalties, err := s.penalties.ListForTeacherBetween(ctx, claims.SchoolID, teacherID, from, to)
	if err != nil {
		return 0, decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence penalties")
	}
	for _, penalty := range penalties {
		if _, ok := waived[penalty.Date]; ok {
			continue
		}
		inserted, amount, err := s.upsertWaiver(ctx, tx, claims, teacherID, models.DeductionAbsence, penalty.Date, penalty.Amount, req.Reason)
		if err != nil {
			continue
		}
		waived[penalty.Date] = struct{}{}
		if inserted {
			records++
		}
		total = total.Add(amount)
	}

	computed, err := s.absence.ComputeForTeacher(ctx, teacherID, from, to, policy, req.StudentIDs)
	if err != nil {
		return 0, decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute absences")
	}
	for _, entry := range computed {
		if _, ok := waived[entry.Date]; ok {
			continue
		}
		reason := req.Reason
		if entry.Breakdown != "" {
			reason = fmt.Sprintf("%s [%s]", req.Reason, entry.Breakdown)
		}
		inserted, amount, err := s.upsertWaiver(ctx, tx, claims, teacherID, models.DeductionAbsence, entry.Date, entry.Total, reason)
		if err != nil {
			continue
		}
		waived[entry.Date] = struct{}{}
		if inserted {
			records++
		}
		total = total.Add(amount)
	}
	return records, total, nil
}

// waiveLateness recomputes lateness deductions and bulk-inserts waivers for
// the dates not already covered.
func (s *AdjustmentService) waiveLateness(ctx context.Context, tx *sqlx.Tx, claims *models.JWTClaims, teacherID string, from, to models.BusinessDate, policy models.DeductionPolicy, req AdjustmentRequest) (int, decimal.Decimal, error) {
	waived, err := s.waivers.ExistingDates(ctx, tx, claims.SchoolID, teacherID, models.DeductionLateness, from, to)
	if err != nil {
		return 0, decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing waivers")
	}

	computed, err := s.lateness.ComputeForTeacher(ctx, teacherID, from, to, policy, req.TimeSlots)
	if err != nil {
		return 0, decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute lateness")
	}

	batch := make([]models.DeductionWaiver, 0, len(computed))
	for _, entry := range computed {
		if _, ok := waived[entry.Date]; ok {
			continue
		}
		reason := req.Reason
		if entry.Breakdown != "" {
			reason = fmt.Sprintf("%s [%s]", req.Reason, entry.Breakdown)
		}
		adminID := claims.UserID
		batch = append(batch, models.DeductionWaiver{
			SchoolID:       claims.SchoolID,
			TeacherID:      teacherID,
			DeductionType:  models.DeductionLateness,
			DeductionDate:  entry.Date,
			OriginalAmount: entry.Total,
			Reason:         reason,
			AdminID:        adminID,
		})
	}

	amounts, err := s.waivers.InsertSkipDuplicates(ctx, tx, batch)
	if err != nil {
		return 0, decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert lateness waivers")
	}
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return len(amounts), total, nil
}

// upsertWaiver writes one waiver row. A duplicate-key result means another
// run already waived the date, which counts as success but not as a new
// record. Other errors are logged and reported so the caller skips the date.
func (s *AdjustmentService) upsertWaiver(ctx context.Context, tx *sqlx.Tx, claims *models.JWTClaims, teacherID string, dtype models.DeductionType, date models.BusinessDate, amount decimal.Decimal, reason string) (bool, decimal.Decimal, error) {
	waiver := &models.DeductionWaiver{
		SchoolID:       claims.SchoolID,
		TeacherID:      teacherID,
		DeductionType:  dtype,
		DeductionDate:  date,
		OriginalAmount: amount,
		Reason:         reason,
		AdminID:        claims.UserID,
	}
	inserted, err := s.waivers.Upsert(ctx, tx, waiver)
	if err != nil {
		if errors.Is(err, appErrors.ErrDuplicateKey) {
			return false, decimal.Zero, nil
		}
		s.logger.Error("failed to write waiver, skipping date",
			zap.String("teacher_id", teacherID),
			zap.String("deduction_type", string(dtype)),
			zap.String("date", date.String()),
			zap.Error(err))
		return false, decimal.Zero, err
	}
	return inserted, amount, nil
}

func (s *AdjustmentService) writeAudit(ctx context.Context, tx *sqlx.Tx, claims *models.JWTClaims, req AdjustmentRequest, from, to models.BusinessDate, records int, total decimal.Decimal) error {
	detail := map[string]interface{}{
		"adjustment_type":     req.AdjustmentType,
		"start_date":          from.String(),
		"end_date":            to.String(),
		"teacher_ids":         req.TeacherIDs,
		"time_slots":          req.TimeSlots,
		"student_ids":         req.StudentIDs,
		"reason":              truncate(req.Reason, s.auditDetailLimit),
		"records_affected":    records,
		"total_amount_waived": total.String(),
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}
	userID := claims.UserID
	return s.audits.CreateIn(ctx, tx, &models.AuditLog{
		UserID:    &userID,
		Action:    models.AuditActionPayrollAdjustment,
		Resource:  "payroll_adjustments",
		NewValues: payload,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func truncate(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
