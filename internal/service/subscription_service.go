package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

type subscriptionStore interface {
	FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*models.StudentSubscription, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.StudentSubscription, error)
	Upsert(ctx context.Context, sub *models.StudentSubscription) error
}

type studentReader interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
}

type billingProvider interface {
	CheckoutSession(ctx context.Context, sessionID string) (*models.ProviderSession, error)
	Subscription(ctx context.Context, subscriptionID string) (*models.ProviderSubscription, error)
	RecentSubscriptionsForCustomer(ctx context.Context, customerID string) ([]models.ProviderSubscription, error)
	RecentSubscriptions(ctx context.Context) ([]models.ProviderSubscription, error)
}

type auditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// FinalizeSubscriptionRequest completes a checkout by linking the resulting
// provider subscription to a local student. SessionID may be empty for
// payment-link flows; attribution then falls back to searching recently
// created provider subscriptions.
type FinalizeSubscriptionRequest struct {
	SessionID string `json:"sessionId"`
	StudentID int64  `json:"studentId" validate:"required,gt=0"`
	PackageID string `json:"packageId"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// FinalizeResult reports whether the provider subscription was verified and
// whether the local link was written.
type FinalizeResult struct {
	Verified     bool                        `json:"verified"`
	Finalized    bool                        `json:"finalized"`
	Subscription *models.StudentSubscription `json:"subscription,omitempty"`
}

// SubscriptionService guards the link between provider subscriptions and
// students. Its rule is refuse-on-ambiguity: a link is written only when
// exactly one subscription can be attributed to the checkout session and
// nothing contradicts the claimed student.
type SubscriptionService struct {
	subs      subscriptionStore
	students  studentReader
	provider  billingProvider
	audits    auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubscriptionService constructs the service.
func NewSubscriptionService(subs subscriptionStore, students studentReader, provider billingProvider, audits auditRecorder, validate *validator.Validate, logger *zap.Logger) *SubscriptionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{subs: subs, students: students, provider: provider, audits: audits, validator: validate, logger: logger}
}

// Finalize resolves the checkout (or a recent provider subscription when no
// session id is available) to a single provider subscription and writes the
// student link. It never re-points an existing link at a different student.
func (s *SubscriptionService) Finalize(ctx context.Context, claims *models.JWTClaims, req FinalizeSubscriptionRequest) (*FinalizeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid finalize payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.SchoolID != claims.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to a different school")
	}

	var sub *models.ProviderSubscription
	if req.SessionID != "" {
		session, err := s.provider.CheckoutSession(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		sub, err = s.resolveSubscription(ctx, session)
		if err != nil {
			return nil, err
		}
	} else {
		sub, err = s.searchRecentSubscription(ctx, claims, req, student)
		if err != nil {
			return nil, err
		}
	}

	if metaStudent, ok := sub.Metadata[models.ProviderMetaStudentID]; ok && metaStudent != "" {
		if metaStudent != strconv.FormatInt(req.StudentID, 10) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subscription metadata names a different student")
		}
	}
	if metaSchool, ok := sub.Metadata[models.ProviderMetaSchoolID]; ok && metaSchool != "" && metaSchool != claims.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subscription belongs to a different school")
	}

	existing, err := s.subs.FindByProviderSubscriptionID(ctx, sub.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing link")
	}
	if existing != nil && existing.StudentID != req.StudentID {
		return nil, appErrors.ErrSubscriptionTaken
	}

	packageID := req.PackageID
	if packageID == "" {
		packageID = sub.Metadata[models.ProviderMetaPackageID]
	}

	link := &models.StudentSubscription{
		SchoolID:               claims.SchoolID,
		StudentID:              req.StudentID,
		ProviderSubscriptionID: sub.ID,
		ProviderCustomerID:     sub.CustomerID,
		PackageID:              packageID,
		Status:                 sub.Status,
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		link.CurrentPeriodEnd = &end
	}
	if existing != nil {
		link.ID = existing.ID
		link.CreatedAt = existing.CreatedAt
	}

	if err := s.subs.Upsert(ctx, link); err != nil {
		if errors.Is(err, appErrors.ErrSubscriptionTaken) {
			return nil, appErrors.ErrSubscriptionTaken
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store subscription link")
	}

	s.recordAudit(ctx, claims, req, link)
	return &FinalizeResult{Verified: true, Finalized: true, Subscription: link}, nil
}

// searchRecentSubscription attributes a subscription without a checkout
// session: recently created provider subscriptions are matched by student
// metadata, package metadata or the student's billing email. Anything other
// than exactly one match is refused.
func (s *SubscriptionService) searchRecentSubscription(ctx context.Context, claims *models.JWTClaims, req FinalizeSubscriptionRequest, student *models.Student) (*models.ProviderSubscription, error) {
	recent, err := s.provider.RecentSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	wantStudent := strconv.FormatInt(req.StudentID, 10)
	var matches []models.ProviderSubscription
	for _, candidate := range recent {
		if metaSchool := candidate.Metadata[models.ProviderMetaSchoolID]; metaSchool != "" && metaSchool != claims.SchoolID {
			continue
		}
		if metaStudent := candidate.Metadata[models.ProviderMetaStudentID]; metaStudent != "" {
			if metaStudent == wantStudent {
				matches = append(matches, candidate)
			}
			continue
		}
		if req.PackageID != "" && candidate.Metadata[models.ProviderMetaPackageID] == req.PackageID {
			matches = append(matches, candidate)
			continue
		}
		if student.Email != "" && candidate.CustomerEmail == student.Email {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no recent subscription matches this student")
	case 1:
		return &matches[0], nil
	default:
		s.logger.Warn("ambiguous subscription attribution, refusing to link",
			zap.Int64("student_id", req.StudentID),
			zap.Int("candidates", len(matches)))
		return nil, appErrors.Clone(appErrors.ErrConflict, "multiple recent subscriptions match this student")
	}
}

// resolveSubscription attributes exactly one subscription to the session. The
// session's own subscription reference wins; otherwise the customer's recent
// subscriptions are searched and anything other than a single candidate is
// refused.
func (s *SubscriptionService) resolveSubscription(ctx context.Context, session *models.ProviderSession) (*models.ProviderSubscription, error) {
	if session.SubscriptionID != "" {
		return s.provider.Subscription(ctx, session.SubscriptionID)
	}
	if session.CustomerID == "" {
		return nil, appErrors.Clone(appErrors.ErrProvider, "checkout session has no subscription or customer")
	}

	candidates, err := s.provider.RecentSubscriptionsForCustomer(ctx, session.CustomerID)
	if err != nil {
		return nil, err
	}
	switch len(candidates) {
	case 0:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no subscription found for checkout session")
	case 1:
		return &candidates[0], nil
	default:
		s.logger.Warn("ambiguous subscription attribution, refusing to link",
			zap.String("session_id", session.ID),
			zap.String("customer_id", session.CustomerID),
			zap.Int("candidates", len(candidates)))
		return nil, appErrors.Clone(appErrors.ErrConflict, "multiple recent subscriptions match this checkout session")
	}
}

// ListForStudent returns a student's subscription links after an ownership
// check against the caller's school.
func (s *SubscriptionService) ListForStudent(ctx context.Context, claims *models.JWTClaims, studentID int64) ([]models.StudentSubscription, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.SchoolID != claims.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to a different school")
	}
	return s.subs.ListByStudent(ctx, studentID)
}

func (s *SubscriptionService) recordAudit(ctx context.Context, claims *models.JWTClaims, req FinalizeSubscriptionRequest, link *models.StudentSubscription) {
	payload, err := json.Marshal(map[string]interface{}{
		"session_id":               req.SessionID,
		"student_id":               req.StudentID,
		"provider_subscription_id": link.ProviderSubscriptionID,
		"status":                   link.Status,
	})
	if err != nil {
		s.logger.Warn("failed to marshal subscription audit detail", zap.Error(err))
		return
	}
	userID := claims.UserID
	resourceID := link.ProviderSubscriptionID
	if err := s.audits.Create(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionSubscriptionLink,
		Resource:   "student_subscriptions",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record subscription audit", zap.Error(err))
	}
}
