package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
	"github.com/talimhub/school-ops-api/pkg/jobs"
)

type sessionLinkStore interface {
	Create(ctx context.Context, link *models.SessionLink) error
	List(ctx context.Context, schoolID string, filter models.SessionLinkFilter) ([]models.SessionLink, int, error)
}

// LinkNotifier delivers a session link to the student out of band (email,
// chat webhook). Delivery failures are retried by the queue; the link row is
// already persisted and counts as attendance either way.
type LinkNotifier interface {
	Notify(ctx context.Context, link models.SessionLink) error
}

// NewDispatchQueue builds the background queue that delivers session links
// through the notifier.
func NewDispatchQueue(notifier LinkNotifier, workers, retries int, logger *zap.Logger) *jobs.Queue[models.SessionLink] {
	return jobs.NewQueue("session-link-dispatch", func(ctx context.Context, job jobs.Job[models.SessionLink]) error {
		return notifier.Notify(ctx, job.Payload)
	}, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
}

// LogNotifier records deliveries in the log. It stands in until an email or
// chat integration is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify implements LinkNotifier.
func (n LogNotifier) Notify(_ context.Context, link models.SessionLink) error {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("session link delivered",
		zap.String("link_id", link.ID),
		zap.Int64("student_id", link.StudentID),
		zap.String("teacher_id", link.TeacherID))
	return nil
}

// DispatchRequest sends one session link.
type DispatchRequest struct {
	StudentID int64  `json:"studentId" validate:"required,gt=0"`
	JoinURL   string `json:"joinUrl" validate:"required,url"`
	Topic     string `json:"topic"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// SessionLinkService records session-link dispatches and hands delivery to a
// background queue. The persisted row is what attendance derivation reads.
type SessionLinkService struct {
	links     sessionLinkStore
	students  studentReader
	audits    auditRecorder
	queue     *jobs.Queue[models.SessionLink]
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionLinkService constructs the service. queue may be nil in tests;
// dispatch then records the link without background delivery.
func NewSessionLinkService(links sessionLinkStore, students studentReader, audits auditRecorder, queue *jobs.Queue[models.SessionLink], validate *validator.Validate, logger *zap.Logger) *SessionLinkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionLinkService{links: links, students: students, audits: audits, queue: queue, validator: validate, logger: logger}
}

// Dispatch validates ownership, persists the link with the current timestamp
// and enqueues delivery.
func (s *SessionLinkService) Dispatch(ctx context.Context, claims *models.JWTClaims, req DispatchRequest) (*models.SessionLink, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dispatch payload")
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
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}

	link := &models.SessionLink{
		SchoolID:  claims.SchoolID,
		TeacherID: claims.UserID,
		StudentID: req.StudentID,
		SentAt:    time.Now().UTC(),
		JoinURL:   req.JoinURL,
		Topic:     req.Topic,
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store session link")
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job[models.SessionLink]{ID: uuid.NewString(), Payload: *link}); err != nil {
			s.logger.Warn("failed to enqueue link delivery",
				zap.String("link_id", link.ID),
				zap.Error(err))
		}
	}

	s.recordAudit(ctx, claims, req, link)
	return link, nil
}

// List returns the school's session links matching the filter.
func (s *SessionLinkService) List(ctx context.Context, claims *models.JWTClaims, filter models.SessionLinkFilter) ([]models.SessionLink, int, error) {
	if claims.Role == models.RoleTeacher {
		// Teachers only see their own dispatches.
		filter.TeacherID = claims.UserID
	}
	return s.links.List(ctx, claims.SchoolID, filter)
}

func (s *SessionLinkService) recordAudit(ctx context.Context, claims *models.JWTClaims, req DispatchRequest, link *models.SessionLink) {
	payload, err := json.Marshal(map[string]interface{}{
		"student_id": req.StudentID,
		"topic":      req.Topic,
		"sent_at":    link.SentAt,
	})
	if err != nil {
		s.logger.Warn("failed to marshal dispatch audit detail", zap.Error(err))
		return
	}
	userID := claims.UserID
	resourceID := link.ID
	if err := s.audits.Create(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionSessionDispatch,
		Resource:   "session_links",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record dispatch audit", zap.Error(err))
	}
}
