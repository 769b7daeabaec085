package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

type sessionLinkStoreStub struct {
	created []models.SessionLink
	list    []models.SessionLink
	filter  models.SessionLinkFilter
}

func (s *sessionLinkStoreStub) Create(ctx context.Context, link *models.SessionLink) error {
	link.ID = "link-1"
	s.created = append(s.created, *link)
	return nil
}

func (s *sessionLinkStoreStub) List(ctx context.Context, schoolID string, filter models.SessionLinkFilter) ([]models.SessionLink, int, error) {
	s.filter = filter
	return s.list, len(s.list), nil
}

func dispatchRequest() DispatchRequest {
	return DispatchRequest{StudentID: 7, JoinURL: "https://zoom.us/j/123", Topic: "Quran class"}
}

func TestDispatchPersistsLink(t *testing.T) {
	store := &sessionLinkStoreStub{}
	audits := &auditRecorderStub{}
	svc := NewSessionLinkService(store, studentReaderStub{student: activeStudent()}, audits, nil, nil, nil)

	claims := &models.JWTClaims{UserID: "t1", SchoolID: "school-1", Role: models.RoleTeacher}
	link, err := svc.Dispatch(context.Background(), claims, dispatchRequest())
	require.NoError(t, err)
	assert.Equal(t, "t1", link.TeacherID)
	assert.Equal(t, int64(7), link.StudentID)
	assert.False(t, link.SentAt.IsZero())
	require.Len(t, store.created, 1)
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionSessionDispatch, audits.logs[0].Action)
}

func TestDispatchRefusesForeignStudent(t *testing.T) {
	student := activeStudent()
	student.SchoolID = "school-2"
	svc := NewSessionLinkService(&sessionLinkStoreStub{}, studentReaderStub{student: student}, &auditRecorderStub{}, nil, nil, nil)

	claims := &models.JWTClaims{UserID: "t1", SchoolID: "school-1", Role: models.RoleTeacher}
	_, err := svc.Dispatch(context.Background(), claims, dispatchRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDispatchRefusesInactiveStudent(t *testing.T) {
	student := activeStudent()
	student.Active = false
	svc := NewSessionLinkService(&sessionLinkStoreStub{}, studentReaderStub{student: student}, &auditRecorderStub{}, nil, nil, nil)

	claims := &models.JWTClaims{UserID: "t1", SchoolID: "school-1", Role: models.RoleTeacher}
	_, err := svc.Dispatch(context.Background(), claims, dispatchRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDispatchRejectsBadPayload(t *testing.T) {
	svc := NewSessionLinkService(&sessionLinkStoreStub{}, studentReaderStub{student: activeStudent()}, &auditRecorderStub{}, nil, nil, nil)

	claims := &models.JWTClaims{UserID: "t1", SchoolID: "school-1", Role: models.RoleTeacher}
	_, err := svc.Dispatch(context.Background(), claims, DispatchRequest{StudentID: 7, JoinURL: "not a url"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestListScopesTeachersToOwnDispatches(t *testing.T) {
	store := &sessionLinkStoreStub{}
	svc := NewSessionLinkService(store, studentReaderStub{}, &auditRecorderStub{}, nil, nil, nil)

	claims := &models.JWTClaims{UserID: "t1", SchoolID: "school-1", Role: models.RoleTeacher}
	_, _, err := svc.List(context.Background(), claims, models.SessionLinkFilter{TeacherID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, "t1", store.filter.TeacherID)

	admin := &models.JWTClaims{UserID: "a1", SchoolID: "school-1", Role: models.RoleAdmin}
	_, _, err = svc.List(context.Background(), admin, models.SessionLinkFilter{TeacherID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, "t2", store.filter.TeacherID)
}
