package service

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

type waiverListerStub struct {
	waivers []models.DeductionWaiver
	filter  models.WaiverFilter
}

func (s *waiverListerStub) List(ctx context.Context, filter models.WaiverFilter) ([]models.DeductionWaiver, int, error) {
	s.filter = filter
	return s.waivers, len(s.waivers), nil
}

func (s *waiverListerStub) ListForExport(ctx context.Context, schoolID string, from, to models.BusinessDate) ([]models.DeductionWaiver, error) {
	return s.waivers, nil
}

func sampleWaivers() []models.DeductionWaiver {
	return []models.DeductionWaiver{
		{
			SchoolID:       "school-1",
			TeacherID:      "t1",
			DeductionType:  models.DeductionAbsence,
			DeductionDate:  models.BusinessDate("2026-05-04"),
			OriginalAmount: decimal.NewFromInt(25),
			Reason:         "teacher on approved leave",
			AdminID:        "admin-1",
		},
		{
			SchoolID:       "school-1",
			TeacherID:      "t1",
			DeductionType:  models.DeductionLateness,
			DeductionDate:  models.BusinessDate("2026-05-05"),
			OriginalAmount: decimal.NewFromFloat(12.5),
			Reason:         "zoom outage",
			AdminID:        "admin-1",
		},
	}
}

func TestWaiverListScopesToCallerSchool(t *testing.T) {
	store := &waiverListerStub{waivers: sampleWaivers()}
	svc := NewWaiverService(store, teacherReaderStub{}, nil)

	waivers, total, err := svc.List(context.Background(), adminClaims(), models.WaiverFilter{SchoolID: "school-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, waivers, 2)
	assert.Equal(t, "school-1", store.filter.SchoolID)
}

func TestWaiverListRejectsUnknownType(t *testing.T) {
	svc := NewWaiverService(&waiverListerStub{}, teacherReaderStub{}, nil)

	_, _, err := svc.List(context.Background(), adminClaims(), models.WaiverFilter{DeductionType: "waive_everything"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportPayrollCSVResolvesTeacherNames(t *testing.T) {
	store := &waiverListerStub{waivers: sampleWaivers()}
	teachers := teacherReaderStub{teachers: []models.Teacher{{ID: "t1", FullName: "Ustadh Karim"}}}
	svc := NewWaiverService(store, teachers, nil)

	data, contentType, err := svc.ExportPayroll(context.Background(), adminClaims(),
		models.BusinessDate("2026-05-01"), models.BusinessDate("2026-05-31"), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(data)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Amount Waived")
	assert.Contains(t, lines[1], "Ustadh Karim")
	assert.Contains(t, lines[1], "25.00")
	assert.Contains(t, lines[2], "12.50")
}

func TestExportPayrollPDF(t *testing.T) {
	store := &waiverListerStub{waivers: sampleWaivers()}
	svc := NewWaiverService(store, teacherReaderStub{}, nil)

	data, contentType, err := svc.ExportPayroll(context.Background(), adminClaims(),
		models.BusinessDate("2026-05-01"), models.BusinessDate("2026-05-31"), ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestExportPayrollRejectsBadInput(t *testing.T) {
	svc := NewWaiverService(&waiverListerStub{}, teacherReaderStub{}, nil)

	_, _, err := svc.ExportPayroll(context.Background(), adminClaims(),
		models.BusinessDate("2026-05-31"), models.BusinessDate("2026-05-01"), ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.ExportPayroll(context.Background(), adminClaims(),
		models.BusinessDate("2026-05-01"), models.BusinessDate("2026-05-31"), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
