package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talimhub/school-ops-api/internal/models"
)

type assignmentReaderStub struct {
	students    []models.Student
	assignments []models.TeacherAssignment
	events      []models.TeacherChangeEvent
}

func (s assignmentReaderStub) ListForTeacherOverlapping(ctx context.Context, teacherID string, from, to time.Time) ([]models.TeacherAssignment, error) {
	return s.assignments, nil
}

func (s assignmentReaderStub) StudentsForTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Student, error) {
	return s.students, nil
}

func (s assignmentReaderStub) ChangeEventsForStudents(ctx context.Context, studentIDs []int64) ([]models.TeacherChangeEvent, error) {
	return s.events, nil
}

type sessionLinkReaderStub struct {
	links      []models.SessionLink
	hasHistory bool
}

func (s sessionLinkReaderStub) ListByTeacherBetween(ctx context.Context, teacherID string, from, to time.Time) ([]models.SessionLink, error) {
	return s.links, nil
}

func (s sessionLinkReaderStub) HasHistory(ctx context.Context, studentID int64) (bool, error) {
	return s.hasHistory, nil
}

type attendanceReaderStub struct {
	records []models.AttendanceRecord
}

func (s attendanceReaderStub) ListForStudentsBetween(ctx context.Context, studentIDs []int64, from, to models.BusinessDate) ([]models.AttendanceRecord, error) {
	return s.records, nil
}

func testPolicy() models.DeductionPolicy {
	return models.DeductionPolicy{
		Timezone:       "UTC",
		DefaultAbsence: decimal.NewFromInt(25),
		Rates: map[string]models.PackageRate{
			"premium": {PackageName: "premium", AbsenceBase: decimal.NewFromInt(40), LatenessBase: decimal.NewFromInt(100)},
		},
		Tiers: []models.LatenessTier{
			{StartMinute: 5, EndMinute: 15, Percent: 10},
			{StartMinute: 16, EndMinute: 30, Percent: 25},
			{StartMinute: 31, EndMinute: 600, Percent: 50},
		},
	}
}

func openAssignment(teacherID string, studentID int64, from string) models.TeacherAssignment {
	start, _ := time.Parse("2006-01-02", from)
	return models.TeacherAssignment{TeacherID: teacherID, StudentID: studentID, OccupiedAt: start}
}

func TestAbsenceComputeMWFStudent(t *testing.T) {
	svc := NewAbsenceService(
		assignmentReaderStub{
			students:    []models.Student{{ID: 7, FullName: "Amina", PackageName: "basic", DayPackage: "MWF"}},
			assignments: []models.TeacherAssignment{openAssignment("t1", 7, "2026-01-01")},
		},
		sessionLinkReaderStub{},
		attendanceReaderStub{},
		nil,
	)

	// 2026-05-04 is a Monday, 2026-05-10 a Sunday.
	results, err := svc.ComputeForTeacher(context.Background(), "t1",
		mustDate(t, "2026-05-04"), mustDate(t, "2026-05-10"), testPolicy(), nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, mustDate(t, "2026-05-04"), results[0].Date)
	assert.Equal(t, mustDate(t, "2026-05-06"), results[1].Date)
	assert.Equal(t, mustDate(t, "2026-05-08"), results[2].Date)
	for _, entry := range results {
		assert.True(t, entry.Total.Equal(decimal.NewFromInt(25)), "got %s", entry.Total)
		assert.Contains(t, entry.Breakdown, "Amina (#7)")
	}
}

func TestAbsenceComputeSkipsDay31(t *testing.T) {
	svc := NewAbsenceService(
		assignmentReaderStub{
			students:    []models.Student{{ID: 7, FullName: "Amina", DayPackage: "All Days"}},
			assignments: []models.TeacherAssignment{openAssignment("t1", 7, "2026-01-01")},
		},
		sessionLinkReaderStub{},
		attendanceReaderStub{},
		nil,
	)

	// 2026-07-30 is a Thursday, 2026-07-31 a Friday.
	results, err := svc.ComputeForTeacher(context.Background(), "t1",
		mustDate(t, "2026-07-30"), mustDate(t, "2026-07-31"), testPolicy(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, mustDate(t, "2026-07-30"), results[0].Date)
}

func TestAbsenceComputeSundayToggle(t *testing.T) {
	stub := assignmentReaderStub{
		students:    []models.Student{{ID: 7, FullName: "Amina", DayPackage: "All Days"}},
		assignments: []models.TeacherAssignment{openAssignment("t1", 7, "2026-01-01")},
	}
	svc := NewAbsenceService(stub, sessionLinkReaderStub{}, attendanceReaderStub{}, nil)

	sunday := mustDate(t, "2026-05-10")

	results, err := svc.ComputeForTeacher(context.Background(), "t1", sunday, sunday, testPolicy(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	policy := testPolicy()
	policy.IncludeSundays = true
	results, err = svc.ComputeForTeacher(context.Background(), "t1", sunday, sunday, policy, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestAbsenceComputeSessionLinkCountsAsAttendance(t *testing.T) {
	day := mustDate(t, "2026-05-04")
	svc := NewAbsenceService(
		assignmentReaderStub{
			students:    []models.Student{{ID: 7, FullName: "Amina", DayPackage: "MWF"}},
			assignments: []models.TeacherAssignment{openAssignment("t1", 7, "2026-01-01")},
		},
		sessionLinkReaderStub{links: []models.SessionLink{
			{TeacherID: "t1", StudentID: 7, SentAt: day.Time(time.UTC).Add(16 * time.Hour)},
		}},
		attendanceReaderStub{},
		nil,
	)

	results, err := svc.ComputeForTeacher(context.Background(), "t1", day, day, testPolicy(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAbsenceComputePermissionSuppressesAbsence(t *testing.T) {
	day := mustDate(t, "2026-05-04")
	svc := NewAbsenceService(
		assignmentReaderStub{
			students:    []models.Student{{ID: 7, FullName: "Amina", DayPackage: "MWF"}},
			assignments: []models.TeacherAssignment{openAssignment("t1", 7, "2026-01-01")},
		},
		sessionLinkReaderStub{},
		attendanceReaderStub{records: []models.AttendanceRecord{
			{StudentID: 7, Date: day, Status: models.AttendancePermission},
		}},
		nil,
	)

	results, err := svc.ComputeForTeacher(context.Background(), "t1", day, day, testPolicy(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAbsenceComputePackageRateOverridesDefault(t *testing.T) {
	day := mustDate(t, "2026-05-04")
	svc := NewAbsenceService(
		assignmentReaderStub{
			students:    []models.Student{{ID: 7, FullName: "Amina", PackageName: "premium", DayPackage: "MWF"}},
			assignments: []models.TeacherAssignment{openAssignment("t1", 7, "2026-01-01")},
		},
		sessionLinkReaderStub{},
		attendanceReaderStub{},
		nil,
	)

	results, err := svc.ComputeForTeacher(context.Background(), "t1", day, day, testPolicy(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Total.Equal(decimal.NewFromInt(40)), "got %s", results[0].Total)
}

func TestAbsenceComputeWeekdayFallbackWithHistory(t *testing.T) {
	svc := NewAbsenceService(
		assignmentReaderStub{
			students:    []models.Student{{ID: 7, FullName: "Amina", DayPackage: "see notes"}},
			assignments: []models.TeacherAssignment{openAssignment("t1", 7, "2026-01-01")},
		},
		sessionLinkReaderStub{hasHistory: true},
		attendanceReaderStub{},
		nil,
	)

	// Monday through Sunday; fallback schedules Monday-Friday only.
	results, err := svc.ComputeForTeacher(context.Background(), "t1",
		mustDate(t, "2026-05-04"), mustDate(t, "2026-05-10"), testPolicy(), nil)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestAbsenceComputeNoFallbackWithoutHistory(t *testing.T) {
	svc := NewAbsenceService(
		assignmentReaderStub{
			students:    []models.Student{{ID: 7, FullName: "Amina", DayPackage: "see notes"}},
			assignments: []models.TeacherAssignment{openAssignment("t1", 7, "2026-01-01")},
		},
		sessionLinkReaderStub{hasHistory: false},
		attendanceReaderStub{},
		nil,
	)

	results, err := svc.ComputeForTeacher(context.Background(), "t1",
		mustDate(t, "2026-05-04"), mustDate(t, "2026-05-10"), testPolicy(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAbsenceComputeStudentFilter(t *testing.T) {
	day := mustDate(t, "2026-05-04")
	stub := assignmentReaderStub{
		students: []models.Student{
			{ID: 7, FullName: "Amina", DayPackage: "MWF"},
			{ID: 8, FullName: "Bilal", DayPackage: "MWF"},
		},
		assignments: []models.TeacherAssignment{
			openAssignment("t1", 7, "2026-01-01"),
			openAssignment("t1", 8, "2026-01-01"),
		},
	}
	svc := NewAbsenceService(stub, sessionLinkReaderStub{}, attendanceReaderStub{}, nil)

	results, err := svc.ComputeForTeacher(context.Background(), "t1", day, day, testPolicy(), []string{"8"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Breakdown, "Bilal")
	assert.NotContains(t, results[0].Breakdown, "Amina")
}

func TestAbsenceComputeRejectsInvertedRange(t *testing.T) {
	svc := NewAbsenceService(assignmentReaderStub{}, sessionLinkReaderStub{}, attendanceReaderStub{}, nil)
	_, err := svc.ComputeForTeacher(context.Background(), "t1",
		mustDate(t, "2026-05-10"), mustDate(t, "2026-05-04"), testPolicy(), nil)
	assert.Error(t, err)
}
