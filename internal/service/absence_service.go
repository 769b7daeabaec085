package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

type assignmentReader interface {
	ListForTeacherOverlapping(ctx context.Context, teacherID string, from, to time.Time) ([]models.TeacherAssignment, error)
	StudentsForTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]models.Student, error)
	ChangeEventsForStudents(ctx context.Context, studentIDs []int64) ([]models.TeacherChangeEvent, error)
}

type sessionLinkReader interface {
	ListByTeacherBetween(ctx context.Context, teacherID string, from, to time.Time) ([]models.SessionLink, error)
	HasHistory(ctx context.Context, studentID int64) (bool, error)
}

type attendanceReader interface {
	ListForStudentsBetween(ctx context.Context, studentIDs []int64, from, to models.BusinessDate) ([]models.AttendanceRecord, error)
}

// AbsenceService derives per-day absence deductions for a teacher from
// assignment history, session-link evidence and explicit attendance
// overrides. All configuration arrives in the DeductionPolicy argument.
type AbsenceService struct {
	assignments assignmentReader
	links       sessionLinkReader
	attendance  attendanceReader
	logger      *zap.Logger
}

// NewAbsenceService constructs the service.
func NewAbsenceService(assignments assignmentReader, links sessionLinkReader, attendance attendanceReader, logger *zap.Logger) *AbsenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AbsenceService{assignments: assignments, links: links, attendance: attendance, logger: logger}
}

// ComputeForTeacher walks every day in [from, to] and returns one entry per
// day with a non-zero absence total. studentFilter optionally restricts the
// computation to students matched by numeric ID or exact full name.
func (s *AbsenceService) ComputeForTeacher(ctx context.Context, teacherID string, from, to models.BusinessDate, policy models.DeductionPolicy, studentFilter []string) ([]models.ComputedAbsence, error) {
	if from.IsZero() || to.IsZero() || from.After(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date range")
	}

	loc := policy.Location()
	rangeStart := from.Time(loc)
	rangeEnd := to.Next().Time(loc).Add(-time.Nanosecond)

	students, err := s.assignments.StudentsForTeacher(ctx, teacherID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	students = filterStudents(students, studentFilter)
	if len(students) == 0 {
		return nil, nil
	}

	studentIDs := make([]int64, len(students))
	for i, st := range students {
		studentIDs[i] = st.ID
	}

	assignments, err := s.assignments.ListForTeacherOverlapping(ctx, teacherID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	events, err := s.assignments.ChangeEventsForStudents(ctx, studentIDs)
	if err != nil {
		return nil, fmt.Errorf("load change events: %w", err)
	}
	responsibility := NewResponsibilityIndex(assignments, events, loc)

	links, err := s.links.ListByTeacherBetween(ctx, teacherID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("load session links: %w", err)
	}
	attended := make(map[int64]map[models.BusinessDate]struct{})
	for _, link := range links {
		day := models.NewBusinessDate(link.SentAt, loc)
		if attended[link.StudentID] == nil {
			attended[link.StudentID] = make(map[models.BusinessDate]struct{})
		}
		attended[link.StudentID][day] = struct{}{}
	}

	records, err := s.attendance.ListForStudentsBetween(ctx, studentIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("load attendance records: %w", err)
	}
	excused := make(map[int64]map[models.BusinessDate]struct{})
	for _, rec := range records {
		if rec.Status != models.AttendancePermission {
			continue
		}
		if excused[rec.StudentID] == nil {
			excused[rec.StudentID] = make(map[models.BusinessDate]struct{})
		}
		excused[rec.StudentID][rec.Date] = struct{}{}
	}

	schedules := make(map[int64]WeekdaySet, len(students))
	for _, st := range students {
		set := ParseDayPackage(st.DayPackage)
		if set.Empty() {
			set = s.scheduleFallback(ctx, st, assignments)
		}
		schedules[st.ID] = set
	}

	var results []models.ComputedAbsence
	for day := from; !day.After(to); day = day.Next() {
		// The 31st of any month is excluded from absence computation; kept
		// for parity with historical payroll runs.
		// TODO: confirm with product whether the day-31 exclusion still applies.
		if day.DayOfMonth() == 31 {
			continue
		}
		if day.Weekday() == time.Sunday && !policy.IncludeSundays {
			continue
		}

		total := decimal.Zero
		var contributors []string
		for _, st := range students {
			if !responsibility.Responsible(teacherID, st.ID, day) {
				continue
			}
			if !schedules[st.ID].Contains(day.Weekday()) {
				continue
			}
			if _, ok := attended[st.ID][day]; ok {
				continue
			}
			if _, ok := excused[st.ID][day]; ok {
				continue
			}
			total = total.Add(policy.AbsenceRate(st.PackageName))
			contributors = append(contributors, fmt.Sprintf("%s (#%d)", st.FullName, st.ID))
		}
		if total.IsPositive() {
			results = append(results, models.ComputedAbsence{
				TeacherID: teacherID,
				Date:      day,
				Total:     total,
				Breakdown: strings.Join(contributors, ", "),
			})
		}
	}
	return results, nil
}

// scheduleFallback handles students whose day package is missing or
// unparseable: if the assignment carries a pattern use that, else assume
// Mon-Fri when session-link history proves the student actually attends.
// The assumption can mask a data-entry error, so it is surfaced as a warning.
func (s *AbsenceService) scheduleFallback(ctx context.Context, st models.Student, assignments []models.TeacherAssignment) WeekdaySet {
	for _, a := range assignments {
		if a.StudentID != st.ID || a.DayPackage == "" {
			continue
		}
		if set := ParseDayPackage(a.DayPackage); !set.Empty() {
			return set
		}
	}
	hasHistory, err := s.links.HasHistory(ctx, st.ID)
	if err != nil {
		s.logger.Warn("failed to check session-link history", zap.Int64("student_id", st.ID), zap.Error(err))
		return WeekdaySet{}
	}
	if !hasHistory {
		return WeekdaySet{}
	}
	s.logger.Warn("student has no parseable day package, assuming weekday schedule",
		zap.Int64("student_id", st.ID),
		zap.String("day_package", st.DayPackage))
	return weekdayFallback()
}

// filterStudents restricts students to those matched by a numeric ID or an
// exact full-name token. An empty filter keeps everyone.
func filterStudents(students []models.Student, filter []string) []models.Student {
	if len(filter) == 0 {
		return students
	}
	kept := students[:0:0]
	for _, st := range students {
		for _, token := range filter {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if id, err := strconv.ParseInt(token, 10, 64); err == nil {
				if id == st.ID {
					kept = append(kept, st)
					break
				}
				continue
			}
			if token == st.FullName {
				kept = append(kept, st)
				break
			}
		}
	}
	return kept
}
