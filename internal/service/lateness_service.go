package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

// LatenessService derives per-day lateness deductions for a teacher from
// session-link send times measured against each student's scheduled slot.
type LatenessService struct {
	assignments assignmentReader
	links       sessionLinkReader
	logger      *zap.Logger
}

// NewLatenessService constructs the service.
func NewLatenessService(assignments assignmentReader, links sessionLinkReader, logger *zap.Logger) *LatenessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LatenessService{assignments: assignments, links: links, logger: logger}
}

// LatenessMinutes measures how late a link was sent relative to the slot's
// scheduled start, rounded to the minute. Early sends are zero.
func LatenessMinutes(sentAt time.Time, day models.BusinessDate, slot string, loc *time.Location) (int, error) {
	hour, minute, err := ParseTimeSlot(slot)
	if err != nil {
		return 0, err
	}
	midnight := day.Time(loc)
	scheduled := time.Date(midnight.Year(), midnight.Month(), midnight.Day(), hour, minute, 0, 0, loc)
	minutes := int(math.Round(sentAt.In(loc).Sub(scheduled).Minutes()))
	if minutes < 0 {
		return 0, nil
	}
	return minutes, nil
}

// LatenessPenalty applies the policy's excused threshold and tier table to a
// lateness measured in minutes, returning the deduction amount and the tier
// percent used (zero when excused).
func LatenessPenalty(policy models.DeductionPolicy, packageName string, minutes int) (decimal.Decimal, int) {
	if minutes <= policy.ExcusedThreshold() {
		return decimal.Zero, 0
	}
	percent := policy.TierPercent(minutes)
	if percent <= 0 {
		return decimal.Zero, 0
	}
	base := policy.LatenessBase(packageName)
	if !base.IsPositive() {
		return decimal.Zero, 0
	}
	amount := base.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100))
	return amount, percent
}

// ComputeForTeacher groups the teacher's session links by business day,
// keeps the earliest link per student per day, and totals the lateness
// penalties. slots optionally restricts the computation to students whose
// scheduled slot matches one of the requested time-slot strings.
func (s *LatenessService) ComputeForTeacher(ctx context.Context, teacherID string, from, to models.BusinessDate, policy models.DeductionPolicy, slots []string) ([]models.ComputedLateness, error) {
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
	byID := make(map[int64]models.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	slotSet := make(map[string]struct{}, len(slots))
	for _, slot := range slots {
		slotSet[strings.TrimSpace(slot)] = struct{}{}
	}

	links, err := s.links.ListByTeacherBetween(ctx, teacherID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("load session links: %w", err)
	}

	type dayStudent struct {
		day     models.BusinessDate
		student int64
	}
	earliest := make(map[dayStudent]models.SessionLink)
	for _, link := range links {
		key := dayStudent{day: models.NewBusinessDate(link.SentAt, loc), student: link.StudentID}
		if existing, ok := earliest[key]; !ok || link.SentAt.Before(existing.SentAt) {
			earliest[key] = link
		}
	}

	totals := make(map[models.BusinessDate]decimal.Decimal)
	details := make(map[models.BusinessDate][]string)
	for key, link := range earliest {
		st, ok := byID[link.StudentID]
		if !ok {
			continue
		}
		if len(slotSet) > 0 {
			if _, ok := slotSet[strings.TrimSpace(st.TimeSlot)]; !ok {
				continue
			}
		}
		minutes, err := LatenessMinutes(link.SentAt, key.day, st.TimeSlot, loc)
		if err != nil {
			s.logger.Warn("unparseable time slot, skipping lateness check",
				zap.Int64("student_id", st.ID),
				zap.String("time_slot", st.TimeSlot))
			continue
		}
		amount, percent := LatenessPenalty(policy, st.PackageName, minutes)
		if !amount.IsPositive() {
			continue
		}
		totals[key.day] = totals[key.day].Add(amount)
		details[key.day] = append(details[key.day],
			fmt.Sprintf("%s (#%d): %dm @%d%%", st.FullName, st.ID, minutes, percent))
	}

	days := make([]models.BusinessDate, 0, len(totals))
	for day := range totals {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return string(days[i]) < string(days[j]) })

	results := make([]models.ComputedLateness, 0, len(days))
	for _, day := range days {
		sort.Strings(details[day])
		results = append(results, models.ComputedLateness{
			TeacherID: teacherID,
			Date:      day,
			Total:     totals[day],
			Breakdown: strings.Join(details[day], ", "),
		})
	}
	return results, nil
}
