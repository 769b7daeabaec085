package service

import (
	"sort"
	"time"

	"github.com/talimhub/school-ops-api/internal/models"
)

// ResponsibilityIndex answers "was this teacher responsible for this student
// on this date" from preloaded assignment history and the teacher-change
// event log. Change events are authoritative when one exists at or before
// the date; otherwise the raw assignment window decides.
type ResponsibilityIndex struct {
	loc         *time.Location
	events      map[int64][]models.TeacherChangeEvent
	assignments map[int64][]models.TeacherAssignment
}

// NewResponsibilityIndex builds the index. Events may arrive in any order;
// they are sorted by change date per student.
func NewResponsibilityIndex(assignments []models.TeacherAssignment, events []models.TeacherChangeEvent, loc *time.Location) *ResponsibilityIndex {
	if loc == nil {
		loc = time.UTC
	}
	idx := &ResponsibilityIndex{
		loc:         loc,
		events:      make(map[int64][]models.TeacherChangeEvent),
		assignments: make(map[int64][]models.TeacherAssignment),
	}
	for _, ev := range events {
		idx.events[ev.StudentID] = append(idx.events[ev.StudentID], ev)
	}
	for id := range idx.events {
		list := idx.events[id]
		sort.Slice(list, func(i, j int) bool { return list[i].ChangeDate.Before(list[j].ChangeDate) })
		idx.events[id] = list
	}
	for _, a := range assignments {
		idx.assignments[a.StudentID] = append(idx.assignments[a.StudentID], a)
	}
	return idx
}

// Responsible reports whether teacherID was responsible for studentID on the
// given business date.
func (idx *ResponsibilityIndex) Responsible(teacherID string, studentID int64, date models.BusinessDate) bool {
	if events, ok := idx.events[studentID]; ok {
		var latest *models.TeacherChangeEvent
		for i := range events {
			eventDate := models.NewBusinessDate(events[i].ChangeDate, idx.loc)
			if eventDate.After(date) {
				break
			}
			latest = &events[i]
		}
		if latest != nil {
			return latest.NewTeacherID == teacherID
		}
	}

	for _, a := range idx.assignments[studentID] {
		if a.TeacherID != teacherID {
			continue
		}
		start := models.NewBusinessDate(a.OccupiedAt, idx.loc)
		if start.After(date) {
			continue
		}
		if a.EndAt == nil {
			return true
		}
		end := models.NewBusinessDate(*a.EndAt, idx.loc)
		if !date.After(end) {
			return true
		}
	}
	return false
}
