package service

import (
	"strings"
	"time"
)

// WeekdaySet is the set of weekdays on which a session is expected.
type WeekdaySet map[time.Weekday]struct{}

// Contains reports whether the weekday is in the set.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	_, ok := s[day]
	return ok
}

// Empty reports whether no weekday is scheduled.
func (s WeekdaySet) Empty() bool {
	return len(s) == 0
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"tues":      time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"thur":      time.Thursday,
	"thurs":     time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseDayPackage maps a recurring weekly pattern descriptor to the weekdays
// it schedules. Fixed tokens ("All Days", "MWF", "TTS") map to known sets;
// otherwise the pattern is split on commas, slashes and spaces and each part
// must be a weekday name. Unrecognized patterns yield the empty set rather
// than a guess; callers decide on a fallback.
func ParseDayPackage(pattern string) WeekdaySet {
	normalized := strings.ToLower(strings.TrimSpace(pattern))
	switch normalized {
	case "":
		return WeekdaySet{}
	case "all days", "alldays", "everyday", "every day", "daily":
		return weekdays(time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday)
	case "mwf":
		return weekdays(time.Monday, time.Wednesday, time.Friday)
	case "tts":
		return weekdays(time.Tuesday, time.Thursday, time.Saturday)
	case "weekdays":
		return weekdays(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
	case "weekend", "weekends":
		return weekdays(time.Saturday, time.Sunday)
	}

	parts := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ',' || r == '/' || r == '&' || r == ' '
	})
	set := WeekdaySet{}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "and" {
			continue
		}
		day, ok := weekdayNames[part]
		if !ok {
			// One unknown token invalidates the whole pattern.
			return WeekdaySet{}
		}
		set[day] = struct{}{}
	}
	return set
}

func weekdays(days ...time.Weekday) WeekdaySet {
	set := make(WeekdaySet, len(days))
	for _, day := range days {
		set[day] = struct{}{}
	}
	return set
}

// weekdayFallback is assumed when a student has no parseable day package but
// does have session-link history: Monday through Friday.
func weekdayFallback() WeekdaySet {
	return weekdays(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
}
