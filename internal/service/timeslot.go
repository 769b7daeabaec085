package service

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimeSlot extracts the scheduled start time from a time-slot string.
// Both 12-hour ("04:30 PM", "4:30pm") and 24-hour ("16:30") forms are
// accepted; ranges ("04:30 PM - 05:00 PM") use the left side.
func ParseTimeSlot(slot string) (hour, minute int, err error) {
	raw := strings.TrimSpace(slot)
	if raw == "" {
		return 0, 0, fmt.Errorf("empty time slot")
	}
	for _, sep := range []string{" - ", "-", "–", " to "} {
		if idx := strings.Index(raw, sep); idx > 0 {
			raw = strings.TrimSpace(raw[:idx])
			break
		}
	}

	upper := strings.ToUpper(raw)
	meridiem := ""
	for _, suffix := range []string{"AM", "PM", "A.M.", "P.M."} {
		if strings.HasSuffix(upper, suffix) {
			meridiem = strings.Trim(suffix, ".")
			upper = strings.TrimSpace(strings.TrimSuffix(upper, suffix))
			break
		}
	}

	clock := strings.Split(upper, ":")
	if len(clock) < 2 {
		return 0, 0, fmt.Errorf("malformed time slot %q", slot)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(clock[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed hour in time slot %q", slot)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(clock[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed minute in time slot %q", slot)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute out of range in time slot %q", slot)
	}

	switch meridiem {
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("hour out of range in time slot %q", slot)
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("hour out of range in time slot %q", slot)
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour < 0 || hour > 23 {
			return 0, 0, fmt.Errorf("hour out of range in time slot %q", slot)
		}
	}
	return hour, minute, nil
}
