package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeSlot(t *testing.T) {
	cases := []struct {
		raw        string
		hour, mins int
	}{
		{"04:30 PM", 16, 30},
		{"4:30pm", 16, 30},
		{"12:00 AM", 0, 0},
		{"12:15 PM", 12, 15},
		{"16:30", 16, 30},
		{"09:05", 9, 5},
		{"04:30 PM - 05:00 PM", 16, 30},
		{"8:00 AM to 9:00 AM", 8, 0},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			hour, mins, err := ParseTimeSlot(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.hour, hour)
			assert.Equal(t, tc.mins, mins)
		})
	}
}

func TestParseTimeSlotRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "evening", "25:00", "13:00 PM", "10:75"} {
		t.Run(raw, func(t *testing.T) {
			_, _, err := ParseTimeSlot(raw)
			assert.Error(t, err)
		})
	}
}
