package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDayPackageFixedTokens(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []time.Weekday
	}{
		{"all days", "All Days", []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}},
		{"mwf", "MWF", []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
		{"tts", "TTS", []time.Weekday{time.Tuesday, time.Thursday, time.Saturday}},
		{"weekdays", "Weekdays", []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}},
		{"explicit list", "Monday, Wednesday & Friday", []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
		{"short names", "mon, tue", []time.Weekday{time.Monday, time.Tuesday}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := ParseDayPackage(tc.raw)
			for _, day := range tc.want {
				assert.True(t, set.Contains(day), "expected %v in set", day)
			}
			assert.Len(t, set, len(tc.want))
		})
	}
}

func TestParseDayPackageUnknownTokenEmptiesSet(t *testing.T) {
	set := ParseDayPackage("Monday, Blursday")
	assert.True(t, set.Empty())
}

func TestParseDayPackageEmpty(t *testing.T) {
	assert.True(t, ParseDayPackage("").Empty())
	assert.True(t, ParseDayPackage("   ").Empty())
}
