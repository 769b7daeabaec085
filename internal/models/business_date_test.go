package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusinessDateUsesCanonicalZone(t *testing.T) {
	cairo, err := time.LoadLocation("Africa/Cairo")
	require.NoError(t, err)

	// 23:30 UTC is already the next day in Cairo (UTC+2/+3).
	instant := time.Date(2026, 5, 4, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, BusinessDate("2026-05-05"), NewBusinessDate(instant, cairo))
	assert.Equal(t, BusinessDate("2026-05-04"), NewBusinessDate(instant, time.UTC))
}

func TestParseBusinessDate(t *testing.T) {
	date, err := ParseBusinessDate("2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, "2026-05-04", date.String())

	_, err = ParseBusinessDate("04/05/2026")
	assert.Error(t, err)
	_, err = ParseBusinessDate("")
	assert.Error(t, err)
}

func TestBusinessDateCalendarHelpers(t *testing.T) {
	date := BusinessDate("2026-05-04")
	assert.Equal(t, time.Monday, date.Weekday())
	assert.Equal(t, 4, date.DayOfMonth())
	assert.Equal(t, BusinessDate("2026-05-05"), date.Next())
	assert.True(t, date.Next().After(date))
	assert.False(t, date.After(date))

	// Month rollover.
	assert.Equal(t, BusinessDate("2026-06-01"), BusinessDate("2026-05-31").Next())
}

func TestBusinessDateScan(t *testing.T) {
	var date BusinessDate
	require.NoError(t, date.Scan(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, BusinessDate("2026-05-04"), date)

	require.NoError(t, date.Scan("2026-05-05"))
	assert.Equal(t, BusinessDate("2026-05-05"), date)

	require.NoError(t, date.Scan([]byte("2026-05-06")))
	assert.Equal(t, BusinessDate("2026-05-06"), date)

	require.NoError(t, date.Scan(nil))
	assert.True(t, date.IsZero())

	assert.Error(t, date.Scan(42))
}

func TestBusinessDateValue(t *testing.T) {
	value, err := BusinessDate("2026-05-04").Value()
	require.NoError(t, err)
	assert.Equal(t, "2026-05-04", value)

	value, err = BusinessDate("").Value()
	require.NoError(t, err)
	assert.Nil(t, value)
}
