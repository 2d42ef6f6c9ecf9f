package market

import (
	"testing"
	"time"

	"papertrade/internal/config"

	"github.com/stretchr/testify/assert"
)

func newTestClock(t *testing.T) (*HoursClock, *time.Location) {
	cfg := config.Market{
		Timezone: "America/New_York",
		Open:     "09:30",
		Close:    "16:00",
	}
	clock, err := NewHoursClock(&cfg)
	assert.NoError(t, err)

	loc, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)
	return clock, loc
}

func TestHoursClock_IsOpen(t *testing.T) {
	clock, loc := newTestClock(t)

	// 2026-03-02 is a Monday.
	cases := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"weekday mid-session", time.Date(2026, 3, 2, 12, 0, 0, 0, loc), true},
		{"open boundary inclusive", time.Date(2026, 3, 2, 9, 30, 0, 0, loc), true},
		{"minute before open", time.Date(2026, 3, 2, 9, 29, 0, 0, loc), false},
		{"close boundary exclusive", time.Date(2026, 3, 2, 16, 0, 0, 0, loc), false},
		{"minute before close", time.Date(2026, 3, 2, 15, 59, 0, 0, loc), true},
		{"saturday", time.Date(2026, 3, 7, 12, 0, 0, 0, loc), false},
		{"sunday", time.Date(2026, 3, 8, 12, 0, 0, 0, loc), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.open, clock.IsOpen(tc.at))
		})
	}
}

func TestHoursClock_ConvertsFromOtherTimezones(t *testing.T) {
	clock, _ := newTestClock(t)

	// 17:00 UTC on a Monday is 12:00 in New York (EST): open.
	utcNoon := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	assert.True(t, clock.IsOpen(utcNoon))

	// 02:00 UTC is 21:00 the previous evening in New York: closed.
	utcNight := time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)
	assert.False(t, clock.IsOpen(utcNight))
}

func TestNewHoursClock_Validation(t *testing.T) {
	_, err := NewHoursClock(&config.Market{Timezone: "Not/AZone", Open: "09:30", Close: "16:00"})
	assert.Error(t, err)

	_, err = NewHoursClock(&config.Market{Timezone: "UTC", Open: "25:00", Close: "16:00"})
	assert.Error(t, err)

	_, err = NewHoursClock(&config.Market{Timezone: "UTC", Open: "nonsense", Close: "16:00"})
	assert.Error(t, err)
}
