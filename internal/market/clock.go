package market

import (
	"fmt"
	"time"

	"papertrade/internal/config"
)

// Clock answers whether the market is open at a given instant. The trading
// core takes it as an injected dependency so tests can use a fixed clock.
type Clock interface {
	Now() time.Time
	IsOpen(t time.Time) bool
}

// HoursClock is a Clock based on a fixed weekday trading window in a single
// exchange timezone. Holidays are not modelled.
type HoursClock struct {
	location  *time.Location
	openHour  int
	openMin   int
	closeHour int
	closeMin  int
}

var _ Clock = (*HoursClock)(nil)

// NewHoursClock builds a clock from the market config. Open and close are
// "HH:MM" strings in the configured timezone.
func NewHoursClock(cfg *config.Market) (*HoursClock, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone %q: %w", cfg.Timezone, err)
	}

	openHour, openMin, err := parseClockTime(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("invalid market open time %q: %w", cfg.Open, err)
	}
	closeHour, closeMin, err := parseClockTime(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("invalid market close time %q: %w", cfg.Close, err)
	}

	return &HoursClock{
		location:  location,
		openHour:  openHour,
		openMin:   openMin,
		closeHour: closeHour,
		closeMin:  closeMin,
	}, nil
}

func parseClockTime(s string) (hour, min int, err error) {
	if _, err = fmt.Sscanf(s, "%d:%d", &hour, &min); err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("out of range")
	}
	return hour, min, nil
}

// Now implements Clock.
func (c *HoursClock) Now() time.Time { return time.Now() }

// IsOpen reports whether t falls inside the trading window on a weekday.
// The open boundary is inclusive, the close boundary exclusive.
func (c *HoursClock) IsOpen(t time.Time) bool {
	local := t.In(c.location)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	open := c.openHour*60 + c.openMin
	close := c.closeHour*60 + c.closeMin
	return minutes >= open && minutes < close
}
