package engine

import (
	"time"

	"ReloadPilot/internal/model"
)

// ReferenceHour is the hour of day stored with every eligibility date.
const ReferenceHour = 0

// DateOf truncates t to its calendar date at ReferenceHour.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, ReferenceHour, 0, 0, 0, t.Location())
}

func daysInMonth(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}

// NextCycleStart returns the first allowed day of the month following now.
// A day beyond the end of that month is clamped to its last day.
func NextCycleStart(now time.Time, days model.DayRange) time.Time {
	y, m, _ := now.Date()
	first := time.Date(y, m+1, 1, ReferenceHour, 0, 0, 0, now.Location())
	day := days.Min
	if last := daysInMonth(first.Year(), first.Month(), now.Location()); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return first.AddDate(0, 0, day-1)
}
