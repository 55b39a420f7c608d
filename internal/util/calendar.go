package util

import "time"

// TradingCalendar answers whether a calendar date is an expected US equity
// trading day. It covers weekends and the fixed-date NYSE holidays; the
// validator uses it to tell a data gap from an ordinary market closure.
// Moveable-feast holidays (Thanksgiving, Easter) are handled separately.
type TradingCalendar struct{}

// NewTradingCalendar creates a TradingCalendar.
func NewTradingCalendar() *TradingCalendar {
	return &TradingCalendar{}
}

// IsTradingDay reports whether t falls on an expected trading day.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !tc.isHoliday(t)
}

// TradingDays returns every expected trading day in [start, end], inclusive,
// in ascending order.
func (tc *TradingCalendar) TradingDays(start, end time.Time) []time.Time {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if tc.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// isHoliday covers the NYSE full-day closures. Fixed-date holidays observe
// the nearest weekday when they land on a weekend.
func (tc *TradingCalendar) isHoliday(t time.Time) bool {
	y := t.Year()

	fixed := []time.Time{
		observed(time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)),   // New Year's Day
		observed(time.Date(y, time.June, 19, 0, 0, 0, 0, time.UTC)),     // Juneteenth
		observed(time.Date(y, time.July, 4, 0, 0, 0, 0, time.UTC)),      // Independence Day
		observed(time.Date(y, time.December, 25, 0, 0, 0, 0, time.UTC)), // Christmas
	}
	for _, h := range fixed {
		if sameDay(t, h) {
			return true
		}
	}

	floating := []time.Time{
		nthWeekday(y, time.January, time.Monday, 3),   // MLK Day
		nthWeekday(y, time.February, time.Monday, 3),  // Presidents' Day
		lastWeekday(y, time.May, time.Monday),         // Memorial Day
		nthWeekday(y, time.September, time.Monday, 1), // Labor Day
		nthWeekday(y, time.November, time.Thursday, 4), // Thanksgiving
	}
	for _, h := range floating {
		if sameDay(t, h) {
			return true
		}
	}

	return false
}

// observed shifts a weekend holiday to the nearest weekday: Saturday to
// Friday, Sunday to Monday.
func observed(h time.Time) time.Time {
	switch h.Weekday() {
	case time.Saturday:
		return h.AddDate(0, 0, -1)
	case time.Sunday:
		return h.AddDate(0, 0, 1)
	}
	return h
}

// nthWeekday returns the nth occurrence of the given weekday in a month.
func nthWeekday(year int, month time.Month, day time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(day) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last occurrence of the given weekday in a month.
func lastWeekday(year int, month time.Month, day time.Weekday) time.Time {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(t.Weekday()) - int(day) + 7) % 7
	return t.AddDate(0, 0, -offset)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
