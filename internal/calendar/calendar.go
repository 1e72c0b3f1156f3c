// Package calendar provides US market trading-day arithmetic.
package calendar

import "time"

// NextTradingDay returns the first trading day at or after t. If t already
// falls on a weekday that is not a US market holiday, t is returned
// unchanged. The holiday set is finite per year, so the walk terminates.
func NextTradingDay(t time.Time) time.Time {
	for !IsTradingDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// IsTradingDay reports whether t is a weekday that is not a US market holiday.
func IsTradingDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !IsMarketHoliday(t)
}

// IsMarketHoliday reports whether t falls on a US market holiday, including
// the observed weekday when the holiday lands on a weekend (Sat -> Fri,
// Sun -> Mon).
func IsMarketHoliday(t time.Time) bool {
	y := t.Year()

	// Fixed-date holidays, checked with weekend observation. New Year's Day
	// observed on a Friday belongs to the prior year's December, which the
	// +1-year check below covers.
	for _, yr := range []int{y, y + 1} {
		fixed := []time.Time{
			date(yr, time.January, 1),  // New Year's Day
			date(yr, time.July, 4),     // Independence Day
			date(yr, time.December, 25), // Christmas Day
		}
		if yr >= 2022 {
			fixed = append(fixed, date(yr, time.June, 19)) // Juneteenth
		}
		for _, h := range fixed {
			if sameDay(t, observed(h)) {
				return true
			}
		}
	}

	// Floating holidays.
	floating := []time.Time{
		nthWeekday(y, time.January, time.Monday, 3),   // MLK Day
		nthWeekday(y, time.February, time.Monday, 3),  // Washington's Birthday
		easter(y).AddDate(0, 0, -2),                   // Good Friday
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

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// observed shifts a weekend holiday onto the adjacent weekday.
func observed(h time.Time) time.Time {
	switch h.Weekday() {
	case time.Saturday:
		return h.AddDate(0, 0, -1)
	case time.Sunday:
		return h.AddDate(0, 0, 1)
	default:
		return h
	}
}

// nthWeekday returns the nth occurrence of weekday wd in the given month.
func nthWeekday(y int, m time.Month, wd time.Weekday, n int) time.Time {
	t := date(y, m, 1)
	offset := (int(wd) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the final occurrence of weekday wd in the given month.
func lastWeekday(y int, m time.Month, wd time.Weekday) time.Time {
	t := date(y, m+1, 1).AddDate(0, 0, -1)
	offset := (int(t.Weekday()) - int(wd) + 7) % 7
	return t.AddDate(0, 0, -offset)
}

// easter computes Easter Sunday via the anonymous Gregorian algorithm.
func easter(y int) time.Time {
	a := y % 19
	b := y / 100
	c := y % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(y, time.Month(month), day)
}
