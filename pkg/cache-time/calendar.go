package cachetime

import (
	"fmt"
	"time"
)

// clock is a time of day shared by the calendar policies.
type clock struct {
	hour, minute, second int
	// nil means the location of the reference instant
	loc *time.Location
}

func (c clock) in(ref time.Time) time.Time {
	if c.loc != nil {
		return ref.In(c.loc)
	}
	return ref
}

func (c clock) on(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, c.hour, c.minute, c.second, 0, loc)
}

// NextTimeOfDay expires at the next occurrence of a time of day.
// A reference instant exactly at that time rolls to the following day.
type NextTimeOfDay struct {
	clock
}

func NewNextTimeOfDay(hour, minute, second int, loc *time.Location) (NextTimeOfDay, error) {
	if err := validateClock(hour, minute, second); err != nil {
		return NextTimeOfDay{}, err
	}
	return NextTimeOfDay{clock{hour, minute, second, loc}}, nil
}

func (p NextTimeOfDay) Compute(ref time.Time) CacheTime {
	local := p.in(ref)
	target := p.on(local.Year(), local.Month(), local.Day(), local.Location())
	if !target.After(ref) {
		target = target.AddDate(0, 0, 1)
	}
	return between(ref, target)
}

// NextDayOfMonth expires at the next occurrence of a day of the month.
// Months without that day are skipped, so day 31 asked in April lands on May 31.
type NextDayOfMonth struct {
	clock
	day int
}

func NewNextDayOfMonth(day, hour, minute, second int, loc *time.Location) (NextDayOfMonth, error) {
	if day < 1 || day > 31 {
		return NextDayOfMonth{}, fmt.Errorf("%w: day of month %d", ErrInvalidSchedule, day)
	}
	if err := validateClock(hour, minute, second); err != nil {
		return NextDayOfMonth{}, err
	}
	return NextDayOfMonth{clock: clock{hour, minute, second, loc}, day: day}, nil
}

func (p NextDayOfMonth) Compute(ref time.Time) CacheTime {
	local := p.in(ref)
	// every pair of consecutive months has a 31st, so this terminates quickly
	for i := 0; ; i++ {
		first := time.Date(local.Year(), local.Month()+time.Month(i), 1, 0, 0, 0, 0, local.Location())
		if daysIn(first.Year(), first.Month()) < p.day {
			continue
		}
		target := p.on(first.Year(), first.Month(), p.day, local.Location())
		if target.After(ref) {
			return between(ref, target)
		}
	}
}

// NextMonthDay expires at the next occurrence of a month and day.
// February 29 only matches leap years.
type NextMonthDay struct {
	clock
	month time.Month
	day   int
}

func NewNextMonthDay(month time.Month, day, hour, minute, second int, loc *time.Location) (NextMonthDay, error) {
	// 2000 is a leap year, so February 29 is accepted
	if err := validateMonthDay(month, day, daysIn(2000, month)); err != nil {
		return NextMonthDay{}, err
	}
	if err := validateClock(hour, minute, second); err != nil {
		return NextMonthDay{}, err
	}
	return NextMonthDay{clock: clock{hour, minute, second, loc}, month: month, day: day}, nil
}

func (p NextMonthDay) Compute(ref time.Time) CacheTime {
	local := p.in(ref)
	for year := local.Year(); ; year++ {
		if daysIn(year, p.month) < p.day {
			continue
		}
		target := p.on(year, p.month, p.day, local.Location())
		if target.After(ref) {
			return between(ref, target)
		}
	}
}
