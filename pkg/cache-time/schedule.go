package cachetime

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindFixed      Kind = "fixed"
	KindTimeOfDay  Kind = "time-of-day"
	KindDayOfMonth Kind = "day-of-month"
	KindMonthDay   Kind = "month-day"
)

// Schedule is the declarative form of a calendar policy, as found in policy files.
// Fields not used by Kind are ignored.
type Schedule struct {
	Kind   Kind `yaml:"kind"`
	Year   int  `yaml:"year,omitempty"`
	Month  int  `yaml:"month,omitempty"`
	Day    int  `yaml:"day,omitempty"`
	Hour   int  `yaml:"hour,omitempty"`
	Minute int  `yaml:"minute,omitempty"`
	Second int  `yaml:"second,omitempty"`
	// IANA zone name, e.g. "Europe/Helsinki". Empty means local time for
	// fixed dates and the request clock's zone otherwise.
	Location string `yaml:"location,omitempty"`
}

// Policy validates the schedule and builds the matching Policy.
func (s Schedule) Policy() (Policy, error) {
	var loc *time.Location
	if s.Location != "" {
		l, err := time.LoadLocation(s.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: location %q: %v", ErrInvalidSchedule, s.Location, err)
		}
		loc = l
	}

	switch s.Kind {
	case KindFixed:
		return NewFixedDate(s.Year, time.Month(s.Month), s.Day, s.Hour, s.Minute, loc)
	case KindTimeOfDay:
		return NewNextTimeOfDay(s.Hour, s.Minute, s.Second, loc)
	case KindDayOfMonth:
		return NewNextDayOfMonth(s.Day, s.Hour, s.Minute, s.Second, loc)
	case KindMonthDay:
		return NewNextMonthDay(time.Month(s.Month), s.Day, s.Hour, s.Minute, s.Second, loc)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, s.Kind)
	}
}
