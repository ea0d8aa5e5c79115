// Package cachetime turns a reference instant into the lifetime of a cached
// response: when the stored entry expires, how long the server keeps it and
// the max-age advertised to clients.
package cachetime

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSchedule is returned when expiration parameters are out of range.
var ErrInvalidSchedule = errors.New("invalid expiration schedule")

// CacheTime is the lifetime of a response computed for a single request.
type CacheTime struct {
	// Instant after which the stored entry must not be served.
	AbsoluteExpiration time.Time
	// How long the server retains the entry.
	ServerTimeSpan time.Duration
	// Advertised to clients through Cache-Control max-age.
	ClientTimeSpan time.Duration
}

// Cacheable reports whether an entry with this lifetime is still fresh at now.
func (c CacheTime) Cacheable(now time.Time) bool {
	return c.AbsoluteExpiration.After(now)
}

// Policy computes a CacheTime from a reference instant.
// Implementations are pure and safe for concurrent use.
type Policy interface {
	Compute(ref time.Time) CacheTime
}

// Relative expires a fixed duration after the reference instant.
type Relative struct {
	server time.Duration
	client time.Duration
}

// NewRelative creates a policy retaining entries for server and advertising client to clients.
// A zero server span is allowed and means nothing is retained server-side.
func NewRelative(server, client time.Duration) (Relative, error) {
	if server < 0 || client < 0 {
		return Relative{}, fmt.Errorf("%w: negative time span (server %s, client %s)", ErrInvalidSchedule, server, client)
	}
	return Relative{server: server, client: client}, nil
}

func (p Relative) Compute(ref time.Time) CacheTime {
	return CacheTime{
		AbsoluteExpiration: ref.Add(p.server),
		ServerTimeSpan:     p.server,
		ClientTimeSpan:     p.client,
	}
}

// FixedInstant expires at a literal instant. Unlike the other policies the
// instant may already be in the past, in which case nothing gets stored.
type FixedInstant struct {
	at time.Time
}

func NewFixedInstant(at time.Time) FixedInstant {
	return FixedInstant{at: at}
}

// NewFixedDate creates a FixedInstant from calendar fields in loc (time.Local when nil).
func NewFixedDate(year int, month time.Month, day, hour, minute int, loc *time.Location) (FixedInstant, error) {
	if loc == nil {
		loc = time.Local
	}
	if year < 1 {
		return FixedInstant{}, fmt.Errorf("%w: year %d", ErrInvalidSchedule, year)
	}
	if err := validateMonthDay(month, day, daysIn(year, month)); err != nil {
		return FixedInstant{}, err
	}
	if err := validateClock(hour, minute, 0); err != nil {
		return FixedInstant{}, err
	}
	return FixedInstant{at: time.Date(year, month, day, hour, minute, 0, 0, loc)}, nil
}

func (p FixedInstant) Compute(ref time.Time) CacheTime {
	return between(ref, p.at)
}

// between builds the CacheTime for an expiration at target.
// Client and server spans are the same: the time left until target.
func between(ref, target time.Time) CacheTime {
	span := target.Sub(ref)
	return CacheTime{
		AbsoluteExpiration: target,
		ServerTimeSpan:     span,
		ClientTimeSpan:     span,
	}
}

func validateClock(hour, minute, second int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrInvalidSchedule, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%w: minute %d", ErrInvalidSchedule, minute)
	}
	if second < 0 || second > 59 {
		return fmt.Errorf("%w: second %d", ErrInvalidSchedule, second)
	}
	return nil
}

func validateMonthDay(month time.Month, day, maxDay int) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidSchedule, month)
	}
	if day < 1 || day > maxDay {
		return fmt.Errorf("%w: day %d of %s", ErrInvalidSchedule, day, month)
	}
	return nil
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
