package outputcache

import (
	"errors"
	"fmt"
	"time"

	cachetime "github.com/ericselin/outputcache/pkg/cache-time"
)

// Policy configures caching for one route.
// Either the time spans or Until select the expiration, not both.
type Policy struct {
	// Advertised to clients with max-age, truncated to whole seconds.
	ClientTimeSpan time.Duration `yaml:"clientTimeSpan"`
	// How long the response is retained server-side.
	ServerTimeSpan time.Duration `yaml:"serverTimeSpan"`
	MustRevalidate bool          `yaml:"mustRevalidate"`
	// Ignore the query string when deriving the cache key.
	ExcludeQueryFromCacheKey bool `yaml:"excludeQueryFromCacheKey"`
	// Bypass the cache entirely for authenticated requests.
	AnonymousOnly bool `yaml:"anonymousOnly"`
	// Calendar based expiration, in place of the spans.
	Until *cachetime.Schedule `yaml:"until,omitempty"`
}

// For caches on the server for server and lets clients cache for client.
func For(server, client time.Duration) Policy {
	return Policy{ServerTimeSpan: server, ClientTimeSpan: client}
}

// Until caches until a fixed date and time, in local time.
func Until(year int, month time.Month, day, hour, minute int) Policy {
	return Policy{Until: &cachetime.Schedule{
		Kind:   cachetime.KindFixed,
		Year:   year,
		Month:  int(month),
		Day:    day,
		Hour:   hour,
		Minute: minute,
	}}
}

// UntilToday caches until the next occurrence of the time of day.
func UntilToday(hour, minute, second int) Policy {
	return Policy{Until: &cachetime.Schedule{
		Kind:   cachetime.KindTimeOfDay,
		Hour:   hour,
		Minute: minute,
		Second: second,
	}}
}

// UntilThisMonth caches until the start of the next occurrence of the day of month.
func UntilThisMonth(day int) Policy {
	return Policy{Until: &cachetime.Schedule{
		Kind: cachetime.KindDayOfMonth,
		Day:  day,
	}}
}

// UntilThisYear caches until the start of the next occurrence of the date.
func UntilThisYear(month time.Month, day int) Policy {
	return Policy{Until: &cachetime.Schedule{
		Kind:  cachetime.KindMonthDay,
		Month: int(month),
		Day:   day,
	}}
}

var errConflictingExpiration = errors.New("time spans and a schedule cannot both be set")

// Validate reports configuration errors without building anything.
func (p Policy) Validate() error {
	_, err := p.expiration()
	return err
}

func (p Policy) expiration() (cachetime.Policy, error) {
	if p.Until != nil {
		if p.ServerTimeSpan != 0 || p.ClientTimeSpan != 0 {
			return nil, fmt.Errorf("%w: %v", cachetime.ErrInvalidSchedule, errConflictingExpiration)
		}
		policy, err := p.Until.Policy()
		if err != nil {
			return nil, err
		}
		return policy, nil
	}
	policy, err := cachetime.NewRelative(p.ServerTimeSpan, p.ClientTimeSpan)
	if err != nil {
		return nil, err
	}
	return policy, nil
}
