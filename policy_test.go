package outputcache

import (
	"testing"
	"time"

	cachetime "github.com/ericselin/outputcache/pkg/cache-time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPolicyConstructors(t *testing.T) {
	ref := time.Date(2013, 1, 25, 17, 0, 0, 0, time.Local)

	tests := []struct {
		name   string
		policy Policy
		want   time.Time
	}{
		{"for", For(time.Hour, time.Minute), ref.Add(time.Hour)},
		{"until", Until(2013, time.February, 1, 8, 30), time.Date(2013, 2, 1, 8, 30, 0, 0, time.Local)},
		{"until today", UntilToday(17, 0, 0), time.Date(2013, 1, 26, 17, 0, 0, 0, time.Local)},
		{"until this month", UntilThisMonth(31), time.Date(2013, 1, 31, 0, 0, 0, 0, time.Local)},
		{"until this year", UntilThisYear(time.January, 1), time.Date(2014, 1, 1, 0, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.policy.Validate())
			p, err := tt.policy.expiration()
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(p.Compute(ref).AbsoluteExpiration),
				"want %s, got %s", tt.want, p.Compute(ref).AbsoluteExpiration)
		})
	}
}

func TestPolicyValidate(t *testing.T) {
	conflicting := UntilToday(3, 0, 0)
	conflicting.ServerTimeSpan = time.Hour

	for name, p := range map[string]Policy{
		"negative server": For(-time.Second, time.Second),
		"negative client": For(time.Second, -time.Second),
		"bad hour":        UntilToday(24, 0, 0),
		"bad day":         UntilThisMonth(0),
		"bad date":        Until(2013, time.February, 30, 0, 0),
		"feb 30":          UntilThisYear(time.February, 30),
		"conflicting":     conflicting,
		"unknown kind":    {Until: &cachetime.Schedule{Kind: "weekly"}},
	} {
		assert.ErrorIs(t, p.Validate(), cachetime.ErrInvalidSchedule, name)
	}

	assert.NoError(t, Policy{}.Validate(), "zero policy caches for clients only")
	assert.NoError(t, UntilThisYear(time.February, 29).Validate())
}

func TestPolicyFromYAML(t *testing.T) {
	var policies map[string]Policy
	err := yaml.Unmarshal([]byte(`
/teams:
  serverTimeSpan: 10m
  clientTimeSpan: 1m
  mustRevalidate: true
  excludeQueryFromCacheKey: true
/me:
  clientTimeSpan: 30s
  serverTimeSpan: 30s
  anonymousOnly: true
/report:
  until:
    kind: time-of-day
    hour: 17
`), &policies)
	require.NoError(t, err)

	assert.Equal(t, Policy{
		ServerTimeSpan:           10 * time.Minute,
		ClientTimeSpan:           time.Minute,
		MustRevalidate:           true,
		ExcludeQueryFromCacheKey: true,
	}, policies["/teams"])
	assert.True(t, policies["/me"].AnonymousOnly)
	assert.Equal(t, UntilToday(17, 0, 0), policies["/report"])
	for _, p := range policies {
		assert.NoError(t, p.Validate())
	}
}
