package outputcache

import (
	"testing"
	"time"
)

func TestFormatCacheControl(t *testing.T) {
	tests := []struct {
		span           time.Duration
		mustRevalidate bool
		want           string
	}{
		{time.Minute, false, "max-age=60"},
		{time.Minute, true, "max-age=60, must-revalidate"},
		{1500 * time.Millisecond, false, "max-age=1"},
		{0, false, "max-age=0"},
		{-time.Hour, true, "max-age=0, must-revalidate"},
	}
	for _, tt := range tests {
		if got := FormatCacheControl(tt.span, tt.mustRevalidate); got != tt.want {
			t.Fatalf("FormatCacheControl(%s, %v) = %s, want %s", tt.span, tt.mustRevalidate, got, tt.want)
		}
	}
}

func TestParseCacheControl(t *testing.T) {
	cc := ParseCacheControl(FormatCacheControl(90*time.Second, true))
	if maxAge, ok := cc.MaxAge(); !ok || maxAge != 90*time.Second {
		t.Fatalf("max-age is %s", maxAge)
	}
	if _, ok := cc.Get("must-revalidate"); !ok {
		t.Fatal("must-revalidate missing")
	}

	cc = ParseCacheControl(`public,MAX-AGE="10",  no-transform`)
	if maxAge, ok := cc.MaxAge(); !ok || maxAge != 10*time.Second {
		t.Fatalf("max-age is %s", maxAge)
	}
	if _, ok := cc.Get("no-transform"); !ok {
		t.Fatal("no-transform missing")
	}

	if _, ok := ParseCacheControl("max-age=soon").MaxAge(); ok {
		t.Fatal("invalid max-age accepted")
	}
}

func TestCacheStatusString(t *testing.T) {
	var cs CacheStatus
	cs.Forward(CacheStatusFwdBypass)
	if s := cs.String(); s != "OutputCache; fwd=bypass" {
		t.Fatalf("status is %s", s)
	}
	if o := cs.Outcome(); o != "bypass" {
		t.Fatalf("outcome is %s", o)
	}

	cs = CacheStatus{}
	cs.Forward(CacheStatusFwdMiss)
	if o := cs.Outcome(); o != "miss" {
		t.Fatalf("outcome is %s", o)
	}
}
