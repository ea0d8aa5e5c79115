package cacheupdate

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetCacheUpdates(t *testing.T) {
	req := httptest.NewRequest("POST", "/teams/3", nil)
	header := http.Header{}
	header.Add("Cache-Update", "/teams")
	header.Add("Cache-Update", "3; delay=2, ../sample/c100-s100")

	updates := GetCacheUpdates(req, header)
	want := []CacheUpdate{
		{Path: "/teams"},
		{Path: "/teams/3", Delay: 2 * time.Second},
		{Path: "/sample/c100-s100"},
	}
	if len(updates) != len(want) {
		t.Fatalf("Got %d updates: %v", len(updates), updates)
	}
	for i := range want {
		if updates[i] != want[i] {
			t.Fatalf("Update %d is %+v, expected %+v", i, updates[i], want[i])
		}
	}
}

func TestNoUpdatesForSafeRequests(t *testing.T) {
	header := http.Header{}
	header.Add("Cache-Update", "/teams")
	if updates := GetCacheUpdates(httptest.NewRequest("GET", "/teams", nil), header); len(updates) != 0 {
		t.Fatalf("Got updates for GET: %v", updates)
	}
}

func TestGetDelay(t *testing.T) {
	for update, delay := range map[string]time.Duration{
		"/a":               0,
		"/a; delay=5":      5 * time.Second,
		"/a;DELAY=1":       time.Second,
		"/a; delay=soon":   0,
		"/a; nodelay=3000": 0,
	} {
		if got := getDelay(update); got != delay {
			t.Fatalf("Delay of %q is %s, expected %s", update, got, delay)
		}
	}
}
