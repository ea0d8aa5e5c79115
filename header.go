package outputcache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type CacheControl struct {
	m map[string]string
}

func (c CacheControl) Get(directive string) (string, bool) {
	val, ok := c.m[directive]
	return val, ok
}

// MaxAge returns the max-age directive, if present and valid.
func (c CacheControl) MaxAge() (time.Duration, bool) {
	val, ok := c.m["max-age"]
	if !ok {
		return 0, false
	}
	seconds, err := strconv.Atoi(val)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func ParseCacheControl(header string) CacheControl {
	m := make(map[string]string)
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}
		parts := strings.SplitN(directive, "=", 2)
		var val string
		if len(parts) > 1 {
			val = strings.Trim(parts[1], `"`)
		}
		m[strings.ToLower(parts[0])] = val
	}
	return CacheControl{m}
}

// FormatCacheControl returns the Cache-Control value for a client time span.
// Spans are rounded down to whole seconds, negative ones become zero.
func FormatCacheControl(clientTimeSpan time.Duration, mustRevalidate bool) string {
	seconds := int64(clientTimeSpan / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	value := "max-age=" + strconv.FormatInt(seconds, 10)
	if mustRevalidate {
		value += ", must-revalidate"
	}
	return value
}

func setCacheControl(h http.Header, clientTimeSpan time.Duration, mustRevalidate bool) {
	h.Set("Cache-Control", FormatCacheControl(clientTimeSpan, mustRevalidate))
}
