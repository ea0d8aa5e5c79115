package outputcache

import (
	"context"
	"net/http"
	"time"

	cacheupdate "github.com/ericselin/outputcache/pkg/cache-update"
)

// Invalidate removes the entries stored for path in each of the media types.
// Only entries keyed without a query string are affected.
// Without media types, the ones offered by the negotiator are used.
func (oc *OutputCache) Invalidate(ctx context.Context, path string, mediaTypes ...string) {
	if len(mediaTypes) == 0 {
		if lister, ok := oc.negotiator.(interface{ MediaTypes() []string }); ok {
			mediaTypes = lister.MediaTypes()
		}
	}
	logger := oc.log.With().Str("path", path).Logger()
	for _, mediaType := range mediaTypes {
		key := oc.keyer.Key(path, "", mediaType, true)
		logger.Trace().Str("key", key).Msg("Invalidating stored response")
		oc.purge(ctx, key, logger)
	}
}

// Updates is middleware invalidating the paths named in `Cache-Update` response headers
// of unsafe requests, e.g. `Cache-Update: /teams; delay=5`.
func (oc *OutputCache) Updates(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		for _, update := range cacheupdate.GetCacheUpdates(r, w.Header()) {
			oc.saveUpdate(r, update)
		}
	})
}

func (oc *OutputCache) saveUpdate(r *http.Request, update cacheupdate.CacheUpdate) {
	logger := oc.logger(r)
	logger.Trace().Str("update", update.Path).Dur("delay", update.Delay).Msg("Updating cache based on header")
	ctx := context.WithoutCancel(r.Context())
	if update.Delay <= 0 {
		oc.Invalidate(ctx, update.Path)
		return
	}
	oc.pending.Add(1)
	go func() {
		defer oc.pending.Done()
		time.Sleep(update.Delay)
		oc.Invalidate(ctx, update.Path)
	}()
}
