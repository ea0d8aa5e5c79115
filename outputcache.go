// Package outputcache is HTTP middleware caching the output of handlers
// under per-route policies, with entity tags and Cache-Control headers.
package outputcache

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ericselin/outputcache/cache"
	cachekey "github.com/ericselin/outputcache/pkg/cache-key"
	cachetime "github.com/ericselin/outputcache/pkg/cache-time"
	"github.com/ericselin/outputcache/pkg/conditional"
	"github.com/ericselin/outputcache/pkg/negotiate"
	serializer "github.com/ericselin/outputcache/pkg/response-serializer"
	tee "github.com/ericselin/outputcache/pkg/response-writer-tee"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type Config struct {
	// Storage for cache entries. An in-process store is used if nil.
	Store cache.Store
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Resolves the media type a request will be answered in.
	// Defaults to negotiating the Accept header against application/json only.
	Negotiator negotiate.Negotiator
	// Reports whether the request is authenticated.
	// Defaults to the presence of an Authorization header.
	Authenticated func(*http.Request) bool
	// Clock, time.Now if nil.
	Now func() time.Time
	// Prefix for all keys, for stores shared between applications.
	KeyPrefix string
	// Optional metrics.
	Metrics *Metrics
	// Add a Cache-Status header to cacheable responses.
	CacheStatusHeader bool
}

type OutputCache struct {
	store         cache.Store
	log           zerolog.Logger
	negotiator    negotiate.Negotiator
	authenticated func(*http.Request) bool
	now           func() time.Time
	keyer         cachekey.CacheKeyer
	metrics       *Metrics
	statusHeader  bool
	pending       sync.WaitGroup
}

func New(config Config) *OutputCache {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		logger = *config.Logger
	}

	oc := &OutputCache{
		store:         config.Store,
		log:           logger,
		negotiator:    config.Negotiator,
		authenticated: config.Authenticated,
		now:           config.Now,
		keyer:         cachekey.NewCacheKeyer(config.KeyPrefix),
		metrics:       config.Metrics,
		statusHeader:  config.CacheStatusHeader,
	}
	if oc.store == nil {
		oc.store = cache.NewMemoryStore()
	}
	if oc.negotiator == nil {
		oc.negotiator = negotiate.NewAccept()
	}
	if oc.authenticated == nil {
		oc.authenticated = HasAuthorization
	}
	if oc.now == nil {
		oc.now = time.Now
	}
	return oc
}

// HasAuthorization reports whether the request carries credentials.
func HasAuthorization(r *http.Request) bool {
	return r.Header.Get("Authorization") != ""
}

// Handler wraps next with caching under the given policy.
// Invalid policies are rejected here, never at request time.
func (oc *OutputCache) Handler(policy Policy, next http.Handler) (http.Handler, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &handler{
		oc:         oc,
		policy:     policy,
		expiration: sync.OnceValues(policy.expiration),
		next:       next,
	}, nil
}

// Middleware is like Handler, for routers taking func(http.Handler) http.Handler.
// It panics if the policy is invalid.
func (oc *OutputCache) Middleware(policy Policy) func(http.Handler) http.Handler {
	if err := policy.Validate(); err != nil {
		panic("outputcache: " + err.Error())
	}
	return func(next http.Handler) http.Handler {
		h, err := oc.Handler(policy, next)
		if err != nil {
			panic("outputcache: " + err.Error())
		}
		return h
	}
}

// Wait blocks until all background cache writes and delayed invalidations have finished.
// Callers must stop serving requests first, e.g. after http.Server.Shutdown returns.
func (oc *OutputCache) Wait() {
	oc.pending.Wait()
}

// isCachingAllowed is the eligibility check.
// Only GET is cacheable, and anonymous-only routes skip authenticated callers.
func isCachingAllowed(method string, anonymousOnly, authenticated bool) bool {
	if method != http.MethodGet {
		return false
	}
	return !anonymousOnly || !authenticated
}

type handler struct {
	oc     *OutputCache
	policy Policy
	// constructed on first use
	expiration func() (cachetime.Policy, error)
	next       http.Handler
}

// ServeHTTP implements the http.Handler interface.
func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.oc.logger(r)

	var cs CacheStatus
	if !isCachingAllowed(r.Method, h.policy.AnonymousOnly, h.oc.authenticated(r)) {
		cs.Forward(CacheStatusFwdBypass)
		h.oc.observe(logger, r, &cs)
		h.next.ServeHTTP(w, r)
		return
	}

	expiration, err := h.expiration()
	if err != nil {
		logger.Error().Err(err).Msg("Could not build expiration policy")
		h.next.ServeHTTP(w, r)
		return
	}

	mediaType := h.oc.negotiator.Negotiate(r)
	key := h.oc.keyer.Key(r.URL.Path, r.URL.RawQuery, mediaType, h.policy.ExcludeQueryFromCacheKey)
	logger = logger.With().Str("key", key).Logger()

	if h.serveStored(w, r, key, expiration, &cs, logger) {
		h.oc.observe(logger, r, &cs)
		return
	}
	h.serveFresh(w, r, key, expiration, &cs, logger)
	h.oc.observe(logger, r, &cs)
}

// serveStored answers from the store, either with 304 Not Modified or the full stored body.
// It returns false if the request still needs to go to the handler.
func (h *handler) serveStored(w http.ResponseWriter, r *http.Request, key string, expiration cachetime.Policy, cs *CacheStatus, logger zerolog.Logger) bool {
	ctx := r.Context()
	store := h.oc.store

	found, err := store.Contains(ctx, key)
	if err != nil {
		h.oc.storeError(logger, "contains", err)
		cs.Forward(CacheStatusFwdMiss)
		return false
	}
	if !found {
		logger.Trace().Msg("Cache miss")
		cs.Forward(CacheStatusFwdUriMiss)
		return false
	}

	etag, _ := h.oc.getString(ctx, cachekey.ETagKey(key), logger)
	now := h.oc.now()

	if conditional.Check(r.Header, etag) == conditional.Match {
		ct := expiration.Compute(now)
		cs.Hit()
		cs.Detail("revalidated")
		header := w.Header()
		setCacheControl(header, ct.ClientTimeSpan, h.policy.MustRevalidate)
		header.Set("ETag", etag)
		h.oc.setStatusHeader(header, cs)
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		h.oc.storeError(logger, "get", err)
		cs.Forward(CacheStatusFwdMiss)
		return false
	}
	if !ok {
		// expired since Contains
		cs.Forward(CacheStatusFwdUriMiss)
		return false
	}
	body, err := serializer.Deserialize(raw)
	if err != nil {
		// in case we have a corrupted cache entry, we delete it and serve the request
		logger.Error().Err(err).Msg("Could not read from cache")
		h.oc.purge(ctx, key, logger)
		cs.Forward(CacheStatusFwdMiss)
		return false
	}

	contentType, ok := h.oc.getString(ctx, cachekey.ContentTypeKey(key), logger)
	if !ok {
		if contentType, err = cachekey.MediaType(key); err != nil {
			logger.Warn().Err(err).Msg("No content type for stored response")
			contentType = ""
		}
	}

	ct := expiration.Compute(now)
	cs.Hit()
	header := w.Header()
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	if etag != "" {
		header.Set("ETag", etag)
	}
	setCacheControl(header, ct.ClientTimeSpan, h.policy.MustRevalidate)
	h.oc.setStatusHeader(header, cs)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Debug().Err(err).Msg("Could not write response body to client")
	}
	logger.Trace().Msgf("Wrote body (%d bytes)", len(body))
	return true
}

// serveFresh runs the handler and stores a successful response in the background.
func (h *handler) serveFresh(w http.ResponseWriter, r *http.Request, key string, expiration cachetime.Policy, cs *CacheStatus, logger zerolog.Logger) {
	now := h.oc.now()
	ct := expiration.Compute(now)
	storable := ct.Cacheable(now)
	etag := conditional.Quote(uuid.NewString())

	rw := tee.NewResponseSaver(w, func(status int, header http.Header) {
		setCacheControl(header, ct.ClientTimeSpan, h.policy.MustRevalidate)
		if status == http.StatusOK {
			header.Set("ETag", etag)
			if storable {
				cs.Stored()
				cs.TTL(int(ct.ServerTimeSpan / time.Second))
			}
		}
		h.oc.setStatusHeader(header, cs)
	})
	h.next.ServeHTTP(rw, r)
	rw.Finish()

	if rw.StatusCode() != http.StatusOK || rw.Err() != nil {
		logger.Trace().Int("status", rw.StatusCode()).Msg("Not storing response")
		return
	}
	if !storable {
		logger.Trace().Time("expires", ct.AbsoluteExpiration).Msg("Response already expired, not storing")
		return
	}

	e := entry{
		key:         key,
		body:        rw.Body(),
		contentType: rw.Header().Get("Content-Type"),
		etag:        etag,
		expires:     ct.AbsoluteExpiration,
	}
	// save to cache in goroutine (do not slow down response)
	h.oc.pending.Add(1)
	go h.oc.persist(context.WithoutCancel(r.Context()), e, logger)
}

type entry struct {
	key         string
	body        []byte
	contentType string
	etag        string
	expires     time.Time
}

// persist writes the content type and entity tag before the body,
// so a reader seeing the body can rely on the other two.
// On failure the keys written so far are removed again.
func (oc *OutputCache) persist(ctx context.Context, e entry, logger zerolog.Logger) {
	defer oc.pending.Done()
	ctx, cancel := context.WithDeadline(ctx, e.expires)
	defer cancel()

	var written []string
	rollback := func(op string, err error) {
		oc.storeError(logger, op, err)
		for _, k := range written {
			if err := oc.store.Remove(ctx, k); err != nil {
				oc.storeError(logger, "remove", err)
			}
		}
	}

	ctKey := cachekey.ContentTypeKey(e.key)
	if e.contentType != "" {
		if err := oc.store.Set(ctx, ctKey, []byte(e.contentType), e.expires); err != nil {
			rollback("set", err)
			return
		}
		written = append(written, ctKey)
	} else if err := oc.store.Remove(ctx, ctKey); err != nil {
		rollback("remove", err)
		return
	}

	etagKey := cachekey.ETagKey(e.key)
	if err := oc.store.Set(ctx, etagKey, []byte(e.etag), e.expires); err != nil {
		rollback("set", err)
		return
	}
	written = append(written, etagKey)

	if err := oc.store.Set(ctx, e.key, serializer.Serialize(e.body), e.expires); err != nil {
		rollback("set", err)
		return
	}
	logger.Trace().Time("expires", e.expires).Msg("Wrote response to cache")
}

func (oc *OutputCache) getString(ctx context.Context, key string, logger zerolog.Logger) (string, bool) {
	value, ok, err := oc.store.Get(ctx, key)
	if err != nil {
		oc.storeError(logger, "get", err)
		return "", false
	}
	if !ok || len(value) == 0 {
		return "", false
	}
	return string(value), true
}

func (oc *OutputCache) purge(ctx context.Context, key string, logger zerolog.Logger) {
	for _, k := range cachekey.EntryKeys(key) {
		if err := oc.store.Remove(ctx, k); err != nil {
			oc.storeError(logger, "remove", err)
		}
	}
}

func (oc *OutputCache) storeError(logger zerolog.Logger, op string, err error) {
	oc.metrics.IncStoreError(op)
	logger.Warn().Err(err).Str("op", op).Msg("Cache store failed")
}

func (oc *OutputCache) setStatusHeader(header http.Header, cs *CacheStatus) {
	if oc.statusHeader {
		header.Set("Cache-Status", cs.String())
	}
}

func (oc *OutputCache) observe(logger zerolog.Logger, r *http.Request, cs *CacheStatus) {
	outcome := cs.Outcome()
	oc.metrics.ObserveRequest(outcome)
	logger.Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("outcome", outcome).
		Str("status", cs.String()).
		Msg("Sending response to client")
}

// logger returns the request logger installed by hlog, or the configured one.
func (oc *OutputCache) logger(r *http.Request) zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		return oc.log
	}
	return *logger
}
