package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/ericselin/outputcache"
	"github.com/ericselin/outputcache/internal/config"
)

const sessionUserKey = "user"

type server struct {
	oc       *outputcache.OutputCache
	policies config.Policies
	sess     *scs.SessionManager
	teams    *teamStore
	metrics  *outputcache.Metrics
	log      zerolog.Logger
}

// cached returns the caching middleware for a named route.
// The policy file, if any, takes precedence over the built-in policy.
func (s *server) cached(route string, builtin outputcache.Policy) func(http.Handler) http.Handler {
	return s.oc.Middleware(s.policies.Get(route, builtin))
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Trace().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(s.sess.LoadAndSave)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.metrics.Handler())
	r.Post("/login", s.login)
	r.Post("/logout", s.logout)

	r.Route("/teams", func(r chi.Router) {
		r.Use(s.oc.Updates)
		r.With(s.cached("teams", outputcache.For(50*time.Second, 50*time.Second))).Get("/", s.listTeams)
		r.Post("/", s.createTeam)
		r.Route("/{id}", func(r chi.Router) {
			r.With(s.cached("team", outputcache.UntilThisYear(time.July, 20))).Get("/", s.getTeam)
			r.Put("/", s.updateTeam)
			r.Delete("/", s.deleteTeam)
		})
	})

	r.Route("/sample", func(r chi.Router) {
		for _, sample := range samples() {
			r.With(s.cached("sample/"+sample.name, sample.policy)).Get("/"+sample.name, sample.handler)
		}
	})
	return r
}

type sample struct {
	name    string
	policy  outputcache.Policy
	handler http.HandlerFunc
}

func withMustRevalidate(p outputcache.Policy) outputcache.Policy {
	p.MustRevalidate = true
	return p
}

func withExcludedQuery(p outputcache.Policy) outputcache.Policy {
	p.ExcludeQueryFromCacheKey = true
	return p
}

func withAnonymousOnly(p outputcache.Policy) outputcache.Policy {
	p.AnonymousOnly = true
	return p
}

func samples() []sample {
	value := func(v string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, v)
		}
	}
	withID := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "test"+r.URL.Query().Get("id"))
	}
	return []sample{
		{"c100-s100", outputcache.For(100*time.Second, 100*time.Second), value("test")},
		{"c50-must-revalidate", withMustRevalidate(outputcache.For(0, 50*time.Second)), value("test")},
		{"s50-exclude-false", outputcache.For(50*time.Second, 0), withID},
		{"s50-exclude-true", withExcludedQuery(outputcache.For(50*time.Second, 0)), withID},
		{"until-25012013-1700", outputcache.Until(2013, time.January, 25, 17, 0), value("test")},
		{"until-2355-today", outputcache.UntilToday(23, 55, 0), value("value")},
		{"until-31-this-month", outputcache.UntilThisMonth(31), value("value")},
		{"until-731-this-year", outputcache.UntilThisYear(time.July, 31), value("value")},
		{"until-731-this-year-must-revalidate", withMustRevalidate(outputcache.UntilThisYear(time.July, 31)), value("value")},
		{"s50-c50-anonymous-only", withAnonymousOnly(outputcache.For(50*time.Second, 50*time.Second)), value("value")},
		{"etag-match-304", withAnonymousOnly(outputcache.For(50*time.Second, 50*time.Second)), value("value")},
	}
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	user := r.FormValue("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, errors.New("user is required"))
		return
	}
	if err := s.sess.RenewToken(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not renew session token")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.sess.Put(r.Context(), sessionUserKey, user)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Destroy(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) listTeams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.teams.List())
}

func (s *server) getTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := teamID(w, r)
	if !ok {
		return
	}
	team, err := s.teams.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *server) createTeam(w http.ResponseWriter, r *http.Request) {
	team, ok := decodeTeam(w, r)
	if !ok {
		return
	}
	created := s.teams.Add(team)
	w.Header().Set("Cache-Update", "/teams")
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) updateTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := teamID(w, r)
	if !ok {
		return
	}
	team, ok := decodeTeam(w, r)
	if !ok {
		return
	}
	updated, err := s.teams.Update(id, team)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	setTeamUpdates(w, id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := teamID(w, r)
	if !ok {
		return
	}
	if err := s.teams.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	setTeamUpdates(w, id)
	w.WriteHeader(http.StatusNoContent)
}

// setTeamUpdates names the cached team resources a change makes stale.
func setTeamUpdates(w http.ResponseWriter, id int) {
	w.Header().Set("Cache-Update", "/teams, /teams/"+strconv.Itoa(id))
}

func teamID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid team id"))
		return 0, false
	}
	return id, true
}

func decodeTeam(w http.ResponseWriter, r *http.Request) (Team, bool) {
	var team Team
	if err := json.NewDecoder(r.Body).Decode(&team); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return team, false
	}
	if err := team.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return team, false
	}
	return team, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
