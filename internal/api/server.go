// Package api exposes the channel catalog over HTTP. It is the calling layer
// of the catalog service, so per-key coordination of concurrent loads lives
// here: overlapping requests for the same playlist are collapsed into one
// fetch via singleflight.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mylivetv/catalogd/internal/catalog"
	"github.com/mylivetv/catalogd/internal/log"
	"github.com/mylivetv/catalogd/internal/safeurl"
	"github.com/mylivetv/catalogd/internal/source"
)

// Pinger is the liveness surface of the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the catalog, history and browse index behind a chi router.
type Server struct {
	svc     *catalog.Service
	history *catalog.History
	builder source.Builder
	index   *source.Index
	store   Pinger
	logger  zerolog.Logger
	flights singleflight.Group
}

// NewServer builds the API server. index may be empty; key validation is then
// disabled.
func NewServer(svc *catalog.Service, history *catalog.History, builder source.Builder, index *source.Index, store Pinger) *Server {
	return &Server{
		svc:     svc,
		history: history,
		builder: builder,
		index:   index,
		store:   store,
		logger:  log.WithComponent("api"),
	}
}

// Routes returns the configured router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", s.handleCategories)
		r.Get("/categories/{name}/channels", s.handleCategoryChannels)
		r.Get("/languages/{code}/channels", s.handleLanguageChannels)
		r.Get("/countries/{code}/channels", s.handleCountryChannels)
		r.Get("/channels", s.handleChannelsByURL)
		r.Get("/recent", s.handleRecentGet)
		r.Post("/recent", s.handleRecentPost)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.index.AllCategories(),
	})
}

func (s *Server) handleCategoryChannels(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.index.HasCategory(name) {
		writeError(w, http.StatusNotFound, "unknown category: "+name)
		return
	}
	s.serveChannels(w, r, s.builder.CategoryURL(name))
}

func (s *Server) handleLanguageChannels(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !s.index.HasLanguage(code) {
		writeError(w, http.StatusNotFound, "unknown language: "+code)
		return
	}
	s.serveChannels(w, r, s.builder.LanguageURL(code))
}

func (s *Server) handleCountryChannels(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !s.index.HasCountry(code) {
		writeError(w, http.StatusNotFound, "unknown country: "+code)
		return
	}
	s.serveChannels(w, r, s.builder.CountryURL(code))
}

// handleChannelsByURL serves an arbitrary playlist URL. The URL itself is the
// cache key, exactly like the built-in browse routes.
func (s *Server) handleChannelsByURL(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" || !safeurl.IsHTTPOrHTTPS(raw) {
		writeError(w, http.StatusBadRequest, "url parameter must be an http(s) URL")
		return
	}
	s.serveChannels(w, r, raw)
}

func (s *Server) serveChannels(w http.ResponseWriter, r *http.Request, key string) {
	refresh := isTruthy(r.URL.Query().Get("refresh"))

	// Collapse overlapping loads for the same key. The refresh flag is part
	// of the flight key so a forced reload is never satisfied by a
	// cache-allowed flight already in progress.
	flightKey := key
	if refresh {
		flightKey += "!refresh"
	}
	v, err, shared := s.flights.Do(flightKey, func() (any, error) {
		return s.svc.Channels(r.Context(), key, refresh)
	})
	if err != nil {
		var empty *catalog.EmptyResultError
		if errors.As(err, &empty) {
			writeError(w, http.StatusBadGateway, empty.Error())
			return
		}
		s.logger.Error().Str("key", key).Err(err).Msg("channel lookup failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	channels := v.([]catalog.Channel)
	if shared {
		s.logger.Debug().Str("key", key).Msg("lookup joined in-flight request")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":      key,
		"count":    len(channels),
		"channels": channels,
	})
}

func (s *Server) handleRecentGet(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	key := r.URL.Query().Get("key")

	var (
		entries []catalog.WatchedChannel
		err     error
	)
	if key != "" {
		entries, err = s.history.RecentByCategory(r.Context(), key, limit)
	} else {
		entries, err = s.history.Recent(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("history read failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

type recentRequest struct {
	CategoryKey string          `json:"category_key"`
	Channel     catalog.Channel `json:"channel"`
}

func (s *Server) handleRecentPost(w http.ResponseWriter, r *http.Request) {
	var req recentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.history.MarkWatched(r.Context(), req.CategoryKey, req.Channel); err != nil {
		if errors.Is(err, catalog.ErrNoStreamURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("history write failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isTruthy(v string) bool {
	return v == "1" || v == "true" || v == "yes"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
