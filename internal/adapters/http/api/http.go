// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/storyrank/internal/adapters/http/auth"
	"github.com/okian/storyrank/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StoryDependencies
	ComparisonDependencies
	LeaderboardDependencies
	RankDependencies
	GraphDependencies
	SessionDependencies
	StatsProvider
}

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Middleware(next http.Handler, onError func(http.ResponseWriter, *http.Request, error)) http.Handler
}

// SessionStream upgrades a request into a live session event stream.
type SessionStream interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	storiesHandler     *StoriesHandler
	compareHandler     *CompareHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	graphHandler       *GraphHandler
	sessionsHandler    *SessionsHandler

	auth Authenticator
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, authn Authenticator, stream SessionStream) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		storiesHandler:     NewStoriesHandler(deps),
		compareHandler:     NewCompareHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		rankHandler:        NewRankHandler(deps),
		graphHandler:       NewGraphHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps, stream),
		auth:               authn,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	s.secured(mux, "/stories", "stories", s.storiesHandler.HandleStories)
	s.secured(mux, "/stories/{id}", "story", s.storiesHandler.HandleGetStory)
	s.secured(mux, "/elo/compare", "elo_compare", s.compareHandler.HandleCompare)
	s.secured(mux, "/elo/rank", "elo_rank", s.compareHandler.HandleRank)
	s.secured(mux, "/elo/slider", "elo_slider", s.compareHandler.HandleSlider)
	s.secured(mux, "/leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	s.secured(mux, "/rank/{metric}/{id}", "rank", s.rankHandler.HandleGetRank)
	s.secured(mux, "/graph", "graph", s.graphHandler.HandleGetGraph)
	s.secured(mux, "/sessions", "sessions", s.sessionsHandler.HandleCreate)
	s.secured(mux, "/sessions/{id}", "session", s.sessionsHandler.HandleGet)
	s.secured(mux, "/sessions/{id}/join", "session_join", s.sessionsHandler.HandleJoin)
	s.secured(mux, "/sessions/{id}/start", "session_start", s.sessionsHandler.HandleStart)
	s.secured(mux, "/sessions/{id}/ratings", "session_ratings", s.sessionsHandler.HandleSubmit)
	s.secured(mux, "/sessions/{id}/results", "session_results", s.sessionsHandler.HandleResults)
	s.secured(mux, "/sessions/{id}/apply", "session_apply", s.sessionsHandler.HandleApply)
	s.secured(mux, "/sessions/{id}/ws", "session_ws", s.sessionsHandler.HandleStream)

	logger.Get().Debug(ctx, "api routes registered")
}

func (s *Server) secured(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	var next http.Handler = h
	if s.auth != nil {
		next = s.auth.Middleware(h, func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, WrapKind("api.auth", ErrUnauthorized, err))
		})
	}
	mux.HandleFunc(pattern, MetricsMiddleware(next.ServeHTTP, endpoint))
}

// principal returns the authenticated caller, or an empty tenant when
// the server runs without an authenticator.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError derives the status from err. Server errors hide their cause.
func writeError(w http.ResponseWriter, err error) {
	code, name := status(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		logger.Get().Error(context.Background(), "request failed", logger.Error(err))
		msg = http.StatusText(code)
		var apiErr *Error
		if errors.As(err, &apiErr) && strings.HasPrefix(apiErr.Op, "api.elo") {
			msg = "failed to update ratings, please try again"
		}
	}
	writeJSON(w, code, errorResponse{Code: name, Message: msg})
}

func decode(r *http.Request, w http.ResponseWriter, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// queryInt parses an optional integer query parameter; absent yields 0.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
