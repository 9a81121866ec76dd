// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/leaderboard/internal/app"
	"github.com/okian/leaderboard/internal/domain/apperror"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/internal/domain/validation"
	"github.com/okian/leaderboard/pkg/logger"
)

// Route prefixes.
const (
	usersPrefix     = "/api/users/"
	addUserPath     = usersPrefix + "addUser"
	updateScorePath = usersPrefix + "updateScore/"
	topUsersPath    = usersPrefix + "getTopUsers/"
	neighborsPath   = usersPrefix + "getUserWithNeighbors/"
	getUserPath     = usersPrefix + "getUser/"
	getRankPath     = usersPrefix + "getRank/"
	refreshPath     = "/api/leaderboard/refresh"
)

// Defaults for request caps.
const (
	DefaultMaxTopLimit       = 100
	DefaultMaxNeighborRadius = 50

	maxBodyBytes = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	AddUser(ctx context.Context, in validation.AddUserInput) (model.User, error)
	UpdateScore(ctx context.Context, in validation.UpdateScoreInput) (model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)

	TopN(ctx context.Context, limit int) ([]model.RankedUser, error)
	Rank(ctx context.Context, id int64) (model.RankedUser, error)
	Neighbors(ctx context.Context, id int64, radius int) ([]model.RankedUser, error)
	DefaultNeighborRadius() int

	Rebuild(ctx context.Context) (service.RefreshResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	usersHandler       *UsersHandler
	leaderboardHandler *LeaderboardHandler
}

// Option configures the Server.
type Option func(*settings)

type settings struct {
	maxTopLimit       int
	maxNeighborRadius int
}

// WithMaxTopLimit caps the limit accepted by getTopUsers.
func WithMaxTopLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxTopLimit = n
		}
	}
}

// WithMaxNeighborRadius caps the ?radius accepted by getUserWithNeighbors.
func WithMaxNeighborRadius(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxNeighborRadius = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := settings{
		maxTopLimit:       DefaultMaxTopLimit,
		maxNeighborRadius: DefaultMaxNeighborRadius,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		usersHandler:       NewUsersHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, cfg.maxTopLimit, cfg.maxNeighborRadius),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/", MetricsMiddleware(s.healthHandler.HandleRoot, "root"))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc(addUserPath, MetricsMiddleware(s.usersHandler.HandleAddUser, "add_user"))
	mux.HandleFunc(updateScorePath, MetricsMiddleware(s.usersHandler.HandleUpdateScore, "update_score"))
	mux.HandleFunc(getUserPath, MetricsMiddleware(s.usersHandler.HandleGetUser, "get_user"))
	mux.HandleFunc(getRankPath, MetricsMiddleware(s.usersHandler.HandleGetRank, "get_rank"))

	mux.HandleFunc(topUsersPath, MetricsMiddleware(s.leaderboardHandler.HandleGetTopUsers, "get_top_users"))
	mux.HandleFunc(neighborsPath, MetricsMiddleware(s.leaderboardHandler.HandleGetNeighbors, "get_user_with_neighbors"))
	mux.HandleFunc(refreshPath, MetricsMiddleware(s.leaderboardHandler.HandleRefresh, "refresh"))
}

type errorDetail struct {
	Status    int      `json:"status"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Details   []string `json:"details,omitempty"`
	Timestamp string   `json:"timestamp"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as the error envelope. 5xx are logged at error
// level, 4xx at warn.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperror.HTTPStatus(err)
	detail := errorDetail{
		Status:    status,
		Code:      string(apperror.KindOf(err)),
		Message:   "internal error",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	op := ""
	if ae, ok := apperror.As(err); ok {
		detail.Message = ae.Message
		detail.Details = ae.Details
		op = ae.Op
	}

	fields := []logger.Field{
		logger.String("op", op),
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.Int("status", status),
		logger.String("request_id", RequestIDFrom(r.Context())),
		logger.Error(err),
	}
	log := logger.Named("http")
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", fields...)
	} else {
		log.Warn(r.Context(), "request rejected", fields...)
	}

	writeJSON(w, status, errorResponse{Error: detail})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperror.NotFound("api.route", "route not found"))
}

// pathParam returns the single path segment following prefix.
func pathParam(r *http.Request, prefix string) (string, bool) {
	v := strings.TrimPrefix(r.URL.Path, prefix)
	if v == "" || strings.Contains(v, "/") {
		return "", false
	}
	return v, true
}

func parseID(op string, r *http.Request, prefix string) (int64, error) {
	raw, ok := pathParam(r, prefix)
	if !ok {
		return 0, apperror.Validation(op, ErrInvalidID.Error())
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.Validation(op, ErrInvalidID.Error(), "id must be an integer")
	}
	return id, nil
}

func decodeBody(op string, w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperror.Validation(op, ErrInvalidBody.Error(), err.Error())
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.Validation(op, ErrInvalidBody.Error(), "unexpected data after JSON body")
	}
	return nil
}
