package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/leaderboard/internal/domain/apperror"
)

// LeaderboardHandler serves ranking reads and manual refresh.
type LeaderboardHandler struct {
	deps      Dependencies
	maxLimit  int
	maxRadius int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies, maxLimit, maxRadius int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:      deps,
		maxLimit:  maxLimit,
		maxRadius: maxRadius,
	}
}

// HandleGetTopUsers handles GET /api/users/getTopUsers/{limit} requests.
func (h *LeaderboardHandler) HandleGetTopUsers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_top_users"
	if r.Method != http.MethodGet {
		notFound(w, r)
		return
	}
	raw, ok := pathParam(r, topUsersPath)
	if !ok {
		writeError(w, r, apperror.Validation(op, ErrInvalidLimit.Error()))
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, apperror.Validation(op, ErrInvalidLimit.Error(), "limit must be an integer"))
		return
	}
	if n > h.maxLimit {
		writeError(w, r, apperror.Validation(op, ErrInvalidLimit.Error(),
			fmt.Sprintf("limit must be at most %d", h.maxLimit)))
		return
	}
	entries, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetNeighbors handles GET /api/users/getUserWithNeighbors/{id}[?radius=k] requests.
func (h *LeaderboardHandler) HandleGetNeighbors(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user_with_neighbors"
	if r.Method != http.MethodGet {
		notFound(w, r)
		return
	}
	id, err := parseID(op, r, neighborsPath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	radius := h.deps.DefaultNeighborRadius()
	if v := r.URL.Query().Get("radius"); v != "" {
		radius, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, r, apperror.Validation(op, ErrInvalidRadius.Error(), "radius must be an integer"))
			return
		}
		if radius > h.maxRadius {
			writeError(w, r, apperror.Validation(op, ErrInvalidRadius.Error(),
				fmt.Sprintf("radius must be at most %d", h.maxRadius)))
			return
		}
	}
	entries, err := h.deps.Neighbors(r.Context(), id, radius)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleRefresh handles POST /api/leaderboard/refresh requests.
func (h *LeaderboardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		notFound(w, r)
		return
	}
	res, err := h.deps.Rebuild(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
