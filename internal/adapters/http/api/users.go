package api

import (
	"net/http"

	"github.com/okian/leaderboard/internal/domain/apperror"
	"github.com/okian/leaderboard/internal/domain/validation"
)

// addUserRequest mirrors the OpenAPI schema for POST /api/users/addUser.
// img_url is accepted as a legacy alias of avatar_url.
type addUserRequest struct {
	Username  *string `json:"username"`
	Score     *int64  `json:"score"`
	AvatarURL *string `json:"avatar_url"`
	ImgURL    *string `json:"img_url"`
}

func (req addUserRequest) input(op string) (validation.AddUserInput, error) {
	var missing []string
	if req.Username == nil {
		missing = append(missing, "username is required")
	}
	if req.Score == nil {
		missing = append(missing, "score is required")
	}
	if len(missing) > 0 {
		return validation.AddUserInput{}, apperror.Validation(op, "invalid user", missing...)
	}
	in := validation.AddUserInput{Username: *req.Username, Score: *req.Score}
	switch {
	case req.AvatarURL != nil:
		in.AvatarURL = *req.AvatarURL
	case req.ImgURL != nil:
		in.AvatarURL = *req.ImgURL
	}
	return in, nil
}

type updateScoreRequest struct {
	Score *int64 `json:"score"`
}

// UsersHandler serves single-user reads and writes.
type UsersHandler struct {
	deps Dependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps Dependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

// HandleAddUser handles POST /api/users/addUser requests.
func (h *UsersHandler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_user"
	if r.Method != http.MethodPost {
		notFound(w, r)
		return
	}
	var req addUserRequest
	if err := decodeBody(op, w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.input(op)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.deps.AddUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleUpdateScore handles PUT /api/users/updateScore/{id} requests.
func (h *UsersHandler) HandleUpdateScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_score"
	if r.Method != http.MethodPut {
		notFound(w, r)
		return
	}
	id, err := parseID(op, r, updateScorePath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateScoreRequest
	if err := decodeBody(op, w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Score == nil {
		writeError(w, r, apperror.Validation(op, "invalid score", "score is required"))
		return
	}
	user, err := h.deps.UpdateScore(r.Context(), validation.UpdateScoreInput{ID: id, Score: *req.Score})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGetUser handles GET /api/users/getUser/{id} requests.
func (h *UsersHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user"
	if r.Method != http.MethodGet {
		notFound(w, r)
		return
	}
	id, err := parseID(op, r, getUserPath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.deps.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleGetRank handles GET /api/users/getRank/{id} requests.
func (h *UsersHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		notFound(w, r)
		return
	}
	id, err := parseID(op, r, getRankPath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.deps.Rank(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
