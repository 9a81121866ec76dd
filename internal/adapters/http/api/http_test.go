package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/leaderboard/internal/adapters/http/api"
	"github.com/okian/leaderboard/internal/adapters/repository"
	service "github.com/okian/leaderboard/internal/app"
	"github.com/okian/leaderboard/internal/domain/apperror"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// brokenStorage fails every ranking read with a storage error.
type brokenStorage struct {
	*service.Service
}

func (b brokenStorage) TopN(context.Context, int) ([]model.RankedUser, error) {
	return nil, apperror.Storage("app.top_n", errors.New("dial tcp: connection refused"))
}

func (b brokenStorage) Rebuild(context.Context) (service.RefreshResult, error) {
	return service.RefreshResult{}, apperror.Storage("app.rebuild", errors.New("dial tcp: connection refused"))
}

type errorEnvelope struct {
	Error struct {
		Status    int      `json:"status"`
		Code      string   `json:"code"`
		Message   string   `json:"message"`
		Details   []string `json:"details"`
		Timestamp string   `json:"timestamp"`
	} `json:"error"`
}

func newHandler(t *testing.T, deps api.Dependencies, stats api.StatsProvider) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	api.NewServer(deps, stats, api.WithMaxTopLimit(10), api.WithMaxNeighborRadius(3)).
		Register(context.Background(), mux)
	return api.RequestLogging(mux)
}

func newService(t *testing.T) *service.Service {
	t.Helper()
	svc := service.New(repository.NewMemoryStore(), service.WithRefreshInterval(0), service.WithNeighborRadius(1))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func addUser(h http.Handler, name string, score int64) model.User {
	w := do(h, http.MethodPost, "/api/users/addUser", fmt.Sprintf(`{"username":%q,"score":%d}`, name, score))
	So(w.Code, ShouldEqual, http.StatusCreated)
	return decode[model.User](w)
}

func TestUsersEndpoints(t *testing.T) {
	Convey("Given an API backed by an in-memory service", t, func() {
		svc := newService(t)
		h := newHandler(t, svc, svc)

		Convey("When a user is added", func() {
			w := do(h, http.MethodPost, "/api/users/addUser",
				`{"username":"alice","score":100,"img_url":"https://example.com/a.png"}`)

			Convey("Then it is created with an id and the legacy avatar alias", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
				u := decode[model.User](w)
				So(u.ID, ShouldBeGreaterThan, 0)
				So(u.Username, ShouldEqual, "alice")
				So(u.AvatarURL, ShouldEqual, "https://example.com/a.png")

				got := do(h, http.MethodGet, fmt.Sprintf("/api/users/getUser/%d", u.ID), "")
				So(got.Code, ShouldEqual, http.StatusOK)
				So(decode[model.User](got).Score, ShouldEqual, 100)
			})
		})

		Convey("When the body is invalid", func() {
			cases := []struct {
				body   string
				detail string
			}{
				{`{"username":"","score":1}`, "username must not be empty"},
				{`{"username":"bob"}`, "score is required"},
				{`{"score":1}`, "username is required"},
				{`{"username":"bob","score":-1}`, "score must be at least 0"},
				{`{"username":`, ""},
				{`{"username":"x","score":1} garbage`, "unexpected data after JSON body"},
				{`{"username":"x","score":1}{"username":"y","score":2}`, "unexpected data after JSON body"},
			}
			for _, c := range cases {
				w := do(h, http.MethodPost, "/api/users/addUser", c.body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				env := decode[errorEnvelope](w)
				So(env.Error.Status, ShouldEqual, http.StatusBadRequest)
				So(env.Error.Code, ShouldEqual, "validation_error")
				So(env.Error.Timestamp, ShouldNotBeEmpty)
				if c.detail != "" {
					So(env.Error.Details, ShouldContain, c.detail)
				}
			}
		})

		Convey("When the body ends with whitespace", func() {
			w := do(h, http.MethodPost, "/api/users/addUser", "{\"username\":\"dave\",\"score\":3}\n\t ")

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
			})
		})

		Convey("When a score is updated", func() {
			u := addUser(h, "carol", 10)
			w := do(h, http.MethodPut, fmt.Sprintf("/api/users/updateScore/%d", u.ID), `{"score":55}`)

			Convey("Then the new score is returned and ranked", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[model.User](w).Score, ShouldEqual, 55)

				r := do(h, http.MethodGet, fmt.Sprintf("/api/users/getRank/%d", u.ID), "")
				So(r.Code, ShouldEqual, http.StatusOK)
				ru := decode[model.RankedUser](r)
				So(ru.Rank, ShouldEqual, 1)
				So(ru.Score, ShouldEqual, 55)
			})
		})

		Convey("When the user is unknown", func() {
			for _, path := range []string{"/api/users/getUser/999", "/api/users/getRank/999", "/api/users/getUserWithNeighbors/999"} {
				w := do(h, http.MethodGet, path, "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode[errorEnvelope](w).Error.Code, ShouldEqual, "not_found")
			}
			w := do(h, http.MethodPut, "/api/users/updateScore/999", `{"score":1}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the id is malformed", func() {
			So(do(h, http.MethodGet, "/api/users/getUser/abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/api/users/getUser/0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPut, "/api/users/updateScore/1/2", `{"score":1}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the method is wrong", func() {
			So(do(h, http.MethodGet, "/api/users/addUser", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodPost, "/api/users/getUser/1", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestLeaderboardEndpoints(t *testing.T) {
	Convey("Given A=100, B=90, C=90, D=80", t, func() {
		svc := newService(t)
		h := newHandler(t, svc, svc)
		a := addUser(h, "A", 100)
		b := addUser(h, "B", 90)
		c := addUser(h, "C", 90)
		d := addUser(h, "D", 80)

		Convey("Then getTopUsers returns dense ranks", func() {
			w := do(h, http.MethodGet, "/api/users/getTopUsers/3", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			top := decode[[]model.RankedUser](w)
			So(len(top), ShouldEqual, 3)
			So([]int64{top[0].ID, top[1].ID, top[2].ID}, ShouldResemble, []int64{a.ID, b.ID, c.ID})
			So([]int{top[0].Rank, top[1].Rank, top[2].Rank}, ShouldResemble, []int{1, 2, 2})
		})

		Convey("Then limits are checked", func() {
			So(do(h, http.MethodGet, "/api/users/getTopUsers/0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/api/users/getTopUsers/x", "").Code, ShouldEqual, http.StatusBadRequest)
			w := do(h, http.MethodGet, "/api/users/getTopUsers/11", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[errorEnvelope](w).Error.Details, ShouldContain, "limit must be at most 10")
		})

		Convey("Then getUserWithNeighbors uses the default radius", func() {
			w := do(h, http.MethodGet, fmt.Sprintf("/api/users/getUserWithNeighbors/%d", d.ID), "")
			So(w.Code, ShouldEqual, http.StatusOK)
			got := decode[[]model.RankedUser](w)
			So(len(got), ShouldEqual, 3)
			So(got[0].Rank, ShouldEqual, 2)
			So(got[2].ID, ShouldEqual, d.ID)
		})

		Convey("Then an explicit radius is honoured and capped", func() {
			w := do(h, http.MethodGet, fmt.Sprintf("/api/users/getUserWithNeighbors/%d?radius=0", b.ID), "")
			So(w.Code, ShouldEqual, http.StatusOK)
			got := decode[[]model.RankedUser](w)
			So(len(got), ShouldEqual, 2)

			So(do(h, http.MethodGet, fmt.Sprintf("/api/users/getUserWithNeighbors/%d?radius=4", b.ID), "").Code,
				ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, fmt.Sprintf("/api/users/getUserWithNeighbors/%d?radius=-1", b.ID), "").Code,
				ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then a manual refresh publishes a new index", func() {
			w := do(h, http.MethodPost, "/api/leaderboard/refresh", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			res := decode[service.RefreshResult](w)
			So(res.Entries, ShouldEqual, 4)
			So(res.Version, ShouldBeGreaterThan, 0)
			So(do(h, http.MethodGet, "/api/leaderboard/refresh", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStorageFailures(t *testing.T) {
	Convey("Given a service whose storage is down", t, func() {
		svc := newService(t)
		h := newHandler(t, brokenStorage{svc}, svc)

		Convey("Then reads and refresh answer 500 with a safe message", func() {
			for _, r := range []struct{ method, path string }{
				{http.MethodGet, "/api/users/getTopUsers/5"},
				{http.MethodPost, "/api/leaderboard/refresh"},
			} {
				w := do(h, r.method, r.path, "")
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				env := decode[errorEnvelope](w)
				So(env.Error.Code, ShouldEqual, "storage_error")
				So(env.Error.Message, ShouldEqual, "storage unavailable")
				So(w.Body.String(), ShouldNotContainSubstring, "connection refused")
			}
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the API", t, func() {
		svc := newService(t)
		h := newHandler(t, svc, svc)

		Convey("Then / reports liveness", func() {
			w := do(h, http.MethodGet, "/", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, api.RootMessage)
		})

		Convey("Then unknown paths are 404 with an error body", func() {
			w := do(h, http.MethodGet, "/api/users/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode[errorEnvelope](w).Error.Status, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then /healthz exposes metrics", func() {
			do(h, http.MethodGet, "/", "")
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "leaderboard_service_http_requests_total")
		})

		Convey("Then /stats reports the service state", func() {
			addUser(h, "x", 1)
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[map[string]interface{}](w)
			So(stats["started"], ShouldEqual, true)
			So(stats["totalUsers"], ShouldEqual, float64(1))
		})

		Convey("Then an incoming request id is echoed", func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "req-1")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "req-1")
		})
	})
}
