// file: router/router_test.go

package router_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"smad-api/app"
	"smad-api/config"
	"smad-api/logger"
	"smad-api/model"
	"smad-api/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "router-test-secret"

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestMain(m *testing.M) {
	logger.Log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// memoryRepo is an in-memory IUserRepository for end-to-end router tests.
type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*model.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, users: map[int64]*model.User{}}
}

func clone(u *model.User) *model.User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	return &c
}

func (r *memoryRepo) CreateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Login == user.Login {
			return &duplicateError{login: user.Login}
		}
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = clone(user)
	return nil
}

type duplicateError struct{ login string }

func (e *duplicateError) Error() string {
	return `pq: duplicate key value violates unique constraint "users_login_key"`
}

func (r *memoryRepo) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Login == login {
			return clone(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memoryRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *memoryRepo) GetAllUsers(_ context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := []*model.User{}
	for id := int64(1); id < r.nextID; id++ {
		if u, ok := r.users[id]; ok {
			users = append(users, clone(u))
		}
	}
	return users, nil
}

func (r *memoryRepo) UpdateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	updated := clone(user)
	updated.RefreshToken = current.RefreshToken
	r.users[user.ID] = updated
	return nil
}

func (r *memoryRepo) UpdateRefreshToken(_ context.Context, id int64, refreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.RefreshToken = refreshToken
	return nil
}

func (r *memoryRepo) GetRefreshToken(_ context.Context, id int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return "", repository.ErrUserNotFound
	}
	return u.RefreshToken, nil
}

func (r *memoryRepo) DeleteUser(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

type testEnv struct {
	handler http.Handler
	repo    *memoryRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newMemoryRepo()
	seed := func(login string, roles ...string) {
		hash, err := bcrypt.GenerateFromPassword([]byte(login), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, repo.CreateUser(context.Background(), &model.User{
			Login:    login,
			Password: string(hash),
			Roles:    roles,
			Settings: model.Settings{Theme: model.DefaultTheme},
		}))
	}
	seed("TEST", model.RoleUser)
	seed("ADMINONLY", model.RoleAdmin)

	cfg := &config.Config{
		Server:    config.ServerConfig{Port: "3000"},
		JWT:       config.JWTConfig{SecretKey: testSecret, AccessTokenTTL: 600},
		Security:  config.SecurityConfig{BcryptCost: bcrypt.MinCost},
		RateLimit: config.RateLimitConfig{LoginPerSecond: 100, LoginBurst: 100},
	}
	a, err := app.New(cfg, repo)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &testEnv{handler: a.Router, repo: repo}
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T, login string) model.LoginResult {
	t.Helper()
	rr := e.do(http.MethodPost, "/api/login", `{"login":"`+login+`","password":"`+login+`"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var result model.LoginResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	return result
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("success", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/login", `{"login":"TEST","password":"TEST"}`, nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.NotEmpty(t, body["accessToken"])
		assert.Regexp(t, uuidPattern, body["refreshToken"])
		assert.Equal(t, map[string]interface{}{"theme": model.DefaultTheme}, body["settings"])

		stored, err := env.repo.GetUserByLogin(context.Background(), "TEST")
		require.NoError(t, err)
		assert.Equal(t, body["refreshToken"], stored.RefreshToken)
	})

	t.Run("bad login", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/login", `{"login":"NOPE","password":"TEST"}`, nil)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "BAD_LOGIN", errorBody(t, rr)["code"])
	})

	t.Run("bad password", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/login", `{"login":"TEST","password":"WRONG"}`, nil)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "BAD_PASSWORD", errorBody(t, rr)["code"])
	})
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	tokens := env.login(t, "TEST")

	t.Run("success", func(t *testing.T) {
		headers := bearer(tokens.AccessToken)
		headers["Refresh"] = tokens.RefreshToken
		rr := env.do(http.MethodGet, "/api/refresh", "", headers)

		require.Equal(t, http.StatusOK, rr.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.NotEmpty(t, body["accessToken"])
		assert.NotContains(t, body, "refreshToken")
	})

	t.Run("wrong refresh token", func(t *testing.T) {
		headers := bearer(tokens.AccessToken)
		headers["Refresh"] = "xxxxx"
		rr := env.do(http.MethodGet, "/api/refresh", "", headers)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		body := errorBody(t, rr)
		assert.Equal(t, "REFRESH_NOT_ALLOWED", body["code"])
		assert.Equal(t, "Refresh token has been revoked", body["message"])
	})

	t.Run("missing refresh header", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/api/refresh", "", bearer(tokens.AccessToken))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "MISSING_REFRESH_TOKEN", errorBody(t, rr)["code"])
	})

	t.Run("older refresh token is revoked by a new login", func(t *testing.T) {
		newer := env.login(t, "TEST")
		headers := bearer(newer.AccessToken)
		headers["Refresh"] = tokens.RefreshToken
		rr := env.do(http.MethodGet, "/api/refresh", "", headers)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "REFRESH_NOT_ALLOWED", errorBody(t, rr)["code"])
	})
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)
	tokens := env.login(t, "TEST")

	t.Run("valid token", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/api/validate", "", bearer(tokens.AccessToken))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.String())
	})

	t.Run("lowercase scheme", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/api/validate", "", map[string]string{"Authorization": "bearer " + tokens.AccessToken})

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("no token", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/api/validate", "", nil)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "NO_TOKEN_FOUND", errorBody(t, rr)["code"])
	})

	t.Run("bad signature", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/api/validate", "", bearer("xxxxx"))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "INVALID_TOKEN_SIGNATURE", errorBody(t, rr)["code"])
	})

	t.Run("expired", func(t *testing.T) {
		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &model.AppClaims{
			ID:    1,
			Login: "TEST",
			Roles: []string{model.RoleUser},
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		raw, err := expired.SignedString([]byte(testSecret))
		require.NoError(t, err)

		rr := env.do(http.MethodGet, "/api/validate", "", bearer(raw))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		body := errorBody(t, rr)
		assert.Equal(t, "TOKEN_EXPIRED", body["code"])
		assert.Equal(t, "Jwt token has expired", body["message"])
		assert.Regexp(t, uuidPattern, body["reqId"])
	})

	t.Run("deleted user", func(t *testing.T) {
		gone := env.login(t, "ADMINONLY")
		require.NoError(t, env.repo.DeleteUser(context.Background(), 2))

		rr := env.do(http.MethodGet, "/api/validate", "", bearer(gone.AccessToken))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "USER_NOT_FOUND", errorBody(t, rr)["code"])
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	tokens := env.login(t, "TEST")

	rr := env.do(http.MethodGet, "/api/logout", "", bearer(tokens.AccessToken))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(http.MethodGet, "/api/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	headers := bearer(tokens.AccessToken)
	headers["Refresh"] = tokens.RefreshToken
	rr = env.do(http.MethodGet, "/api/refresh", "", headers)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnmappedRoute(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/api/unknown", "", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	body := errorBody(t, rr)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Regexp(t, uuidPattern, body["reqId"])
	assert.Equal(t, rr.Header().Get("X-Request-ID"), body["reqId"])
}

func TestUsersAPI(t *testing.T) {
	env := newTestEnv(t)
	auth := bearer(env.login(t, "TEST").AccessToken)

	t.Run("requires a token", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/api/Users", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("requires the USER role", func(t *testing.T) {
		adminOnly := bearer(env.login(t, "ADMINONLY").AccessToken)
		rr := env.do(http.MethodGet, "/api/Users", "", adminOnly)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "FORBIDDEN_OPERATION", errorBody(t, rr)["code"])
	})

	var createdID float64
	t.Run("create", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/Users", `{"login":"alice","password":"s3cret"}`, auth)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "alice", body["login"])
		assert.Equal(t, []interface{}{model.RoleUser}, body["roles"])
		assert.NotContains(t, body, "password")
		assert.NotContains(t, body, "refreshToken")
		createdID = body["id"].(float64)
	})

	t.Run("create with invalid body", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/Users", `{"login":"bob"}`, auth)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorBody(t, rr)["code"])
	})

	t.Run("blank login and overlong password are rejected", func(t *testing.T) {
		cases := []struct{ method, path, body string }{
			{http.MethodPost, "/api/Users", `{"login":"   ","password":"x"}`},
			{http.MethodPost, "/api/Users", `{"login":"dave","password":"` + strings.Repeat("p", 73) + `"}`},
			{http.MethodPatch, "/api/Users/1", `{"login":" "}`},
			{http.MethodPatch, "/api/Users/1", `{"password":"` + strings.Repeat("p", 73) + `"}`},
		}
		for _, tc := range cases {
			rr := env.do(tc.method, tc.path, tc.body, auth)

			assert.Equal(t, http.StatusBadRequest, rr.Code, tc.body)
			assert.Equal(t, "VALIDATION_ERROR", errorBody(t, rr)["code"], tc.body)
		}
	})

	t.Run("create duplicate", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/Users", `{"login":"alice","password":"x"}`, auth)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("list never exposes passwords", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/api/Users", "", auth)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "password")
		assert.NotContains(t, rr.Body.String(), "$2a$")
		var users []map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
		assert.Len(t, users, 3)
	})

	t.Run("patch", func(t *testing.T) {
		rr := env.do(http.MethodPatch, "/api/Users/3", `{"settings":{"theme":"theme-dark"}}`, auth)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), "theme-dark")
		assert.Equal(t, float64(3), createdID)
	})

	t.Run("missing user", func(t *testing.T) {
		rr := env.do(http.MethodGet, "/api/Users/999", "", auth)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		body := errorBody(t, rr)
		assert.Equal(t, "RESOURCE_NOT_FOUND", body["code"])
		assert.Equal(t, "Resource with id '999' does not exist", body["message"])
	})

	t.Run("delete", func(t *testing.T) {
		rr := env.do(http.MethodDelete, "/api/Users/3", "", auth)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = env.do(http.MethodGet, "/api/Users/3", "", auth)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPublicEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"API is healthy and running"}`, rr.Body.String())

	rr = env.do(http.MethodPost, "/api/log/info", `{"msg":"client"}`, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(http.MethodPost, "/api/log/xxx", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "xxx is not a valid log level", errorBody(t, rr)["message"])

	env.do(http.MethodPost, "/api/login", `{"login":"TEST","password":"WRONG"}`, nil)
	rr = env.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `auth_failures_total{code="BAD_PASSWORD"} 1`)
	assert.Contains(t, rr.Body.String(), `path="POST /api/login"`)

	rr = env.do(http.MethodOptions, "/api/login", "", map[string]string{"Origin": "http://localhost:4200"})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = env.do(http.MethodGet, "/swagger/doc.json", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/login")
}
