package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/config"
	sqliteRepo "github.com/sakif/recipe-api/internal/repository/sqlite"
)

const testSecret = "server-test-secret-0123456789"

func testConfig() *config.Config {
	return &config.Config{
		Port:        8080,
		FrontendURL: "http://localhost:5173",
		CORSOrigins: []string{"http://localhost:5173"},
		Database:    config.Database{Driver: config.DriverSQLite, Path: sqliteRepo.MemoryPath},
		JWT:         config.JWT{Secret: testSecret, ExpiresIn: time.Hour, Issuer: "recipe-api"},
		BcryptCost:  4,
	}
}

type testEnv struct {
	handler http.Handler
	db      *sqliteRepo.DB
	cfg     *config.Config
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	store, err := OpenStore(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv, err := New(cfg, store.Users, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	db, ok := store.Users.(*sqliteRepo.DB)
	require.True(t, ok)
	return &testEnv{handler: srv.Handler(), db: db, cfg: cfg}
}

type apiBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Token   string `json:"token"`
	User    struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

func (e *testEnv) do(t *testing.T, method, path, payload, token string) (int, apiBody) {
	t.Helper()
	var body io.Reader
	if payload != "" {
		body = bytes.NewBufferString(payload)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)

	var b apiBody
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b), "body: %s", rr.Body.String())
	}
	return rr.Code, b
}

// TestAuthFlow_RegisterMeDelete walks the whole lifecycle: register, use the
// token, then remove the account and watch the same token stop working.
func TestAuthFlow_RegisterMeDelete(t *testing.T) {
	env := newTestEnv(t, nil)

	status, reg := env.do(t, http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@x.com","password":"secret123"}`, "")
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, reg.Success)
	assert.Equal(t, "a@x.com", reg.User.Email)
	require.NotEmpty(t, reg.Token)

	status, me := env.do(t, http.MethodGet, "/api/auth/me", "", reg.Token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, reg.User.ID, me.User.ID)
	assert.Equal(t, "a@x.com", me.User.Email)

	require.NoError(t, env.db.Delete(context.Background(), reg.User.ID))

	status, gone := env.do(t, http.MethodGet, "/api/auth/me", "", reg.Token)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, gone.Success)
	assert.Equal(t, "user_not_found", gone.Error)
}

func TestAuthFlow_Login(t *testing.T) {
	env := newTestEnv(t, nil)
	status, _ := env.do(t, http.MethodPost, "/api/auth/register",
		`{"name":"Real","email":"real@x.com","password":"secret123"}`, "")
	require.Equal(t, http.StatusCreated, status)

	status, ok := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"REAL@x.com","password":"secret123"}`, "")
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, ok.Token)

	statusUnknown, unknown := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"unknown@x.com","password":"anything"}`, "")
	statusWrong, wrong := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"real@x.com","password":"wrongpassword"}`, "")

	assert.Equal(t, http.StatusBadRequest, statusUnknown)
	assert.Equal(t, statusUnknown, statusWrong)
	assert.Equal(t, unknown, wrong, "unknown email and wrong password must be indistinguishable")
}

func TestAuthFlow_DuplicateRegistration(t *testing.T) {
	env := newTestEnv(t, nil)
	payload := `{"name":"A","email":"a@x.com","password":"secret123"}`

	status, _ := env.do(t, http.MethodPost, "/api/auth/register", payload, "")
	require.Equal(t, http.StatusCreated, status)

	status, dup := env.do(t, http.MethodPost, "/api/auth/register", payload, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "duplicate_account", dup.Error)
}

func TestAuthFlow_ConcurrentRegistration(t *testing.T) {
	env := newTestEnv(t, nil)
	payload := `{"name":"A","email":"race@x.com","password":"secret123"}`

	const n = 5
	statuses := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(payload))
			rr := httptest.NewRecorder()
			env.handler.ServeHTTP(rr, req)
			statuses[i] = rr.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, s := range statuses {
		if s == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusBadRequest, s)
		}
	}
	assert.Equal(t, 1, created)
}

func TestGuard_TokenStates(t *testing.T) {
	env := newTestEnv(t, nil)
	_, reg := env.do(t, http.MethodPost, "/api/auth/register",
		`{"name":"A","email":"a@x.com","password":"secret123"}`, "")

	same, err := auth.NewTokenService(auth.TokenConfig{Secret: testSecret})
	require.NoError(t, err)
	expired, err := same.GenerateWithDuration(reg.User.ID, -time.Minute)
	require.NoError(t, err)

	other, err := auth.NewTokenService(auth.TokenConfig{Secret: "another-secret-entirely-123"})
	require.NoError(t, err)
	foreign, err := other.Generate(reg.User.ID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantCode string
	}{
		{name: "missing", token: "", wantCode: "missing_token"},
		{name: "garbage", token: "abc.def.ghi", wantCode: "invalid_token"},
		{name: "foreign secret", token: foreign, wantCode: "invalid_token"},
		{name: "expired", token: expired, wantCode: "token_expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, b := env.do(t, http.MethodGet, "/api/auth/me", "", tt.token)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, tt.wantCode, b.Error)
		})
	}
}

func TestRoutes_GoogleDisabledByDefault(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/google", bytes.NewBufferString(`{"credential":"x"}`))
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRoutes_GoogleEnabled(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Google = config.Google{
			ClientID:     "client.apps.googleusercontent.com",
			ClientSecret: "shh",
			RedirectURL:  "http://localhost:8080/api/auth/google/callback",
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "accounts.google.com")
}

func TestRoutes_HealthAndCORS(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_RejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = "short"

	store, err := OpenStore(context.Background(), cfg.Database)
	require.NoError(t, err)
	defer store.Close()

	_, err = New(cfg, store.Users, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConfiguration))
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.Database{Driver: "mysql"})
	assert.Error(t, err)
}
