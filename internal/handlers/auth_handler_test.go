package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realtime-chat-api/internal/auth"
	"realtime-chat-api/internal/store"
	"realtime-chat-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	users    *store.UserStore
	messages *store.GormMessageStore
	tokens   *auth.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	return &testEnv{
		db:       db,
		users:    store.NewUserStore(db),
		messages: store.NewGormMessageStore(db),
		tokens: auth.NewTokens(auth.TokenConfig{
			Secret:   "handler-test-secret",
			Issuer:   "realtime-chat-api",
			Audience: "realtime-chat-clients",
			TTL:      time.Hour,
		}),
	}
}

func (e *testEnv) authRouter() *gin.Engine {
	h := NewAuthHandler(e.users, e.tokens, zap.NewNop())
	r := gin.New()
	r.POST("/api/register", h.Register)
	r.POST("/api/login", h.Login)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, payload any, token string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterThenLogin(t *testing.T) {
	e := newTestEnv(t)
	r := e.authRouter()

	w := postJSON(t, r, "/api/register", map[string]string{"username": "alice", "password": "wonderland"}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, r, "/api/login", map[string]string{"username": "alice", "password": "wonderland"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "alice", resp.Username)

	claims, err := e.tokens.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.UserID, claims.UserID)

	stored, err := e.users.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotEqual(t, "wonderland", stored.Password)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	e := newTestEnv(t)
	r := e.authRouter()

	payload := map[string]string{"username": "alice", "password": "wonderland"}
	require.Equal(t, http.StatusCreated, postJSON(t, r, "/api/register", payload, "").Code)
	require.Equal(t, http.StatusConflict, postJSON(t, r, "/api/register", payload, "").Code)
}

func TestRegister_InvalidPayload(t *testing.T) {
	e := newTestEnv(t)
	r := e.authRouter()

	require.Equal(t, http.StatusBadRequest, postJSON(t, r, "/api/register", map[string]string{"username": "alice"}, "").Code)
	require.Equal(t, http.StatusBadRequest, postJSON(t, r, "/api/register", map[string]string{"username": "alice", "password": "123"}, "").Code)
	require.Equal(t, http.StatusBadRequest, postJSON(t, r, "/api/register", map[string]string{"username": "two words", "password": "wonderland"}, "").Code)
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	e := newTestEnv(t)
	r := e.authRouter()
	require.Equal(t, http.StatusCreated, postJSON(t, r, "/api/register", map[string]string{"username": "alice", "password": "wonderland"}, "").Code)

	w := postJSON(t, r, "/api/login", map[string]string{"username": "alice", "password": "not-it"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(t, r, "/api/login", map[string]string{"username": "nobody", "password": "whatever"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
