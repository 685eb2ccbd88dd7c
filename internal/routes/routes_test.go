package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realtime-chat-api/internal/auth"
	"realtime-chat-api/internal/config"
	"realtime-chat-api/internal/realtime"
	"realtime-chat-api/internal/store"
	"realtime-chat-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	tokens := auth.NewTokens(auth.TokenConfig{
		Secret:   "routes-test-secret",
		Issuer:   "realtime-chat-api",
		Audience: "realtime-chat-clients",
		TTL:      time.Hour,
	})
	messages := store.NewGormMessageStore(db)
	cfg := config.Config{
		AllowedOrigins:  []string{"http://chat.example"},
		HistoryLimit:    50,
		HistoryMaxLimit: 200,
		SendQueueSize:   8,
		ReadLimit:       4096,
		WriteWait:       time.Second,
	}
	r := SetupRoutes(Deps{
		Config:        cfg,
		Authenticator: auth.NewCachedResolver(tokens, time.Minute),
		Tokens:        tokens,
		Users:         store.NewUserStore(db),
		Messages:      messages,
		Hub:           realtime.NewHub(messages, zap.NewNop(), realtime.Options{DefaultRoom: "global"}),
		Log:           zap.NewNop(),
	})
	return WithCORS(r, cfg.AllowedOrigins)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/api/users/online", "/api/users/search?query=al", "/api/conversations", "/api/rooms/global/messages", "/api/messages/bob", "/ws"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRegisterLoginAndFetchHistory(t *testing.T) {
	r := newTestRouter(t)

	creds, _ := json.Marshal(map[string]string{"username": "alice", "password": "wonderland"})
	for _, path := range []string{"/api/register", "/api/login"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(creds))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		require.Less(t, w.Code, 300, path)
		if path == "/api/login" {
			var resp struct{ Token string }
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Token)

			hw := httptest.NewRecorder()
			hreq := httptest.NewRequest(http.MethodGet, "/api/rooms/global/messages", nil)
			hreq.Header.Set("Authorization", "Bearer "+resp.Token)
			r.ServeHTTP(hw, hreq)
			require.Equal(t, http.StatusOK, hw.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "http://chat.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "http://chat.example", w.Header().Get("Access-Control-Allow-Origin"))
}
