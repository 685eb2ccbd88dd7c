package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"realtime-chat-api/internal/middleware"
	"realtime-chat-api/internal/models"
	"realtime-chat-api/internal/realtime"
	"realtime-chat-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"isOnline"`
}

const (
	minSearchLength   = 2
	searchResultLimit = 20
)

// UserHandler reports who is online and finds accounts by name.
type UserHandler struct {
	users    *store.UserStore
	presence *realtime.Presence
	log      *zap.Logger
}

func NewUserHandler(users *store.UserStore, presence *realtime.Presence, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, presence: presence, log: log}
}

// GetOnlineUsers returns every identity with a live connection
// GET /api/users/online
func (h *UserHandler) GetOnlineUsers(c *gin.Context) {
	online := h.presence.Online()

	users, err := h.users.FindByIDs(c.Request.Context(), online)
	if err != nil {
		h.log.Error("load online users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	names := lo.SliceToMap(users, func(u models.User) (string, string) { return u.ID, u.Username })

	// Map to safe response payload
	resp := lo.Map(online, func(id string, _ int) UserResponse {
		name, ok := names[id]
		if !ok {
			name = id
		}
		return UserResponse{ID: id, Username: name, IsOnline: true}
	})

	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}

// SearchUsers finds other accounts whose username contains the query
// GET /api/users/search?query=
func (h *UserHandler) SearchUsers(c *gin.Context) {
	me := c.GetString(middleware.ContextUserID)
	query := strings.TrimSpace(c.Query("query"))
	if utf8.RuneCountInString(query) < minSearchLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search query must be at least 2 characters"})
		return
	}

	users, err := h.users.Search(c.Request.Context(), query, me, searchResultLimit)
	if err != nil {
		h.log.Error("search users", zap.String("query", query), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search users"})
		return
	}

	resp := lo.Map(users, func(u models.User, _ int) UserResponse {
		return UserResponse{ID: u.ID, Username: u.Username, IsOnline: h.presence.IsOnline(u.ID)}
	})
	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}
