package handlers

import (
	"net/http"
	"strconv"

	"realtime-chat-api/internal/middleware"
	"realtime-chat-api/internal/models"
	"realtime-chat-api/internal/realtime"
	"realtime-chat-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ConversationResponse summarizes the caller's pairwise chat with one peer
type ConversationResponse struct {
	UserID      string         `json:"userId"`
	Username    string         `json:"username"`
	IsOnline    bool           `json:"isOnline"`
	LastMessage models.Message `json:"lastMessage"`
	IsSentByMe  bool           `json:"isSentByMe"`
	Unread      int64          `json:"unread"`
}

// ConversationHandler lists the caller's pairwise conversations.
type ConversationHandler struct {
	messages store.MessageStore
	users    *store.UserStore
	presence *realtime.Presence
	maxLimit int
	log      *zap.Logger
}

func NewConversationHandler(messages store.MessageStore, users *store.UserStore, presence *realtime.Presence, maxLimit int, log *zap.Logger) *ConversationHandler {
	if maxLimit <= 0 {
		maxLimit = store.DefaultHistoryLimit
	}
	return &ConversationHandler{messages: messages, users: users, presence: presence, maxLimit: maxLimit, log: log}
}

// GetConversations returns one entry per peer, most recent first
// GET /api/conversations?limit=
func (h *ConversationHandler) GetConversations(c *gin.Context) {
	me := c.GetString(middleware.ContextUserID)
	limit := h.maxLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, h.maxLimit)
	}

	summaries, err := h.messages.ListConversations(c.Request.Context(), me, limit)
	if err != nil {
		h.log.Error("list conversations", zap.String("user_id", me), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	peers := lo.Map(summaries, func(s store.ConversationSummary, _ int) string { return s.PeerID })
	users, err := h.users.FindByIDs(c.Request.Context(), peers)
	if err != nil {
		h.log.Error("load conversation peers", zap.String("user_id", me), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}
	names := lo.SliceToMap(users, func(u models.User) (string, string) { return u.ID, u.Username })

	resp := lo.Map(summaries, func(s store.ConversationSummary, _ int) ConversationResponse {
		name, ok := names[s.PeerID]
		if !ok {
			name = s.PeerID
		}
		return ConversationResponse{
			UserID:      s.PeerID,
			Username:    name,
			IsOnline:    h.presence.IsOnline(s.PeerID),
			LastMessage: s.LastMessage,
			IsSentByMe:  s.LastMessage.SenderID == me,
			Unread:      s.Unread,
		}
	})

	c.JSON(http.StatusOK, gin.H{
		"conversations": resp,
		"count":         len(resp),
	})
}
