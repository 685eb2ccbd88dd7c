package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"realtime-chat-api/internal/middleware"
	"realtime-chat-api/internal/models"
	"realtime-chat-api/internal/realtime"
	"realtime-chat-api/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errBadPage = errors.New("limit must be a positive integer and before a unix millisecond timestamp")

// MarkReadRequest represents the read-receipt payload
type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required,min=1,dive,required"`
}

// MessageHandler serves message history and read receipts.
type MessageHandler struct {
	messages     store.MessageStore
	defaultLimit int
	maxLimit     int
	log          *zap.Logger
}

func NewMessageHandler(messages store.MessageStore, defaultLimit, maxLimit int, log *zap.Logger) *MessageHandler {
	if defaultLimit <= 0 {
		defaultLimit = store.DefaultHistoryLimit
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &MessageHandler{messages: messages, defaultLimit: defaultLimit, maxLimit: maxLimit, log: log}
}

// GetRoomHistory returns the newest room messages
// GET /api/rooms/:room/messages?limit=&before=
func (h *MessageHandler) GetRoomHistory(c *gin.Context) {
	room := realtime.TruncateName(c.Param("room"))
	limit, before, err := h.page(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messages, err := h.messages.GetHistory(c.Request.Context(), room, limit, before)
	if err != nil {
		h.log.Error("room history", zap.String("room", room), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	respondMessages(c, messages)
}

// GetConversation returns the pairwise messages between the caller and another user
// GET /api/messages/:otherUserId?limit=&before=
func (h *MessageHandler) GetConversation(c *gin.Context) {
	me := c.GetString(middleware.ContextUserID)
	other := c.Param("otherUserId")
	limit, before, err := h.page(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messages, err := h.messages.GetConversation(c.Request.Context(), me, other, limit, before)
	if err != nil {
		h.log.Error("conversation", zap.String("user_id", me), zap.String("other", other), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	respondMessages(c, messages)
}

// MarkRead flags messages addressed to the caller as read
// POST /api/messages/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageIds is required"})
		return
	}

	me := c.GetString(middleware.ContextUserID)
	n, err := h.messages.MarkRead(c.Request.Context(), req.MessageIDs, me)
	if err != nil {
		h.log.Error("mark read", zap.String("user_id", me), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark messages as read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *MessageHandler) page(c *gin.Context) (int, *int64, error) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return 0, nil, errBadPage
		}
		limit = min(n, h.maxLimit)
	}

	var before *int64
	if raw := c.Query("before"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ts <= 0 {
			return 0, nil, errBadPage
		}
		before = &ts
	}
	return limit, before, nil
}

func respondMessages(c *gin.Context, messages []models.Message) {
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}
