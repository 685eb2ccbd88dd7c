//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package store

import (
	"context"
	"time"

	"realtime-chat-api/internal/models"

	perrors "github.com/pkg/errors"
)

// ErrPersist marks a failure to write to the message store.
var ErrPersist = perrors.New("persist message")

// DefaultHistoryLimit is used when a history query does not set a limit.
const DefaultHistoryLimit = 50

// MessageStore is the durable side of message routing.
type MessageStore interface {
	// Save persists a new message.
	Save(ctx context.Context, msg *models.Message) error

	// MarkDelivered flips the delivered flag of a message, once.
	MarkDelivered(ctx context.Context, id string) error

	// MarkRead flips the read flag of pairwise messages addressed to reader and
	// returns how many messages changed.
	MarkRead(ctx context.Context, ids []string, reader string) (int64, error)

	// GetHistory returns room messages newest first, strictly older than before when set.
	GetHistory(ctx context.Context, room string, limit int, before *int64) ([]models.Message, error)

	// GetConversation returns the pairwise messages between two identities, newest first.
	GetConversation(ctx context.Context, a, b string, limit int, before *int64) ([]models.Message, error)

	// ListConversations returns one summary per peer userID exchanged pairwise
	// messages with, most recent conversation first.
	ListConversations(ctx context.Context, userID string, limit int) ([]ConversationSummary, error)
}

// ConversationSummary is the latest message with one peer plus how many of
// that peer's messages the user has not read yet.
type ConversationSummary struct {
	PeerID      string
	LastMessage models.Message
	Unread      int64
}

// PresenceSink receives presence transitions after they are committed in memory.
type PresenceSink interface {
	PresenceChanged(ctx context.Context, userID string, online bool, at time.Time) error
}
