package store

import (
	"context"
	"time"

	"realtime-chat-api/internal/models"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GormMessageStore implements MessageStore on top of gorm.
type GormMessageStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormMessageStore(db *gorm.DB) *GormMessageStore {
	return &GormMessageStore{db: db, now: time.Now}
}

func (s *GormMessageStore) Save(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.UnixMilli(msg.TS)
	}
	if msg.Type == "" {
		msg.Type = models.TypeText
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return errors.Wrapf(ErrPersist, "save %s: %v", msg.ID, err)
	}
	return nil
}

func (s *GormMessageStore) MarkDelivered(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND delivered = ?", id, false).
		Updates(map[string]any{"delivered": true, "delivered_at": s.now()}).Error
	if err != nil {
		return errors.Wrapf(ErrPersist, "mark delivered %s: %v", id, err)
	}
	return nil
}

func (s *GormMessageStore) MarkRead(ctx context.Context, ids []string, reader string) (int64, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 || reader == "" {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id IN ? AND receiver_id = ? AND read = ?", ids, reader, false).
		Updates(map[string]any{"read": true, "read_at": s.now()})
	if res.Error != nil {
		return 0, errors.Wrapf(ErrPersist, "mark read for %s: %v", reader, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormMessageStore) GetHistory(ctx context.Context, room string, limit int, before *int64) ([]models.Message, error) {
	query := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("room = ? AND receiver_id = ?", room, "")
	return s.page(query, limit, before)
}

func (s *GormMessageStore) GetConversation(ctx context.Context, a, b string, limit int, before *int64) ([]models.Message, error) {
	query := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
	return s.page(query, limit, before)
}

// conversationHead is the newest message sequence exchanged with one peer.
type conversationHead struct {
	PeerID  string
	LastSeq uint64
}

func (s *GormMessageStore) ListConversations(ctx context.Context, userID string, limit int) ([]ConversationSummary, error) {
	if userID == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	db := s.db.WithContext(ctx)

	var heads []conversationHead
	err := db.Model(&models.Message{}).
		Select("CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer_id, MAX(seq) AS last_seq", userID).
		Where("receiver_id <> '' AND (sender_id = ? OR receiver_id = ?)", userID, userID).
		Group("peer_id").
		Order("last_seq desc").
		Limit(limit).
		Scan(&heads).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list conversations for %s", userID)
	}
	if len(heads) == 0 {
		return nil, nil
	}

	var last []models.Message
	seqs := lo.Map(heads, func(h conversationHead, _ int) uint64 { return h.LastSeq })
	if err := db.Where("seq IN ?", seqs).Find(&last).Error; err != nil {
		return nil, errors.Wrap(err, "load last messages")
	}
	bySeq := lo.KeyBy(last, func(m models.Message) uint64 { return m.Seq })

	var unread []struct {
		PeerID string
		Unread int64
	}
	err = db.Model(&models.Message{}).
		Select("sender_id AS peer_id, COUNT(*) AS unread").
		Where("receiver_id = ? AND read = ?", userID, false).
		Group("sender_id").
		Scan(&unread).Error
	if err != nil {
		return nil, errors.Wrapf(err, "count unread for %s", userID)
	}
	unreadBy := make(map[string]int64, len(unread))
	for _, u := range unread {
		unreadBy[u.PeerID] = u.Unread
	}

	out := make([]ConversationSummary, 0, len(heads))
	for _, h := range heads {
		msg, ok := bySeq[h.LastSeq]
		if !ok {
			continue
		}
		out = append(out, ConversationSummary{PeerID: h.PeerID, LastMessage: msg, Unread: unreadBy[h.PeerID]})
	}
	return out, nil
}

func (s *GormMessageStore) page(query *gorm.DB, limit int, before *int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if before != nil {
		query = query.Where("ts < ?", *before)
	}
	var msgs []models.Message
	if err := query.Order("ts desc").Order("seq desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	return msgs, nil
}

var _ MessageStore = (*GormMessageStore)(nil)
