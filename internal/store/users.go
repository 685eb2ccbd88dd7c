package store

import (
	"context"
	"strings"
	"time"

	"realtime-chat-api/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ErrUserExists is returned when registering a username that is already taken.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when a lookup matches no user.
var ErrUserNotFound = errors.New("user not found")

// UserStore persists chat accounts and their last known presence.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
		return errors.Wrap(err, "check username")
	}
	if count > 0 {
		return ErrUserExists
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return errors.Wrap(err, "create user")
	}
	return nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &u, nil
}

func (s *UserStore) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("username asc").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "find users")
	}
	return users, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search returns accounts whose username contains query, ignoring ASCII case.
// The account exclude is never returned.
func (s *UserStore) Search(ctx context.Context, query, exclude string, limit int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("id <> ? AND username LIKE ? ESCAPE '\\'", exclude, "%"+likeEscaper.Replace(query)+"%").
		Order("username asc").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, errors.Wrap(err, "search users")
	}
	return users, nil
}

// PresenceChanged records the transition on the users table. Identities without
// an account row are ignored.
func (s *UserStore) PresenceChanged(ctx context.Context, userID string, online bool, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{"is_online": online, "last_seen": at}).Error
	if err != nil {
		return errors.Wrapf(err, "update presence for %s", userID)
	}
	return nil
}

var _ PresenceSink = (*UserStore)(nil)
