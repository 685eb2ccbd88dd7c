package auth

import (
	"context"
	"time"

	"realtime-chat-api/internal/cache"
	"realtime-chat-api/internal/models"
)

// Authenticator maps a handshake token to a stable identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Identity, error)
}

// Resolver authenticates bearer tokens issued by Tokens.
type Resolver struct {
	tokens *Tokens
}

func NewResolver(tokens *Tokens) *Resolver {
	return &Resolver{tokens: tokens}
}

func (r *Resolver) Authenticate(_ context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrInvalidToken
	}
	claims, err := r.tokens.ValidateToken(token)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{ID: claims.UserID, DisplayName: claims.Username}, nil
}

// resolved pairs an identity with the token's own expiry.
type resolved struct {
	identity  models.Identity
	expiresAt time.Time
}

// CachedResolver remembers verified tokens so reconnect storms skip signature checks.
// Entries never outlive the token's expiry.
type CachedResolver struct {
	tokens *Tokens
	ttl    time.Duration
	cache  cache.Cache[string, resolved]
}

// NewCachedResolver caches identities for ttl; a non-positive ttl disables caching.
func NewCachedResolver(tokens *Tokens, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		tokens: tokens,
		ttl:    ttl,
		cache: cache.NewTTLCache[string, resolved](cache.Options{
			MaxItems: 10_000,
			Clock:    func() time.Time { return tokens.now() },
		}),
	}
}

func (r *CachedResolver) Authenticate(_ context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrInvalidToken
	}
	if hit, ok := r.cache.Get(token); ok {
		return hit.identity, nil
	}

	claims, err := r.tokens.ValidateToken(token)
	if err != nil {
		return models.Identity{}, err
	}
	id := models.Identity{ID: claims.UserID, DisplayName: claims.Username}

	if r.ttl > 0 {
		deadline := r.tokens.now().Add(r.ttl)
		if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(deadline) {
			deadline = claims.ExpiresAt.Time
		}
		r.cache.SetUntil(token, resolved{identity: id, expiresAt: deadline}, deadline)
	}
	return id, nil
}
