package cache

import "time"

// Cache is a key-value store whose entries expire at an absolute deadline.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(key K) (V, bool)

	// Set stores the value for ttl. If ttl <= 0, the entry does not expire.
	Set(key K, value V, ttl time.Duration)

	// SetUntil stores the value until the given deadline. A zero deadline never expires.
	SetUntil(key K, value V, deadline time.Time)

	Delete(key K)

	// Len returns the number of non-expired items currently stored.
	Len() int

	// PurgeExpired removes expired entries and returns how many were dropped.
	PurgeExpired() int
}
