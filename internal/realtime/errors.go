package realtime

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message text is empty")
	ErrNoTarget        = errors.New("message has no room or receiver")
)
