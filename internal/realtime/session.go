package realtime

import (
	"strings"
	"time"
	"unicode/utf8"

	"realtime-chat-api/internal/models"
)

// MaxNameLength bounds room names and display names, in runes.
const MaxNameLength = 32

// SessionID is a stable handle to a session record held by the Registry.
// Rooms and presence refer to sessions only through these handles.
type SessionID uint64

// Conn is the transport side of a live connection.
// Send must not block: it returns false when the connection cannot take the
// message right now (queue full or connection closed).
type Conn interface {
	Send(message []byte) bool
	Ping() error
	Close()
}

// Session is a snapshot of one live connection's state.
type Session struct {
	ID          SessionID
	ConnID      string
	Identity    models.Identity
	DisplayName string
	Room        string
	ConnectedAt time.Time
	Conn        Conn
}

type sessionRecord struct {
	Session
	acked bool
}

// TruncateName trims surrounding whitespace and cuts s to MaxNameLength runes.
func TruncateName(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxNameLength {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:MaxNameLength]))
}
