package realtime

import (
	"encoding/json"
	"strings"

	"realtime-chat-api/internal/models"
)

// Inbound actions.
const (
	ActionMessage     = "message"
	ActionJoin        = "join"
	ActionLeave       = "leave"
	ActionTypingStart = "typing_start"
	ActionTypingStop  = "typing_stop"
	ActionMarkRead    = "mark_read"
	ActionPing        = "ping"
)

// Outbound event names.
const (
	EventMessage      = "message"
	EventMessageSent  = "message_sent"
	EventMessageError = "message_error"
	EventSystem       = "system"
	EventPresence     = "presence"
	EventPresenceList = "presence_list"
	EventTypingStart  = "typing_start"
	EventTypingStop   = "typing_stop"
	EventMessagesRead = "messages_read"
	EventPong         = "pong"
)

// InboundFrame is what a client sends over its connection.
type InboundFrame struct {
	Action     string   `json:"action,omitempty"`
	User       string   `json:"user,omitempty"`
	Room       string   `json:"room,omitempty"`
	To         string   `json:"to,omitempty"`
	Text       string   `json:"text,omitempty"`
	Type       string   `json:"type,omitempty"`
	MediaURL   string   `json:"mediaUrl,omitempty"`
	TempID     string   `json:"tempId,omitempty"`
	MessageIDs []string `json:"messageIds,omitempty"`
}

// ParseInbound decodes raw into a frame. Anything that is not a JSON object
// carrying either text or an action is taken as the literal text of a message.
func ParseInbound(raw []byte) InboundFrame {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return InboundFrame{Action: ActionMessage, Text: string(raw)}
	}
	f.Action = strings.ToLower(strings.TrimSpace(f.Action))
	switch f.Action {
	case ActionMessage, ActionJoin, ActionLeave, ActionTypingStart, ActionTypingStop, ActionMarkRead, ActionPing:
	case "":
		switch {
		case f.Text != "" || f.MediaURL != "":
			f.Action = ActionMessage
		case f.Room != "":
			f.Action = ActionJoin
		default:
			return InboundFrame{Action: ActionMessage, Text: string(raw)}
		}
	default:
		return InboundFrame{Action: ActionMessage, Text: string(raw)}
	}
	return f
}

// ChatFrame carries a routed message to its recipients.
type ChatFrame struct {
	Event    string `json:"event"`
	ID       string `json:"id"`
	User     string `json:"user"`
	UserID   string `json:"userId"`
	Room     string `json:"room,omitempty"`
	To       string `json:"to,omitempty"`
	Text     string `json:"text"`
	Type     string `json:"type"`
	MediaURL string `json:"mediaUrl,omitempty"`
	TS       int64  `json:"ts"`
	TempID   string `json:"tempId,omitempty"`
}

func newChatFrame(m *models.Message) ChatFrame {
	return ChatFrame{
		Event:    EventMessage,
		ID:       m.ID,
		User:     m.SenderName,
		UserID:   m.SenderID,
		Room:     m.Room,
		To:       m.ReceiverID,
		Text:     m.Text,
		Type:     string(m.Type),
		MediaURL: m.MediaURL,
		TS:       m.TS,
	}
}

// SystemFrame announces a membership change in a room.
type SystemFrame struct {
	Event string `json:"event"`
	Sys   bool   `json:"sys"`
	Type  string `json:"type"`
	Text  string `json:"text"`
	Room  string `json:"room"`
	TS    int64  `json:"ts"`
}

// PresenceFrame reports that an identity came online or went offline.
type PresenceFrame struct {
	Event    string `json:"event"`
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	LastSeen *int64 `json:"lastSeen,omitempty"`
}

func newPresenceFrame(ev PresenceEvent) PresenceFrame {
	f := PresenceFrame{Event: EventPresence, UserID: ev.UserID, Online: ev.Online}
	if !ev.Online {
		ms := ev.At.UnixMilli()
		f.LastSeen = &ms
	}
	return f
}

// PresenceListFrame lists the identities online when a session connects.
type PresenceListFrame struct {
	Event string   `json:"event"`
	Users []string `json:"users"`
}

// TypingFrame relays a typing_start or typing_stop signal.
type TypingFrame struct {
	Event    string `json:"event"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Room     string `json:"room,omitempty"`
}

// ErrorFrame tells a sender its message was not accepted.
type ErrorFrame struct {
	Event  string `json:"event"`
	TempID string `json:"tempId,omitempty"`
	Error  string `json:"error"`
}

// ReadFrame tells a sender which of its messages were read.
type ReadFrame struct {
	Event      string   `json:"event"`
	MessageIDs []string `json:"messageIds"`
	ReadBy     string   `json:"readBy"`
}

// PongFrame answers an application-level ping.
type PongFrame struct {
	Event string `json:"event"`
	TS    int64  `json:"ts"`
}

// deliver encodes v once and queues it on every session. Sessions that cannot
// take it right now are skipped. It returns how many accepted the frame.
func deliver(sessions []Session, v any) int {
	return len(deliverAccepted(sessions, v))
}

func deliverAccepted(sessions []Session, v any) []Session {
	if len(sessions) == 0 {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	accepted := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Conn != nil && s.Conn.Send(payload) {
			accepted = append(accepted, s)
		}
	}
	return accepted
}
