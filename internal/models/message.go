package models

import (
	"time"
)

// MessageType represents the kind of payload a message carries
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeFile  MessageType = "file"
	TypeAudio MessageType = "audio"
	TypeVideo MessageType = "video"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile, TypeAudio, TypeVideo:
		return true
	}
	return false
}

// Message represents a persisted chat message.
// A message targets either a Room (broadcast) or a ReceiverID (pairwise).
// Only Delivered and Read change after creation, and only from false to true.
type Message struct {
	Seq         uint64      `json:"-" gorm:"primaryKey;autoIncrement"`
	ID          string      `json:"id" gorm:"uniqueIndex;not null"`
	SenderID    string      `json:"senderId" gorm:"column:sender_id;index;not null"`
	SenderName  string      `json:"senderName" gorm:"column:sender_name"`
	Room        string      `json:"room,omitempty" gorm:"index:idx_messages_room_ts,priority:1"`
	ReceiverID  string      `json:"receiverId,omitempty" gorm:"column:receiver_id;index"`
	Text        string      `json:"text" gorm:"not null"`
	Type        MessageType `json:"type" gorm:"default:'text'"`
	MediaURL    string      `json:"mediaUrl,omitempty" gorm:"column:media_url"`
	TS          int64       `json:"ts" gorm:"column:ts;index:idx_messages_room_ts,priority:2"`
	CreatedAt   time.Time   `json:"createdAt"`
	Delivered   bool        `json:"delivered" gorm:"default:false"`
	DeliveredAt *time.Time  `json:"deliveredAt,omitempty" gorm:"column:delivered_at"`
	Read        bool        `json:"read" gorm:"default:false"`
	ReadAt      *time.Time  `json:"readAt,omitempty" gorm:"column:read_at"`
}

// TableName specifies the table name for Message Model
func (Message) TableName() string {
	return "messages"
}

// IsPairwise reports whether the message is addressed to a single identity.
func (m *Message) IsPairwise() bool {
	return m.ReceiverID != ""
}
