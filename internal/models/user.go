package models

import (
	"time"
)

// User represents a registered chat account
type User struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	Username  string     `json:"username" gorm:"unique;not null"`
	Password  string     `json:"-" gorm:"not null"`
	IsOnline  bool       `json:"isOnline" gorm:"column:is_online;default:false"`
	LastSeen  *time.Time `json:"lastSeen,omitempty" gorm:"column:last_seen"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}

// Identity is the authenticated principal behind a connection.
// It never changes for the lifetime of that connection.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}
