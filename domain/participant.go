// Package domain contains core concepts of the chat system.
// This file defines chat members and their roles.
package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleNone   Role = "none"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// IDSeparator joins the parts of stored keys, so no ID may contain it.
const IDSeparator = ":"

// ValidID reports whether id may name a user or a chat.
func ValidID(id string) bool {
	return id != "" && !strings.Contains(id, IDSeparator)
}

// ChatMember links a user to a chat. (ChatID, UserID) is unique.
type ChatMember struct {
	ChatID   string    `json:"chatId"`
	UserID   string    `json:"userId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// User is the durable presence record. IsOnline is a best-effort mirror
// of the in-memory presence registry.
type User struct {
	ID       string    `json:"id"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}
