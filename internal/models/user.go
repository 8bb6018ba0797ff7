package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RosterUser is a directory entry enriched with live presence.
type RosterUser struct {
	User
	State        PresenceState `json:"state"`
	LastActiveAt *time.Time    `json:"last_active_at,omitempty"`
	LastSeenAt   *time.Time    `json:"last_seen_at,omitempty"`
}
