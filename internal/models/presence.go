package models

import "time"

type PresenceState string

const (
	PresenceOnline  PresenceState = "online"
	PresenceIdle    PresenceState = "idle"
	PresenceOffline PresenceState = "offline"
)

// PresenceEntry is one user's presence as shared with clients.
type PresenceEntry struct {
	UserID       string        `json:"userId"`
	State        PresenceState `json:"state"`
	LastActiveAt *time.Time    `json:"lastActiveAt,omitempty"`
	LastSeenAt   *time.Time    `json:"lastSeenAt,omitempty"`
}
