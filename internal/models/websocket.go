package models

import "time"

type EventType string

// Client to server.
const (
	EventTypingStart        EventType = "typing:start"
	EventTypingStop         EventType = "typing:stop"
	EventMessageSend        EventType = "message:send"
	EventConversationSelect EventType = "conversation:select"
)

// Server to client.
const (
	EventPresenceSnapshot EventType = "presence:snapshot"
	EventPresenceDelta    EventType = "presence:delta"
	EventTypingStarted    EventType = "typing:started"
	EventTypingStopped    EventType = "typing:stopped"
	EventMessageNew       EventType = "message:new"
	EventMessageAck       EventType = "message:ack"
	EventUnreadUpdate     EventType = "unread:update"
	EventError            EventType = "error"
)

// ClientEvent is a frame received from a client.
type ClientEvent struct {
	Type      EventType `json:"type"`
	PeerID    string    `json:"peerId,omitempty"`
	Body      string    `json:"body,omitempty"`
	ImageRef  string    `json:"imageRef,omitempty"`
	ClientRef string    `json:"clientRef,omitempty"`
}

// ServerEvent is a frame pushed to a client. Only the fields relevant to
// Type are set.
type ServerEvent struct {
	Type         EventType       `json:"type"`
	Entries      []PresenceEntry `json:"entries,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	State        PresenceState   `json:"state,omitempty"`
	LastActiveAt *time.Time      `json:"lastActiveAt,omitempty"`
	LastSeenAt   *time.Time      `json:"lastSeenAt,omitempty"`
	FromUserID   string          `json:"fromUserId,omitempty"`
	Message      *Message        `json:"message,omitempty"`
	PeerID       string          `json:"peerId,omitempty"`
	Count        *int            `json:"count,omitempty"`
	ClientRef    string          `json:"clientRef,omitempty"`
	Error        string          `json:"error,omitempty"`
}
