package realtime

import (
	"context"
	"errors"
	"time"

	"direct-chat/internal/models"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrHubClosed      = errors.New("hub closed")
)

// Conn is one live transport connection of an authenticated user.
//
// Send must not block: implementations enqueue the event and report
// ErrConnClosed or ErrSendBufferFull when the connection can no longer keep
// up. A failed Send is the signal the hub uses to reap dead connections.
// Close must be idempotent.
type Conn interface {
	ID() string
	UserID() string
	ConnectedAt() time.Time
	WantsSelfPresence() bool
	Send(ev *models.ServerEvent) error
	Close() error
}

// LastSeenStore mirrors last-seen timestamps outside the process.
type LastSeenStore interface {
	SaveLastSeen(ctx context.Context, userID string, at time.Time) error
}
