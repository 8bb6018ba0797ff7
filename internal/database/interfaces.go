package database

import (
	"context"
	"errors"

	"direct-chat/internal/models"
)

// maxHistoryPage bounds a single History call when no limit is given.
const maxHistoryPage = 500

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsersExcept(ctx context.Context, id string) ([]*models.User, error)
}

// ConversationRepository is the authoritative message history. PersistMessage
// assigns the message identity; History returns a conversation in insertion
// order, starting after the afterID cursor (0 for the beginning).
type ConversationRepository interface {
	PersistMessage(ctx context.Context, msg *models.NewMessage) (*models.Message, error)
	History(ctx context.Context, userA, userB string, afterID int64, limit int) ([]*models.Message, error)
}

type Database interface {
	UserRepository
	ConversationRepository
	Close() error
}
