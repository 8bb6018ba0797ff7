package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"direct-chat/internal/models"
	"direct-chat/pkg/logger"
	"direct-chat/pkg/snowflake"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

type PostgresDB struct {
	pool *pgxpool.Pool
	ids  *snowflake.Node
}

func NewPostgresDB(ctx context.Context, databaseURL string, ids *snowflake.Node) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool, ids: ids}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id::text, username, email, password_hash, avatar_url, created_at FROM users WHERE email = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.AvatarURL, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id::text, username, email, avatar_url, created_at`

	user := &models.User{}
	err = db.pool.QueryRow(ctx, query, uuid.NewString(), req.Username, strings.ToLower(req.Email), string(hash)).Scan(
		&user.ID, &user.Username, &user.Email, &user.AvatarURL, &user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `SELECT id::text, username, email, avatar_url, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.AvatarURL, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	return user, nil
}

func (db *PostgresDB) ListUsersExcept(ctx context.Context, id string) ([]*models.User, error) {
	query := `
		SELECT id::text, username, email, avatar_url, created_at
		FROM users
		WHERE id::text <> $1
		ORDER BY username`

	rows, err := db.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.AvatarURL, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// Conversation Repository Implementation
func (db *PostgresDB) PersistMessage(ctx context.Context, msg *models.NewMessage) (*models.Message, error) {
	low, high := models.ConversationKey(msg.SenderID, msg.RecipientID)

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Conversations are created lazily on the first message between a pair.
	var conversationID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (user_low, user_high, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_low, user_high) DO UPDATE SET updated_at = NOW()
		RETURNING id`, low, high).Scan(&conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert conversation: %w", err)
	}

	persisted := &models.Message{
		ID:          db.ids.Generate(),
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Body:        msg.Body,
		ImageRef:    msg.ImageRef,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, recipient_id, body, image_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		persisted.ID, conversationID, persisted.SenderID, persisted.RecipientID,
		persisted.Body, persisted.ImageRef, snowflake.Time(persisted.ID).UTC(),
	).Scan(&persisted.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}

	return persisted, nil
}

func (db *PostgresDB) History(ctx context.Context, userA, userB string, afterID int64, limit int) ([]*models.Message, error) {
	low, high := models.ConversationKey(userA, userB)

	query := `
		SELECT m.id, m.sender_id::text, m.recipient_id::text, m.body, m.image_ref, m.created_at
		FROM messages m
		JOIN conversations c ON m.conversation_id = c.id
		WHERE c.user_low = $1 AND c.user_high = $2 AND m.id > $3
		ORDER BY m.id ASC
		LIMIT $4`

	if limit <= 0 {
		limit = maxHistoryPage
	}

	rows, err := db.pool.Query(ctx, query, low, high, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Body, &msg.ImageRef, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
