package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"direct-chat/internal/models"
	"direct-chat/pkg/snowflake"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryDB keeps users and conversations in process memory. It backs
// development runs without DATABASE_URL and the service tests.
type MemoryDB struct {
	mu            sync.RWMutex
	ids           *snowflake.Node
	users         map[string]*models.User
	byEmail       map[string]string
	conversations map[[2]string][]*models.Message
	hashCost      int
}

func NewMemoryDB(ids *snowflake.Node) *MemoryDB {
	return &MemoryDB{
		ids:           ids,
		users:         make(map[string]*models.User),
		byEmail:       make(map[string]string),
		conversations: make(map[[2]string][]*models.Message),
		hashCost:      bcrypt.DefaultCost,
	}
}

// WithHashCost lowers the bcrypt cost, for tests.
func (db *MemoryDB) WithHashCost(cost int) *MemoryDB {
	db.hashCost = cost
	return db
}

func (db *MemoryDB) Close() error {
	return nil
}

func (db *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, ok := db.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	user := *db.users[id]
	return &user, nil
}

func (db *MemoryDB) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), db.hashCost)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	email := strings.ToLower(req.Email)
	if _, exists := db.byEmail[email]; exists {
		return nil, ErrEmailTaken
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	db.users[user.ID] = user
	db.byEmail[email] = user.ID

	out := *user
	out.PasswordHash = ""
	return &out, nil
}

func (db *MemoryDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	user, ok := db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *user
	out.PasswordHash = ""
	return &out, nil
}

func (db *MemoryDB) ListUsersExcept(ctx context.Context, id string) ([]*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	users := make([]*models.User, 0, len(db.users))
	for _, user := range db.users {
		if user.ID == id {
			continue
		}
		out := *user
		out.PasswordHash = ""
		users = append(users, &out)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (db *MemoryDB) PersistMessage(ctx context.Context, msg *models.NewMessage) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	id := db.ids.Generate()
	persisted := &models.Message{
		ID:          id,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Body:        msg.Body,
		ImageRef:    msg.ImageRef,
		CreatedAt:   snowflake.Time(id).UTC(),
	}

	key := pairKey(msg.SenderID, msg.RecipientID)
	db.conversations[key] = append(db.conversations[key], persisted)

	out := *persisted
	return &out, nil
}

func (db *MemoryDB) History(ctx context.Context, userA, userB string, afterID int64, limit int) ([]*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if limit <= 0 {
		limit = maxHistoryPage
	}

	messages := make([]*models.Message, 0)
	for _, msg := range db.conversations[pairKey(userA, userB)] {
		if msg.ID <= afterID {
			continue
		}
		out := *msg
		messages = append(messages, &out)
		if len(messages) == limit {
			break
		}
	}
	return messages, nil
}

func pairKey(a, b string) [2]string {
	low, high := models.ConversationKey(a, b)
	return [2]string{low, high}
}
