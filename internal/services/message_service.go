package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"direct-chat/internal/database"
	"direct-chat/internal/messaging"
	"direct-chat/internal/models"
	"direct-chat/pkg/logger"

	"github.com/cespare/xxhash/v2"
)

const (
	MaxBodyLength  = 4000
	lockStripes    = 64
	publishTimeout = 2 * time.Second
)

var (
	ErrEmptyMessage     = errors.New("message has neither body nor image")
	ErrMessageTooLong   = errors.New("message body too long")
	ErrSelfMessage      = errors.New("cannot send a message to yourself")
	ErrUnknownRecipient = errors.New("unknown recipient")
)

// Relayer pushes a persisted message to its recipient's live connections.
type Relayer interface {
	Relay(msg *models.Message) int
}

// MessageService is the single send path shared by the websocket and HTTP
// surfaces. A message is relayed only after it is persisted, and sends
// within one conversation are serialized so relay order matches history
// order. Published events carry the message id, which orders them per
// conversation.
type MessageService struct {
	db        database.Database
	relay     Relayer
	publisher messaging.Publisher
	locks     [lockStripes]sync.Mutex

	publishTimeout time.Duration
}

func NewMessageService(db database.Database, relay Relayer, publisher messaging.Publisher) *MessageService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &MessageService{
		db:             db,
		relay:          relay,
		publisher:      publisher,
		publishTimeout: publishTimeout,
	}
}

func (s *MessageService) Send(ctx context.Context, senderID, recipientID string, req *models.SendMessageRequest) (*models.Message, error) {
	if err := validateMessage(senderID, recipientID, req); err != nil {
		return nil, err
	}

	if _, err := s.db.GetUserByID(ctx, recipientID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownRecipient
		}
		return nil, fmt.Errorf("failed to look up recipient: %w", err)
	}

	msg, err := s.persistAndRelay(ctx, senderID, recipientID, req)
	if err != nil {
		return nil, err
	}

	// Published outside the conversation lock, after the push.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.PublishMessage(pubCtx, msg); err != nil {
		logger.L().Warn().Err(err).Int64("message_id", msg.ID).Msg("failed to publish message event")
	}

	return msg, nil
}

func (s *MessageService) persistAndRelay(ctx context.Context, senderID, recipientID string, req *models.SendMessageRequest) (*models.Message, error) {
	mu := s.lockFor(senderID, recipientID)
	mu.Lock()
	defer mu.Unlock()

	msg, err := s.db.PersistMessage(ctx, &models.NewMessage{
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        req.Body,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	delivered := s.relay.Relay(msg)
	logger.L().Debug().
		Int64("message_id", msg.ID).
		Str("sender_id", senderID).
		Str("recipient_id", recipientID).
		Int("delivered", delivered).
		Msg("message sent")

	return msg, nil
}

// History returns the conversation between viewer and peer after the given
// message id. A pair that never exchanged messages has an empty history.
func (s *MessageService) History(ctx context.Context, viewerID, peerID string, afterID int64) ([]*models.Message, error) {
	if _, err := s.db.GetUserByID(ctx, peerID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownRecipient
		}
		return nil, err
	}
	return s.db.History(ctx, viewerID, peerID, afterID, 0)
}

func (s *MessageService) lockFor(a, b string) *sync.Mutex {
	low, high := models.ConversationKey(a, b)
	return &s.locks[xxhash.Sum64String(low+"\x00"+high)%lockStripes]
}

func validateMessage(senderID, recipientID string, req *models.SendMessageRequest) error {
	if recipientID == "" {
		return ErrUnknownRecipient
	}
	if senderID == recipientID {
		return ErrSelfMessage
	}
	if req == nil || (strings.TrimSpace(req.Body) == "" && req.ImageRef == "") {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(req.Body) > MaxBodyLength {
		return ErrMessageTooLong
	}
	return nil
}
