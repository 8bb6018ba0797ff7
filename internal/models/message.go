package models

import "time"

// Message is a persisted direct message. The ID is assigned by the
// conversation store and orders messages within a conversation.
type Message struct {
	ID          int64     `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body,omitempty"`
	ImageRef    string    `json:"image_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMessage is a message that has not been persisted yet.
type NewMessage struct {
	SenderID    string
	RecipientID string
	Body        string
	ImageRef    string
}

type SendMessageRequest struct {
	Body     string `json:"body,omitempty"`
	ImageRef string `json:"image_ref,omitempty"`
}

type HistoryResponse struct {
	Messages []*Message `json:"messages"`
}

// ConversationKey returns the unordered participant pair in canonical order.
func ConversationKey(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
