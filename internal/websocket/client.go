package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"direct-chat/internal/models"
	"direct-chat/internal/realtime"
	"direct-chat/internal/services"
	"direct-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 16 * 1024

	sendTimeout = 10 * time.Second

	DefaultSendBuffer = 256
)

// Hub is the part of the realtime hub a client drives.
type Hub interface {
	Unregister(c realtime.Conn)
	StartTyping(from, to string) bool
	StopTyping(from, to string) bool
	TouchActivity(userID string)
}

type MessageSender interface {
	Send(ctx context.Context, senderID, recipientID string, req *models.SendMessageRequest) (*models.Message, error)
}

type ClientOptions struct {
	SendBuffer   int
	SelfPresence bool
}

// Client is one websocket connection. It implements realtime.Conn: Send
// only enqueues, and WritePump drains the queue onto the socket.
type Client struct {
	id          string
	user        *models.User
	conn        *websocket.Conn
	hub         Hub
	messages    MessageSender
	unread      *realtime.UnreadMarkers
	self        bool
	connectedAt time.Time
	log         zerolog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(conn *websocket.Conn, user *models.User, hub Hub, messages MessageSender, opts ClientOptions) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	id := uuid.NewString()
	return &Client{
		id:          id,
		user:        user,
		conn:        conn,
		hub:         hub,
		messages:    messages,
		unread:      realtime.NewUnreadMarkers(user.ID),
		self:        opts.SelfPresence,
		connectedAt: time.Now(),
		log:         logger.L().With().Str("user_id", user.ID).Str("conn_id", id).Logger(),
		send:        make(chan []byte, opts.SendBuffer),
	}
}

func (c *Client) ID() string              { return c.id }
func (c *Client) UserID() string          { return c.user.ID }
func (c *Client) ConnectedAt() time.Time  { return c.connectedAt }
func (c *Client) WantsSelfPresence() bool { return c.self }

// Send queues ev for the write pump. Incoming messages also update this
// session's unread counters; losing that follow-up frame is not a delivery
// failure, the client can recount from history.
func (c *Client) Send(ev *models.ServerEvent) error {
	if err := c.enqueue(ev); err != nil {
		return err
	}
	if ev.Type == models.EventMessageNew {
		if count, changed := c.unread.Observe(ev.Message); changed {
			c.reply(&models.ServerEvent{
				Type:   models.EventUnreadUpdate,
				PeerID: ev.Message.SenderID,
				Count:  &count,
			})
		}
	}
	return nil
}

func (c *Client) enqueue(ev *models.ServerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return realtime.ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return realtime.ErrSendBufferFull
	}
}

// Close stops the write pump, which closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

// ReadPump reads client events until the socket fails, then unregisters the
// client. ctx bounds the work each event triggers.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.replyError("", "malformed event")
			continue
		}
		c.dispatch(ctx, &ev)
	}
}

func (c *Client) dispatch(ctx context.Context, ev *models.ClientEvent) {
	if ev.PeerID == "" {
		c.replyError(ev.ClientRef, "peerId is required")
		return
	}

	switch ev.Type {
	case models.EventTypingStart:
		c.hub.StartTyping(c.user.ID, ev.PeerID)

	case models.EventTypingStop:
		c.hub.StopTyping(c.user.ID, ev.PeerID)

	case models.EventMessageSend:
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()

		msg, err := c.messages.Send(sendCtx, c.user.ID, ev.PeerID, &models.SendMessageRequest{
			Body:     ev.Body,
			ImageRef: ev.ImageRef,
		})
		if err != nil {
			c.log.Debug().Err(err).Str("peer_id", ev.PeerID).Msg("message rejected")
			c.replyError(ev.ClientRef, sendErrorText(err))
			return
		}
		c.reply(&models.ServerEvent{Type: models.EventMessageAck, ClientRef: ev.ClientRef, Message: msg})

	case models.EventConversationSelect:
		c.hub.TouchActivity(c.user.ID)
		if c.unread.Select(ev.PeerID) {
			zero := 0
			c.reply(&models.ServerEvent{Type: models.EventUnreadUpdate, PeerID: ev.PeerID, Count: &zero})
		}

	default:
		c.replyError(ev.ClientRef, "unknown event type")
	}
}

func (c *Client) reply(ev *models.ServerEvent) {
	if err := c.enqueue(ev); err != nil {
		c.log.Debug().Err(err).Str("event", string(ev.Type)).Msg("reply dropped")
	}
}

func (c *Client) replyError(clientRef, text string) {
	c.reply(&models.ServerEvent{Type: models.EventError, ClientRef: clientRef, Error: text})
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong),
		errors.Is(err, services.ErrSelfMessage),
		errors.Is(err, services.ErrUnknownRecipient):
		return err.Error()
	default:
		return "message could not be sent"
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
