package realtime

import (
	"context"
	"sync"
	"time"

	"direct-chat/internal/models"
	"direct-chat/pkg/logger"
)

const (
	DefaultIdleThreshold = 60 * time.Second
	DefaultTypingWindow  = 2 * time.Second
	DefaultSweepInterval = time.Second
)

type Options struct {
	IdleThreshold time.Duration
	TypingWindow  time.Duration
	SweepInterval time.Duration
	// Now replaces the wall clock, for tests.
	Now      func() time.Time
	LastSeen LastSeenStore
}

func (o *Options) withDefaults() {
	if o.IdleThreshold <= 0 {
		o.IdleThreshold = DefaultIdleThreshold
	}
	if o.TypingWindow <= 0 {
		o.TypingWindow = DefaultTypingWindow
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type request struct {
	conn Conn
	done chan struct{}
}

// Hub serializes connection lifecycle through its event loop. Registry
// edges, the presence deltas they cause and the snapshot sent to a new
// connection are all decided on the loop goroutine, so every connection
// observes presence changes in the order they happened.
//
// Message relay and typing run on the caller's goroutine and only read the
// registry.
type Hub struct {
	registry *Registry
	tracker  *Tracker
	typing   *Typing
	roster   *Roster

	sweepInterval time.Duration

	register   chan request
	unregister chan request
	done       chan struct{}
	closeOnce  sync.Once

	// Connections whose push failed, removed by the loop on its next turn.
	reapMu  sync.Mutex
	reaping []Conn
	reapSig chan struct{}
}

func NewHub(opts Options) *Hub {
	opts.withDefaults()

	h := &Hub{
		registry:      NewRegistry(),
		sweepInterval: opts.SweepInterval,
		register:      make(chan request),
		unregister:    make(chan request),
		done:          make(chan struct{}),
		reapSig:       make(chan struct{}, 1),
	}
	h.tracker = NewTracker(h.registry, opts.IdleThreshold, opts.Now, opts.LastSeen)
	h.typing = NewTyping(opts.TypingWindow, opts.Now, func(to string, ev *models.ServerEvent) {
		h.pushToUser(to, ev)
	})
	h.roster = NewRoster(h.registry, h.tracker)
	return h
}

// Run is the hub event loop. It also drives the typing sweeper. When ctx is
// done every registered connection is closed and Run returns.
func (h *Hub) Run(ctx context.Context) error {
	sweepCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.typing.Run(sweepCtx, h.sweepInterval)
	}()

	defer func() {
		cancel()
		wg.Wait()
		h.closeOnce.Do(func() { close(h.done) })
		for _, c := range h.registry.Connections() {
			c.Close()
		}
		logger.Info("Realtime hub stopped")
	}()

	logger.Info("Realtime hub started")
	for {
		select {
		case <-ctx.Done():
			return nil

		case req := <-h.register:
			h.add(req.conn)
			close(req.done)

		case req := <-h.unregister:
			h.remove(req.conn)
			close(req.done)

		case <-h.reapSig:
			h.dropAll(h.takeReaped())
		}
	}
}

// Register adds c and returns once the snapshot has been queued to it and
// any online delta broadcast.
func (h *Hub) Register(ctx context.Context, c Conn) error {
	req := request{conn: c, done: make(chan struct{})}
	select {
	case h.register <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubClosed
	}
	<-req.done
	return nil
}

// Unregister removes and closes c, waiting for the event loop to apply it.
// It is safe to call more than once and after the hub has stopped.
func (h *Hub) Unregister(c Conn) {
	req := request{conn: c, done: make(chan struct{})}
	select {
	case h.unregister <- req:
		<-req.done
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) add(c Conn) {
	added, first := h.registry.Add(c)
	if !added {
		return
	}
	h.tracker.TouchActivity(c.UserID())

	log := logger.L().With().Str("user_id", c.UserID()).Str("conn_id", c.ID()).Logger()
	log.Debug().Bool("first", first).Msg("connection registered")

	var failed []Conn
	if first {
		if entry, changed := h.tracker.OnRegistryChange(c.UserID(), true); changed {
			failed = h.roster.Broadcast(entry)
		}
	}
	if err := h.roster.SendSnapshot(c); err != nil {
		log.Warn().Err(err).Msg("failed to send presence snapshot")
		failed = append(failed, c)
	}
	h.dropAll(failed)
}

func (h *Hub) remove(c Conn) {
	h.dropAll([]Conn{c})
}

// dropAll removes connections and follows the cascade: an offline delta that
// fails to reach someone drops that connection too.
func (h *Hub) dropAll(pending []Conn) {
	for len(pending) > 0 {
		c := pending[0]
		pending = pending[1:]

		last := h.registry.Remove(c)
		c.Close()
		if !last {
			continue
		}
		logger.L().Debug().Str("user_id", c.UserID()).Msg("last connection gone")
		if entry, changed := h.tracker.OnRegistryChange(c.UserID(), false); changed {
			pending = append(pending, h.roster.Broadcast(entry)...)
		}
	}
}

// pushToUser sends ev to every connection of userID and returns how many
// accepted it. Connections that refuse are reaped off the caller's path.
func (h *Hub) pushToUser(userID string, ev *models.ServerEvent) int {
	n := 0
	for _, c := range h.registry.ConnectionsFor(userID) {
		if err := c.Send(ev); err != nil {
			logger.L().Warn().Err(err).Str("user_id", userID).Str("conn_id", c.ID()).
				Str("event", string(ev.Type)).Msg("push failed, dropping connection")
			h.reap(c)
			continue
		}
		n++
	}
	return n
}

// reap closes c at once and queues its removal for the event loop. It never
// blocks, whether or not Run is serving.
func (h *Hub) reap(c Conn) {
	c.Close()

	h.reapMu.Lock()
	h.reaping = append(h.reaping, c)
	h.reapMu.Unlock()

	select {
	case h.reapSig <- struct{}{}:
	default:
	}
}

func (h *Hub) takeReaped() []Conn {
	h.reapMu.Lock()
	defer h.reapMu.Unlock()
	out := h.reaping
	h.reaping = nil
	return out
}

// Relay delivers an already persisted message to the recipient's live
// connections and returns how many received it. A recipient with none is
// not an error; the message is still in history.
func (h *Hub) Relay(msg *models.Message) int {
	if msg == nil || msg.RecipientID == "" {
		return 0
	}
	h.tracker.TouchActivity(msg.SenderID)
	h.typing.Clear(msg.SenderID, msg.RecipientID)
	return h.pushToUser(msg.RecipientID, &models.ServerEvent{Type: models.EventMessageNew, Message: msg})
}

func (h *Hub) StartTyping(from, to string) bool {
	h.tracker.TouchActivity(from)
	return h.typing.Start(from, to)
}

func (h *Hub) StopTyping(from, to string) bool {
	return h.typing.Stop(from, to)
}

func (h *Hub) IsTyping(from, to string) bool {
	return h.typing.IsTyping(from, to)
}

func (h *Hub) TouchActivity(userID string) {
	h.tracker.TouchActivity(userID)
}

func (h *Hub) PresenceOf(userID string) models.PresenceEntry {
	return h.tracker.PresenceOf(userID)
}

func (h *Hub) IsOnline(userID string) bool {
	return h.registry.IsOnline(userID)
}

func (h *Hub) OnlineUsers() []string {
	return h.registry.OnlineUsers()
}

func (h *Hub) ConnectionCount() int {
	return h.registry.ConnectionCount()
}
