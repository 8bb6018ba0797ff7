package realtime

import (
	"sync"
	"time"

	"direct-chat/internal/models"
)

type stubConn struct {
	id   string
	user string
	self bool

	mu     sync.Mutex
	events []*models.ServerEvent
	fail   bool
	closed bool
}

func newStubConn(id, user string) *stubConn {
	return &stubConn{id: id, user: user}
}

func (c *stubConn) ID() string              { return c.id }
func (c *stubConn) UserID() string          { return c.user }
func (c *stubConn) ConnectedAt() time.Time  { return time.Time{} }
func (c *stubConn) WantsSelfPresence() bool { return c.self }

func (c *stubConn) Send(ev *models.ServerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.fail {
		return ErrSendBufferFull
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *stubConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *stubConn) setFail(fail bool) {
	c.mu.Lock()
	c.fail = fail
	c.mu.Unlock()
}

func (c *stubConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *stubConn) received(typ models.EventType) []*models.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*models.ServerEvent
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *stubConn) types() []models.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.EventType, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
