package realtime

import (
	"context"
	"sync"
	"time"

	"direct-chat/internal/models"
)

type typingKey struct {
	from, to string
}

// Typing tracks directed "from is typing to" indicators. An entry lives for
// one window after the last Start and is treated as absent once the window
// has elapsed, whether or not the sweeper has reclaimed it yet.
type Typing struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[typingKey]time.Time

	// notify is called with the lock held so started/stopped for one pair
	// reach the peer in the order they were decided. It must not block.
	notify func(to string, ev *models.ServerEvent)
}

func NewTyping(window time.Duration, now func() time.Time, notify func(to string, ev *models.ServerEvent)) *Typing {
	if now == nil {
		now = time.Now
	}
	if notify == nil {
		notify = func(string, *models.ServerEvent) {}
	}
	return &Typing{
		window:  window,
		now:     now,
		entries: make(map[typingKey]time.Time),
		notify:  notify,
	}
}

// Start records or refreshes the indicator. It reports whether a
// typing:started was emitted, which happens only when no live entry existed.
func (t *Typing) Start(from, to string) bool {
	if from == "" || to == "" || from == to {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	key := typingKey{from, to}
	expiry, ok := t.entries[key]
	fresh := !ok || !now.Before(expiry)
	t.entries[key] = now.Add(t.window)

	if fresh {
		t.notify(to, &models.ServerEvent{Type: models.EventTypingStarted, FromUserID: from})
	}
	return fresh
}

// Stop removes the indicator. Stopping without an entry is a no-op.
func (t *Typing) Stop(from, to string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{from, to}
	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	t.notify(to, &models.ServerEvent{Type: models.EventTypingStopped, FromUserID: from})
	return true
}

// Clear is Stop on behalf of a delivered message.
func (t *Typing) Clear(from, to string) {
	t.Stop(from, to)
}

func (t *Typing) IsTyping(from, to string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, ok := t.entries[typingKey{from, to}]
	return ok && t.now().Before(expiry)
}

// Sweep reclaims elapsed entries and returns how many were removed.
func (t *Typing) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	n := 0
	for key, expiry := range t.entries {
		if now.Before(expiry) {
			continue
		}
		delete(t.entries, key)
		t.notify(key.to, &models.ServerEvent{Type: models.EventTypingStopped, FromUserID: key.from})
		n++
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (t *Typing) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}
