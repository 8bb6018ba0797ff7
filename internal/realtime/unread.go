package realtime

import (
	"sync"

	"direct-chat/internal/models"
)

// UnreadMarkers counts messages from peers other than the conversation the
// viewer has open. One instance belongs to one connection session.
type UnreadMarkers struct {
	mu     sync.Mutex
	viewer string
	active string
	counts map[string]int
}

func NewUnreadMarkers(viewer string) *UnreadMarkers {
	return &UnreadMarkers{viewer: viewer, counts: make(map[string]int)}
}

// Select opens the conversation with peer and resets its counter. It
// reports whether there was anything to reset.
func (u *UnreadMarkers) Select(peer string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.active = peer
	if u.counts[peer] == 0 {
		return false
	}
	delete(u.counts, peer)
	return true
}

// Observe counts msg if it was sent to the viewer from a peer whose
// conversation is not open.
func (u *UnreadMarkers) Observe(msg *models.Message) (int, bool) {
	if msg == nil || msg.RecipientID != u.viewer || msg.SenderID == u.viewer {
		return 0, false
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if msg.SenderID == u.active {
		return 0, false
	}
	u.counts[msg.SenderID]++
	return u.counts[msg.SenderID], true
}

func (u *UnreadMarkers) Count(peer string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[peer]
}

func (u *UnreadMarkers) Active() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active
}
