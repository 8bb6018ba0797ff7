package realtime

import (
	"direct-chat/internal/models"
)

// Roster turns presence into frames: a full snapshot for a connection that
// just registered and a delta for everyone else on each transition.
type Roster struct {
	registry *Registry
	tracker  *Tracker
}

func NewRoster(registry *Registry, tracker *Tracker) *Roster {
	return &Roster{registry: registry, tracker: tracker}
}

// SendSnapshot reports the Send error, if any.
func (r *Roster) SendSnapshot(c Conn) error {
	return c.Send(&models.ServerEvent{
		Type:    models.EventPresenceSnapshot,
		Entries: r.tracker.Snapshot(),
	})
}

// Broadcast pushes the delta and returns the connections whose Send failed.
// The subject's own connections are skipped unless they asked for it.
func (r *Roster) Broadcast(entry models.PresenceEntry) []Conn {
	ev := &models.ServerEvent{
		Type:         models.EventPresenceDelta,
		UserID:       entry.UserID,
		State:        entry.State,
		LastActiveAt: entry.LastActiveAt,
		LastSeenAt:   entry.LastSeenAt,
	}

	var failed []Conn
	for _, c := range r.registry.Connections() {
		if c.UserID() == entry.UserID && !c.WantsSelfPresence() {
			continue
		}
		if err := c.Send(ev); err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}
