package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"direct-chat/internal/models"
	"direct-chat/pkg/logger"
)

const lastSeenWriteTimeout = 2 * time.Second

// Tracker derives online/idle/offline from registry membership and activity
// timestamps. Idle is computed on read and never announced; only the
// online/offline edges produce deltas.
type Tracker struct {
	mu            sync.RWMutex
	registry      *Registry
	idleThreshold time.Duration
	now           func() time.Time
	store         LastSeenStore

	lastActive map[string]time.Time
	lastSeen   map[string]time.Time
}

func NewTracker(registry *Registry, idleThreshold time.Duration, now func() time.Time, store LastSeenStore) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		registry:      registry,
		idleThreshold: idleThreshold,
		now:           now,
		store:         store,
		lastActive:    make(map[string]time.Time),
		lastSeen:      make(map[string]time.Time),
	}
}

// TouchActivity records that the user did something meaningful.
func (t *Tracker) TouchActivity(userID string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	t.lastActive[userID] = t.now()
	t.mu.Unlock()
}

// PresenceOf reports the user's current state. Users the tracker has never
// seen are offline.
func (t *Tracker) PresenceOf(userID string) models.PresenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, known := t.lastActive[userID]; !known && !t.registry.IsOnline(userID) {
		if _, seen := t.lastSeen[userID]; !seen {
			logger.L().Debug().Str("component", "presence").Str("user_id", userID).Msg("presence query for unknown user")
		}
	}
	return t.presenceLocked(userID, t.now())
}

func (t *Tracker) presenceLocked(userID string, now time.Time) models.PresenceEntry {
	entry := models.PresenceEntry{UserID: userID, State: models.PresenceOffline}
	if at, ok := t.lastActive[userID]; ok {
		entry.LastActiveAt = timePtr(at)
	}

	if !t.registry.IsOnline(userID) {
		if at, ok := t.lastSeen[userID]; ok {
			entry.LastSeenAt = timePtr(at)
		}
		return entry
	}

	entry.State = models.PresenceOnline
	if entry.LastActiveAt != nil && now.Sub(*entry.LastActiveAt) > t.idleThreshold {
		entry.State = models.PresenceIdle
	}
	return entry
}

// OnRegistryChange is called by the hub after a first/last registry edge.
// The registry is the only membership record: an online edge counts only
// while the user is registered, and an offline edge only once the user has
// left it and has not already been stamped with a last-seen time.
func (t *Tracker) OnRegistryChange(userID string, online bool) (models.PresenceEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if online {
		if !t.registry.IsOnline(userID) {
			return models.PresenceEntry{}, false
		}
		t.lastActive[userID] = now
		delete(t.lastSeen, userID)
		return models.PresenceEntry{
			UserID:       userID,
			State:        models.PresenceOnline,
			LastActiveAt: timePtr(now),
		}, true
	}

	if t.registry.IsOnline(userID) {
		return models.PresenceEntry{}, false
	}
	if _, offline := t.lastSeen[userID]; offline {
		return models.PresenceEntry{}, false
	}
	lastActive, known := t.lastActive[userID]
	if !known {
		return models.PresenceEntry{}, false
	}
	t.lastSeen[userID] = now
	t.saveLastSeen(userID, now)

	return models.PresenceEntry{
		UserID:       userID,
		State:        models.PresenceOffline,
		LastActiveAt: timePtr(lastActive),
		LastSeenAt:   timePtr(now),
	}, true
}

// Snapshot returns the state of every user the tracker knows about, sorted
// by user id.
func (t *Tracker) Snapshot() []models.PresenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make(map[string]struct{}, len(t.lastActive)+len(t.lastSeen))
	for id := range t.lastActive {
		ids[id] = struct{}{}
	}
	for id := range t.lastSeen {
		ids[id] = struct{}{}
	}

	now := t.now()
	entries := make([]models.PresenceEntry, 0, len(ids))
	for id := range ids {
		entries = append(entries, t.presenceLocked(id, now))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries
}

// LastSeen returns when the user's last connection went away.
func (t *Tracker) LastSeen(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	at, ok := t.lastSeen[userID]
	return at, ok
}

func (t *Tracker) saveLastSeen(userID string, at time.Time) {
	if t.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lastSeenWriteTimeout)
		defer cancel()
		if err := t.store.SaveLastSeen(ctx, userID, at); err != nil {
			logger.L().Warn().Err(err).Str("user_id", userID).Msg("failed to mirror last seen")
		}
	}()
}

func timePtr(t time.Time) *time.Time {
	return &t
}
