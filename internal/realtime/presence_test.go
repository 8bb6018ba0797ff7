package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"direct-chat/internal/models"

	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu    sync.Mutex
	saved map[string]time.Time
}

func (s *recordingStore) SaveLastSeen(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]time.Time)
	}
	s.saved[userID] = at
	return nil
}

func (s *recordingStore) get(userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.saved[userID]
	return at, ok
}

func newTestTracker(clock *manualClock, store LastSeenStore) (*Registry, *Tracker) {
	r := NewRegistry()
	return r, NewTracker(r, time.Minute, clock.Now, store)
}

func TestTrackerUnknownUserIsOffline(t *testing.T) {
	_, tr := newTestTracker(newManualClock(), nil)

	p := tr.PresenceOf("ghost")
	require.Equal(t, models.PresenceOffline, p.State)
	require.Nil(t, p.LastSeenAt)
}

func TestTrackerIdleIsDerivedOnRead(t *testing.T) {
	clock := newManualClock()
	r, tr := newTestTracker(clock, nil)

	r.Add(newStubConn("a1", "alice"))
	_, changed := tr.OnRegistryChange("alice", true)
	require.True(t, changed)
	require.Equal(t, models.PresenceOnline, tr.PresenceOf("alice").State)

	clock.Advance(time.Minute)
	require.Equal(t, models.PresenceOnline, tr.PresenceOf("alice").State)

	clock.Advance(time.Second)
	require.Equal(t, models.PresenceIdle, tr.PresenceOf("alice").State)

	tr.TouchActivity("alice")
	require.Equal(t, models.PresenceOnline, tr.PresenceOf("alice").State)
}

func TestTrackerTrustsRegistryEdges(t *testing.T) {
	clock := newManualClock()
	r, tr := newTestTracker(clock, nil)
	a1 := newStubConn("a1", "alice")

	_, changed := tr.OnRegistryChange("alice", true)
	require.False(t, changed, "online edge without a registered connection")

	r.Add(a1)
	entry, changed := tr.OnRegistryChange("alice", true)
	require.True(t, changed)
	require.Equal(t, models.PresenceOnline, entry.State)

	_, changed = tr.OnRegistryChange("alice", false)
	require.False(t, changed, "offline edge while still registered")

	r.Remove(a1)
	_, changed = tr.OnRegistryChange("alice", false)
	require.True(t, changed)
	_, changed = tr.OnRegistryChange("alice", false)
	require.False(t, changed, "offline announced twice")

	_, changed = tr.OnRegistryChange("bob", false)
	require.False(t, changed, "never seen user")
}

func TestTrackerOfflineStampsLastSeen(t *testing.T) {
	clock := newManualClock()
	store := &recordingStore{}
	r, tr := newTestTracker(clock, store)
	c := newStubConn("a1", "alice")

	r.Add(c)
	tr.OnRegistryChange("alice", true)
	clock.Advance(5 * time.Minute)
	r.Remove(c)

	entry, changed := tr.OnRegistryChange("alice", false)
	require.True(t, changed)
	require.Equal(t, models.PresenceOffline, entry.State)
	require.NotNil(t, entry.LastSeenAt)
	require.Equal(t, clock.Now(), *entry.LastSeenAt)

	p := tr.PresenceOf("alice")
	require.Equal(t, models.PresenceOffline, p.State)
	require.Equal(t, clock.Now(), *p.LastSeenAt)

	require.Eventually(t, func() bool {
		at, ok := store.get("alice")
		return ok && at.Equal(clock.Now())
	}, time.Second, 10*time.Millisecond)

	// Reconnecting clears last seen.
	r.Add(newStubConn("a2", "alice"))
	_, changed = tr.OnRegistryChange("alice", true)
	require.True(t, changed)
	_, ok := tr.LastSeen("alice")
	require.False(t, ok)
}

func TestTrackerSnapshotIsSorted(t *testing.T) {
	clock := newManualClock()
	r, tr := newTestTracker(clock, nil)

	for _, user := range []string{"carol", "alice", "bob"} {
		r.Add(newStubConn(user+"-1", user))
		tr.OnRegistryChange(user, true)
	}

	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "alice", snap[0].UserID)
	require.Equal(t, "bob", snap[1].UserID)
	require.Equal(t, "carol", snap[2].UserID)
	for _, e := range snap {
		require.Equal(t, models.PresenceOnline, e.State)
	}
}
