package realtime

import (
	"testing"

	"direct-chat/internal/models"

	"github.com/stretchr/testify/require"
)

func TestUnreadMarkers(t *testing.T) {
	u := NewUnreadMarkers("bob")

	count, changed := u.Observe(&models.Message{SenderID: "alice", RecipientID: "bob"})
	require.True(t, changed)
	require.Equal(t, 1, count)

	count, _ = u.Observe(&models.Message{SenderID: "alice", RecipientID: "bob"})
	require.Equal(t, 2, count)

	require.True(t, u.Select("alice"))
	require.Equal(t, 0, u.Count("alice"))
	require.Equal(t, "alice", u.Active())

	_, changed = u.Observe(&models.Message{SenderID: "alice", RecipientID: "bob"})
	require.False(t, changed)

	count, changed = u.Observe(&models.Message{SenderID: "carol", RecipientID: "bob"})
	require.True(t, changed)
	require.Equal(t, 1, count)

	require.False(t, u.Select("dave"))
}

func TestUnreadMarkersIgnoresOwnAndForeignMessages(t *testing.T) {
	u := NewUnreadMarkers("bob")

	_, changed := u.Observe(&models.Message{SenderID: "bob", RecipientID: "alice"})
	require.False(t, changed)
	_, changed = u.Observe(&models.Message{SenderID: "alice", RecipientID: "carol"})
	require.False(t, changed)
	_, changed = u.Observe(nil)
	require.False(t, changed)
}
