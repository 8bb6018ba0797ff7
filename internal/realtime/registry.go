package realtime

import (
	"sort"
	"sync"

	"direct-chat/pkg/logger"
)

// Registry maps a user to the set of that user's live connections. A user
// key exists only while at least one connection for it is registered.
//
// Add and Remove report the first/last edge for the user; the Hub applies
// them from its event loop so that an edge and the presence delta derived
// from it are never interleaved with another mutation.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]Conn)}
}

// Add registers c. added is false for a nil connection, an empty user id or
// a connection that is already registered; first is true when c is the
// user's only connection.
func (r *Registry) Add(c Conn) (added, first bool) {
	if c == nil || c.UserID() == "" {
		logger.L().Warn().Str("component", "registry").Msg("ignoring connection without user id")
		return false, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID()]
	if !ok {
		set = make(map[string]Conn)
		r.users[c.UserID()] = set
		first = true
	}
	if _, dup := set[c.ID()]; dup {
		return false, false
	}
	set[c.ID()] = c
	return true, first
}

// Remove unregisters c. last is true when the user has no connections left.
// Removing an unknown connection is a no-op.
func (r *Registry) Remove(c Conn) (last bool) {
	if c == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID()]
	if !ok {
		logger.L().Debug().Str("component", "registry").Str("conn_id", c.ID()).Msg("remove for unknown user")
		return false
	}
	if existing, ok := set[c.ID()]; !ok || existing != c {
		return false
	}
	delete(set, c.ID())
	if len(set) == 0 {
		delete(r.users, c.UserID())
		return true
	}
	return false
}

// ConnectionsFor returns a copy of the user's live connections.
func (r *Registry) ConnectionsFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.users))
	for userID := range r.users {
		out = append(out, userID)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Connections returns every registered connection.
func (r *Registry) Connections() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Conn
	for _, set := range r.users {
		for _, c := range set {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.users {
		n += len(set)
	}
	return n
}
