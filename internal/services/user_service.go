package services

import (
	"context"
	"time"

	"direct-chat/internal/database"
	"direct-chat/internal/models"
	"direct-chat/pkg/logger"
)

type PresenceSource interface {
	PresenceOf(userID string) models.PresenceEntry
}

// LastSeenLoader reads last-seen timestamps that outlive the process.
type LastSeenLoader interface {
	LoadLastSeen(ctx context.Context, userIDs []string) (map[string]time.Time, error)
}

type UserService struct {
	users    database.UserRepository
	presence PresenceSource
	lastSeen LastSeenLoader
}

// NewUserService builds the roster directory. lastSeen may be nil.
func NewUserService(users database.UserRepository, presence PresenceSource, lastSeen LastSeenLoader) *UserService {
	return &UserService{users: users, presence: presence, lastSeen: lastSeen}
}

func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// Roster lists every user except the viewer with their current presence.
func (s *UserService) Roster(ctx context.Context, viewerID string) ([]*models.RosterUser, error) {
	users, err := s.users.ListUsersExcept(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	stored := map[string]time.Time{}
	if s.lastSeen != nil {
		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		if stored, err = s.lastSeen.LoadLastSeen(ctx, ids); err != nil {
			logger.Warn("Failed to load last seen: %v", err)
			stored = map[string]time.Time{}
		}
	}

	roster := make([]*models.RosterUser, 0, len(users))
	for _, u := range users {
		p := s.presence.PresenceOf(u.ID)
		entry := &models.RosterUser{
			User:         *u,
			State:        p.State,
			LastActiveAt: p.LastActiveAt,
			LastSeenAt:   p.LastSeenAt,
		}
		if entry.State == models.PresenceOffline && entry.LastSeenAt == nil {
			if at, ok := stored[u.ID]; ok {
				entry.LastSeenAt = &at
			}
		}
		roster = append(roster, entry)
	}
	return roster, nil
}
