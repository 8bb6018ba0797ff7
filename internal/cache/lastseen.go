package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lastSeenPrefix = "presence:lastseen:"
	lastSeenTTL    = 30 * 24 * time.Hour
)

// LastSeen mirrors "last seen" timestamps into Redis so the roster directory
// can report them across restarts. Live presence itself stays in memory.
type LastSeen struct {
	rdb *redis.Client
}

func NewLastSeen(addr string) *LastSeen {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &LastSeen{rdb: rdb}
}

func (s *LastSeen) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *LastSeen) Close() error {
	return s.rdb.Close()
}

func (s *LastSeen) SaveLastSeen(ctx context.Context, userID string, at time.Time) error {
	if err := s.rdb.Set(ctx, lastSeenKey(userID), at.UTC().UnixMilli(), lastSeenTTL).Err(); err != nil {
		return fmt.Errorf("failed to save last seen: %w", err)
	}
	return nil
}

// LoadLastSeen returns the stored timestamps for the given users. Users with
// nothing stored are absent from the result.
func (s *LastSeen) LoadLastSeen(ctx context.Context, userIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = lastSeenKey(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load last seen: %w", err)
	}
	for i, v := range values {
		if at, ok := parseLastSeen(v); ok {
			out[userIDs[i]] = at
		}
	}
	return out, nil
}

func lastSeenKey(userID string) string {
	return lastSeenPrefix + userID
}

func parseLastSeen(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
