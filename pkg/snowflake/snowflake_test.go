package snowflake

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewNodeRejectsOutOfRange(t *testing.T) {
	_, err := NewNode(-1)
	require.ErrorIs(t, err, ErrInvalidNode)

	_, err = NewNode(1024)
	require.ErrorIs(t, err, ErrInvalidNode)
}

func TestGenerateIsStrictlyIncreasing(t *testing.T) {
	n, err := NewNode(3)
	require.NoError(t, err)

	prev := n.Generate()
	for i := 0; i < 10000; i++ {
		id := n.Generate()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateSurvivesClockGoingBackwards(t *testing.T) {
	n, err := NewNode(1)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	n.now = func() time.Time { return current }

	first := n.Generate()
	current = base.Add(-time.Second)
	second := n.Generate()
	require.Greater(t, second, first)
	require.Equal(t, base.UnixMilli(), Time(second).UnixMilli())
}

func TestGenerateConcurrentUnique(t *testing.T) {
	n, err := NewNode(7)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{})
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := n.Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 8*500)
}
