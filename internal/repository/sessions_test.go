package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"article-valet/internal/domain"
)

func TestGetOrCreate_LazyCreation(t *testing.T) {
	store := NewSessionStore()
	require.Zero(t, store.Len())

	sess := store.GetOrCreate(7)
	require.Equal(t, int64(7), sess.ChatID)
	require.Equal(t, domain.StateAwaitingLink, sess.State)
	require.Equal(t, 1, store.Len())

	// Same chat id returns the same session.
	again := store.GetOrCreate(7)
	require.Same(t, sess, again)
	require.Equal(t, 1, store.Len())
}

func TestRemove_FreshSessionAfterwards(t *testing.T) {
	store := NewSessionStore()
	sess := store.GetOrCreate(7)
	sess.State = domain.StateAwaitingChoice
	sess.PendingURL = "https://medium.com/x"

	store.Remove(7)
	require.Zero(t, store.Len())

	fresh := store.GetOrCreate(7)
	require.NotSame(t, sess, fresh)
	require.Equal(t, domain.StateAwaitingLink, fresh.State)
	require.Empty(t, fresh.PendingURL)
}

func TestGetOrCreate_BumpsLastActivity(t *testing.T) {
	store := NewSessionStore()
	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	sess := store.GetOrCreate(7)
	require.Equal(t, time.Unix(1000, 0), sess.LastActivity)

	current = time.Unix(2000, 0)
	store.GetOrCreate(7)
	require.Equal(t, time.Unix(2000, 0), sess.LastActivity)
}

func TestPruneIdle(t *testing.T) {
	store := NewSessionStore()
	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	store.GetOrCreate(1)
	current = time.Unix(5000, 0)
	store.GetOrCreate(2)

	pruned := store.PruneIdle(time.Hour)
	require.Equal(t, 1, pruned)
	require.Equal(t, 1, store.Len())

	// Chat 1 was pruned; chat 2 is still live.
	sess := store.GetOrCreate(2)
	require.Equal(t, int64(2), sess.ChatID)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewSessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			store.GetOrCreate(id % 10)
			store.Remove(id % 10)
			store.GetOrCreate(id % 10)
		}(int64(i))
	}
	wg.Wait()

	require.LessOrEqual(t, store.Len(), 10)
}
