package matchmaking

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueuePairsInArrivalOrder(t *testing.T) {
	q := NewQueue(clockwork.NewFakeClock())

	users := make([]uuid.UUID, 5)
	for i := range users {
		users[i] = uuid.New()
	}

	pair := q.Enqueue(users[0], "conn-0")
	assert.Nil(t, pair)
	assert.Equal(t, 1, q.Len())

	pair = q.Enqueue(users[1], "conn-1")
	require.Len(t, pair, 2)
	assert.Equal(t, users[0], pair[0].UserID)
	assert.Equal(t, users[1], pair[1].UserID)
	assert.Equal(t, 0, q.Len())

	// Odd number of waiters leaves exactly one unmatched.
	assert.Nil(t, q.Enqueue(users[2], "conn-2"))
	pair = q.Enqueue(users[3], "conn-3")
	require.Len(t, pair, 2)
	assert.Equal(t, users[2], pair[0].UserID)
	assert.Equal(t, users[3], pair[1].UserID)

	assert.Nil(t, q.Enqueue(users[4], "conn-4"))
	assert.Equal(t, 1, q.Len())
}

func TestEnqueueIgnoresDuplicateConnection(t *testing.T) {
	q := NewQueue(clockwork.NewFakeClock())
	userID := uuid.New()

	assert.Nil(t, q.Enqueue(userID, "conn-0"))
	assert.Nil(t, q.Enqueue(userID, "conn-0"))
	assert.Equal(t, 1, q.Len())
}

func TestRemoveWaitingEntry(t *testing.T) {
	q := NewQueue(clockwork.NewFakeClock())

	a, b := uuid.New(), uuid.New()
	q.Enqueue(a, "conn-a")

	assert.True(t, q.Remove("conn-a"))
	assert.Equal(t, 0, q.Len())

	for _, e := range q.Snapshot() {
		assert.NotEqual(t, "conn-a", e.ConnID)
	}

	// A removed entry no longer matches the next joiner.
	assert.Nil(t, q.Enqueue(b, "conn-b"))
	assert.Equal(t, 1, q.Len())
}

func TestRemoveIsNoOpAfterPairing(t *testing.T) {
	q := NewQueue(clockwork.NewFakeClock())

	q.Enqueue(uuid.New(), "conn-a")
	pair := q.Enqueue(uuid.New(), "conn-b")
	require.Len(t, pair, 2)

	assert.False(t, q.Remove("conn-a"))
	assert.False(t, q.Remove("conn-never-joined"))
}

func TestConcurrentEnqueueNeverSplitsPairs(t *testing.T) {
	q := NewQueue(clockwork.NewFakeClock())

	const joiners = 100
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		pairs [][]Entry
	)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if pair := q.Enqueue(uuid.New(), fmt.Sprintf("conn-%d", i)); pair != nil {
				mu.Lock()
				pairs = append(pairs, pair)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, pairs, joiners/2)
	assert.Equal(t, 0, q.Len())

	seen := make(map[string]bool)
	for _, pair := range pairs {
		require.Len(t, pair, 2)
		for _, e := range pair {
			assert.False(t, seen[e.ConnID], "entry %s matched twice", e.ConnID)
			seen[e.ConnID] = true
		}
	}
}
