package matchmaking

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Entry is one player waiting for an opponent.
type Entry struct {
	ConnID   string    `json:"conn_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Queue holds players waiting to be matched and pairs them strictly FIFO,
// two at a time. All mutation happens under a single mutex so that pairing
// and handoff to session creation is one atomic step: once a pair is popped,
// a later joiner can never steal one of its entries.
type Queue struct {
	mu      sync.Mutex
	waiting []Entry
	clock   clockwork.Clock
}

// NewQueue creates an empty matchmaking queue.
func NewQueue(clock clockwork.Clock) *Queue {
	return &Queue{
		clock: clock,
	}
}

// Enqueue appends a waiting entry for the given user. If the queue now holds
// at least two entries, the two oldest are removed and returned as a matched
// pair; otherwise the returned slice is nil and the caller should report
// "waiting" back to the player. A connection that is already waiting is not
// enqueued twice.
func (q *Queue) Enqueue(userID uuid.UUID, connID string) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.waiting {
		if e.ConnID == connID {
			log.Debug().
				Str("conn_id", connID).
				Str("user_id", userID.String()).
				Msg("connection already waiting, ignoring duplicate join")
			return nil
		}
	}

	q.waiting = append(q.waiting, Entry{
		ConnID:   connID,
		UserID:   userID,
		JoinedAt: q.clock.Now(),
	})

	if len(q.waiting) < 2 {
		log.Debug().
			Str("user_id", userID.String()).
			Int("queue_len", len(q.waiting)).
			Msg("player waiting for opponent")
		return nil
	}

	pair := []Entry{q.waiting[0], q.waiting[1]}
	q.waiting = append(q.waiting[:0:0], q.waiting[2:]...)

	log.Info().
		Str("user_a", pair[0].UserID.String()).
		Str("user_b", pair[1].UserID.String()).
		Int("queue_len", len(q.waiting)).
		Msg("matched pair from queue")
	return pair
}

// Remove deletes the pending entry for the given connection. It is a no-op
// if the entry was already paired or never existed.
func (q *Queue) Remove(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.waiting {
		if e.ConnID == connID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			log.Debug().
				Str("conn_id", connID).
				Str("user_id", e.UserID.String()).
				Int("queue_len", len(q.waiting)).
				Msg("removed waiting entry")
			return true
		}
	}
	return false
}

// Len returns the number of players currently waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Snapshot returns a copy of the current waiting entries in FIFO order.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.waiting))
	copy(out, q.waiting)
	return out
}
