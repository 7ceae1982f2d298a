package notification

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/jobportal-notify/internal/protocol"
)

func note(id string) protocol.Notification {
	return protocol.Notification{
		ID:        id,
		Type:      protocol.LevelInfo,
		Message:   "notification " + id,
		Timestamp: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

func ids(ns []protocol.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func recount(ns []protocol.Notification) int {
	c := 0
	for _, n := range ns {
		if !n.Read {
			c++
		}
	}
	return c
}

func TestStore_Scenario(t *testing.T) {
	s := NewStore()

	for _, id := range []string{"1", "2", "3"} {
		_, added := s.Add(note(id))
		require.True(t, added)
	}
	assert.Equal(t, []string{"3", "2", "1"}, ids(s.List()))
	assert.Equal(t, 3, s.UnreadCount())

	require.True(t, s.MarkAsRead("2"))
	assert.Equal(t, 2, s.UnreadCount())
	n, ok := s.Get("2")
	require.True(t, ok)
	assert.True(t, n.Read)

	require.True(t, s.Delete("3"))
	assert.Equal(t, []string{"2", "1"}, ids(s.List()))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestStore_MarkAsReadIdempotent(t *testing.T) {
	s := NewStore()
	s.Add(note("a"))

	assert.True(t, s.MarkAsRead("a"))
	assert.False(t, s.MarkAsRead("a"))
	assert.False(t, s.MarkAsRead("missing"))
	assert.Equal(t, 0, s.UnreadCount())
}

func TestStore_MarkAllAsRead(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Add(note(fmt.Sprint(i)))
	}
	s.MarkAsRead("1")

	changed := s.MarkAllAsRead()

	assert.Equal(t, 4, changed)
	assert.Equal(t, 0, s.UnreadCount())
	for _, n := range s.List() {
		assert.True(t, n.Read, "record %s should be read", n.ID)
	}
}

func TestStore_DeleteReadLeavesCounter(t *testing.T) {
	s := NewStore()
	s.Add(note("a"))
	s.Add(note("b"))
	s.MarkAsRead("a")

	require.True(t, s.Delete("a"))
	assert.Equal(t, 1, s.UnreadCount())

	require.True(t, s.Delete("b"))
	assert.Equal(t, 0, s.UnreadCount())

	assert.False(t, s.Delete("b"))
	assert.Equal(t, 0, s.UnreadCount())
}

func TestStore_ClearAll(t *testing.T) {
	s := NewStore()
	s.Add(note("a"))
	s.Add(note("b"))

	assert.Equal(t, 2, s.ClearAll())
	assert.Empty(t, s.List())
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, 0, s.ClearAll())
}

func TestStore_AddSynthesizesIDAndTimestamp(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	n, added := s.Add(protocol.Notification{Message: "no id"})

	require.True(t, added)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, fixed, n.Timestamp)
	assert.Equal(t, protocol.LevelInfo, n.Type)

	stored, ok := s.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, "no id", stored.Message)
}

func TestStore_AddDuplicateIgnored(t *testing.T) {
	s := NewStore()
	s.Add(note("a"))

	_, added := s.Add(note("a"))

	assert.False(t, added)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.UnreadCount())
}

func TestStore_AddDuplicateReturnsStoredRecord(t *testing.T) {
	s := NewStore()
	original := note("a")
	original.Message = "Application received"
	s.Add(original)

	dup := note("a")
	dup.Message = "replayed copy"
	got, added := s.Add(dup)

	assert.False(t, added)
	assert.Equal(t, "Application received", got.Message)
	stored, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, stored, got)
}

func TestStore_AddAlreadyRead(t *testing.T) {
	s := NewStore()
	n := note("a")
	n.Read = true

	s.Add(n)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestStore_ListIsCopy(t *testing.T) {
	s := NewStore()
	s.Add(note("a"))

	list := s.List()
	list[0].Read = true

	assert.Equal(t, 1, s.UnreadCount())
	n, _ := s.Get("a")
	assert.False(t, n.Read)
}

// The counter must always equal a recount of unread records, whatever the
// sequence of operations.
func TestStore_UnreadInvariant_RandomOps(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		s := NewStore()
		nextID := 0

		for step := 0; step < 300; step++ {
			existing := s.List()
			pick := func() string {
				if len(existing) == 0 || rng.Intn(10) == 0 {
					return "missing"
				}
				return existing[rng.Intn(len(existing))].ID
			}

			switch op := rng.Intn(100); {
			case op < 45:
				n := note(fmt.Sprint(nextID))
				n.Read = rng.Intn(5) == 0
				if rng.Intn(10) == 0 && len(existing) > 0 {
					n.ID = existing[0].ID // duplicate
				} else {
					nextID++
				}
				s.Add(n)
			case op < 70:
				s.MarkAsRead(pick())
			case op < 92:
				s.Delete(pick())
			case op < 97:
				s.MarkAllAsRead()
			default:
				s.ClearAll()
			}

			snap := s.Snapshot()
			require.Equal(t, recount(snap.Notifications), snap.UnreadCount,
				"seed %d step %d: counter drifted", seed, step)
		}
	}
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("%d-%d", w, i)
				s.Add(note(id))
				if i%3 == 0 {
					s.MarkAsRead(id)
				}
				if i%7 == 0 {
					s.Delete(id)
				}
			}
		}(w)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, recount(snap.Notifications), snap.UnreadCount)
}
