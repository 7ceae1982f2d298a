package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/jobportal-notify/internal/protocol"
)

// Snapshot is a consistent view of the store.
type Snapshot struct {
	Notifications []protocol.Notification // Newest first
	UnreadCount   int
}

// Store holds notifications newest-first together with the unread counter.
// The list and the counter are only ever changed under the same lock.
type Store struct {
	mu     sync.RWMutex
	items  []protocol.Notification
	unread int

	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Add prepends n. A missing id is replaced with a fresh UUID and a zero
// timestamp with the current time. If a record with the same id is already
// present, Add returns that stored record and false.
func (s *Store) Add(n protocol.Notification) (protocol.Notification, bool) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now()
	}
	if !n.Type.Valid() {
		n.Type = protocol.LevelInfo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(n.ID); i >= 0 {
		return s.items[i], false
	}

	s.items = append(s.items, protocol.Notification{})
	copy(s.items[1:], s.items)
	s.items[0] = n
	if !n.Read {
		s.unread++
	}
	return n, true
}

// MarkAsRead marks one record read. Returns false if it was not found or
// was already read.
func (s *Store) MarkAsRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.items[i].Read {
		return false
	}
	s.items[i].Read = true
	s.unread--
	return true
}

// MarkAllAsRead marks every record read and returns how many changed.
func (s *Store) MarkAllAsRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			changed++
		}
	}
	s.unread = 0
	return changed
}

// Delete removes one record. Returns false if it was not found.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	if !s.items[i].Read {
		s.unread--
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// ClearAll removes every record and returns how many were removed.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items)
	s.items = nil
	s.unread = 0
	return n
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (protocol.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return protocol.Notification{}, false
	}
	return s.items[i], true
}

// List returns a copy of the records, newest first.
func (s *Store) List() []protocol.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// UnreadCount returns the number of unread records.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot returns the list and counter taken under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Notifications: s.copyLocked(),
		UnreadCount:   s.unread,
	}
}

func (s *Store) copyLocked() []protocol.Notification {
	out := make([]protocol.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
