// Package store holds the bounded, deduplicated collection of recent
// access-event notifications shown by the panel.
package store

import (
	"sync"

	"github.com/gymaccess/access-panel/internal/domain"
	"go.uber.org/zap"
)

// MaxRecent bounds the store. This is a recent-activity affordance, not an
// audit log; inserting beyond the bound evicts the oldest entry.
const MaxRecent = 5

// Snapshot is an immutable view of the store state handed to subscribers.
type Snapshot struct {
	// Recent is ordered newest first.
	Recent    []domain.AccessEvent
	HasUnseen bool
}

// Subscriber receives a snapshot synchronously after every mutation.
type Subscriber func(Snapshot)

// Store is the process-wide notification store. It is constructed once at
// bootstrap and injected into its subscribers; entries are never mutated
// after insertion.
type Store struct {
	logger *zap.Logger

	mu          sync.Mutex
	recent      []domain.AccessEvent
	hasUnseen   bool
	subscribers map[int]Subscriber
	nextSubID   int
}

func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger:      logger,
		recent:      make([]domain.AccessEvent, 0, MaxRecent),
		subscribers: make(map[int]Subscriber),
	}
}

// Insert prepends the event and marks the store unseen. Events matching an
// existing entry's dedup key are a no-op: no reorder, no unseen change.
// It reports whether the event was retained.
func (s *Store) Insert(event domain.AccessEvent) bool {
	s.mu.Lock()

	key := event.DedupKey()
	for _, existing := range s.recent {
		if existing.DedupKey() == key {
			s.mu.Unlock()
			s.logger.Debug("duplicate notification suppressed",
				zap.String("eventId", event.ID),
				zap.String("subject", event.SubjectName),
			)
			return false
		}
	}

	s.recent = append([]domain.AccessEvent{event}, s.recent...)
	if len(s.recent) > MaxRecent {
		s.recent = s.recent[:MaxRecent]
	}
	s.hasUnseen = true

	snapshot, subscribers := s.snapshotLocked()
	s.mu.Unlock()

	notify(subscribers, snapshot)
	return true
}

// Deliver feeds an ingested event into the store, discarding the dedup
// result. It exists so the store can sit directly behind the push channel.
func (s *Store) Deliver(event domain.AccessEvent) {
	s.Insert(event)
}

// ClearAll empties the store and clears the unseen flag.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.recent = s.recent[:0]
	s.hasUnseen = false
	snapshot, subscribers := s.snapshotLocked()
	s.mu.Unlock()

	notify(subscribers, snapshot)
}

// MarkViewed clears the unseen flag without touching the entries.
func (s *Store) MarkViewed() {
	s.mu.Lock()
	s.hasUnseen = false
	snapshot, subscribers := s.snapshotLocked()
	s.mu.Unlock()

	notify(subscribers, snapshot)
}

// Snapshot returns the current entries (newest first) and the unseen flag.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, _ := s.snapshotLocked()
	return snapshot
}

// Subscribe registers fn for synchronous notification on every mutation and
// returns the matching unsubscribe func.
func (s *Store) Subscribe(fn Subscriber) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() (Snapshot, []Subscriber) {
	recent := make([]domain.AccessEvent, len(s.recent))
	copy(recent, s.recent)

	subscribers := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}

	return Snapshot{Recent: recent, HasUnseen: s.hasUnseen}, subscribers
}

func notify(subscribers []Subscriber, snapshot Snapshot) {
	for _, fn := range subscribers {
		fn(snapshot)
	}
}
