package trip

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// Repository holds the in-memory trip collection. It is the source of truth
// for the session; the Store is written through after every mutation as a
// best-effort side effect. The trip list is never empty.
type Repository struct {
	mu     sync.RWMutex
	store  *Store
	trips  []*Trip
	active string
	lastID int64
}

// NewRepository loads the persisted trips, restores the active trip id and
// seeds the message id counter past everything already stored.
func NewRepository(store *Store) *Repository {
	r := &Repository{store: store}
	r.trips = store.Load()
	for _, t := range r.trips {
		for _, m := range t.Messages {
			if m.ID > r.lastID {
				r.lastID = m.ID
			}
		}
	}
	r.active = store.LoadActiveTripID()
	if _, ok := r.findLocked(r.active); !ok {
		r.active = r.trips[0].ID
		store.SaveActiveTripID(r.active)
	}
	return r
}

// NextMessageID issues message ids from a millisecond clock, bumped when the
// clock has not advanced so ids stay strictly increasing within the process.
func (r *Repository) NextMessageID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := time.Now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}

// List returns snapshots of all trips in insertion order.
func (r *Repository) List() []Trip {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.trips, func(t *Trip, _ int) Trip { return snapshot(t) })
}

// Get returns a snapshot of one trip.
func (r *Repository) Get(id string) (Trip, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.findLocked(id)
	if !ok {
		return Trip{}, false
	}
	return snapshot(t), true
}

func (r *Repository) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Active returns a snapshot of the active trip.
func (r *Repository) Active() Trip {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.findLocked(r.active); ok {
		return snapshot(t)
	}
	return snapshot(r.trips[0])
}

func (r *Repository) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.findLocked(id); !ok {
		return ErrNotFound
	}
	r.active = id
	r.store.SaveActiveTripID(id)
	return nil
}

// Create adds a fresh trip, makes it active and returns a snapshot of it.
func (r *Repository) Create() Trip {
	id := r.NextMessageID()
	r.mu.Lock()
	defer r.mu.Unlock()
	t := NewTrip(id)
	r.trips = append(r.trips, t)
	r.active = t.ID
	r.persistLocked()
	r.store.SaveActiveTripID(t.ID)
	return snapshot(t)
}

// Delete removes a trip. Deleting the last remaining trip immediately creates
// a fresh replacement so the list is never empty.
func (r *Repository) Delete(id string) error {
	nextID := r.NextMessageID()
	r.mu.Lock()
	defer r.mu.Unlock()
	_, idx, ok := lo.FindIndexOf(r.trips, func(t *Trip) bool { return t.ID == id })
	if !ok {
		return ErrNotFound
	}
	r.trips = append(r.trips[:idx], r.trips[idx+1:]...)
	if len(r.trips) == 0 {
		r.trips = []*Trip{NewTrip(nextID)}
	}
	if r.active == id {
		r.active = r.trips[0].ID
		r.store.SaveActiveTripID(r.active)
	}
	r.persistLocked()
	return nil
}

// AppendMessage appends one message and refreshes the trip's UpdatedAt.
func (r *Repository) AppendMessage(tripID string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.findLocked(tripID)
	if !ok {
		return ErrNotFound
	}
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = time.Now().UTC()
	r.persistLocked()
	return nil
}

// Rename overwrites the trip title (server-suggested or user-chosen).
func (r *Repository) Rename(tripID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.findLocked(tripID)
	if !ok {
		return ErrNotFound
	}
	t.Title = title
	t.UpdatedAt = time.Now().UTC()
	r.persistLocked()
	return nil
}

// TruncateBefore drops the message with the given id and everything after it.
// This is how edit-and-resend works. The leading welcome message can never be
// truncated away, keeping the ≥1 message invariant.
func (r *Repository) TruncateBefore(tripID string, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.findLocked(tripID)
	if !ok {
		return ErrNotFound
	}
	_, idx, found := lo.FindIndexOf(t.Messages, func(m Message) bool { return m.ID == messageID })
	if !found || idx == 0 {
		return ErrMessageNotFound
	}
	t.Messages = t.Messages[:idx]
	t.UpdatedAt = time.Now().UTC()
	r.persistLocked()
	return nil
}

// TruncateAfter drops every message strictly after the given id, keeping the
// message itself. Used by regenerate to replace the bot continuation.
func (r *Repository) TruncateAfter(tripID string, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.findLocked(tripID)
	if !ok {
		return ErrNotFound
	}
	_, idx, found := lo.FindIndexOf(t.Messages, func(m Message) bool { return m.ID == messageID })
	if !found {
		return ErrMessageNotFound
	}
	t.Messages = t.Messages[:idx+1]
	t.UpdatedAt = time.Now().UTC()
	r.persistLocked()
	return nil
}

func (r *Repository) findLocked(id string) (*Trip, bool) {
	return lo.Find(r.trips, func(t *Trip) bool { return t.ID == id })
}

func (r *Repository) persistLocked() {
	r.store.Save(r.trips)
}

func snapshot(t *Trip) Trip {
	out := *t
	out.Messages = append([]Message{}, t.Messages...)
	return out
}
