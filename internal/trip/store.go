package trip

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tripdesk/internal/utils"
)

// Store is the durable cache of the trip list and active trip id. It fails
// soft in both directions: loads fall back to a fresh default and writes are
// best effort, so a full disk or a corrupted file never interrupts a session.
type Store struct {
	dir    string
	logger *utils.Logger
}

func NewStore(dir string, logger *utils.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

func (s *Store) tripsPath() string  { return filepath.Join(s.dir, "trips.json") }
func (s *Store) activePath() string { return filepath.Join(s.dir, "active_trip") }

// Load returns the last-persisted trips, or a single fresh trip when nothing
// usable is stored. It never returns an error.
func (s *Store) Load() []*Trip {
	data, err := os.ReadFile(s.tripsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debugf("trip store read failed: %v", err)
		}
		return []*Trip{NewTrip(time.Now().UnixMilli())}
	}

	var trips []*Trip
	if err := json.Unmarshal(data, &trips); err != nil {
		s.logger.Warnf("trip store is malformed, starting fresh: %v", err)
		return []*Trip{NewTrip(time.Now().UnixMilli())}
	}

	valid := trips[:0]
	for _, t := range trips {
		if t == nil || t.ID == "" || len(t.Messages) == 0 {
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		return []*Trip{NewTrip(time.Now().UnixMilli())}
	}
	return valid
}

// Save persists the trip list. Failures are logged and swallowed.
func (s *Store) Save(trips []*Trip) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Debugf("trip store mkdir failed: %v", err)
		return
	}
	data, err := json.MarshalIndent(trips, "", "  ")
	if err != nil {
		s.logger.Debugf("trip store marshal failed: %v", err)
		return
	}
	if err := utils.WriteFileAtomic(s.tripsPath(), data, 0o644); err != nil {
		s.logger.Debugf("trip store write failed: %v", err)
	}
}

func (s *Store) LoadActiveTripID() string {
	data, err := os.ReadFile(s.activePath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Store) SaveActiveTripID(id string) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return
	}
	if err := utils.WriteFileAtomic(s.activePath(), []byte(id), 0o644); err != nil {
		s.logger.Debugf("active trip write failed: %v", err)
	}
}
