package trip_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripdesk/internal/trip"
	"tripdesk/internal/utils"
)

func newTestStore(t *testing.T) (*trip.Store, string) {
	t.Helper()
	dir := t.TempDir()
	return trip.NewStore(dir, utils.NewLogger("info")), dir
}

func TestStore_Load_NoFile(t *testing.T) {
	store, _ := newTestStore(t)

	trips := store.Load()

	require.Len(t, trips, 1)
	assert.NotEmpty(t, trips[0].ID)
	require.Len(t, trips[0].Messages, 1)
	assert.Equal(t, trip.MessageBot, trips[0].Messages[0].Type)
}

func TestStore_Load_MalformedJSON(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trips.json"), []byte("{not json"), 0o644))

	trips := store.Load()

	// Fails soft: a corrupted cache yields a single fresh trip, never an error.
	require.Len(t, trips, 1)
	require.NotEmpty(t, trips[0].Messages)
}

func TestStore_Load_DropsInvalidEntries(t *testing.T) {
	store, dir := newTestStore(t)
	// One valid trip, one with no messages, one null.
	raw := `[{"id":"t1","title":"x","messages":[{"id":1,"type":"bot","text":"hi"}]},{"id":"t2","title":"broken","messages":[]},null]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trips.json"), []byte(raw), 0o644))

	trips := store.Load()

	require.Len(t, trips, 1)
	assert.Equal(t, "t1", trips[0].ID)
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	in := []*trip.Trip{trip.NewTrip(1), trip.NewTrip(2)}
	in[0].Title = "Phuket Trip"

	store.Save(in)
	out := store.Load()

	require.Len(t, out, 2)
	assert.Equal(t, "Phuket Trip", out[0].Title)
	assert.Equal(t, in[1].ID, out[1].ID)
}

func TestStore_ActiveTripID_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Empty(t, store.LoadActiveTripID())

	store.SaveActiveTripID("abc-123")
	assert.Equal(t, "abc-123", store.LoadActiveTripID())
}

func TestStore_Save_FailureIsSwallowed(t *testing.T) {
	// Point the store at a path whose parent is a regular file, so MkdirAll
	// fails. Save must not panic or surface an error.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	store := trip.NewStore(filepath.Join(blocker, "nested"), utils.NewLogger("info"))

	store.Save([]*trip.Trip{trip.NewTrip(1)})
	store.SaveActiveTripID("id")
}
