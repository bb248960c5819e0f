package trip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripdesk/internal/trip"
)

func newTestRepo(t *testing.T) (*trip.Repository, *trip.Store) {
	t.Helper()
	store, _ := newTestStore(t)
	return trip.NewRepository(store), store
}

func userMessage(r *trip.Repository, text string) trip.Message {
	return trip.Message{ID: r.NextMessageID(), Type: trip.MessageUser, Text: text}
}

func TestRepository_StartsWithOneTrip(t *testing.T) {
	repo, _ := newTestRepo(t)

	trips := repo.List()

	require.Len(t, trips, 1)
	assert.Equal(t, trips[0].ID, repo.ActiveID())
	require.GreaterOrEqual(t, len(trips[0].Messages), 1)
}

func TestRepository_DeleteLastTrip_CreatesFreshReplacement(t *testing.T) {
	repo, _ := newTestRepo(t)
	old := repo.ActiveID()

	require.NoError(t, repo.Delete(old))

	trips := repo.List()
	require.Len(t, trips, 1)
	assert.NotEqual(t, old, trips[0].ID)
	require.Len(t, trips[0].Messages, 1)
	assert.Equal(t, trips[0].ID, repo.ActiveID())
}

func TestRepository_DeleteActive_SwitchesActive(t *testing.T) {
	repo, _ := newTestRepo(t)
	first := repo.ActiveID()
	second := repo.Create()
	assert.Equal(t, second.ID, repo.ActiveID())

	require.NoError(t, repo.Delete(second.ID))

	assert.Equal(t, first, repo.ActiveID())
	require.Len(t, repo.List(), 1)
}

func TestRepository_AppendMessage_RefreshesUpdatedAt(t *testing.T) {
	repo, _ := newTestRepo(t)
	before := repo.Active().UpdatedAt

	require.NoError(t, repo.AppendMessage(repo.ActiveID(), userMessage(repo, "ไปภูเก็ต")))

	after := repo.Active()
	require.Len(t, after.Messages, 2)
	assert.False(t, after.UpdatedAt.Before(before))
}

func TestRepository_AppendMessage_Persists(t *testing.T) {
	repo, store := newTestRepo(t)
	require.NoError(t, repo.AppendMessage(repo.ActiveID(), userMessage(repo, "ไปเชียงใหม่")))

	// A new repository over the same store sees the appended message.
	reloaded := trip.NewRepository(store)
	active := reloaded.Active()
	require.Len(t, active.Messages, 2)
	assert.Equal(t, "ไปเชียงใหม่", active.Messages[1].Text)
}

func TestRepository_NextMessageID_StrictlyIncreasing(t *testing.T) {
	repo, _ := newTestRepo(t)

	prev := repo.NextMessageID()
	for i := 0; i < 100; i++ {
		id := repo.NextMessageID()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestRepository_TruncateBefore(t *testing.T) {
	repo, _ := newTestRepo(t)
	tripID := repo.ActiveID()
	u1 := userMessage(repo, "first")
	b1 := trip.Message{ID: repo.NextMessageID(), Type: trip.MessageBot, Text: "reply"}
	u2 := userMessage(repo, "second")
	for _, m := range []trip.Message{u1, b1, u2} {
		require.NoError(t, repo.AppendMessage(tripID, m))
	}

	require.NoError(t, repo.TruncateBefore(tripID, u1.ID))

	active := repo.Active()
	// Everything from u1 onward is gone; the welcome message stays.
	require.Len(t, active.Messages, 1)
	assert.Equal(t, trip.MessageBot, active.Messages[0].Type)
}

func TestRepository_TruncateBefore_WelcomeRefused(t *testing.T) {
	repo, _ := newTestRepo(t)
	welcome := repo.Active().Messages[0]

	err := repo.TruncateBefore(repo.ActiveID(), welcome.ID)

	assert.ErrorIs(t, err, trip.ErrMessageNotFound)
	require.Len(t, repo.Active().Messages, 1)
}

func TestRepository_TruncateAfter(t *testing.T) {
	repo, _ := newTestRepo(t)
	tripID := repo.ActiveID()
	u1 := userMessage(repo, "first")
	b1 := trip.Message{ID: repo.NextMessageID(), Type: trip.MessageBot, Text: "stale reply"}
	require.NoError(t, repo.AppendMessage(tripID, u1))
	require.NoError(t, repo.AppendMessage(tripID, b1))

	require.NoError(t, repo.TruncateAfter(tripID, u1.ID))

	active := repo.Active()
	require.Len(t, active.Messages, 2)
	assert.Equal(t, u1.ID, active.Messages[1].ID)
}

func TestRepository_Rename(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.Rename(repo.ActiveID(), "Phuket Trip"))

	assert.Equal(t, "Phuket Trip", repo.Active().Title)
}

func TestRepository_SnapshotsAreIsolated(t *testing.T) {
	repo, _ := newTestRepo(t)
	snap := repo.Active()
	snap.Messages[0].Text = "mutated"
	snap.Title = "mutated"

	fresh := repo.Active()
	assert.Equal(t, trip.WelcomeText, fresh.Messages[0].Text)
	assert.Equal(t, trip.DefaultTitle, fresh.Title)
}

func TestRepository_RestoresActiveFromStore(t *testing.T) {
	repo, store := newTestRepo(t)
	second := repo.Create()

	reloaded := trip.NewRepository(store)
	assert.Equal(t, second.ID, reloaded.ActiveID())
}

func TestRepository_InvalidActiveFallsBackToFirst(t *testing.T) {
	_, store := newTestRepo(t)
	store.SaveActiveTripID("no-such-trip")

	reloaded := trip.NewRepository(store)
	assert.Equal(t, reloaded.List()[0].ID, reloaded.ActiveID())
}
