package services

import (
	"sync"
	"testing"

	"livecast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor() domain.StreamDescriptor {
	return domain.StreamDescriptor{
		StreamID:        "stream-1",
		Title:           "Spring Sale",
		Description:     "Flash deals all afternoon",
		MediaDescriptor: "peer-broadcaster",
		Quality:         "1080p",
	}
}

func TestStartBroadcastRejectsDuplicate(t *testing.T) {
	store := NewStreamStateService()

	require.NoError(t, store.StartBroadcast(testDescriptor()))

	err := store.StartBroadcast(testDescriptor())
	assert.ErrorIs(t, err, domain.ErrBroadcastActive)

	// The live record is untouched by the rejected start.
	snapshot := store.Snapshot()
	assert.True(t, snapshot.Active)
	assert.Equal(t, domain.StreamID("stream-1"), snapshot.StreamID)
}

func TestStartBroadcastResetsLikes(t *testing.T) {
	store := NewStreamStateService()

	require.NoError(t, store.StartBroadcast(testDescriptor()))
	_, _, err := store.ToggleLike("user-1")
	require.NoError(t, err)

	store.StopBroadcast()
	desc := testDescriptor()
	desc.StreamID = "stream-2"
	require.NoError(t, store.StartBroadcast(desc))

	snapshot := store.Snapshot()
	assert.Equal(t, 0, snapshot.LikeCount)
	assert.Empty(t, snapshot.LikedBy)
}

func TestToggleLikeFlipsMembership(t *testing.T) {
	store := NewStreamStateService()
	require.NoError(t, store.StartBroadcast(testDescriptor()))

	count, likedBy, err := store.ToggleLike("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []domain.Identity{"user-1"}, likedBy)

	// Same identity toggles off, never double-counts.
	count, likedBy, err = store.ToggleLike("user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, likedBy)

	count, _, err = store.ToggleLike("user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestToggleLikeWhenNotLive(t *testing.T) {
	store := NewStreamStateService()

	_, _, err := store.ToggleLike("user-1")
	assert.ErrorIs(t, err, domain.ErrStreamNotLive)
}

func TestLikeCountMatchesSetUnderConcurrency(t *testing.T) {
	store := NewStreamStateService()
	require.NoError(t, store.StartBroadcast(testDescriptor()))

	identities := []domain.Identity{"a", "b", "c", "d", "e"}
	var wg sync.WaitGroup
	for _, id := range identities {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id domain.Identity) {
				defer wg.Done()
				_, _, _ = store.ToggleLike(id)
			}(id)
		}
	}
	wg.Wait()

	// Whatever the interleaving, count and set agree and the count is
	// bounded by the number of distinct identities.
	snapshot := store.Snapshot()
	assert.Equal(t, len(snapshot.LikedBy), snapshot.LikeCount)
	assert.LessOrEqual(t, snapshot.LikeCount, len(identities))

	// After an odd number of toggles per identity everyone is in the set.
	// 5 toggles each here, so all five must be present.
	assert.Equal(t, 5, snapshot.LikeCount)
}

func TestStopBroadcastClearsLikesKeepsViewerCount(t *testing.T) {
	store := NewStreamStateService()
	require.NoError(t, store.StartBroadcast(testDescriptor()))
	store.SetViewerCount(17)
	_, _, err := store.ToggleLike("user-1")
	require.NoError(t, err)

	store.StopBroadcast()

	snapshot := store.Snapshot()
	assert.False(t, snapshot.Active)
	assert.Equal(t, 0, snapshot.LikeCount)
	assert.Equal(t, 17, snapshot.ViewerCount)
}

func TestSnapshotIsDetached(t *testing.T) {
	store := NewStreamStateService()
	require.NoError(t, store.StartBroadcast(testDescriptor()))
	_, _, err := store.ToggleLike("user-1")
	require.NoError(t, err)

	first := store.Snapshot()
	first.LikedBy[0] = "mutated"

	second := store.Snapshot()
	assert.Equal(t, []domain.Identity{"user-1"}, second.LikedBy)
}

func TestSetViewerCountFloorsAtZero(t *testing.T) {
	store := NewStreamStateService()
	store.SetViewerCount(-3)
	assert.Equal(t, 0, store.Snapshot().ViewerCount)
}
