package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string `json:"value"`
}

func TestSetGetRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("k1", payload{Value: "hello"}, time.Hour))

	var got payload
	hit, err := store.Get("k1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "hello", got.Value)
}

func TestGetMiss(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	var got payload
	hit, err := store.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGetExpired(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("k1", payload{Value: "hello"}, time.Nanosecond))
	time.Sleep(time.Millisecond)

	var got payload
	hit, err := store.Get("k1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("k1", payload{Value: "x"}, 0))
	require.NoError(t, store.Delete("k1"))
	require.NoError(t, store.Delete("k1"))

	var got payload
	hit, _ := store.Get("k1", &got)
	assert.False(t, hit)
}

func TestAcquireDownloadLockExcludes(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	release, err := store.AcquireDownloadLock("gtfs-static")
	require.NoError(t, err)
	defer release()

	done := make(chan struct{})
	go func() {
		r2, err := store.AcquireDownloadLock("gtfs-static")
		if err == nil {
			r2()
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock acquisition should have blocked while first is held")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSafeFilenameSanitizesKey(t *testing.T) {
	assert.Equal(t, "a_b_c", safeFilename("a/b:c"))
	assert.Equal(t, "stib-schedule_today", safeFilename("stib-schedule:today"))
}
