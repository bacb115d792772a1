package syncttlmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStoreLoadExpire(t *testing.T) {
	ttl := 50 * time.Millisecond
	cleanup := 150 * time.Millisecond

	mMap := New(ttl)
	mMap.CleaningBackground(cleanup)

	assert.Equal(t, mMap.TTL, ttl)

	notExists := mMap.Load("notExistingKey")
	assert.Nil(t, notExists)

	mMap.Store("hello", "world")
	exists := mMap.Load("hello")
	assert.Equal(t, "world", exists)

	time.Sleep(200 * time.Millisecond)
	shouldBeNil := mMap.Load("hello")
	assert.Nil(t, shouldBeNil)
}

func TestDelete(t *testing.T) {
	mMap := New(time.Minute)
	mMap.Store("hello", "world")
	mMap.Delete("hello")
	assert.Nil(t, mMap.Load("hello"))
}

func TestInjectedClock(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mMap := NewWithClock(time.Minute, func() time.Time { return current })

	mMap.Store("hello", "world")
	assert.Equal(t, "world", mMap.Load("hello"))

	current = current.Add(time.Minute + time.Second)
	assert.Nil(t, mMap.Load("hello"))
}

func TestCleaningBackgroundEvictsEntries(t *testing.T) {
	mMap := New(30 * time.Millisecond)
	mMap.CleaningBackground(50 * time.Millisecond)

	mMap.Store("hello", "world")
	time.Sleep(200 * time.Millisecond)

	entries := 0
	mMap.data.Range(func(_, _ interface{}) bool {
		entries++
		return true
	})
	assert.Zero(t, entries, "expired entries are deleted, not just hidden")
}
