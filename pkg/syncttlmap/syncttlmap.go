// Package syncttlmap provides a concurrency-safe map whose entries expire.
package syncttlmap

import (
	"sync"
	"time"
)

// TTLMap structure
type TTLMap struct {
	TTL  time.Duration
	now  func() time.Time
	data sync.Map
}

type expireEntry struct {
	ExpiresAt time.Time
	Value     interface{}
}

// Store saves a key/value pair into TTLMap
func (t *TTLMap) Store(key string, val interface{}) {
	t.data.Store(key, expireEntry{
		ExpiresAt: t.now().Add(t.TTL),
		Value:     val,
	})
}

// Delete deletes the given key from TTLMap
func (t *TTLMap) Delete(key string) {
	t.data.Delete(key)
}

// Load retrieves the value of the given key from TTLMap. It returns nil when
// the key is absent or its entry has expired.
func (t *TTLMap) Load(key string) (val interface{}) {
	entry, ok := t.data.Load(key)
	if !ok {
		return nil
	}

	expireEntry, ok := entry.(expireEntry)
	if !ok {
		return nil
	}

	if t.now().After(expireEntry.ExpiresAt) {
		return nil
	}

	return expireEntry.Value
}

// CleaningBackground starts a go routine that evicts expired entries every
// cleaning interval.
func (t *TTLMap) CleaningBackground(cleaning time.Duration) {
	go func() {
		for range time.Tick(cleaning) {
			t.data.Range(func(k, v interface{}) bool {
				if expireEntry, ok := v.(expireEntry); ok && t.now().After(expireEntry.ExpiresAt) {
					t.data.Delete(k)
				}
				return true
			})
		}
	}()
}

// New returns a new TTLMap
func New(ttl time.Duration) *TTLMap {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock returns a TTLMap that reads the current time from now.
func NewWithClock(ttl time.Duration, now func() time.Time) *TTLMap {
	return &TTLMap{TTL: ttl, now: now}
}
