// Package cache implements the fixed-capacity authorization cache that
// lets the verifier pipeline skip a cloud round trip for a tag it has
// already checked in recently (spec.md sections 3, 4.5, 8). There is no
// teacher analog for this component; its shape is fixed directly by the
// spec's AuthCacheEntry type and eviction rule.
package cache

import (
	"sync"
	"time"

	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// Entry is one cached authorization outcome: {tag_uid, auth_id, user_label,
// inserted_at, expiry, valid} per spec.md section 3.
type Entry struct {
	TagUID     corecfg.TagUid
	AuthID     corecfg.Identifier
	UserLabel  corecfg.UserLabel
	InsertedAt time.Time
	Expiry     time.Time
	Valid      bool
}

// AuthCache is a fixed-capacity set of authorization entries, at most one
// valid entry per tag UID. It is touched only by the verifier task
// (spec.md section 6's shared-resource policy) and so needs no internal
// locking for that access pattern; the mutex here only guards against a
// diagnostic/admin goroutine inspecting the cache concurrently.
type AuthCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  []Entry
	now      func() time.Time
}

// New builds an AuthCache with the given capacity and per-entry TTL.
func New(capacity int, ttl time.Duration) *AuthCache {
	return &AuthCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make([]Entry, 0, capacity),
		now:      time.Now,
	}
}

// Lookup returns the valid, unexpired entry for uid, if any. An expired
// entry is invalidated in place (spec.md section 3: "Lookup returns None
// if expired (and invalidates in place)") so a later Insert can reuse its
// slot without being mistaken for a live entry first.
func (c *AuthCache) Lookup(uid corecfg.TagUid) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for i := range c.entries {
		e := &c.entries[i]
		if !e.Valid || !e.TagUID.Equal(uid) {
			continue
		}
		if !now.Before(e.Expiry) {
			e.Valid = false
			return Entry{}, false
		}
		return *e, true
	}
	return Entry{}, false
}

// Insert records a new authorization for uid, authID, and label, expiring
// after ttl from now (spec.md section 4.5: the TTL is configurable per
// insert, not fixed to the cache-wide default). A zero ttl falls back to
// the cache's construction-time default. Any existing valid entry for the
// same UID is replaced. When the cache is full and uid is not already
// present, the valid entry with the smallest InsertedAt is evicted (spec.md
// section 3); an invalid (expired or never-used) slot is reused in
// preference to evicting a valid one.
func (c *AuthCache) Insert(uid corecfg.TagUid, authID corecfg.Identifier, label corecfg.UserLabel, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	newEntry := Entry{
		TagUID:     uid,
		AuthID:     authID,
		UserLabel:  label,
		InsertedAt: now,
		Expiry:     now.Add(ttl),
		Valid:      true,
	}

	for i := range c.entries {
		if c.entries[i].Valid && c.entries[i].TagUID.Equal(uid) {
			c.entries[i] = newEntry
			return
		}
	}

	for i := range c.entries {
		if !c.entries[i].Valid {
			c.entries[i] = newEntry
			return
		}
	}

	if len(c.entries) < c.capacity {
		c.entries = append(c.entries, newEntry)
		return
	}

	oldest := 0
	for i := 1; i < len(c.entries); i++ {
		if c.entries[i].InsertedAt.Before(c.entries[oldest].InsertedAt) {
			oldest = i
		}
	}
	c.entries[oldest] = newEntry
}

// Clear invalidates every entry.
func (c *AuthCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		c.entries[i].Valid = false
	}
}

// Len reports the number of occupied slots, valid or not. Exposed for
// tests asserting the fixed-capacity eviction property.
func (c *AuthCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
