package server

import (
	"sync"
	"time"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
)

const maxIdempotencyEntries = 1000

// idempotencyKey scopes a request id to the faction that sent it
type idempotencyKey struct {
	Faction   core.FactionID
	RequestID string
}

// DispatchOutcome is the cached result of one dispatch request
type DispatchOutcome struct {
	Troop core.Troop
	Err   error
}

type idempotencyEntry struct {
	outcome   DispatchOutcome
	createdAt time.Time
}

// IdempotencyManager remembers dispatch outcomes by request id so a retried
// command is not applied twice.
type IdempotencyManager struct {
	cache map[idempotencyKey]*idempotencyEntry
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
}

// NewIdempotencyManager creates a manager keeping outcomes for ttl
func NewIdempotencyManager(ttl time.Duration) *IdempotencyManager {
	return &IdempotencyManager{
		cache: make(map[idempotencyKey]*idempotencyEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Check returns the cached outcome for a request, if any
func (im *IdempotencyManager) Check(faction core.FactionID, requestID string) (DispatchOutcome, bool) {
	if requestID == "" {
		return DispatchOutcome{}, false
	}

	im.mu.RLock()
	defer im.mu.RUnlock()

	entry, exists := im.cache[idempotencyKey{Faction: faction, RequestID: requestID}]
	if !exists {
		return DispatchOutcome{}, false
	}
	if im.now().Sub(entry.createdAt) > im.ttl {
		return DispatchOutcome{}, false
	}
	return entry.outcome, true
}

// Store caches the outcome of a request
func (im *IdempotencyManager) Store(faction core.FactionID, requestID string, outcome DispatchOutcome) {
	if requestID == "" {
		return
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	im.cache[idempotencyKey{Faction: faction, RequestID: requestID}] = &idempotencyEntry{
		outcome:   outcome,
		createdAt: im.now(),
	}

	if len(im.cache) > maxIdempotencyEntries {
		im.cleanupOldEntriesLocked()
	}
}

// Len returns the number of cached outcomes
func (im *IdempotencyManager) Len() int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return len(im.cache)
}

// cleanupOldEntriesLocked removes expired entries. Must be called with mu held.
func (im *IdempotencyManager) cleanupOldEntriesLocked() {
	cutoff := im.now().Add(-im.ttl)
	for key, entry := range im.cache {
		if entry.createdAt.Before(cutoff) {
			delete(im.cache, key)
		}
	}
}
