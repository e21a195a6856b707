package server

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/netsync"
)

// Observer is one connected watcher of a room
type Observer struct {
	id         string
	ctx        context.Context
	cancelFunc context.CancelFunc
	updateChan chan []netsync.Message
}

// ID returns the observer id
func (o *Observer) ID() string { return o.id }

// Updates delivers flushed delta batches. It is closed when the observer is
// removed or the room shuts down.
func (o *Observer) Updates() <-chan []netsync.Message { return o.updateChan }

// Done is closed when the observer is removed
func (o *Observer) Done() <-chan struct{} { return o.ctx.Done() }

// StreamManager manages the observers of one room
type StreamManager struct {
	clients   map[string]*Observer // observerID -> observer
	clientsMu sync.RWMutex
	buffer    int
	dropped   atomic.Int64
	logger    zerolog.Logger
}

// NewStreamManager creates a stream manager whose observers buffer up to
// buffer batches before deltas are dropped.
func NewStreamManager(buffer int, logger zerolog.Logger) *StreamManager {
	if buffer < 1 {
		buffer = 1
	}
	return &StreamManager{
		clients: make(map[string]*Observer),
		buffer:  buffer,
		logger:  logger.With().Str("component", "StreamManager").Logger(),
	}
}

// Register adds an observer. An existing observer with the same id is replaced.
func (sm *StreamManager) Register(parent context.Context, id string) *Observer {
	ctx, cancel := context.WithCancel(parent)
	obs := &Observer{
		id:         id,
		ctx:        ctx,
		cancelFunc: cancel,
		updateChan: make(chan []netsync.Message, sm.buffer),
	}

	sm.clientsMu.Lock()
	defer sm.clientsMu.Unlock()

	if existing, exists := sm.clients[id]; exists {
		existing.cancelFunc()
		close(existing.updateChan)
	}
	sm.clients[id] = obs

	sm.logger.Debug().
		Str("observer_id", id).
		Int("total_streams", len(sm.clients)).
		Msg("Observer registered")
	return obs
}

// Unregister removes obs. It is a no-op once obs has been replaced by a
// newer registration under the same id.
func (sm *StreamManager) Unregister(obs *Observer) {
	if obs == nil {
		return
	}
	sm.clientsMu.Lock()
	defer sm.clientsMu.Unlock()

	if current, exists := sm.clients[obs.id]; exists && current == obs {
		obs.cancelFunc()
		close(obs.updateChan)
		delete(sm.clients, obs.id)

		sm.logger.Debug().
			Str("observer_id", obs.id).
			Int("remaining_streams", len(sm.clients)).
			Msg("Observer unregistered")
	}
}

// Broadcast hands a batch to every observer without blocking. Observers
// whose buffer is full miss the batch and must resync from a snapshot.
func (sm *StreamManager) Broadcast(batch []netsync.Message) {
	sm.clientsMu.RLock()
	defer sm.clientsMu.RUnlock()

	for id, obs := range sm.clients {
		select {
		case obs.updateChan <- batch:
		default:
			sm.dropped.Add(1)
			sm.logger.Warn().
				Str("observer_id", id).
				Msg("Observer channel full, dropping batch")
		}
	}
}

// Count returns the number of connected observers
func (sm *StreamManager) Count() int {
	sm.clientsMu.RLock()
	defer sm.clientsMu.RUnlock()
	return len(sm.clients)
}

// Dropped returns how many batches were dropped on full observer buffers
func (sm *StreamManager) Dropped() int64 {
	return sm.dropped.Load()
}

// CloseAll removes every observer
func (sm *StreamManager) CloseAll() {
	sm.clientsMu.Lock()
	defer sm.clientsMu.Unlock()

	for id, obs := range sm.clients {
		obs.cancelFunc()
		close(obs.updateChan)
		delete(sm.clients, id)
	}
}
