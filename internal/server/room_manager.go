package server

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game"
	"github.com/mitchelldurbincs/conquest/internal/game/ai"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
	"github.com/mitchelldurbincs/conquest/internal/game/events/subscribers"
	"github.com/mitchelldurbincs/conquest/internal/game/mapgen"
)

// ManagerConfig holds the defaults applied to every room
type ManagerConfig struct {
	MaxRooms        int
	IdleTimeout     time.Duration
	FinishedTTL     time.Duration
	CleanupInterval time.Duration

	Settings         game.Settings
	StrategistParams ai.Params
	Map              mapgen.MapConfig
	Difficulty       ai.Difficulty
	// Difficulties are looked up by name before the built in presets
	Difficulties map[string]ai.Difficulty

	Room RoomOptions
	// LogEvents attaches a logging subscriber to every match bus
	LogEvents bool
}

// CreateRoomRequest describes a new match
type CreateRoomRequest struct {
	MatchID string `json:"match_id,omitempty"`
	// Seed drives map generation and the strategists; 0 picks one from the clock
	Seed int64 `json:"seed,omitempty"`
	// Territories overrides map generation when set
	Territories []core.Territory `json:"territories,omitempty"`
	Opponents   int              `json:"opponents,omitempty"`
	Difficulty  string           `json:"difficulty,omitempty"`
}

// RoomManager creates, tracks and cleans up rooms
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg    ManagerConfig
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
	base   zerolog.Logger
	logger zerolog.Logger
}

// NewRoomManager creates a manager. Rooms run until their match ends or ctx
// is cancelled.
func NewRoomManager(ctx context.Context, cfg ManagerConfig, logger zerolog.Logger) *RoomManager {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	ctx, cancel := context.WithCancel(ctx)
	return &RoomManager{
		rooms:  make(map[string]*Room),
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		now:    time.Now,
		base:   logger,
		logger: logger.With().Str("component", "RoomManager").Logger(),
	}
}

// CreateRoom builds a match and starts running it
func (rm *RoomManager) CreateRoom(req CreateRoomRequest) (*Room, error) {
	rm.mu.RLock()
	count := len(rm.rooms)
	_, exists := rm.rooms[req.MatchID]
	rm.mu.RUnlock()

	if rm.cfg.MaxRooms > 0 && count >= rm.cfg.MaxRooms {
		rm.logger.Warn().
			Int("current_rooms", count).
			Int("max_rooms", rm.cfg.MaxRooms).
			Msg("Maximum room limit reached")
		return nil, ErrServerAtCapacity
	}
	if req.MatchID != "" && exists {
		return nil, fmt.Errorf("%w: match %s already exists", core.ErrInvalidSetup, req.MatchID)
	}

	cfg, err := rm.matchConfig(req)
	if err != nil {
		return nil, err
	}

	room, err := NewRoom(rm.ctx, cfg, rm.roomOptions())
	if err != nil {
		return nil, err
	}

	rm.mu.Lock()
	if _, dup := rm.rooms[room.ID()]; dup {
		rm.mu.Unlock()
		return nil, fmt.Errorf("%w: match %s already exists", core.ErrInvalidSetup, room.ID())
	}
	rm.rooms[room.ID()] = room
	rm.mu.Unlock()

	rm.wg.Add(1)
	go func() {
		defer rm.wg.Done()
		room.Run(rm.ctx)
	}()

	rm.logger.Info().
		Str("match_id", room.ID()).
		Int("territories", len(cfg.Territories)).
		Int("factions", len(cfg.Factions)).
		Msg("Room created")
	return room, nil
}

func (rm *RoomManager) roomOptions() RoomOptions {
	opts := rm.cfg.Room
	opts.Subscribers = append([]events.Subscriber(nil), rm.cfg.Room.Subscribers...)
	if rm.cfg.LogEvents {
		// Per-tick events would drown the rest
		ls := subscribers.NewLoggerSubscriber("room_logger", rm.base, zerolog.DebugLevel)
		ls.SetEventFilter([]string{
			events.TypeMatchStarted,
			events.TypeUnitsDispatched,
			events.TypeUnitsArrived,
			events.TypeDispatchRejected,
			events.TypeStateTransition,
			events.TypeMatchEnded,
			events.TypeMatchAborted,
		})
		opts.Subscribers = append(opts.Subscribers, ls)
	}
	return opts
}

// matchConfig resolves a request against the manager defaults
func (rm *RoomManager) matchConfig(req CreateRoomRequest) (game.MatchConfig, error) {
	difficulty, err := rm.difficulty(req.Difficulty)
	if err != nil {
		return game.MatchConfig{}, fmt.Errorf("%w: %v", core.ErrInvalidSetup, err)
	}

	opponents := req.Opponents
	if opponents <= 0 {
		opponents = 1
	}
	seed := req.Seed
	if seed == 0 {
		seed = rm.now().UnixNano()
	}

	primary := rm.cfg.Settings.PrimaryFaction
	factions := []game.FactionSetup{{ID: primary}}
	ids := []core.FactionID{primary}
	for next := core.FactionID(0); len(factions) < opponents+1; next++ {
		if next == primary || next.IsNeutral() {
			continue
		}
		factions = append(factions, game.FactionSetup{ID: next, Automated: true, Difficulty: difficulty})
		ids = append(ids, next)
	}

	territories := req.Territories
	if len(territories) == 0 {
		territories, err = mapgen.NewGenerator(rm.cfg.Map, rand.New(rand.NewSource(seed))).Generate(ids)
		if err != nil {
			return game.MatchConfig{}, err
		}
	}

	return game.MatchConfig{
		MatchID:          req.MatchID,
		Territories:      territories,
		Factions:         factions,
		Settings:         rm.cfg.Settings,
		StrategistParams: rm.cfg.StrategistParams,
		Rng:              rand.New(rand.NewSource(seed + 1)),
		Logger:           rm.base,
	}, nil
}

func (rm *RoomManager) difficulty(name string) (ai.Difficulty, error) {
	if name == "" {
		return rm.cfg.Difficulty, nil
	}
	if d, ok := rm.cfg.Difficulties[name]; ok {
		return d, nil
	}
	return ai.DifficultyByName(name)
}

// Get returns a room by match id
func (rm *RoomManager) Get(id string) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	room, ok := rm.rooms[id]
	return room, ok
}

// List returns a summary of every room ordered by creation time
func (rm *RoomManager) List() []RoomInfo {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, r.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Count returns the number of tracked rooms
func (rm *RoomManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// Observers returns the number of observers across all rooms
func (rm *RoomManager) Observers() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	total := 0
	for _, r := range rm.rooms {
		total += r.streams.Count()
	}
	return total
}

// Remove stops a room and forgets it
func (rm *RoomManager) Remove(id string) bool {
	rm.mu.Lock()
	room, ok := rm.rooms[id]
	delete(rm.rooms, id)
	rm.mu.Unlock()

	if ok {
		room.Stop("removed")
	}
	return ok
}

// RunCleanup removes finished and abandoned rooms until ctx is cancelled
func (rm *RoomManager) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(rm.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rm.cleanupRooms()
		case <-ctx.Done():
			return
		}
	}
}

// cleanupRooms aborts rooms nobody has watched or commanded within the idle
// timeout and forgets finished rooms after the finished TTL.
func (rm *RoomManager) cleanupRooms() {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.mu.RUnlock()

	now := rm.now()
	var toDelete []string
	for _, room := range rooms {
		info := room.Info()
		inactive := now.Sub(info.LastActivity)

		switch {
		case info.Closed:
			if inactive > rm.cfg.FinishedTTL {
				toDelete = append(toDelete, info.ID)
				rm.logger.Info().
					Str("match_id", info.ID).
					Dur("age", now.Sub(info.CreatedAt)).
					Msg("Cleaning up finished room")
			}
		case rm.cfg.IdleTimeout > 0 && info.Observers == 0 && inactive > rm.cfg.IdleTimeout:
			rm.logger.Info().
				Str("match_id", info.ID).
				Dur("inactive", inactive).
				Msg("Aborting abandoned room")
			room.Stop("abandoned")
		}
	}

	if len(toDelete) == 0 {
		return
	}
	rm.mu.Lock()
	for _, id := range toDelete {
		delete(rm.rooms, id)
	}
	remaining := len(rm.rooms)
	rm.mu.Unlock()

	rm.logger.Info().
		Int("cleaned", len(toDelete)).
		Int("remaining", remaining).
		Msg("Room cleanup completed")
}

// Shutdown aborts every running room and waits for them to finish
func (rm *RoomManager) Shutdown(ctx context.Context) error {
	rm.cancel()

	done := make(chan struct{})
	go func() {
		rm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		rm.logger.Info().Msg("All rooms stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
