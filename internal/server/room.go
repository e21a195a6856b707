// Package server hosts matches in rooms and streams them to observers over
// gRPC, WebSocket and HTTP.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitchelldurbincs/conquest/internal/game"
	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
	"github.com/mitchelldurbincs/conquest/internal/netsync"
	"github.com/mitchelldurbincs/conquest/internal/telemetry"
)

var (
	ErrRoomClosed       = errors.New("room is closed")
	ErrRoomNotFound     = errors.New("room not found")
	ErrServerAtCapacity = errors.New("server at capacity")
)

const saveTimeout = 2 * time.Second

// SnapshotStore keeps snapshots outside the process
type SnapshotStore interface {
	Save(ctx context.Context, snap *netsync.Snapshot) error
	Load(ctx context.Context, matchID string) (*netsync.Snapshot, error)
}

// RoomOptions tune how a room publishes its match
type RoomOptions struct {
	// ProgressInterval is the number of ticks between progress updates
	ProgressInterval int
	// SnapshotInterval is the number of ticks between stored snapshots; 0 disables
	SnapshotInterval int64
	ObserverBuffer   int
	IdempotencyTTL   time.Duration
	Store            SnapshotStore
	// Subscribers are attached to the match bus, e.g. the results recorder
	Subscribers []events.Subscriber
}

// RoomInfo is a point-in-time summary of a room
type RoomInfo struct {
	ID           string            `json:"id"`
	Phase        string            `json:"phase"`
	Tick         int64             `json:"tick"`
	Progress     float64           `json:"progress"`
	Observers    int               `json:"observers"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	Result       *game.MatchResult `json:"result,omitempty"`
	Closed       bool              `json:"closed"`
}

// Room owns one match. Every engine call happens on the room goroutine
// started by Run; other goroutines reach the engine through the command channel.
type Room struct {
	id          string
	engine      *game.Engine
	sync        *netsync.Synchronizer
	streams     *StreamManager
	idempotency *IdempotencyManager
	opts        RoomOptions

	commands chan func()
	stop     chan string
	done     chan struct{}

	mu    sync.RWMutex
	info  RoomInfo
	final *netsync.Snapshot

	saves  sync.WaitGroup
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewRoom builds the engine for cfg. The match starts when Run is called.
func NewRoom(ctx context.Context, cfg game.MatchConfig, opts RoomOptions) (*Room, error) {
	engine, err := game.NewEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 10 * time.Minute
	}

	logger := cfg.Logger.With().Str("component", "Room").Str("match_id", engine.MatchID()).Logger()
	now := time.Now()
	r := &Room{
		id:          engine.MatchID(),
		engine:      engine,
		streams:     NewStreamManager(opts.ObserverBuffer, logger),
		idempotency: NewIdempotencyManager(opts.IdempotencyTTL),
		opts:        opts,
		commands:    make(chan func()),
		stop:        make(chan string, 1),
		done:        make(chan struct{}),
		tracer:      telemetry.Tracer(),
		logger:      logger,
		info: RoomInfo{
			ID:           engine.MatchID(),
			Phase:        engine.Phase().String(),
			CreatedAt:    now,
			LastActivity: now,
		},
	}
	r.sync = netsync.NewSynchronizer(engine, r.streams.Broadcast, opts.ProgressInterval, logger)

	bus := engine.Bus()
	bus.Subscribe(r.sync)
	for _, s := range opts.Subscribers {
		bus.Subscribe(s)
	}
	return r, nil
}

// ID returns the match id
func (r *Room) ID() string { return r.id }

// Done is closed once the room goroutine has exited
func (r *Room) Done() <-chan struct{} { return r.done }

// Run starts the match and drives it at the configured tick rate until it
// ends, Stop is called or ctx is cancelled.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)

	if err := r.engine.Start(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to start match")
		r.finish()
		return
	}
	r.sync.Flush()
	r.refreshInfo(false)

	ticker := time.NewTicker(r.engine.Settings().TickInterval())
	defer ticker.Stop()

	r.logger.Info().
		Dur("tick_interval", r.engine.Settings().TickInterval()).
		Msg("Room running")

	for {
		select {
		case <-ctx.Done():
			r.shutdown("server shutdown")
			return

		case reason := <-r.stop:
			r.shutdown(reason)
			return

		case fn := <-r.commands:
			fn()
			r.sync.Flush()
			if r.afterStep() {
				return
			}

		case <-ticker.C:
			if err := r.engine.Tick(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("Tick failed")
				continue
			}
			if r.afterStep() {
				return
			}
		}
	}
}

// afterStep refreshes cached state, stores periodic snapshots and reports
// whether the match is over.
func (r *Room) afterStep() bool {
	if r.engine.Phase().IsTerminal() {
		r.finish()
		return true
	}

	tick := r.engine.CurrentTick()
	if r.opts.Store != nil && r.opts.SnapshotInterval > 0 && tick > 0 && tick%r.opts.SnapshotInterval == 0 {
		snap := r.sync.Snapshot()
		r.saves.Add(1)
		go func() {
			defer r.saves.Done()
			r.save(snap)
		}()
	}
	r.refreshInfo(false)
	return false
}

func (r *Room) shutdown(reason string) {
	if !r.engine.Phase().IsTerminal() {
		if err := r.engine.Abort(reason); err != nil {
			r.logger.Error().Err(err).Msg("Failed to abort match")
		}
	}
	r.finish()
}

// finish stores the final snapshot and closes every observer after the
// last batch has been queued.
func (r *Room) finish() {
	snap := r.sync.Snapshot()
	r.saves.Wait()
	if r.opts.Store != nil {
		r.save(snap)
	}

	r.mu.Lock()
	r.final = snap
	r.mu.Unlock()

	r.streams.CloseAll()
	r.refreshInfo(true)

	r.logger.Info().
		Str("phase", r.engine.Phase().String()).
		Int64("tick", r.engine.CurrentTick()).
		Msg("Room finished")
}

func (r *Room) save(snap *netsync.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.opts.Store.Save(ctx, snap); err != nil {
		r.logger.Warn().Err(err).Int64("tick", snap.Tick).Msg("Failed to store snapshot")
	}
}

func (r *Room) refreshInfo(closed bool) {
	var result *game.MatchResult
	if res, ok := r.engine.Result(); ok {
		result = &res
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.Phase = r.engine.Phase().String()
	r.info.Tick = r.engine.CurrentTick()
	r.info.Progress = r.engine.Progress()
	r.info.Result = result
	r.info.Closed = r.info.Closed || closed
}

func (r *Room) touch() {
	r.mu.Lock()
	r.info.LastActivity = time.Now()
	r.mu.Unlock()
}

// Info returns a summary of the room
func (r *Room) Info() RoomInfo {
	r.mu.RLock()
	info := r.info
	r.mu.RUnlock()
	info.Observers = r.streams.Count()
	return info
}

// do runs fn on the room goroutine and waits for it
func (r *Room) do(ctx context.Context, fn func()) error {
	executed := make(chan struct{})
	select {
	case r.commands <- func() { fn(); close(executed) }:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// an accepted command always runs before the loop can exit
	select {
	case <-executed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch applies a player command. Commands carrying a request id are
// applied at most once; retries get the first outcome back.
func (r *Room) Dispatch(ctx context.Context, cmd core.DispatchCommand, requestID string) (core.Troop, error) {
	ctx, span := r.tracer.Start(ctx, "room.dispatch", trace.WithAttributes(
		attribute.String("match_id", r.id),
		attribute.Int("faction", int(cmd.Faction)),
		attribute.Int("source", int(cmd.Source)),
		attribute.Int("target", int(cmd.Target)),
	))
	defer span.End()

	if cached, ok := r.idempotency.Check(cmd.Faction, requestID); ok {
		span.SetAttributes(attribute.Bool("idempotent_replay", true))
		return cached.Troop, cached.Err
	}

	var troop core.Troop
	var dispatchErr error
	if err := r.do(ctx, func() {
		troop, dispatchErr = r.engine.Dispatch(cmd)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return core.Troop{}, err
	}
	r.touch()
	r.idempotency.Store(cmd.Faction, requestID, DispatchOutcome{Troop: troop, Err: dispatchErr})

	if dispatchErr != nil {
		span.RecordError(dispatchErr)
		span.SetStatus(codes.Error, dispatchErr.Error())
	}
	return troop, dispatchErr
}

// Join registers an observer and returns the snapshot its deltas follow.
// Both happen on the room goroutine so no delta is missed or duplicated.
func (r *Room) Join(ctx context.Context, observerID string) (*Observer, *netsync.Snapshot, error) {
	ctx, span := r.tracer.Start(ctx, "room.join", trace.WithAttributes(attribute.String("match_id", r.id)))
	defer span.End()

	var obs *Observer
	var snap *netsync.Snapshot
	err := r.do(ctx, func() {
		snap = r.sync.Snapshot()
		obs = r.streams.Register(context.Background(), observerID)
	})
	if err != nil {
		return nil, nil, err
	}
	r.touch()
	r.logger.Info().Str("observer_id", observerID).Msg("Observer joined")
	return obs, snap, nil
}

// Leave removes obs. A stale observer that was replaced by a reconnect under
// the same id leaves the newer connection untouched.
func (r *Room) Leave(obs *Observer) {
	r.streams.Unregister(obs)
	r.touch()
}

// Snapshot returns the current state, or the final state of a closed room
func (r *Room) Snapshot(ctx context.Context) (*netsync.Snapshot, error) {
	var snap *netsync.Snapshot
	err := r.do(ctx, func() {
		snap = r.sync.Snapshot()
	})
	if errors.Is(err, ErrRoomClosed) {
		if final := r.FinalSnapshot(); final != nil {
			return final, nil
		}
	}
	return snap, err
}

// FinalSnapshot returns the snapshot taken when the room finished
func (r *Room) FinalSnapshot() *netsync.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.final
}

// Surrender ends the match as a loss for the primary faction
func (r *Room) Surrender(ctx context.Context) error {
	return r.lifecycle(ctx, "room.surrender", r.engine.Surrender)
}

// Pause freezes the match clock
func (r *Room) Pause(ctx context.Context) error {
	return r.lifecycle(ctx, "room.pause", r.engine.Pause)
}

// Resume restarts a paused match clock
func (r *Room) Resume(ctx context.Context) error {
	return r.lifecycle(ctx, "room.resume", r.engine.Resume)
}

func (r *Room) lifecycle(ctx context.Context, name string, op func() error) error {
	ctx, span := r.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("match_id", r.id)))
	defer span.End()

	var opErr error
	if err := r.do(ctx, func() { opErr = op() }); err != nil {
		return err
	}
	r.touch()
	if opErr != nil {
		span.RecordError(opErr)
		span.SetStatus(codes.Error, opErr.Error())
	}
	return opErr
}

// Stop aborts the match between two ticks. It does not wait; use Done.
func (r *Room) Stop(reason string) {
	select {
	case r.stop <- reason:
	default:
	}
}

// Result returns the match result once the match has ended
func (r *Room) Result() (game.MatchResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.info.Result == nil {
		return game.MatchResult{}, false
	}
	return *r.info.Result, true
}
