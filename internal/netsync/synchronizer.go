package netsync

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/game/events"
)

// Sink receives each flushed batch. It runs on the simulation goroutine and
// must hand off without blocking.
type Sink func(batch []Message)

// Synchronizer converts bus events into sequenced delta messages. Deltas are
// buffered and only handed to the sink once a tick has completed, so a sink
// never sees part of a tick.
type Synchronizer struct {
	mu               sync.Mutex
	source           Source
	sink             Sink
	progressInterval int64
	seq              uint64
	buffer           []Message
	lastProgress     int64
	// sent is the territory state observers have been told about
	sent   map[core.TerritoryID]TerritoryDelta
	logger zerolog.Logger
}

// NewSynchronizer creates a synchronizer that sends progress updates for
// in-flight groups every progressInterval ticks.
func NewSynchronizer(source Source, sink Sink, progressInterval int, logger zerolog.Logger) *Synchronizer {
	if progressInterval < 1 {
		progressInterval = 1
	}
	s := &Synchronizer{
		source:           source,
		sink:             sink,
		progressInterval: int64(progressInterval),
		logger:           logger.With().Str("component", "Synchronizer").Logger(),
	}
	s.resetSent(source.Territories())
	return s
}

func (s *Synchronizer) resetSent(territories []core.Territory) {
	s.sent = make(map[core.TerritoryID]TerritoryDelta, len(territories))
	for _, t := range territories {
		s.sent[t.ID] = TerritoryDelta{ID: t.ID, Owner: t.Owner, Garrison: t.Garrison}
	}
}

// ID implements events.Subscriber
func (s *Synchronizer) ID() string { return "synchronizer_" + s.source.MatchID() }

// InterestedIn implements events.Subscriber
func (s *Synchronizer) InterestedIn(eventType string) bool {
	switch eventType {
	case events.TypeMatchStarted,
		events.TypeUnitsDispatched,
		events.TypeUnitsArrived,
		events.TypeTerritoryGenerated,
		events.TypeStateTransition,
		events.TypeMatchEnded,
		events.TypeMatchAborted,
		events.TypeTickCompleted:
		return true
	}
	return false
}

// HandleEvent implements events.Subscriber
func (s *Synchronizer) HandleEvent(event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := Message{MatchID: event.MatchID(), Tick: event.TickNumber()}

	switch e := event.(type) {
	case *events.MatchStartedEvent:
		base.Kind = KindStarted
		base.Started = &StartNotice{Factions: e.Factions, Primary: e.Primary}
		s.push(base)

	case *events.UnitsDispatchedEvent:
		source, target := s.endpoints(e)
		base.Kind = KindDispatch
		base.Dispatch = &TroopState{
			ID:             e.TroopID,
			Owner:          e.Owner,
			Source:         e.Source,
			Target:         e.Target,
			Count:          e.Count,
			From:           source,
			To:             target,
			Rate:           e.Rate,
			SourceGarrison: e.SourceGarrison,
		}
		if d, ok := s.sent[e.Source]; ok {
			d.Garrison = e.SourceGarrison
			s.sent[e.Source] = d
		}
		s.push(base)

	case *events.UnitsArrivedEvent:
		arrival := e.Arrival
		base.Kind = KindArrival
		base.Arrival = &arrival
		s.sent[arrival.Territory] = TerritoryDelta{ID: arrival.Territory, Owner: arrival.NewOwner, Garrison: arrival.Garrison}
		s.push(base)

	case *events.TerritoryGeneratedEvent:
		s.pushTerritory(base, TerritoryDelta{ID: e.Territory, Owner: e.Owner, Garrison: e.Garrison})

	case *events.StateTransitionEvent:
		base.Kind = KindPhase
		base.Phase = &PhaseChange{From: e.FromState, To: e.ToState, Reason: e.Reason}
		s.push(base)

	case *events.MatchEndedEvent:
		base.Kind = KindEnded
		base.Ended = &MatchSummary{
			Won:              e.Won,
			TerritoriesOwned: e.TerritoriesOwned,
			TotalTerritories: e.TotalTerritories,
			ElapsedSeconds:   e.ElapsedSeconds,
			Reason:           e.Reason,
		}
		s.push(base)

	case *events.MatchAbortedEvent:
		base.Kind = KindAborted
		base.Aborted = &AbortNotice{Reason: e.Reason}
		s.push(base)

	case *events.TickCompletedEvent:
		s.queueTerritoryChanges(base)
		s.queueProgress(base)
		s.flushLocked()
	}
}

// pushTerritory records delta as sent. Territory deltas of one tick are
// folded into a single message.
func (s *Synchronizer) pushTerritory(base Message, delta TerritoryDelta) {
	s.sent[delta.ID] = delta
	if n := len(s.buffer); n > 0 && s.buffer[n-1].Kind == KindGenerated && s.buffer[n-1].Tick == base.Tick {
		s.buffer[n-1].Generated = append(s.buffer[n-1].Generated, delta)
		return
	}
	base.Kind = KindGenerated
	base.Generated = []TerritoryDelta{delta}
	s.push(base)
}

// queueTerritoryChanges sends every territory whose owner or garrison moved
// without a dispatch or arrival telling observers, which is how growth
// reaches them when generation events are off.
func (s *Synchronizer) queueTerritoryChanges(base Message) {
	for _, t := range s.source.Territories() {
		delta := TerritoryDelta{ID: t.ID, Owner: t.Owner, Garrison: t.Garrison}
		if s.sent[t.ID] == delta {
			continue
		}
		s.pushTerritory(base, delta)
	}
}

func (s *Synchronizer) endpoints(e *events.UnitsDispatchedEvent) (from, to core.Vec2) {
	for _, t := range s.source.Territories() {
		switch t.ID {
		case e.Source:
			from = t.Position
		case e.Target:
			to = t.Position
		}
	}
	return from, to
}

// queueProgress adds a progress-only update when the throttle allows it
func (s *Synchronizer) queueProgress(base Message) {
	if base.Tick-s.lastProgress < s.progressInterval {
		return
	}
	troops := s.source.Troops()
	if len(troops) == 0 {
		return
	}
	s.lastProgress = base.Tick

	updates := make([]ProgressUpdate, len(troops))
	for i, t := range troops {
		updates[i] = ProgressUpdate{ID: t.ID, Progress: t.Progress}
	}
	base.Kind = KindProgress
	base.Progress = updates
	s.push(base)
}

func (s *Synchronizer) push(msg Message) {
	s.seq++
	msg.Seq = s.seq
	s.buffer = append(s.buffer, msg)
}

// Flush hands any buffered messages to the sink. Ticks flush on their own;
// callers flush after lifecycle operations that happen between ticks.
func (s *Synchronizer) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Synchronizer) flushLocked() {
	if len(s.buffer) == 0 {
		return
	}
	batch := s.buffer
	s.buffer = nil
	s.logger.Debug().
		Int("messages", len(batch)).
		Uint64("last_seq", s.seq).
		Msg("Flushing deltas")
	if s.sink != nil {
		s.sink(batch)
	}
}

// Snapshot returns the current full state stamped with the last flushed
// sequence number. Call it between ticks.
func (s *Synchronizer) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	s.resetSent(s.source.Territories())
	return TakeSnapshot(s.source, s.seq)
}

// Seq returns the last assigned sequence number
func (s *Synchronizer) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
