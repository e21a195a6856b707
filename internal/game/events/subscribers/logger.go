package subscribers

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/events"
)

// LoggerSubscriber logs events to structured logs
type LoggerSubscriber struct {
	id              string
	logger          zerolog.Logger
	logLevel        zerolog.Level
	eventTypeFilter map[string]bool // If non-nil, only log these event types
	devMode         bool            // If true, log full event details
}

// NewLoggerSubscriber creates a new logger subscriber
func NewLoggerSubscriber(id string, logger zerolog.Logger, logLevel zerolog.Level) *LoggerSubscriber {
	return &LoggerSubscriber{
		id:       id,
		logger:   logger.With().Str("subscriber", "event_logger").Logger(),
		logLevel: logLevel,
	}
}

// ID returns the subscriber's unique identifier
func (ls *LoggerSubscriber) ID() string {
	return ls.id
}

// SetEventFilter sets which event types to log (nil means log all)
func (ls *LoggerSubscriber) SetEventFilter(eventTypes []string) {
	if len(eventTypes) == 0 {
		ls.eventTypeFilter = nil
		return
	}

	ls.eventTypeFilter = make(map[string]bool)
	for _, eventType := range eventTypes {
		ls.eventTypeFilter[eventType] = true
	}
}

// SetDevMode enables or disables development mode logging
func (ls *LoggerSubscriber) SetDevMode(enabled bool) {
	ls.devMode = enabled
}

// InterestedIn returns true if the subscriber wants to receive this event type
func (ls *LoggerSubscriber) InterestedIn(eventType string) bool {
	if ls.eventTypeFilter == nil {
		return true
	}
	return ls.eventTypeFilter[eventType]
}

// HandleEvent processes an event by logging it
func (ls *LoggerSubscriber) HandleEvent(event events.Event) {
	eventLogger := ls.logger.With().
		Str("event_type", event.Type()).
		Str("match_id", event.MatchID()).
		Int64("tick", event.TickNumber()).
		Logger()

	var logEvent *zerolog.Event
	switch ls.logLevel {
	case zerolog.DebugLevel:
		logEvent = eventLogger.Debug()
	case zerolog.WarnLevel:
		logEvent = eventLogger.Warn()
	case zerolog.ErrorLevel:
		logEvent = eventLogger.Error()
	default:
		logEvent = eventLogger.Info()
	}

	switch e := event.(type) {
	case *events.MatchStartedEvent:
		logEvent.
			Int("territories", e.Territories).
			Int("factions", len(e.Factions)).
			Int("primary", int(e.Primary))

	case *events.TerritoryGeneratedEvent:
		logEvent.
			Int("territory", int(e.Territory)).
			Int("owner", int(e.Owner)).
			Int("added", e.Added).
			Int("garrison", e.Garrison)

	case *events.UnitsDispatchedEvent:
		logEvent.
			Uint64("troop_id", e.TroopID).
			Int("owner", int(e.Owner)).
			Int("source", int(e.Source)).
			Int("target", int(e.Target)).
			Int("count", e.Count)

	case *events.UnitsArrivedEvent:
		logEvent.
			Uint64("group_id", e.GroupID).
			Int("territory", int(e.Territory)).
			Str("outcome", e.Outcome.String()).
			Int("previous_owner", int(e.PreviousOwner)).
			Int("new_owner", int(e.NewOwner)).
			Int("garrison", e.Garrison)

	case *events.DispatchRejectedEvent:
		logEvent.
			Int("faction", int(e.Faction)).
			Int("source", int(e.Source)).
			Int("target", int(e.Target)).
			Str("reason", e.Reason)

	case *events.MatchEndedEvent:
		logEvent.
			Bool("won", e.Won).
			Int("territories_owned", e.TerritoriesOwned).
			Int("total_territories", e.TotalTerritories).
			Float64("elapsed_seconds", e.ElapsedSeconds).
			Str("reason", e.Reason)

	case *events.MatchAbortedEvent:
		logEvent.
			Str("reason", e.Reason).
			Float64("elapsed_seconds", e.ElapsedSeconds)

	case *events.StateTransitionEvent:
		logEvent.
			Str("from_state", e.FromState).
			Str("to_state", e.ToState).
			Str("reason", e.Reason)

	case *events.TickCompletedEvent:
		logEvent.Float64("elapsed", e.Elapsed)
	}

	if ls.devMode {
		if jsonData, err := json.Marshal(event); err == nil {
			logEvent.RawJSON("event_data", jsonData)
		}
	}

	logEvent.Msg("Match event")
}
