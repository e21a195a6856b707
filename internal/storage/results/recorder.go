// Package results records finished matches in SQLite. It is the only place
// outcomes leave the simulation for meta-progression.
package results

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mitchelldurbincs/conquest/internal/game/events"
)

// writeTimeout bounds one queued insert. Writes outlive the Start context so
// shutdown still flushes the queue.
const writeTimeout = 5 * time.Second

// Record is one finished match
type Record struct {
	MatchID          string    `db:"match_id" json:"match_id"`
	Won              bool      `db:"won" json:"won"`
	TerritoriesOwned int       `db:"territories_owned" json:"territories_owned"`
	TotalTerritories int       `db:"total_territories" json:"total_territories"`
	ElapsedSeconds   float64   `db:"elapsed_seconds" json:"elapsed_seconds"`
	Reason           string    `db:"reason" json:"reason"`
	EndedAt          time.Time `db:"-" json:"ended_at"`
	EndedAtMillis    int64     `db:"ended_at" json:"-"`
}

// Recorder persists MatchEnded events. It subscribes to match buses and
// writes on its own goroutine so simulation threads never wait on disk.
type Recorder struct {
	conn    *sqlx.DB
	queue   chan Record
	wg      sync.WaitGroup
	once    sync.Once
	dropped int
	mu      sync.Mutex
	logger  zerolog.Logger
}

// Open opens or creates the results database at path
func Open(path string, queueSize int, logger zerolog.Logger) (*Recorder, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if queueSize < 1 {
		queueSize = 64
	}
	r := &Recorder{
		conn:   conn,
		queue:  make(chan Record, queueSize),
		logger: logger.With().Str("component", "ResultsRecorder").Logger(),
	}
	if err := r.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *Recorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS match_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL UNIQUE,
		won INTEGER NOT NULL,
		territories_owned INTEGER NOT NULL,
		total_territories INTEGER NOT NULL,
		elapsed_seconds REAL NOT NULL,
		reason TEXT NOT NULL,
		ended_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_results_ended ON match_results(ended_at);
	`
	_, err := r.conn.Exec(schema)
	return err
}

// Start drains queued records on a new goroutine until ctx is done, then
// writes what is left.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case rec := <-r.queue:
			r.write(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.queue:
					r.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.Insert(ctx, rec); err != nil {
		r.logger.Error().Err(err).Str("match_id", rec.MatchID).Msg("Failed to record match result")
	}
}

// Insert writes one record. A second record for the same match replaces the first.
func (r *Recorder) Insert(ctx context.Context, rec Record) error {
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now()
	}
	rec.EndedAtMillis = rec.EndedAt.UnixMilli()

	_, err := r.conn.NamedExecContext(ctx, `INSERT OR REPLACE INTO match_results
		(match_id, won, territories_owned, total_territories, elapsed_seconds, reason, ended_at)
		VALUES (:match_id, :won, :territories_owned, :total_territories, :elapsed_seconds, :reason, :ended_at)`,
		rec)
	if err != nil {
		return fmt.Errorf("insert result %s: %w", rec.MatchID, err)
	}
	r.logger.Info().
		Str("match_id", rec.MatchID).
		Bool("won", rec.Won).
		Str("reason", rec.Reason).
		Msg("Match result recorded")
	return nil
}

// Recent returns the latest limit results, newest first
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Record, error) {
	var out []Record
	err := r.conn.SelectContext(ctx, &out, `SELECT match_id, won, territories_owned, total_territories,
		elapsed_seconds, reason, ended_at FROM match_results ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	for i := range out {
		out[i].EndedAt = time.UnixMilli(out[i].EndedAtMillis)
	}
	return out, nil
}

// Get returns the result of one match
func (r *Recorder) Get(ctx context.Context, matchID string) (Record, error) {
	var rec Record
	err := r.conn.GetContext(ctx, &rec, `SELECT match_id, won, territories_owned, total_territories,
		elapsed_seconds, reason, ended_at FROM match_results WHERE match_id = ?`, matchID)
	if err != nil {
		return Record{}, fmt.Errorf("get result %s: %w", matchID, err)
	}
	rec.EndedAt = time.UnixMilli(rec.EndedAtMillis)
	return rec, nil
}

// ID implements events.Subscriber
func (r *Recorder) ID() string { return "results_recorder" }

// InterestedIn implements events.Subscriber
func (r *Recorder) InterestedIn(eventType string) bool {
	return eventType == events.TypeMatchEnded
}

// HandleEvent queues a MatchEnded for writing. A full queue drops the record.
func (r *Recorder) HandleEvent(event events.Event) {
	ended, ok := event.(*events.MatchEndedEvent)
	if !ok {
		return
	}
	rec := Record{
		MatchID:          ended.MatchID(),
		Won:              ended.Won,
		TerritoriesOwned: ended.TerritoriesOwned,
		TotalTerritories: ended.TotalTerritories,
		ElapsedSeconds:   ended.ElapsedSeconds,
		Reason:           ended.Reason,
		EndedAt:          ended.Timestamp(),
	}
	select {
	case r.queue <- rec:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Warn().Str("match_id", rec.MatchID).Msg("Result queue full, dropping record")
	}
}

// Dropped returns how many records were dropped on a full queue
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close waits for the writer started by Start to finish and closes the database
func (r *Recorder) Close() error {
	var err error
	r.once.Do(func() {
		r.wg.Wait()
		err = r.conn.Close()
	})
	return err
}
