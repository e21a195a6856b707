package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/monitoring"
	"github.com/mitchelldurbincs/conquest/internal/storage/results"
)

const (
	maxBodySize        = 1 << 20
	defaultResultLimit = 20
	maxResultLimit     = 500
)

// ResultsReader serves finished match records
type ResultsReader interface {
	Recent(ctx context.Context, limit int) ([]results.Record, error)
	Get(ctx context.Context, matchID string) (results.Record, error)
}

// HTTPOptions are the optional collaborators of the HTTP surface. Routes
// backed by a nil collaborator are not registered.
type HTTPOptions struct {
	Store   SnapshotStore
	Monitor *monitoring.Monitor
	Results ResultsReader
}

// HTTPHandler exposes the room manager as a small JSON API plus the
// WebSocket stream.
type HTTPHandler struct {
	rooms   *RoomManager
	store   SnapshotStore
	monitor *monitoring.Monitor
	results ResultsReader
	ws      *WSHandler
	logger  zerolog.Logger
}

// NewHTTPHandler builds the HTTP surface
func NewHTTPHandler(rooms *RoomManager, opts HTTPOptions, logger zerolog.Logger) http.Handler {
	h := &HTTPHandler{
		rooms:   rooms,
		store:   opts.Store,
		monitor: opts.Monitor,
		results: opts.Results,
		ws:      NewWSHandler(rooms, logger),
		logger:  logger.With().Str("component", "HTTPHandler").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /matches", h.listMatches)
	mux.HandleFunc("POST /matches", h.createMatch)
	mux.HandleFunc("GET /matches/{id}", h.getMatch)
	mux.HandleFunc("GET /matches/{id}/snapshot", h.snapshot)
	mux.HandleFunc("POST /matches/{id}/dispatch", h.dispatch)
	mux.HandleFunc("POST /matches/{id}/surrender", h.lifecycle((*Room).Surrender))
	mux.HandleFunc("POST /matches/{id}/pause", h.lifecycle((*Room).Pause))
	mux.HandleFunc("POST /matches/{id}/resume", h.lifecycle((*Room).Resume))
	mux.Handle("GET /ws", h.ws)
	if h.monitor != nil {
		mux.HandleFunc("GET /debug/runtime", h.runtime)
	}
	if h.results != nil {
		mux.HandleFunc("GET /results", h.recentResults)
		mux.HandleFunc("GET /results/{id}", h.getResult)
	}
	return h.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets the websocket upgrader reach the hijacker
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *HTTPHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rooms":  h.rooms.Count(),
	})
}

func (h *HTTPHandler) runtime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Metrics())
}

func (h *HTTPHandler) listMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MatchList{Matches: h.rooms.List()})
}

func (h *HTTPHandler) createMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if seed := r.URL.Query().Get("seed"); seed != "" && req.Seed == 0 {
		v, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Seed = v
	}

	room, err := h.rooms.CreateRoom(req)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, room.Info())
}

func (h *HTTPHandler) getMatch(w http.ResponseWriter, r *http.Request) {
	room, ok := h.rooms.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrRoomNotFound)
		return
	}
	writeJSON(w, http.StatusOK, room.Info())
}

// snapshot serves a live room, or the stored snapshot of a room that has
// already been cleaned up.
func (h *HTTPHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if room, ok := h.rooms.Get(id); ok {
		snap, err := room.Snapshot(r.Context())
		if err != nil {
			writeError(w, httpStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	if h.store != nil {
		snap, err := h.store.Load(r.Context(), id)
		if err != nil {
			h.logger.Warn().Err(err).Str("match_id", id).Msg("Failed to load stored snapshot")
			writeError(w, http.StatusInternalServerError, errors.New("snapshot store unavailable"))
			return
		}
		if snap != nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	writeError(w, http.StatusNotFound, ErrRoomNotFound)
}

func (h *HTTPHandler) dispatch(w http.ResponseWriter, r *http.Request) {
	room, ok := h.rooms.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrRoomNotFound)
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get("Idempotency-Key")
	}

	troop, err := room.Dispatch(r.Context(), req.Command, req.RequestID)
	if err != nil {
		writeError(w, httpStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, DispatchResponse{Troop: troop})
}

func (h *HTTPHandler) lifecycle(op func(*Room, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := h.rooms.Get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, ErrRoomNotFound)
			return
		}
		if err := op(room, r.Context()); err != nil {
			writeError(w, httpStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, room.Info())
	}
}

func (h *HTTPHandler) recentResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(v, maxResultLimit)
	}

	recs, err := h.results.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read results")
		writeError(w, http.StatusInternalServerError, errors.New("results unavailable"))
		return
	}
	if recs == nil {
		recs = []results.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": recs})
}

func (h *HTTPHandler) getResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.results.Get(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, errors.New("no result for match "+id))
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("match_id", id).Msg("Failed to read result")
		writeError(w, http.StatusInternalServerError, errors.New("results unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
