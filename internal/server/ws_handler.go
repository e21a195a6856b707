package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/conquest/internal/game/core"
	"github.com/mitchelldurbincs/conquest/internal/netsync"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second // Must be less than pongWait
	maxMsgSize   = 4096
	replyBufSize = 16
)

// Client actions
const (
	ActionDispatch = "dispatch"
	ActionResync   = "resync"
)

// WSRequest is a frame sent by the client
type WSRequest struct {
	Action    string               `json:"action"`
	RequestID string               `json:"request_id,omitempty"`
	Command   core.DispatchCommand `json:"command"`
}

// WSReply answers a dispatch request
type WSReply struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Troop     *core.Troop `json:"troop,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// WSHandler streams one match per connection. The first frame is always a
// snapshot message; every later delta is sent as its own frame.
type WSHandler struct {
	rooms    *RoomManager
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler creates a WSHandler
func NewWSHandler(rooms *RoomManager, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With().Str("component", "WSHandler").Logger(),
	}
}

type wsConn struct {
	conn    *websocket.Conn
	room    *Room
	obs     *Observer
	replies chan []byte
	closed  chan struct{}
	logger  zerolog.Logger
}

// ServeHTTP handles GET /ws?match=<id>[&observer=<id>]
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("match")
	room, ok := h.rooms.Get(matchID)
	if !ok {
		writeError(w, http.StatusNotFound, ErrRoomNotFound)
		return
	}
	observerID := r.URL.Query().Get("observer")
	if observerID == "" {
		observerID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	logger := h.logger.With().Str("match_id", matchID).Str("observer_id", observerID).Logger()

	obs, snap, err := room.Join(r.Context(), observerID)
	if err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(WSReply{Type: "error", Error: err.Error()})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match closed"))
		conn.Close()
		return
	}

	c := &wsConn{
		conn:    conn,
		room:    room,
		obs:     obs,
		replies: make(chan []byte, replyBufSize),
		closed:  make(chan struct{}),
		logger:  logger,
	}
	logger.Info().Msg("WebSocket observer connected")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		h.readPump(ctx, c)
	}()
	h.writePump(ctx, c, snap)

	room.Leave(obs)
	logger.Info().Msg("WebSocket observer disconnected")
}

// readPump reads client actions until the connection fails
func (h *WSHandler) readPump(ctx context.Context, c *wsConn) {
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket unexpected close")
			}
			return
		}

		var req WSRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(WSReply{Type: "error", Error: "malformed request"})
			continue
		}

		switch req.Action {
		case ActionDispatch:
			troop, err := c.room.Dispatch(ctx, req.Command, req.RequestID)
			reply := WSReply{Type: "dispatch_result", RequestID: req.RequestID}
			if err != nil {
				reply.Error = err.Error()
			} else {
				reply.Troop = &troop
			}
			c.reply(reply)

		case ActionResync:
			snap, err := c.room.Snapshot(ctx)
			if err != nil {
				c.reply(WSReply{Type: "error", RequestID: req.RequestID, Error: err.Error()})
				continue
			}
			c.reply(snap.Message())

		default:
			c.reply(WSReply{Type: "error", RequestID: req.RequestID, Error: "unknown action " + req.Action})
		}
	}
}

func (c *wsConn) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to marshal WebSocket reply")
		return
	}
	select {
	case c.replies <- data:
	case <-c.closed:
	}
}

// writePump owns every write to the connection
func (h *WSHandler) writePump(ctx context.Context, c *wsConn, snap *netsync.Snapshot) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.closed)
		c.conn.Close()
	}()

	if err := c.writeJSON(snap.Message()); err != nil {
		return
	}

	for {
		select {
		case batch, ok := <-c.obs.Updates():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "match over"))
				return
			}
			for _, msg := range batch {
				if err := c.writeJSON(msg); err != nil {
					c.logger.Debug().Err(err).Msg("WebSocket write failed")
					return
				}
			}

		case data := <-c.replies:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *wsConn) writeJSON(msg netsync.Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}
