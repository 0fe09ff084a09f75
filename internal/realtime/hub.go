package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kanbanflow/kanbanflow/internal/audit"
	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/store"
)

const pingTimeout = 5 * time.Second

// Hub owns the board rooms. Each connection belongs to at most one room at a
// time; broadcasts go to every room member except the sender and are
// forwarded to other instances through the bus.
type Hub struct {
	store    store.Store
	access   *auth.AccessService
	recorder *audit.Recorder
	authSvc  *auth.Service
	bus      Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*Conn]bool
}

// NewHub creates a hub. clientOrigin is the only origin allowed to upgrade;
// empty allows all (development mode).
func NewHub(st store.Store, access *auth.AccessService, recorder *audit.Recorder, authSvc *auth.Service, bus Bus, clientOrigin string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = NewNoopBus()
	}

	return &Hub{
		store:    st,
		access:   access,
		recorder: recorder,
		authSvc:  authSvc,
		bus:      bus,
		logger:   logger,
		rooms:    make(map[string]map[*Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if clientOrigin == "" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == clientOrigin
			},
		},
	}
}

// Run consumes the bus until ctx is done, delivering remote frames to local
// rooms.
func (h *Hub) Run(ctx context.Context) {
	err := h.bus.Subscribe(ctx, func(boardID string, frame Frame) {
		h.deliverLocal(boardID, frame, nil)
	})
	if err != nil && ctx.Err() == nil {
		h.logger.Error("bus subscription ended", "error", err)
	}
}

// HandleWS authenticates the ?token= query parameter and upgrades the
// connection. The connection starts in the authenticated-idle state and must
// join a board before sending mutations.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	claims, err := h.authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	user, err := h.store.Users().GetByID(r.Context(), claims.UserID)
	if err != nil || user == nil {
		http.Error(w, "unknown user", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket", "error", err)
		return
	}

	conn := newConn(h, ws, user.ID, user.Profile())
	h.logger.Info("websocket connected", "user_id", user.ID)

	go conn.writePump()
	go conn.readPump()
}

// joinBoard moves a connection into a board's room after re-running the
// access check. Joining a second board implicitly leaves the first.
func (h *Hub) joinBoard(ctx context.Context, c *Conn, boardID string) error {
	if _, err := h.access.RequireMember(ctx, boardID, c.userID); err != nil {
		return err
	}

	h.leaveBoard(c)

	h.mu.Lock()
	room, ok := h.rooms[boardID]
	if !ok {
		room = make(map[*Conn]bool)
		h.rooms[boardID] = room
	}
	room[c] = true
	h.mu.Unlock()
	c.setBoard(boardID)

	h.Broadcast(boardID, Frame{
		Event: EventUserJoin,
		Data:  PresencePayload{BoardID: boardID, User: c.profile},
	}, c)

	h.logger.Debug("joined board room", "board_id", boardID, "user_id", c.userID)
	return nil
}

// leaveBoard removes a connection from its current room, if any, and
// notifies the remaining members.
func (h *Hub) leaveBoard(c *Conn) {
	boardID := c.board()
	if boardID == "" {
		return
	}

	h.mu.Lock()
	if room, ok := h.rooms[boardID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, boardID)
		}
	}
	h.mu.Unlock()
	c.setBoard("")

	h.Broadcast(boardID, Frame{
		Event: EventUserLeave,
		Data:  PresencePayload{BoardID: boardID, User: c.profile},
	}, c)
}

// disconnect handles a closed connection. A connection that was in a room
// leaves it, which emits user.leave.
func (h *Hub) disconnect(c *Conn) {
	h.leaveBoard(c)
	c.close()
	h.logger.Info("websocket disconnected", "user_id", c.userID)
}

// Broadcast sends a frame to every member of a board's room except the
// sender, and forwards it to other instances.
func (h *Hub) Broadcast(boardID string, frame Frame, exclude *Conn) {
	h.deliverLocal(boardID, frame, exclude)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := h.bus.Publish(ctx, boardID, frame); err != nil {
		h.logger.Warn("failed to publish frame to bus", "board_id", boardID, "error", err)
	}
}

func (h *Hub) deliverLocal(boardID string, frame Frame, exclude *Conn) {
	raw, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to encode frame", "event", frame.Event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[boardID] {
		if c == exclude {
			continue
		}
		c.enqueue(raw)
	}
}

// RoomSize returns the number of connections in a board's room.
func (h *Hub) RoomSize(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[boardID])
}
