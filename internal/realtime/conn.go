package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kanbanflow/kanbanflow/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	// sendBuffer is the per-connection outbound queue. A connection that
	// cannot drain it in time loses frames rather than stalling the room.
	sendBuffer = 256
)

// Conn is one authenticated websocket connection.
type Conn struct {
	hub     *Hub
	ws      *websocket.Conn
	send    chan []byte
	userID  string
	profile models.Profile

	mu      sync.Mutex
	boardID string
	closed  bool
}

func newConn(hub *Hub, ws *websocket.Conn, userID string, profile models.Profile) *Conn {
	return &Conn{
		hub:     hub,
		ws:      ws,
		send:    make(chan []byte, sendBuffer),
		userID:  userID,
		profile: profile,
	}
}

func (c *Conn) board() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boardID
}

func (c *Conn) setBoard(boardID string) {
	c.mu.Lock()
	c.boardID = boardID
	c.mu.Unlock()
}

// enqueue queues a frame for delivery, dropping it if the connection's
// buffer is full.
func (c *Conn) enqueue(raw []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.send <- raw:
	default:
		c.hub.logger.Warn("connection send buffer full, dropping frame", "user_id", c.userID)
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// sendFrame delivers a frame to this connection only.
func (c *Conn) sendFrame(frame Frame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		c.hub.logger.Error("failed to encode frame", "event", frame.Event, "error", err)
		return
	}
	c.enqueue(raw)
}

// sendError reports a failed mutation back to the sender.
func (c *Conn) sendError(event, code, message string) {
	c.sendFrame(Frame{
		Event: EventError,
		Data:  ErrorPayload{Event: event, Code: code, Message: message},
	})
}

// readPump decodes inbound envelopes and dispatches them until the
// connection drops.
func (c *Conn) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", "user_id", c.userID, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("", "VALIDATION_ERROR", "Malformed message")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		c.hub.handleEvent(ctx, c, env)
		cancel()
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
