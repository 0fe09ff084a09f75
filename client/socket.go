package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kanbanflow/kanbanflow/pkg/ws"
)

// EventHandler receives every decoded server frame. The data payload is left
// raw; use the Decode helpers for the event types you care about.
type EventHandler func(event string, data json.RawMessage)

// Socket is a client connection to the realtime channel. Writes are safe for
// concurrent use; the read loop runs until the connection drops or Close is
// called.
type Socket struct {
	ws      *websocket.Conn
	handler EventHandler

	mu     sync.Mutex
	closed bool
}

// Dial connects to the server's realtime channel. baseURL accepts http(s) or
// ws(s) schemes; the token is the same JWT the REST client carries.
func Dial(ctx context.Context, baseURL, token string, handler EventHandler) (*Socket, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/ws"
	u.RawQuery = "token=" + url.QueryEscape(token)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing websocket: %w", err)
	}

	s := &Socket{ws: ws, handler: handler}
	go s.readLoop()
	return s, nil
}

// Close shuts the connection down.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.ws.Close()
}

// JoinBoard enters a board's room. Joining a second board implicitly leaves
// the first.
func (s *Socket) JoinBoard(boardID string) error {
	return s.Send(EventJoinBoard, ws.JoinPayload{BoardID: boardID})
}

// LeaveBoard leaves the current board's room.
func (s *Socket) LeaveBoard(boardID string) error {
	return s.Send(EventLeaveBoard, ws.JoinPayload{BoardID: boardID})
}

// SendBoardUpdate mirrors a board settings change.
func (s *Socket) SendBoardUpdate(p ws.BoardUpdatePayload) error {
	return s.Send(EventBoardUpdate, p)
}

// SendListCreate mirrors a list creation. The id is the client-generated id
// already persisted over REST; the server upserts, so redelivery is safe.
func (s *Socket) SendListCreate(p ws.ListPayload) error {
	return s.Send(EventListCreate, p)
}

// SendListUpdate mirrors a list rename or reposition.
func (s *Socket) SendListUpdate(p ws.ListPayload) error {
	return s.Send(EventListUpdate, p)
}

// SendListDelete mirrors a list deletion.
func (s *Socket) SendListDelete(p ws.ListDeletePayload) error {
	return s.Send(EventListDelete, p)
}

// SendCardCreate mirrors a card creation.
func (s *Socket) SendCardCreate(p ws.CardPayload) error {
	return s.Send(EventCardCreate, p)
}

// SendCardUpdate mirrors a card patch.
func (s *Socket) SendCardUpdate(p ws.CardPayload) error {
	return s.Send(EventCardUpdate, p)
}

// SendCardDelete mirrors a card deletion.
func (s *Socket) SendCardDelete(p ws.CardDeletePayload) error {
	return s.Send(EventCardDelete, p)
}

// SendCardMove mirrors a card move.
func (s *Socket) SendCardMove(p ws.MovePayload) error {
	return s.Send(EventCardMove, p)
}

// SendCommentCreate mirrors a new comment.
func (s *Socket) SendCommentCreate(p ws.CommentPayload) error {
	return s.Send(EventCommentCreate, p)
}

// Send writes one event frame.
func (s *Socket) Send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	frame, err := json.Marshal(ws.Envelope{Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("socket closed")
	}
	s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.ws.WriteMessage(websocket.TextMessage, frame)
}

func (s *Socket) readLoop() {
	defer s.Close()
	for {
		_, raw, err := s.ws.ReadMessage()
		if err != nil {
			return
		}
		var env ws.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if s.handler != nil {
			s.handler(env.Event, env.Data)
		}
	}
}

// DecodeError decodes an error event payload.
func DecodeError(data json.RawMessage) (ws.ErrorPayload, error) {
	var p ws.ErrorPayload
	err := json.Unmarshal(data, &p)
	return p, err
}

// DecodePresence decodes a user.join or user.leave payload.
func DecodePresence(data json.RawMessage) (ws.PresencePayload, error) {
	var p ws.PresencePayload
	err := json.Unmarshal(data, &p)
	return p, err
}
