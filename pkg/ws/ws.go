// Package ws defines the wire protocol of the realtime channel: event names
// and payload shapes shared by the server hub and the client library.
package ws

import (
	"encoding/json"
	"time"

	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// Client-to-server and server-to-client event names.
const (
	EventJoinBoard  = "join-board"
	EventLeaveBoard = "leave-board"

	EventBoardUpdate   = "board.update"
	EventListCreate    = "list.create"
	EventListUpdate    = "list.update"
	EventListDelete    = "list.delete"
	EventCardCreate    = "card.create"
	EventCardUpdate    = "card.update"
	EventCardDelete    = "card.delete"
	EventCardMove      = "card.move"
	EventCommentCreate = "comment.create"

	EventUserJoin  = "user.join"
	EventUserLeave = "user.leave"
	EventError     = "error"
)

// Envelope is an inbound message before its payload is decoded.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is an outbound message.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinPayload is the data of join-board and leave-board events.
type JoinPayload struct {
	BoardID string `json:"boardId"`
}

// PresencePayload is the data of user.join and user.leave events.
type PresencePayload struct {
	BoardID string         `json:"boardId"`
	User    models.Profile `json:"user"`
}

// BoardUpdatePayload is the data of board.update events. It carries the full
// desired board header; the server echoes back the applied values.
type BoardUpdatePayload struct {
	BoardID     string `json:"boardId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// ListPayload is the data of list.create and list.update events.
type ListPayload struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// ListDeletePayload is the data of list.delete events.
type ListDeletePayload struct {
	ID      string `json:"id"`
	BoardID string `json:"boardId"`
}

// CardPayload is the data of card.create and card.update events.
type CardPayload struct {
	ID          string         `json:"id"`
	ListID      string         `json:"listId"`
	BoardID     string         `json:"boardId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Position    int            `json:"position"`
	Labels      []models.Label `json:"labels"`
	AssigneeID  string         `json:"assigneeId,omitempty"`
	DueDate     *time.Time     `json:"dueDate,omitempty"`
}

// CardDeletePayload is the data of card.delete events.
type CardDeletePayload struct {
	ID     string `json:"id"`
	ListID string `json:"listId"`
}

// MovePayload is the data of card.move events.
type MovePayload struct {
	CardID     string `json:"cardId"`
	FromListID string `json:"fromListId"`
	ToListID   string `json:"toListId"`
	Position   int    `json:"position"`
}

// CommentPayload is the data of comment.create events.
type CommentPayload struct {
	ID      string `json:"id"`
	CardID  string `json:"cardId"`
	Content string `json:"content"`
}

// ErrorPayload is sent back to the originating connection when a mirrored
// mutation fails.
type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
