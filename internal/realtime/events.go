// Package realtime provides the per-board websocket channel: room
// membership, presence, and mirrored board mutations.
package realtime

import "github.com/kanbanflow/kanbanflow/pkg/ws"

// The wire protocol lives in pkg/ws so the client library can share it.
// The hub works with these local names.
type (
	Envelope           = ws.Envelope
	Frame              = ws.Frame
	JoinPayload        = ws.JoinPayload
	PresencePayload    = ws.PresencePayload
	BoardUpdatePayload = ws.BoardUpdatePayload
	ListPayload        = ws.ListPayload
	ListDeletePayload  = ws.ListDeletePayload
	CardPayload        = ws.CardPayload
	CardDeletePayload  = ws.CardDeletePayload
	MovePayload        = ws.MovePayload
	CommentPayload     = ws.CommentPayload
	ErrorPayload       = ws.ErrorPayload
)

const (
	EventJoinBoard  = ws.EventJoinBoard
	EventLeaveBoard = ws.EventLeaveBoard

	EventBoardUpdate   = ws.EventBoardUpdate
	EventListCreate    = ws.EventListCreate
	EventListUpdate    = ws.EventListUpdate
	EventListDelete    = ws.EventListDelete
	EventCardCreate    = ws.EventCardCreate
	EventCardUpdate    = ws.EventCardUpdate
	EventCardDelete    = ws.EventCardDelete
	EventCardMove      = ws.EventCardMove
	EventCommentCreate = ws.EventCommentCreate

	EventUserJoin  = ws.EventUserJoin
	EventUserLeave = ws.EventUserLeave
	EventError     = ws.EventError
)
