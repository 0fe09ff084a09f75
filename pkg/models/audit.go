package models

import "time"

// AuditAction enumerates the recorded event names.
type AuditAction string

const (
	AuditBoardCreated AuditAction = "board_created"
	AuditBoardUpdated AuditAction = "board_updated"
	AuditBoardDeleted AuditAction = "board_deleted"
	AuditListCreated  AuditAction = "list_created"
	AuditListUpdated  AuditAction = "list_updated"
	AuditListDeleted  AuditAction = "list_deleted"
	AuditCardCreated  AuditAction = "card_created"
	AuditCardUpdated  AuditAction = "card_updated"
	AuditCardDeleted  AuditAction = "card_deleted"
	AuditCardMoved    AuditAction = "card_moved"
	AuditCommentAdded AuditAction = "comment_added"
	AuditUserInvited  AuditAction = "user_invited"
	AuditInviteTaken  AuditAction = "invitation_accepted"
)

// AuditLog is an append-only record of a board mutation. Rows are never
// updated; they are removed only when their board is deleted.
type AuditLog struct {
	ID        string      `json:"id"`
	Action    AuditAction `json:"action"`
	UserID    string      `json:"user_id"`
	BoardID   string      `json:"board_id"`
	Details   string      `json:"details"`
	Timestamp time.Time   `json:"timestamp"`
}
