// Package audit records board mutations into the append-only audit trail.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// Recorder writes audit log entries. Recording failures are logged but never
// fail the mutation that triggered them.
type Recorder struct {
	store  store.Store
	logger *slog.Logger
}

// NewRecorder creates a new audit recorder.
func NewRecorder(st store.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: st, logger: logger}
}

// Record appends an audit entry outside any transaction.
func (r *Recorder) Record(ctx context.Context, action models.AuditAction, userID, boardID, details string) {
	r.RecordIn(ctx, r.store, action, userID, boardID, details)
}

// RecordIn appends an audit entry using the given store, which may be a
// transaction-scoped store so the entry commits with its mutation.
func (r *Recorder) RecordIn(ctx context.Context, st store.Store, action models.AuditAction, userID, boardID, details string) {
	entry := &models.AuditLog{
		Action:  action,
		UserID:  userID,
		BoardID: boardID,
		Details: details,
	}
	if err := st.AuditLogs().Create(ctx, entry); err != nil {
		r.logger.Error("failed to record audit entry",
			"action", string(action), "board_id", boardID, "error", err)
	}
}

// Detail helpers keep the human-readable phrasing consistent across the REST
// and realtime paths.

func BoardCreated(title string) string  { return fmt.Sprintf("Created board %q", title) }
func BoardUpdated(title string) string  { return fmt.Sprintf("Updated board %q", title) }
func BoardDeleted(title string) string  { return fmt.Sprintf("Deleted board %q", title) }
func ListCreated(title string) string   { return fmt.Sprintf("Created list %q", title) }
func ListUpdated(title string) string   { return fmt.Sprintf("Updated list %q", title) }
func ListDeleted(title string) string   { return fmt.Sprintf("Deleted list %q", title) }
func CardCreated(title string) string   { return fmt.Sprintf("Created card %q", title) }
func CardUpdated(title string) string   { return fmt.Sprintf("Updated card %q", title) }
func CardDeleted(title string) string   { return fmt.Sprintf("Deleted card %q", title) }
func CommentAdded(title string) string  { return fmt.Sprintf("Commented on card %q", title) }
func UserInvited(email string) string   { return fmt.Sprintf("Invited %s to the board", email) }
func InviteAccepted(name string) string { return fmt.Sprintf("%s joined the board", name) }

// CardMoved describes a move between lists or within one.
func CardMoved(title, fromList, toList string) string {
	if fromList == toList {
		return fmt.Sprintf("Moved card %q within %q", title, toList)
	}
	return fmt.Sprintf("Moved card %q from %q to %q", title, fromList, toList)
}
