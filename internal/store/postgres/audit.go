package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// AuditLogStore implements store.AuditLogStore using PostgreSQL.
type AuditLogStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *AuditLogStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create appends an audit log entry.
func (s *AuditLogStore) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := `
		INSERT INTO audit_logs (id, action, user_id, board_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.conn().ExecContext(ctx, query,
		entry.ID, string(entry.Action), entry.UserID, entry.BoardID, entry.Details, entry.Timestamp,
	)
	return err
}

// ListByBoard retrieves the most recent audit entries for a board,
// newest first, up to limit.
func (s *AuditLogStore) ListByBoard(ctx context.Context, boardID string, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, action, user_id, board_id, details, created_at
		FROM audit_logs
		WHERE board_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.conn().QueryContext(ctx, query, boardID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		var action string
		if err := rows.Scan(&e.ID, &action, &e.UserID, &e.BoardID, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Action = models.AuditAction(action)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// DeleteByBoard removes all audit entries for a board.
func (s *AuditLogStore) DeleteByBoard(ctx context.Context, boardID string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM audit_logs WHERE board_id = $1`, boardID)
	return err
}
