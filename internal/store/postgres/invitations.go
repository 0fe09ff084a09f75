package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// InvitationStore implements store.InvitationStore using PostgreSQL.
type InvitationStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *InvitationStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new invitation.
func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))

	query := `
		INSERT INTO invitations (id, board_id, email, token, role, status, invited_by, expires_at, accepted_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.conn().ExecContext(ctx, query,
		inv.ID, inv.BoardID, inv.Email, inv.Token, string(inv.Role), string(inv.Status),
		inv.InvitedBy, inv.ExpiresAt, inv.AcceptedAt, inv.CreatedAt,
	)
	return err
}

// GetByToken retrieves an invitation by its token.
func (s *InvitationStore) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	query := `
		SELECT id, board_id, email, token, role, status, invited_by, expires_at, accepted_at, created_at
		FROM invitations WHERE token = $1
	`
	return scanInvitation(s.conn().QueryRowContext(ctx, query, token))
}

// GetPending retrieves the pending invitation for an email on a board, if any.
func (s *InvitationStore) GetPending(ctx context.Context, boardID, email string) (*models.Invitation, error) {
	query := `
		SELECT id, board_id, email, token, role, status, invited_by, expires_at, accepted_at, created_at
		FROM invitations
		WHERE board_id = $1 AND email = $2 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	email = strings.ToLower(strings.TrimSpace(email))
	return scanInvitation(s.conn().QueryRowContext(ctx, query, boardID, email))
}

// Update updates an invitation's status and accepted timestamp.
func (s *InvitationStore) Update(ctx context.Context, inv *models.Invitation) error {
	query := `UPDATE invitations SET status = $1, accepted_at = $2 WHERE id = $3`
	_, err := s.conn().ExecContext(ctx, query, string(inv.Status), inv.AcceptedAt, inv.ID)
	return err
}

// Delete removes an invitation row.
func (s *InvitationStore) Delete(ctx context.Context, id string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	return err
}

// DeleteByBoard removes all invitations for a board.
func (s *InvitationStore) DeleteByBoard(ctx context.Context, boardID string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM invitations WHERE board_id = $1`, boardID)
	return err
}

// ExpireOverdue marks pending invitations past their expiry as expired and
// returns the number of rows affected.
func (s *InvitationStore) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	query := `UPDATE invitations SET status = 'expired' WHERE status = 'pending' AND expires_at < $1`
	res, err := s.conn().ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanInvitation(row *sql.Row) (*models.Invitation, error) {
	var inv models.Invitation
	var role, status string
	var acceptedAt sql.NullTime

	err := row.Scan(
		&inv.ID, &inv.BoardID, &inv.Email, &inv.Token, &role, &status,
		&inv.InvitedBy, &inv.ExpiresAt, &acceptedAt, &inv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	inv.Role = models.Role(role)
	inv.Status = models.InvitationStatus(status)
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	return &inv, nil
}
