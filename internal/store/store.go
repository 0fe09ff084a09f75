// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// ErrDuplicateEmail is returned by UserStore.Create when the email is
// already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// Store is the main interface for database operations.
type Store interface {
	// Users returns the UserStore for account operations.
	Users() UserStore
	// Boards returns the BoardStore for board operations.
	Boards() BoardStore
	// Lists returns the ListStore for list operations.
	Lists() ListStore
	// Cards returns the CardStore for card operations.
	Cards() CardStore
	// Comments returns the CommentStore for comment operations.
	Comments() CommentStore
	// Invitations returns the InvitationStore for invitation operations.
	Invitations() InvitationStore
	// AuditLogs returns the AuditLogStore for audit trail operations.
	AuditLogs() AuditLogStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close closes the database connection.
	Close() error
}

// UserStore defines operations for account management.
type UserStore interface {
	// Create creates a new user with a hashed password.
	Create(ctx context.Context, name, email, password string) (*models.User, error)
	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// Authenticate verifies credentials and returns the user.
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// BoardStore defines operations for board management.
type BoardStore interface {
	// Create creates a new board.
	Create(ctx context.Context, board *models.Board) error
	// Get retrieves a board by ID with its collaborator entries populated.
	Get(ctx context.Context, id string) (*models.Board, error)
	// ListForUser retrieves all boards the user owns or collaborates on,
	// most recently updated first.
	ListForUser(ctx context.Context, userID string) ([]*models.Board, error)
	// Update updates a board's title, description, and color.
	Update(ctx context.Context, board *models.Board) error
	// Delete removes a board row. Child rows are removed by the caller
	// inside the same transaction.
	Delete(ctx context.Context, id string) error
	// AddCollaborator appends a collaborator membership to a board.
	AddCollaborator(ctx context.Context, boardID, userID string, joinedAt time.Time) error
}

// ListStore defines operations for list management.
type ListStore interface {
	// Create creates a new list.
	Create(ctx context.Context, list *models.List) error
	// Get retrieves a list by ID.
	Get(ctx context.Context, id string) (*models.List, error)
	// ListByBoard retrieves all lists on a board ordered by position.
	ListByBoard(ctx context.Context, boardID string) ([]*models.List, error)
	// Update updates a list's title and position.
	Update(ctx context.Context, list *models.List) error
	// Delete removes a list row.
	Delete(ctx context.Context, id string) error
	// DeleteByBoard removes all lists on a board.
	DeleteByBoard(ctx context.Context, boardID string) error
}

// CardStore defines operations for card management.
type CardStore interface {
	// Create creates a new card.
	Create(ctx context.Context, card *models.Card) error
	// Get retrieves a card by ID.
	Get(ctx context.Context, id string) (*models.Card, error)
	// ListByList retrieves all cards in a list ordered by position.
	ListByList(ctx context.Context, listID string) ([]*models.Card, error)
	// Update updates a card's mutable fields.
	Update(ctx context.Context, card *models.Card) error
	// Move splices the card into the target list at the clamped position
	// and renumbers both lists 0..n-1. The position counts the target
	// list without the moved card, so a move within one list behaves
	// like remove-then-insert.
	Move(ctx context.Context, cardID, listID string, position int) error
	// ReindexList rewrites the positions of a list's cards to 0..n-1,
	// keeping their current order.
	ReindexList(ctx context.Context, listID string) error
	// Delete removes a card row.
	Delete(ctx context.Context, id string) error
	// DeleteByList removes all cards in a list.
	DeleteByList(ctx context.Context, listID string) error
	// DeleteByBoard removes all cards on a board.
	DeleteByBoard(ctx context.Context, boardID string) error
}

// CommentStore defines operations for comment management.
type CommentStore interface {
	// Create creates a new comment.
	Create(ctx context.Context, comment *models.Comment) error
	// ListByCard retrieves all comments on a card ordered by creation time.
	ListByCard(ctx context.Context, cardID string) ([]*models.Comment, error)
	// DeleteByCard removes all comments on a card.
	DeleteByCard(ctx context.Context, cardID string) error
	// DeleteByList removes all comments on cards in a list.
	DeleteByList(ctx context.Context, listID string) error
	// DeleteByBoard removes all comments on cards on a board.
	DeleteByBoard(ctx context.Context, boardID string) error
}

// InvitationStore defines operations for invitation management.
type InvitationStore interface {
	// Create creates a new invitation.
	Create(ctx context.Context, invitation *models.Invitation) error
	// GetByToken retrieves an invitation by its token.
	GetByToken(ctx context.Context, token string) (*models.Invitation, error)
	// GetPending retrieves a pending invitation for a board/email pair.
	GetPending(ctx context.Context, boardID, email string) (*models.Invitation, error)
	// Update updates an invitation's status.
	Update(ctx context.Context, invitation *models.Invitation) error
	// Delete removes an invitation.
	Delete(ctx context.Context, id string) error
	// DeleteByBoard removes all invitations for a board.
	DeleteByBoard(ctx context.Context, boardID string) error
	// ExpireOverdue marks pending invitations past their expiry as expired
	// and returns how many rows changed.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// AuditLogStore defines operations for the audit trail.
type AuditLogStore interface {
	// Create appends an audit log entry.
	Create(ctx context.Context, entry *models.AuditLog) error
	// ListByBoard retrieves the most recent entries for a board.
	ListByBoard(ctx context.Context, boardID string, limit int) ([]*models.AuditLog, error)
	// DeleteByBoard removes all entries for a board.
	DeleteByBoard(ctx context.Context, boardID string) error
}
