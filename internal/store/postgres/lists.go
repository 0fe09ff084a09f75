package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// ListStore implements store.ListStore using PostgreSQL.
type ListStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *ListStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new list.
func (s *ListStore) Create(ctx context.Context, list *models.List) error {
	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	now := time.Now()
	if list.CreatedAt.IsZero() {
		list.CreatedAt = now
		list.UpdatedAt = now
	}

	query := `
		INSERT INTO lists (id, board_id, title, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.conn().ExecContext(ctx, query,
		list.ID, list.BoardID, list.Title, list.Position, list.CreatedAt, list.UpdatedAt,
	)
	return err
}

// Get retrieves a list by ID.
func (s *ListStore) Get(ctx context.Context, id string) (*models.List, error) {
	query := `SELECT id, board_id, title, position, created_at, updated_at FROM lists WHERE id = $1`

	var l models.List
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListByBoard retrieves all lists on a board ordered by position.
func (s *ListStore) ListByBoard(ctx context.Context, boardID string) ([]*models.List, error) {
	query := `
		SELECT id, board_id, title, position, created_at, updated_at
		FROM lists WHERE board_id = $1
		ORDER BY position, created_at
	`

	rows, err := s.conn().QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []*models.List
	for rows.Next() {
		var l models.List
		if err := rows.Scan(&l.ID, &l.BoardID, &l.Title, &l.Position, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lists = append(lists, &l)
	}
	return lists, rows.Err()
}

// Update updates a list's title and position.
func (s *ListStore) Update(ctx context.Context, list *models.List) error {
	list.UpdatedAt = time.Now()
	query := `UPDATE lists SET title = $1, position = $2, updated_at = $3 WHERE id = $4`
	_, err := s.conn().ExecContext(ctx, query, list.Title, list.Position, list.UpdatedAt, list.ID)
	return err
}

// Delete removes a list row.
func (s *ListStore) Delete(ctx context.Context, id string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM lists WHERE id = $1`, id)
	return err
}

// DeleteByBoard removes all lists on a board.
func (s *ListStore) DeleteByBoard(ctx context.Context, boardID string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM lists WHERE board_id = $1`, boardID)
	return err
}
