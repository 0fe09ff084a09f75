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

// BoardStore implements store.BoardStore using PostgreSQL.
type BoardStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *BoardStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new board.
func (s *BoardStore) Create(ctx context.Context, board *models.Board) error {
	if board.ID == "" {
		board.ID = uuid.New().String()
	}
	now := time.Now()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
		board.UpdatedAt = now
	}

	query := `
		INSERT INTO boards (id, title, description, color, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.conn().ExecContext(ctx, query,
		board.ID, board.Title, board.Description, board.Color,
		board.OwnerID, board.CreatedAt, board.UpdatedAt,
	)
	return err
}

// Get retrieves a board by ID with its owner profile and collaborators.
func (s *BoardStore) Get(ctx context.Context, id string) (*models.Board, error) {
	query := `
		SELECT b.id, b.title, b.description, b.color, b.owner_id, b.created_at, b.updated_at,
		       u.name, u.email, u.avatar_url
		FROM boards b
		JOIN users u ON u.id = b.owner_id
		WHERE b.id = $1
	`

	var b models.Board
	var owner models.Profile
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.Title, &b.Description, &b.Color, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt,
		&owner.Name, &owner.Email, &owner.AvatarURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	owner.ID = b.OwnerID
	b.Owner = &owner

	collaborators, err := s.collaborators(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Collaborators = collaborators

	return &b, nil
}

// ListForUser retrieves all boards the user owns or collaborates on,
// most recently updated first.
func (s *BoardStore) ListForUser(ctx context.Context, userID string) ([]*models.Board, error) {
	query := `
		SELECT DISTINCT b.id, b.title, b.description, b.color, b.owner_id, b.created_at, b.updated_at,
		       u.name, u.email, u.avatar_url
		FROM boards b
		JOIN users u ON u.id = b.owner_id
		LEFT JOIN board_collaborators c ON c.board_id = b.id
		WHERE b.owner_id = $1 OR c.user_id = $1
		ORDER BY b.updated_at DESC
	`

	rows, err := s.conn().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []*models.Board
	for rows.Next() {
		var b models.Board
		var owner models.Profile
		if err := rows.Scan(
			&b.ID, &b.Title, &b.Description, &b.Color, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt,
			&owner.Name, &owner.Email, &owner.AvatarURL,
		); err != nil {
			return nil, err
		}
		owner.ID = b.OwnerID
		b.Owner = &owner
		boards = append(boards, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, b := range boards {
		collaborators, err := s.collaborators(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		b.Collaborators = collaborators
	}

	return boards, nil
}

// Update updates a board's title, description, and color.
func (s *BoardStore) Update(ctx context.Context, board *models.Board) error {
	board.UpdatedAt = time.Now()
	query := `
		UPDATE boards
		SET title = $1, description = $2, color = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := s.conn().ExecContext(ctx, query,
		board.Title, board.Description, board.Color, board.UpdatedAt, board.ID,
	)
	return err
}

// Delete removes a board row.
func (s *BoardStore) Delete(ctx context.Context, id string) error {
	if _, err := s.conn().ExecContext(ctx, `DELETE FROM board_collaborators WHERE board_id = $1`, id); err != nil {
		return err
	}
	_, err := s.conn().ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	return err
}

// AddCollaborator appends a collaborator membership to a board.
func (s *BoardStore) AddCollaborator(ctx context.Context, boardID, userID string, joinedAt time.Time) error {
	query := `
		INSERT INTO board_collaborators (board_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.conn().ExecContext(ctx, query, boardID, userID, string(models.RoleCollaborator), joinedAt)
	return err
}

func (s *BoardStore) collaborators(ctx context.Context, boardID string) ([]models.Collaborator, error) {
	query := `
		SELECT c.user_id, c.role, c.joined_at, u.name, u.email, u.avatar_url
		FROM board_collaborators c
		JOIN users u ON u.id = c.user_id
		WHERE c.board_id = $1
		ORDER BY c.joined_at
	`

	rows, err := s.conn().QueryContext(ctx, query, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collaborators := []models.Collaborator{}
	for rows.Next() {
		var c models.Collaborator
		var role string
		var p models.Profile
		if err := rows.Scan(&c.UserID, &role, &c.JoinedAt, &p.Name, &p.Email, &p.AvatarURL); err != nil {
			return nil, err
		}
		c.Role = models.Role(role)
		p.ID = c.UserID
		c.User = &p
		collaborators = append(collaborators, c)
	}

	return collaborators, rows.Err()
}
