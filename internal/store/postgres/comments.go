package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// CommentStore implements store.CommentStore using PostgreSQL.
type CommentStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *CommentStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create creates a new comment.
func (s *CommentStore) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO comments (id, card_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.conn().ExecContext(ctx, query,
		comment.ID, comment.CardID, comment.AuthorID, comment.Content, comment.CreatedAt,
	)
	return err
}

// ListByCard retrieves a card's comments oldest first, with author profiles.
func (s *CommentStore) ListByCard(ctx context.Context, cardID string) ([]*models.Comment, error) {
	query := `
		SELECT c.id, c.card_id, c.author_id, c.content, c.created_at,
		       u.name, u.email, u.avatar_url
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.card_id = $1
		ORDER BY c.created_at
	`

	rows, err := s.conn().QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		var c models.Comment
		var author models.Profile
		if err := rows.Scan(
			&c.ID, &c.CardID, &c.AuthorID, &c.Content, &c.CreatedAt,
			&author.Name, &author.Email, &author.AvatarURL,
		); err != nil {
			return nil, err
		}
		author.ID = c.AuthorID
		c.Author = &author
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

// DeleteByCard removes all comments on a card.
func (s *CommentStore) DeleteByCard(ctx context.Context, cardID string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM comments WHERE card_id = $1`, cardID)
	return err
}

// DeleteByList removes all comments on cards in a list.
func (s *CommentStore) DeleteByList(ctx context.Context, listID string) error {
	query := `DELETE FROM comments WHERE card_id IN (SELECT id FROM cards WHERE list_id = $1)`
	_, err := s.conn().ExecContext(ctx, query, listID)
	return err
}

// DeleteByBoard removes all comments on cards on a board.
func (s *CommentStore) DeleteByBoard(ctx context.Context, boardID string) error {
	query := `DELETE FROM comments WHERE card_id IN (SELECT id FROM cards WHERE board_id = $1)`
	_, err := s.conn().ExecContext(ctx, query, boardID)
	return err
}
