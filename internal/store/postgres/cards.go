package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// CardStore implements store.CardStore using PostgreSQL.
type CardStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *CardStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const cardColumns = `
	c.id, c.list_id, c.board_id, c.title, c.description, c.position, c.labels,
	c.assignee_id, c.due_date, c.created_by, c.created_at, c.updated_at,
	a.name, a.email, a.avatar_url,
	cr.name, cr.email, cr.avatar_url
`

const cardJoins = `
	LEFT JOIN users a ON a.id = c.assignee_id
	JOIN users cr ON cr.id = c.created_by
`

// Create creates a new card.
func (s *CardStore) Create(ctx context.Context, card *models.Card) error {
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	now := time.Now()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
		card.UpdatedAt = now
	}
	if card.Labels == nil {
		card.Labels = []models.Label{}
	}

	labels, err := json.Marshal(card.Labels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cards (id, list_id, board_id, title, description, position, labels,
			assignee_id, due_date, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.conn().ExecContext(ctx, query,
		card.ID, card.ListID, card.BoardID, card.Title, card.Description, card.Position,
		labels, nullString(card.AssigneeID), card.DueDate, card.CreatedByID,
		card.CreatedAt, card.UpdatedAt,
	)
	return err
}

// Get retrieves a card by ID with assignee and creator profiles populated.
func (s *CardStore) Get(ctx context.Context, id string) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards c ` + cardJoins + ` WHERE c.id = $1`

	card, err := scanCard(s.conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

// ListByList retrieves all cards in a list ordered by position.
func (s *CardStore) ListByList(ctx context.Context, listID string) ([]*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards c ` + cardJoins + `
		WHERE c.list_id = $1 ORDER BY c.position, c.updated_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// Update updates a card's mutable fields.
func (s *CardStore) Update(ctx context.Context, card *models.Card) error {
	card.UpdatedAt = time.Now()

	labels, err := json.Marshal(card.Labels)
	if err != nil {
		return err
	}

	query := `
		UPDATE cards
		SET title = $1, description = $2, labels = $3, assignee_id = $4,
			due_date = $5, updated_at = $6
		WHERE id = $7
	`
	_, err = s.conn().ExecContext(ctx, query,
		card.Title, card.Description, labels, nullString(card.AssigneeID),
		card.DueDate, card.UpdatedAt, card.ID,
	)
	return err
}

// Move splices the card out of its list and into the target at the clamped
// position, renumbering both lists 0..n-1. The position counts the target
// list without the moved card, so moving within one list behaves like
// remove-then-insert. Callers run this inside a transaction.
func (s *CardStore) Move(ctx context.Context, cardID, listID string, position int) error {
	var fromListID string
	err := s.conn().QueryRowContext(ctx, `SELECT list_id FROM cards WHERE id = $1`, cardID).Scan(&fromListID)
	if err != nil {
		return err
	}

	rows, err := s.conn().QueryContext(ctx,
		`SELECT id FROM cards WHERE list_id = $1 AND id <> $2 ORDER BY position, updated_at DESC`,
		listID, cardID)
	if err != nil {
		return err
	}
	var siblings []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		siblings = append(siblings, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if position < 0 {
		position = 0
	}
	if position > len(siblings) {
		position = len(siblings)
	}
	ordered := make([]string, 0, len(siblings)+1)
	ordered = append(ordered, siblings[:position]...)
	ordered = append(ordered, cardID)
	ordered = append(ordered, siblings[position:]...)

	if _, err := s.conn().ExecContext(ctx,
		`UPDATE cards SET list_id = $1, updated_at = $2 WHERE id = $3`,
		listID, time.Now(), cardID); err != nil {
		return err
	}
	for i, id := range ordered {
		if _, err := s.conn().ExecContext(ctx,
			`UPDATE cards SET position = $1 WHERE id = $2 AND position <> $1`,
			i, id); err != nil {
			return err
		}
	}

	if fromListID != listID {
		return s.ReindexList(ctx, fromListID)
	}
	return nil
}

// ReindexList rewrites the positions of a list's cards to 0..n-1, keeping
// their current order. Used to close the gap a deleted card leaves.
func (s *CardStore) ReindexList(ctx context.Context, listID string) error {
	query := `
		UPDATE cards SET position = ranked.rank
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY position, updated_at DESC) - 1 AS rank
			FROM cards WHERE list_id = $1
		) ranked
		WHERE cards.id = ranked.id AND cards.position <> ranked.rank
	`
	_, err := s.conn().ExecContext(ctx, query, listID)
	return err
}

// Delete removes a card row.
func (s *CardStore) Delete(ctx context.Context, id string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	return err
}

// DeleteByList removes all cards in a list.
func (s *CardStore) DeleteByList(ctx context.Context, listID string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM cards WHERE list_id = $1`, listID)
	return err
}

// DeleteByBoard removes all cards on a board.
func (s *CardStore) DeleteByBoard(ctx context.Context, boardID string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM cards WHERE board_id = $1`, boardID)
	return err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCard(row scanner) (*models.Card, error) {
	var c models.Card
	var labels []byte
	var assigneeID sql.NullString
	var dueDate sql.NullTime
	var aName, aEmail, aAvatar sql.NullString
	var crName, crEmail, crAvatar string

	err := row.Scan(
		&c.ID, &c.ListID, &c.BoardID, &c.Title, &c.Description, &c.Position, &labels,
		&assigneeID, &dueDate, &c.CreatedByID, &c.CreatedAt, &c.UpdatedAt,
		&aName, &aEmail, &aAvatar,
		&crName, &crEmail, &crAvatar,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(labels, &c.Labels); err != nil {
		return nil, err
	}
	if c.Labels == nil {
		c.Labels = []models.Label{}
	}
	if assigneeID.Valid {
		c.AssigneeID = assigneeID.String
		c.Assignee = &models.Profile{
			ID:        assigneeID.String,
			Name:      aName.String,
			Email:     aEmail.String,
			AvatarURL: aAvatar.String,
		}
	}
	if dueDate.Valid {
		t := dueDate.Time
		c.DueDate = &t
	}
	c.CreatedBy = &models.Profile{
		ID:        c.CreatedByID,
		Name:      crName,
		Email:     crEmail,
		AvatarURL: crAvatar,
	}

	return &c, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
