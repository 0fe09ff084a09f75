package postgres

import (
	"context"
	"fmt"
)

// schema is applied idempotently on startup. Board children are removed by
// application-level cascades inside a transaction rather than ON DELETE
// CASCADE so each delete is audited.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS boards (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL,
	owner_id UUID NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_boards_owner ON boards(owner_id);

CREATE TABLE IF NOT EXISTS board_collaborators (
	board_id UUID NOT NULL REFERENCES boards(id),
	user_id UUID NOT NULL REFERENCES users(id),
	role TEXT NOT NULL DEFAULT 'collaborator',
	joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (board_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_collaborators_user ON board_collaborators(user_id);

CREATE TABLE IF NOT EXISTS lists (
	id UUID PRIMARY KEY,
	board_id UUID NOT NULL REFERENCES boards(id),
	title TEXT NOT NULL,
	position INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_lists_board ON lists(board_id);

CREATE TABLE IF NOT EXISTS cards (
	id UUID PRIMARY KEY,
	list_id UUID NOT NULL REFERENCES lists(id),
	board_id UUID NOT NULL REFERENCES boards(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	position INT NOT NULL DEFAULT 0,
	labels JSONB NOT NULL DEFAULT '[]',
	assignee_id UUID REFERENCES users(id),
	due_date TIMESTAMPTZ,
	created_by UUID NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_cards_list ON cards(list_id);
CREATE INDEX IF NOT EXISTS idx_cards_board ON cards(board_id);

CREATE TABLE IF NOT EXISTS comments (
	id UUID PRIMARY KEY,
	card_id UUID NOT NULL REFERENCES cards(id),
	author_id UUID NOT NULL REFERENCES users(id),
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_comments_card ON comments(card_id);

CREATE TABLE IF NOT EXISTS invitations (
	id UUID PRIMARY KEY,
	board_id UUID NOT NULL REFERENCES boards(id),
	email TEXT NOT NULL,
	token TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL DEFAULT 'collaborator',
	status TEXT NOT NULL DEFAULT 'pending',
	invited_by UUID NOT NULL REFERENCES users(id),
	expires_at TIMESTAMPTZ NOT NULL,
	accepted_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_invitations_board_email ON invitations(board_id, email);
CREATE INDEX IF NOT EXISTS idx_invitations_expires ON invitations(expires_at);

CREATE TABLE IF NOT EXISTS audit_logs (
	id UUID PRIMARY KEY,
	action TEXT NOT NULL,
	user_id UUID NOT NULL,
	board_id UUID NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_board ON audit_logs(board_id);
`

// Migrate applies the database schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	s.logger.Info("database schema applied")
	return nil
}
