package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// setupTestStore connects to the database named by TEST_DATABASE_URL and
// applies a fresh schema. Tests are skipped when the variable is unset.
func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	s, err := NewPostgresStore(DefaultConfig(dsn), nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	for _, table := range []string{"audit_logs", "invitations", "comments", "cards", "lists", "board_collaborators", "boards", "users"} {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + table + " CASCADE"); err != nil {
			t.Fatalf("dropping %s: %v", table, err)
		}
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return s
}

func seedUserAndBoard(t *testing.T, s *PostgresStore) (*models.User, *models.Board) {
	t.Helper()
	ctx := context.Background()

	user, err := s.Users().Create(ctx, "Owner", "owner@example.com", "password123")
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	board := &models.Board{Title: "Board", Color: "#0066cc", OwnerID: user.ID}
	if err := s.Boards().Create(ctx, board); err != nil {
		t.Fatalf("creating board: %v", err)
	}
	return user, board
}

func TestUserRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user, err := s.Users().Create(ctx, "Ada", "Ada@Example.com", "password123")
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("email not lowercased: %q", user.Email)
	}

	loaded, err := s.Users().GetByEmail(ctx, "ADA@example.com")
	if err != nil || loaded == nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if loaded.ID != user.ID {
		t.Errorf("loaded %q, want %q", loaded.ID, user.ID)
	}

	if _, err := s.Users().Authenticate(ctx, "ada@example.com", "password123"); err != nil {
		t.Errorf("authenticate failed: %v", err)
	}
	if _, err := s.Users().Authenticate(ctx, "ada@example.com", "wrong"); err == nil {
		t.Error("authenticate accepted a wrong password")
	}

	missing, err := s.Users().GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	if err != nil || missing != nil {
		t.Errorf("missing user = %v, %v; want nil, nil", missing, err)
	}

	if _, err := s.Users().Create(ctx, "Ada Again", "ada@example.com", "password123"); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Errorf("duplicate create returned %v, want ErrDuplicateEmail", err)
	}
}

func TestBoardCollaborators(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, board := seedUserAndBoard(t, s)

	collab, err := s.Users().Create(ctx, "Collab", "collab@example.com", "password123")
	if err != nil {
		t.Fatalf("creating collaborator: %v", err)
	}
	if err := s.Boards().AddCollaborator(ctx, board.ID, collab.ID, time.Now()); err != nil {
		t.Fatalf("adding collaborator: %v", err)
	}

	loaded, err := s.Boards().Get(ctx, board.ID)
	if err != nil || loaded == nil {
		t.Fatalf("loading board: %v", err)
	}
	if loaded.Owner == nil || loaded.Owner.Name != "Owner" {
		t.Error("owner profile not populated")
	}
	if len(loaded.Collaborators) != 1 || loaded.Collaborators[0].UserID != collab.ID {
		t.Fatalf("collaborators %+v", loaded.Collaborators)
	}
	if loaded.Collaborators[0].User == nil || loaded.Collaborators[0].User.Email != "collab@example.com" {
		t.Error("collaborator profile not populated")
	}

	// Both owner and collaborator see the board in their listings
	for _, userID := range []string{board.OwnerID, collab.ID} {
		boards, err := s.Boards().ListForUser(ctx, userID)
		if err != nil {
			t.Fatalf("listing boards: %v", err)
		}
		if len(boards) != 1 {
			t.Errorf("user %s sees %d boards, want 1", userID, len(boards))
		}
	}
}

func TestCardMoveAndReindex(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user, board := seedUserAndBoard(t, s)

	todo := &models.List{BoardID: board.ID, Title: "Todo", Position: 0}
	doing := &models.List{BoardID: board.ID, Title: "Doing", Position: 1}
	for _, l := range []*models.List{todo, doing} {
		if err := s.Lists().Create(ctx, l); err != nil {
			t.Fatalf("creating list: %v", err)
		}
	}

	var cards []*models.Card
	for i := 0; i < 3; i++ {
		card := &models.Card{
			ListID: todo.ID, BoardID: board.ID, Title: "task",
			Position: i, CreatedByID: user.ID,
		}
		if err := s.Cards().Create(ctx, card); err != nil {
			t.Fatalf("creating card: %v", err)
		}
		cards = append(cards, card)
		time.Sleep(2 * time.Millisecond)
	}

	// Move the last todo card into doing at position 0. Both lists come out
	// renumbered without a separate reindex.
	if err := s.Cards().Move(ctx, cards[2].ID, doing.ID, 0); err != nil {
		t.Fatalf("moving card: %v", err)
	}

	remaining, err := s.Cards().ListByList(ctx, todo.ID)
	if err != nil {
		t.Fatalf("listing todo: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("todo has %d cards, want 2", len(remaining))
	}
	for i, c := range remaining {
		if c.Position != i {
			t.Errorf("todo card %s at %d, want %d", c.ID, c.Position, i)
		}
	}

	moved, err := s.Cards().Get(ctx, cards[2].ID)
	if err != nil || moved == nil {
		t.Fatalf("loading moved card: %v", err)
	}
	if moved.ListID != doing.ID || moved.Position != 0 {
		t.Errorf("moved card in %q at %d", moved.ListID, moved.Position)
	}
	if moved.CreatedBy == nil || moved.CreatedBy.ID != user.ID {
		t.Error("creator profile not populated")
	}

	// Moving the first todo card down within its own list splices it in
	// after the other survivor.
	if err := s.Cards().Move(ctx, cards[0].ID, todo.ID, 1); err != nil {
		t.Fatalf("moving card within list: %v", err)
	}
	reordered, err := s.Cards().ListByList(ctx, todo.ID)
	if err != nil {
		t.Fatalf("listing todo: %v", err)
	}
	want := []string{cards[1].ID, cards[0].ID}
	for i, c := range reordered {
		if c.ID != want[i] {
			t.Errorf("todo position %d holds %s, want %s", i, c.ID, want[i])
		}
		if c.Position != i {
			t.Errorf("todo card %s at %d, want %d", c.ID, c.Position, i)
		}
	}
}

func TestInvitationStoreLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user, board := seedUserAndBoard(t, s)

	inv := &models.Invitation{
		BoardID: board.ID, Email: "Invitee@Example.com", Token: "token-1",
		Role: models.RoleCollaborator, Status: models.InvitationStatusPending,
		InvitedBy: user.ID, ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.Invitations().Create(ctx, inv); err != nil {
		t.Fatalf("creating invitation: %v", err)
	}

	pending, err := s.Invitations().GetPending(ctx, board.ID, "invitee@example.com")
	if err != nil || pending == nil {
		t.Fatalf("pending lookup failed: %v", err)
	}

	now := time.Now()
	inv.Status = models.InvitationStatusAccepted
	inv.AcceptedAt = &now
	if err := s.Invitations().Update(ctx, inv); err != nil {
		t.Fatalf("updating invitation: %v", err)
	}

	loaded, err := s.Invitations().GetByToken(ctx, "token-1")
	if err != nil || loaded == nil {
		t.Fatalf("token lookup failed: %v", err)
	}
	if loaded.Status != models.InvitationStatusAccepted || loaded.AcceptedAt == nil {
		t.Errorf("invitation %+v", loaded)
	}

	overdue := &models.Invitation{
		BoardID: board.ID, Email: "late@example.com", Token: "token-2",
		Status: models.InvitationStatusPending, InvitedBy: user.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := s.Invitations().Create(ctx, overdue); err != nil {
		t.Fatalf("creating overdue invitation: %v", err)
	}
	n, err := s.Invitations().ExpireOverdue(ctx, time.Now())
	if err != nil {
		t.Fatalf("expiring: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d, want 1", n)
	}
}

func TestAuditLogOrdering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user, board := seedUserAndBoard(t, s)

	actions := []models.AuditAction{models.AuditBoardCreated, models.AuditListCreated, models.AuditCardCreated}
	for _, action := range actions {
		entry := &models.AuditLog{Action: action, UserID: user.ID, BoardID: board.ID, Details: "x"}
		if err := s.AuditLogs().Create(ctx, entry); err != nil {
			t.Fatalf("creating audit entry: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := s.AuditLogs().ListByBoard(ctx, board.ID, 2)
	if err != nil {
		t.Fatalf("listing audit entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Action != models.AuditCardCreated {
		t.Errorf("newest action %q, want %q", entries[0].Action, models.AuditCardCreated)
	}
}
