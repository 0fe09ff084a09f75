package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

func seedBoard(t *testing.T, s *MemoryStore) (*models.User, *models.Board, *models.List) {
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
	list := &models.List{BoardID: board.ID, Title: "Todo"}
	if err := s.Lists().Create(ctx, list); err != nil {
		t.Fatalf("creating list: %v", err)
	}
	return user, board, list
}

func TestUserAuthenticate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	user, err := s.Users().Create(ctx, "Ada", "Ada@Example.com", "password123")
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("email not lowercased: %q", user.Email)
	}
	if user.PasswordHash == "password123" {
		t.Error("password stored in the clear")
	}

	if _, err := s.Users().Authenticate(ctx, "ada@example.com", "password123"); err != nil {
		t.Errorf("authenticate failed: %v", err)
	}
	if _, err := s.Users().Authenticate(ctx, "ada@example.com", "wrong"); err == nil {
		t.Error("authenticate accepted a wrong password")
	}

	missing, err := s.Users().GetByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("missing user = %v, %v; want nil, nil", missing, err)
	}

	if _, err := s.Users().Create(ctx, "Ada Again", "ADA@example.com", "password123"); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Errorf("duplicate create returned %v, want ErrDuplicateEmail", err)
	}
}

func TestMoveSplicesWithinList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	user, board, list := seedBoard(t, s)

	var cards []*models.Card
	for i := 0; i < 3; i++ {
		card := &models.Card{
			ListID: list.ID, BoardID: board.ID, Title: "task",
			Position: i, CreatedByID: user.ID,
		}
		if err := s.Cards().Create(ctx, card); err != nil {
			t.Fatalf("creating card: %v", err)
		}
		cards = append(cards, card)
		time.Sleep(time.Millisecond)
	}

	assertListOrder := func(label string, want []string) {
		t.Helper()
		ordered, err := s.Cards().ListByList(ctx, list.ID)
		if err != nil {
			t.Fatalf("listing cards: %v", err)
		}
		for i, c := range ordered {
			if c.ID != want[i] {
				t.Errorf("%s: position %d holds %s, want %s", label, i, c.ID, want[i])
			}
			if c.Position != i {
				t.Errorf("%s: card %s has position %d, want %d", label, c.ID, c.Position, i)
			}
		}
	}

	// Moving the last card up behaves like remove-then-insert: the target
	// position counts the list without the moved card.
	if err := s.Cards().Move(ctx, cards[2].ID, list.ID, 1); err != nil {
		t.Fatalf("moving card: %v", err)
	}
	assertListOrder("after up", []string{cards[0].ID, cards[2].ID, cards[1].ID})

	// Moving the first card to the end shifts the others up.
	if err := s.Cards().Move(ctx, cards[0].ID, list.ID, 2); err != nil {
		t.Fatalf("moving card: %v", err)
	}
	assertListOrder("after down", []string{cards[2].ID, cards[1].ID, cards[0].ID})

	// Repeating the same move changes nothing.
	if err := s.Cards().Move(ctx, cards[0].ID, list.ID, 2); err != nil {
		t.Fatalf("moving card: %v", err)
	}
	assertListOrder("after repeat", []string{cards[2].ID, cards[1].ID, cards[0].ID})
}

func TestCascadeDeletes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	user, board, list := seedBoard(t, s)

	card := &models.Card{ListID: list.ID, BoardID: board.ID, Title: "task", CreatedByID: user.ID}
	if err := s.Cards().Create(ctx, card); err != nil {
		t.Fatalf("creating card: %v", err)
	}
	comment := &models.Comment{CardID: card.ID, AuthorID: user.ID, Content: "note"}
	if err := s.Comments().Create(ctx, comment); err != nil {
		t.Fatalf("creating comment: %v", err)
	}

	if err := s.Comments().DeleteByBoard(ctx, board.ID); err != nil {
		t.Fatalf("deleting comments: %v", err)
	}
	if err := s.Cards().DeleteByBoard(ctx, board.ID); err != nil {
		t.Fatalf("deleting cards: %v", err)
	}
	if err := s.Lists().DeleteByBoard(ctx, board.ID); err != nil {
		t.Fatalf("deleting lists: %v", err)
	}
	if err := s.Boards().Delete(ctx, board.ID); err != nil {
		t.Fatalf("deleting board: %v", err)
	}

	if got, _ := s.Cards().Get(ctx, card.ID); got != nil {
		t.Error("card survived cascade")
	}
	if got, _ := s.Lists().Get(ctx, list.ID); got != nil {
		t.Error("list survived cascade")
	}
	if comments, _ := s.Comments().ListByCard(ctx, card.ID); len(comments) != 0 {
		t.Errorf("%d comments survived cascade", len(comments))
	}
	if got, _ := s.Boards().Get(ctx, board.ID); got != nil {
		t.Error("board survived cascade")
	}
}

func TestInvitationGetPending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	user, board, _ := seedBoard(t, s)

	inv := &models.Invitation{
		BoardID:   board.ID,
		Email:     "invitee@example.com",
		Token:     "token-1",
		Role:      models.RoleCollaborator,
		Status:    models.InvitationStatusPending,
		InvitedBy: user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.Invitations().Create(ctx, inv); err != nil {
		t.Fatalf("creating invitation: %v", err)
	}

	pending, err := s.Invitations().GetPending(ctx, board.ID, "invitee@example.com")
	if err != nil || pending == nil {
		t.Fatalf("pending lookup failed: %v", err)
	}

	// Accepted invitations no longer count as pending
	inv.Status = models.InvitationStatusAccepted
	if err := s.Invitations().Update(ctx, inv); err != nil {
		t.Fatalf("updating invitation: %v", err)
	}
	pending, err = s.Invitations().GetPending(ctx, board.ID, "invitee@example.com")
	if err != nil {
		t.Fatalf("pending lookup failed: %v", err)
	}
	if pending != nil {
		t.Error("accepted invitation still reported pending")
	}
}

func TestExpireOverdue(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	user, board, _ := seedBoard(t, s)

	overdue := &models.Invitation{
		BoardID: board.ID, Email: "late@example.com", Token: "token-late",
		Status: models.InvitationStatusPending, InvitedBy: user.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	fresh := &models.Invitation{
		BoardID: board.ID, Email: "fresh@example.com", Token: "token-fresh",
		Status: models.InvitationStatusPending, InvitedBy: user.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	for _, inv := range []*models.Invitation{overdue, fresh} {
		if err := s.Invitations().Create(ctx, inv); err != nil {
			t.Fatalf("creating invitation: %v", err)
		}
	}

	n, err := s.Invitations().ExpireOverdue(ctx, time.Now())
	if err != nil {
		t.Fatalf("expiring: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d invitations, want 1", n)
	}

	got, _ := s.Invitations().GetByToken(ctx, "token-late")
	if got.Status != models.InvitationStatusExpired {
		t.Errorf("overdue status %q, want expired", got.Status)
	}
	got, _ = s.Invitations().GetByToken(ctx, "token-fresh")
	if got.Status != models.InvitationStatusPending {
		t.Errorf("fresh status %q, want pending", got.Status)
	}
}
