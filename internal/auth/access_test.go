package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/store/memory"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

func newAccessFixture(t *testing.T) (*auth.AccessService, *memory.MemoryStore, *models.User, *models.Board) {
	t.Helper()
	st := memory.NewMemoryStore()
	access := auth.NewAccessService(st, time.Hour, nil)

	owner, err := st.Users().Create(context.Background(), "Owner", "owner@example.com", "password123")
	if err != nil {
		t.Fatalf("creating owner: %v", err)
	}

	board := &models.Board{Title: "Roadmap", Color: "#0066cc", OwnerID: owner.ID}
	if err := st.Boards().Create(context.Background(), board); err != nil {
		t.Fatalf("creating board: %v", err)
	}

	return access, st, owner, board
}

func TestRequireMember(t *testing.T) {
	access, st, owner, board := newAccessFixture(t)
	ctx := context.Background()

	stranger, err := st.Users().Create(ctx, "Stranger", "stranger@example.com", "password123")
	if err != nil {
		t.Fatalf("creating stranger: %v", err)
	}

	if _, err := access.RequireMember(ctx, board.ID, owner.ID); err != nil {
		t.Errorf("owner should be a member: %v", err)
	}
	if _, err := access.RequireMember(ctx, board.ID, stranger.ID); !errors.Is(err, auth.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
	if _, err := access.RequireMember(ctx, "00000000-0000-0000-0000-000000000000", owner.ID); !errors.Is(err, auth.ErrBoardNotFound) {
		t.Errorf("expected ErrBoardNotFound, got %v", err)
	}

	if err := st.Boards().AddCollaborator(ctx, board.ID, stranger.ID, time.Now()); err != nil {
		t.Fatalf("adding collaborator: %v", err)
	}
	if _, err := access.RequireMember(ctx, board.ID, stranger.ID); err != nil {
		t.Errorf("collaborator should be a member: %v", err)
	}
}

func TestRequireOwnerDistinguishesCollaborators(t *testing.T) {
	access, st, _, board := newAccessFixture(t)
	ctx := context.Background()

	collab, err := st.Users().Create(ctx, "Collab", "collab@example.com", "password123")
	if err != nil {
		t.Fatalf("creating collaborator: %v", err)
	}
	if err := st.Boards().AddCollaborator(ctx, board.ID, collab.ID, time.Now()); err != nil {
		t.Fatalf("adding collaborator: %v", err)
	}

	if _, err := access.RequireOwner(ctx, board.ID, collab.ID); !errors.Is(err, auth.ErrOwnerOnly) {
		t.Errorf("expected ErrOwnerOnly for collaborator, got %v", err)
	}

	stranger, err := st.Users().Create(ctx, "Stranger", "stranger@example.com", "password123")
	if err != nil {
		t.Fatalf("creating stranger: %v", err)
	}
	if _, err := access.RequireOwner(ctx, board.ID, stranger.ID); !errors.Is(err, auth.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied for stranger, got %v", err)
	}
}

func TestInvitationLifecycle(t *testing.T) {
	access, st, owner, board := newAccessFixture(t)
	ctx := context.Background()

	invitation, err := access.CreateInvitation(ctx, board, "Invitee@Example.com", owner.ID)
	if err != nil {
		t.Fatalf("creating invitation: %v", err)
	}
	if invitation.Email != "invitee@example.com" {
		t.Errorf("email not lowercased: %q", invitation.Email)
	}
	if invitation.Status != models.InvitationStatusPending {
		t.Errorf("expected pending status, got %q", invitation.Status)
	}
	if invitation.Token == "" {
		t.Error("expected a token")
	}

	// A second pending invitation to the same email is rejected
	if _, err := access.CreateInvitation(ctx, board, "invitee@example.com", owner.ID); !errors.Is(err, auth.ErrAlreadyInvited) {
		t.Errorf("expected ErrAlreadyInvited, got %v", err)
	}

	invitee, err := st.Users().Create(ctx, "Invitee", "invitee@example.com", "password123")
	if err != nil {
		t.Fatalf("creating invitee: %v", err)
	}

	// Wrong user cannot accept
	other, err := st.Users().Create(ctx, "Other", "other@example.com", "password123")
	if err != nil {
		t.Fatalf("creating other: %v", err)
	}
	if _, err := access.AcceptInvitation(ctx, invitation.Token, other); !errors.Is(err, auth.ErrEmailMismatch) {
		t.Errorf("expected ErrEmailMismatch, got %v", err)
	}

	accepted, err := access.AcceptInvitation(ctx, invitation.Token, invitee)
	if err != nil {
		t.Fatalf("accepting invitation: %v", err)
	}
	if accepted.Status != models.InvitationStatusAccepted {
		t.Errorf("expected accepted status, got %q", accepted.Status)
	}

	reloaded, err := st.Boards().Get(ctx, board.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reloading board: %v", err)
	}
	if len(reloaded.Collaborators) != 1 {
		t.Fatalf("expected exactly one collaborator, got %d", len(reloaded.Collaborators))
	}
	if reloaded.Collaborators[0].UserID != invitee.ID {
		t.Errorf("wrong collaborator: %q", reloaded.Collaborators[0].UserID)
	}

	// Accepting a used token fails and adds nothing
	if _, err := access.AcceptInvitation(ctx, invitation.Token, invitee); !errors.Is(err, auth.ErrInvitationUsed) {
		t.Errorf("expected ErrInvitationUsed, got %v", err)
	}
	reloaded, _ = st.Boards().Get(ctx, board.ID)
	if len(reloaded.Collaborators) != 1 {
		t.Errorf("repeat accept changed membership: %d collaborators", len(reloaded.Collaborators))
	}

	// Existing collaborators cannot be invited again
	if _, err := access.CreateInvitation(ctx, reloaded, "invitee@example.com", owner.ID); !errors.Is(err, auth.ErrAlreadyCollaborator) {
		t.Errorf("expected ErrAlreadyCollaborator, got %v", err)
	}
}

func TestRejectInvitation(t *testing.T) {
	access, st, owner, board := newAccessFixture(t)
	ctx := context.Background()

	invitation, err := access.CreateInvitation(ctx, board, "invitee@example.com", owner.ID)
	if err != nil {
		t.Fatalf("creating invitation: %v", err)
	}
	invitee, err := st.Users().Create(ctx, "Invitee", "invitee@example.com", "password123")
	if err != nil {
		t.Fatalf("creating invitee: %v", err)
	}

	if _, err := access.RejectInvitation(ctx, invitation.Token, invitee); err != nil {
		t.Fatalf("rejecting invitation: %v", err)
	}

	if _, err := access.GetInvitation(ctx, invitation.Token); !errors.Is(err, auth.ErrInvitationNotFound) {
		t.Errorf("expected ErrInvitationNotFound after reject, got %v", err)
	}

	// Rejecting frees the email for a new invitation
	if _, err := access.CreateInvitation(ctx, board, "invitee@example.com", owner.ID); err != nil {
		t.Errorf("re-inviting after reject failed: %v", err)
	}
}

func TestExpiredInvitation(t *testing.T) {
	_, st, owner, board := newAccessFixture(t)
	ctx := context.Background()

	// TTL in the past makes the invitation expire immediately
	shortAccess := auth.NewAccessService(st, time.Nanosecond, nil)
	invitation, err := shortAccess.CreateInvitation(ctx, board, "late@example.com", owner.ID)
	if err != nil {
		t.Fatalf("creating invitation: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	late, err := st.Users().Create(ctx, "Late", "late@example.com", "password123")
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if _, err := shortAccess.AcceptInvitation(ctx, invitation.Token, late); !errors.Is(err, auth.ErrInvitationExpired) {
		t.Errorf("expected ErrInvitationExpired, got %v", err)
	}

	n, err := shortAccess.ExpireOverdueInvitations(ctx)
	if err != nil {
		t.Fatalf("sweeping invitations: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired invitation, got %d", n)
	}
}
