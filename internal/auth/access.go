package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// Access control errors.
var (
	ErrBoardNotFound       = errors.New("board not found")
	ErrAccessDenied        = errors.New("access denied")
	ErrOwnerOnly           = errors.New("only the board owner may perform this action")
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrInvitationExpired   = errors.New("invitation has expired")
	ErrInvitationUsed      = errors.New("invitation has already been used")
	ErrAlreadyInvited      = errors.New("invitation already sent")
	ErrAlreadyCollaborator = errors.New("user is already a collaborator")
	ErrEmailMismatch       = errors.New("invitation was sent to a different email")
)

// DefaultInvitationTTL is how long an invitation stays acceptable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// AccessService answers membership questions and runs the invitation
// lifecycle. Every board-scoped operation goes through RequireMember or
// RequireOwner before touching child entities.
type AccessService struct {
	store         store.Store
	invitationTTL time.Duration
	logger        *slog.Logger
}

// NewAccessService creates a new access control service.
func NewAccessService(st store.Store, invitationTTL time.Duration, logger *slog.Logger) *AccessService {
	if logger == nil {
		logger = slog.Default()
	}
	if invitationTTL <= 0 {
		invitationTTL = DefaultInvitationTTL
	}
	return &AccessService{
		store:         st,
		invitationTTL: invitationTTL,
		logger:        logger,
	}
}

// RequireMember loads a board and verifies the user is its owner or a
// collaborator.
func (s *AccessService) RequireMember(ctx context.Context, boardID, userID string) (*models.Board, error) {
	board, err := s.store.Boards().Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, ErrBoardNotFound
	}
	if !board.HasAccess(userID) {
		return nil, ErrAccessDenied
	}
	return board, nil
}

// RequireOwner loads a board and verifies the user owns it.
func (s *AccessService) RequireOwner(ctx context.Context, boardID, userID string) (*models.Board, error) {
	board, err := s.store.Boards().Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, ErrBoardNotFound
	}
	if !board.IsOwner(userID) {
		if !board.HasAccess(userID) {
			return nil, ErrAccessDenied
		}
		return nil, ErrOwnerOnly
	}
	return board, nil
}

// CreateInvitation creates a pending invitation to a board. Only one pending
// invitation may exist per board and email, and users who already have
// access cannot be invited.
func (s *AccessService) CreateInvitation(ctx context.Context, board *models.Board, email, invitedBy string) (*models.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if user, err := s.store.Users().GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if user != nil && board.HasAccess(user.ID) {
		return nil, ErrAlreadyCollaborator
	}

	existing, err := s.store.Invitations().GetPending(ctx, board.ID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsValid() {
		return nil, ErrAlreadyInvited
	}

	token, err := generateInvitationToken()
	if err != nil {
		return nil, err
	}

	invitation := &models.Invitation{
		BoardID:   board.ID,
		Email:     email,
		Token:     token,
		Role:      models.RoleCollaborator,
		Status:    models.InvitationStatusPending,
		InvitedBy: invitedBy,
		ExpiresAt: time.Now().Add(s.invitationTTL),
	}

	if err := s.store.Invitations().Create(ctx, invitation); err != nil {
		return nil, err
	}

	return invitation, nil
}

// AcceptInvitation validates the token against the accepting user, adds the
// user as a collaborator, and marks the invitation accepted. The membership
// and status change commit atomically.
func (s *AccessService) AcceptInvitation(ctx context.Context, token string, user *models.User) (*models.Invitation, error) {
	invitation, err := s.lookupPending(ctx, token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(invitation.Email, user.Email) {
		return nil, ErrEmailMismatch
	}

	board, err := s.store.Boards().Get(ctx, invitation.BoardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, ErrBoardNotFound
	}
	if board.HasAccess(user.ID) {
		return nil, ErrAlreadyCollaborator
	}

	now := time.Now()
	invitation.Status = models.InvitationStatusAccepted
	invitation.AcceptedAt = &now

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Boards().AddCollaborator(ctx, board.ID, user.ID, now); err != nil {
			return err
		}
		return tx.Invitations().Update(ctx, invitation)
	})
	if err != nil {
		return nil, err
	}

	return invitation, nil
}

// RejectInvitation deletes a pending invitation. The invited email is the
// only party that may reject.
func (s *AccessService) RejectInvitation(ctx context.Context, token string, user *models.User) (*models.Invitation, error) {
	invitation, err := s.lookupPending(ctx, token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(invitation.Email, user.Email) {
		return nil, ErrEmailMismatch
	}

	if err := s.store.Invitations().Delete(ctx, invitation.ID); err != nil {
		return nil, err
	}
	return invitation, nil
}

// GetInvitation retrieves an invitation by token for display before the user
// decides to accept or reject. Expired tokens surface as expired rather than
// missing so the client can show a useful message.
func (s *AccessService) GetInvitation(ctx context.Context, token string) (*models.Invitation, error) {
	invitation, err := s.store.Invitations().GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, ErrInvitationNotFound
	}
	return invitation, nil
}

func (s *AccessService) lookupPending(ctx context.Context, token string) (*models.Invitation, error) {
	invitation, err := s.store.Invitations().GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation == nil {
		return nil, ErrInvitationNotFound
	}
	if invitation.Status == models.InvitationStatusAccepted {
		return nil, ErrInvitationUsed
	}
	if invitation.Status == models.InvitationStatusExpired || invitation.IsExpired() {
		return nil, ErrInvitationExpired
	}
	return invitation, nil
}

// ExpireOverdueInvitations sweeps pending invitations past their expiry.
func (s *AccessService) ExpireOverdueInvitations(ctx context.Context) (int, error) {
	return s.store.Invitations().ExpireOverdue(ctx, time.Now())
}

func generateInvitationToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(tokenBytes), nil
}
