package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kanbanflow/kanbanflow/internal/api/middleware"
	"github.com/kanbanflow/kanbanflow/internal/audit"
	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/email"
	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/models"
	apierrors "github.com/kanbanflow/kanbanflow/internal/api/errors"
)

// InvitationHandler handles the invitation lifecycle endpoints.
type InvitationHandler struct {
	store        store.Store
	access       *auth.AccessService
	recorder     *audit.Recorder
	email        *email.Service
	clientOrigin string
	logger       *slog.Logger
}

// NewInvitationHandler creates a new invitation handler.
func NewInvitationHandler(st store.Store, access *auth.AccessService, recorder *audit.Recorder, mail *email.Service, clientOrigin string, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{
		store:        st,
		access:       access,
		recorder:     recorder,
		email:        mail,
		clientOrigin: clientOrigin,
		logger:       logger,
	}
}

// Invite creates a pending invitation to a board and mails the accept link.
// Owner only.
func (h *InvitationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	if !parseID(w, boardID, "board id") {
		return
	}
	userID := middleware.GetUserID(r.Context())

	board, err := h.access.RequireOwner(r.Context(), boardID, userID)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}
	if !validEmail(req.Email) {
		WriteError(w, apierrors.NewValidationError("A valid email is required"))
		return
	}

	invitation, err := h.access.CreateInvitation(r.Context(), board, req.Email, userID)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	h.recorder.Record(r.Context(), models.AuditUserInvited, userID, board.ID, audit.UserInvited(invitation.Email))

	inviterName := middleware.GetUserEmail(r.Context())
	if inviter, err := h.store.Users().GetByID(r.Context(), userID); err == nil && inviter != nil {
		inviterName = inviter.Name
	}
	acceptURL := h.clientOrigin + "/invitation/" + invitation.Token

	// Mail delivery must not block or fail the request
	go func() {
		if err := h.email.SendInvitationEmail(invitation.Email, inviterName, board.Title, acceptURL); err != nil {
			h.logger.Error("failed to send invitation email",
				"board_id", board.ID, "email", invitation.Email, "error", err)
		}
	}()

	WriteJSON(w, http.StatusCreated, map[string]any{"invitation": invitation})
}

// Details returns an invitation with its board title and inviter name so the
// invited user can decide before authenticating.
func (h *InvitationHandler) Details(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	invitation, err := h.access.GetInvitation(r.Context(), token)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	resp := map[string]any{"invitation": invitation}
	if board, err := h.store.Boards().Get(r.Context(), invitation.BoardID); err == nil && board != nil {
		resp["boardTitle"] = board.Title
	}
	if inviter, err := h.store.Users().GetByID(r.Context(), invitation.InvitedBy); err == nil && inviter != nil {
		resp["invitedBy"] = inviter.Name
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Accept adds the authenticated user to the invitation's board.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	userID := middleware.GetUserID(r.Context())

	user, err := h.store.Users().GetByID(r.Context(), userID)
	if err != nil || user == nil {
		h.logger.Error("failed to load accepting user", "user_id", userID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	invitation, err := h.access.AcceptInvitation(r.Context(), token, user)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	h.recorder.Record(r.Context(), models.AuditInviteTaken, userID, invitation.BoardID, audit.InviteAccepted(user.Name))

	board, err := h.store.Boards().Get(r.Context(), invitation.BoardID)
	if err != nil || board == nil {
		h.logger.Error("failed to reload board", "board_id", invitation.BoardID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if err := hydrateBoard(r.Context(), h.store, board, false); err != nil {
		h.logger.Error("failed to load board children", "board_id", board.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"board": board})
}

// Reject deletes a pending invitation addressed to the authenticated user.
func (h *InvitationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	userID := middleware.GetUserID(r.Context())

	user, err := h.store.Users().GetByID(r.Context(), userID)
	if err != nil || user == nil {
		h.logger.Error("failed to load rejecting user", "user_id", userID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	if _, err := h.access.RejectInvitation(r.Context(), token, user); err != nil {
		writeAccessError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"rejected": true})
}
