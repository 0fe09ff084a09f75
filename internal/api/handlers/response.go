package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	apierrors "github.com/kanbanflow/kanbanflow/internal/api/errors"
	"github.com/kanbanflow/kanbanflow/internal/auth"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// WriteError writes an APIError response.
func WriteError(w http.ResponseWriter, err *apierrors.APIError) {
	apierrors.WriteError(w, err)
}

// parseID validates that a path parameter is a well-formed UUID.
func parseID(w http.ResponseWriter, id, name string) bool {
	if _, err := uuid.Parse(id); err != nil {
		WriteError(w, apierrors.NewInvalidIDError("Invalid "+name))
		return false
	}
	return true
}

// writeAccessError translates auth package errors into API error responses.
func writeAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrBoardNotFound):
		WriteError(w, apierrors.NewNotFoundError("Board not found"))
	case errors.Is(err, auth.ErrAccessDenied):
		WriteError(w, apierrors.NewForbiddenError("Access denied"))
	case errors.Is(err, auth.ErrOwnerOnly):
		WriteError(w, apierrors.NewForbiddenError("Only the board owner may perform this action"))
	case errors.Is(err, auth.ErrInvitationNotFound):
		WriteError(w, apierrors.NewNotFoundError("Invitation not found"))
	case errors.Is(err, auth.ErrInvitationExpired):
		WriteError(w, apierrors.NewValidationError("Invitation has expired"))
	case errors.Is(err, auth.ErrInvitationUsed):
		WriteError(w, apierrors.NewValidationError("Invitation has already been used"))
	case errors.Is(err, auth.ErrAlreadyInvited):
		WriteError(w, apierrors.NewValidationError("Invitation already sent"))
	case errors.Is(err, auth.ErrAlreadyCollaborator):
		WriteError(w, apierrors.NewValidationError("User is already a collaborator"))
	case errors.Is(err, auth.ErrEmailMismatch):
		WriteError(w, apierrors.NewForbiddenError("Invitation was sent to a different email"))
	default:
		WriteError(w, apierrors.NewInternalError("Internal server error"))
	}
}
