package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kanbanflow/kanbanflow/internal/api/middleware"
	"github.com/kanbanflow/kanbanflow/internal/audit"
	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/models"
	apierrors "github.com/kanbanflow/kanbanflow/internal/api/errors"
)

// ListHandler handles list endpoints.
type ListHandler struct {
	store    store.Store
	access   *auth.AccessService
	recorder *audit.Recorder
	logger   *slog.Logger
}

// NewListHandler creates a new list handler.
func NewListHandler(st store.Store, access *auth.AccessService, recorder *audit.Recorder, logger *slog.Logger) *ListHandler {
	return &ListHandler{
		store:    st,
		access:   access,
		recorder: recorder,
		logger:   logger,
	}
}

// Create adds a list at the end of a board.
func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	if !parseID(w, boardID, "board id") {
		return
	}
	userID := middleware.GetUserID(r.Context())

	board, err := h.access.RequireMember(r.Context(), boardID, userID)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}
	if v := validateListTitle(req.Title); v.HasErrors() {
		WriteError(w, v.ToAPIError())
		return
	}

	existing, err := h.store.Lists().ListByBoard(r.Context(), board.ID)
	if err != nil {
		h.logger.Error("failed to count lists", "board_id", board.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	list := &models.List{
		BoardID:  board.ID,
		Title:    strings.TrimSpace(req.Title),
		Position: len(existing),
	}
	if err := h.store.Lists().Create(r.Context(), list); err != nil {
		h.logger.Error("failed to create list", "board_id", board.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to create list"))
		return
	}
	list.Cards = []*models.Card{}

	h.recorder.Record(r.Context(), models.AuditListCreated, userID, board.ID, audit.ListCreated(list.Title))

	WriteJSON(w, http.StatusCreated, map[string]any{"list": list})
}

// Update renames or repositions a list.
func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "listID")
	if !parseID(w, listID, "list id") {
		return
	}
	userID := middleware.GetUserID(r.Context())

	list, err := h.store.Lists().Get(r.Context(), listID)
	if err != nil {
		h.logger.Error("failed to load list", "list_id", listID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if list == nil {
		WriteError(w, apierrors.NewNotFoundError("List not found"))
		return
	}

	if _, err := h.access.RequireMember(r.Context(), list.BoardID, userID); err != nil {
		writeAccessError(w, err)
		return
	}

	var req struct {
		Title    *string `json:"title"`
		Position *int    `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}

	if req.Title != nil {
		if v := validateListTitle(*req.Title); v.HasErrors() {
			WriteError(w, v.ToAPIError())
			return
		}
		list.Title = strings.TrimSpace(*req.Title)
	}
	if req.Position != nil {
		if *req.Position < 0 {
			WriteError(w, apierrors.NewValidationError("Position must not be negative"))
			return
		}
		list.Position = *req.Position
	}

	if err := h.store.Lists().Update(r.Context(), list); err != nil {
		h.logger.Error("failed to update list", "list_id", list.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to update list"))
		return
	}

	h.recorder.Record(r.Context(), models.AuditListUpdated, userID, list.BoardID, audit.ListUpdated(list.Title))

	WriteJSON(w, http.StatusOK, map[string]any{"list": list})
}

// Delete removes a list with its cards and their comments in one transaction.
func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "listID")
	if !parseID(w, listID, "list id") {
		return
	}
	userID := middleware.GetUserID(r.Context())

	list, err := h.store.Lists().Get(r.Context(), listID)
	if err != nil {
		h.logger.Error("failed to load list", "list_id", listID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if list == nil {
		WriteError(w, apierrors.NewNotFoundError("List not found"))
		return
	}

	if _, err := h.access.RequireMember(r.Context(), list.BoardID, userID); err != nil {
		writeAccessError(w, err)
		return
	}

	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		ctx := r.Context()
		if err := tx.Comments().DeleteByList(ctx, list.ID); err != nil {
			return err
		}
		if err := tx.Cards().DeleteByList(ctx, list.ID); err != nil {
			return err
		}
		if err := tx.Lists().Delete(ctx, list.ID); err != nil {
			return err
		}
		h.recorder.RecordIn(ctx, tx, models.AuditListDeleted, userID, list.BoardID, audit.ListDeleted(list.Title))
		return nil
	})
	if err != nil {
		h.logger.Error("failed to delete list", "list_id", list.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to delete list"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
