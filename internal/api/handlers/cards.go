package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kanbanflow/kanbanflow/internal/api/middleware"
	"github.com/kanbanflow/kanbanflow/internal/audit"
	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/models"
	apierrors "github.com/kanbanflow/kanbanflow/internal/api/errors"
)

// CardHandler handles card endpoints.
type CardHandler struct {
	store    store.Store
	access   *auth.AccessService
	recorder *audit.Recorder
	logger   *slog.Logger
}

// NewCardHandler creates a new card handler.
func NewCardHandler(st store.Store, access *auth.AccessService, recorder *audit.Recorder, logger *slog.Logger) *CardHandler {
	return &CardHandler{
		store:    st,
		access:   access,
		recorder: recorder,
		logger:   logger,
	}
}

// Create adds a card at the end of a list.
func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
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
		ListID      string         `json:"listId"`
		Title       string         `json:"title"`
		Description string         `json:"description"`
		Labels      []models.Label `json:"labels"`
		AssigneeID  string         `json:"assigneeId"`
		DueDate     *time.Time     `json:"dueDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}
	if !parseID(w, req.ListID, "list id") {
		return
	}
	if v := validateCardInput(req.Title, req.Description, req.Labels); v.HasErrors() {
		WriteError(w, v.ToAPIError())
		return
	}

	list, err := h.store.Lists().Get(r.Context(), req.ListID)
	if err != nil {
		h.logger.Error("failed to load list", "list_id", req.ListID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if list == nil || list.BoardID != board.ID {
		WriteError(w, apierrors.NewNotFoundError("List not found"))
		return
	}

	if req.AssigneeID != "" && !board.HasAccess(req.AssigneeID) {
		WriteError(w, apierrors.NewValidationError("Assignee must be a board member"))
		return
	}

	existing, err := h.store.Cards().ListByList(r.Context(), list.ID)
	if err != nil {
		h.logger.Error("failed to count cards", "list_id", list.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	card := &models.Card{
		ListID:      list.ID,
		BoardID:     board.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Position:    len(existing),
		Labels:      req.Labels,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
		CreatedByID: userID,
	}
	if err := h.store.Cards().Create(r.Context(), card); err != nil {
		h.logger.Error("failed to create card", "list_id", list.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to create card"))
		return
	}

	h.recorder.Record(r.Context(), models.AuditCardCreated, userID, board.ID, audit.CardCreated(card.Title))

	created, err := h.store.Cards().Get(r.Context(), card.ID)
	if err != nil || created == nil {
		h.logger.Error("failed to reload card", "card_id", card.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	created.Comments = []*models.Comment{}

	WriteJSON(w, http.StatusCreated, map[string]any{"card": created})
}

// Update patches a card's fields. An explicit null or empty dueDate clears
// the due date; an absent one leaves it unchanged.
func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")
	if !parseID(w, cardID, "card id") {
		return
	}
	userID := middleware.GetUserID(r.Context())

	card, err := h.store.Cards().Get(r.Context(), cardID)
	if err != nil {
		h.logger.Error("failed to load card", "card_id", cardID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if card == nil {
		WriteError(w, apierrors.NewNotFoundError("Card not found"))
		return
	}

	board, err := h.access.RequireMember(r.Context(), card.BoardID, userID)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	var req struct {
		Title       *string         `json:"title"`
		Description *string         `json:"description"`
		Labels      *[]models.Label `json:"labels"`
		AssigneeID  *string         `json:"assigneeId"`
		DueDate     json.RawMessage `json:"dueDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}

	if req.Title != nil {
		card.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		card.Description = *req.Description
	}
	if req.Labels != nil {
		card.Labels = *req.Labels
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID != "" && !board.HasAccess(*req.AssigneeID) {
			WriteError(w, apierrors.NewValidationError("Assignee must be a board member"))
			return
		}
		card.AssigneeID = *req.AssigneeID
		card.Assignee = nil
	}
	if len(req.DueDate) > 0 {
		due, ok := parseDueDate(req.DueDate)
		if !ok {
			WriteError(w, apierrors.NewValidationError("Invalid due date"))
			return
		}
		card.DueDate = due
	}

	if v := validateCardInput(card.Title, card.Description, card.Labels); v.HasErrors() {
		WriteError(w, v.ToAPIError())
		return
	}

	if err := h.store.Cards().Update(r.Context(), card); err != nil {
		h.logger.Error("failed to update card", "card_id", card.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to update card"))
		return
	}

	h.recorder.Record(r.Context(), models.AuditCardUpdated, userID, card.BoardID, audit.CardUpdated(card.Title))

	updated, err := h.store.Cards().Get(r.Context(), card.ID)
	if err != nil || updated == nil {
		h.logger.Error("failed to reload card", "card_id", card.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"card": updated})
}

// Move places a card into a list at a position. The server renumbers both
// affected lists in one transaction, so repeating the same move is a no-op.
func (h *CardHandler) Move(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")
	if !parseID(w, cardID, "card id") {
		return
	}
	userID := middleware.GetUserID(r.Context())

	card, err := h.store.Cards().Get(r.Context(), cardID)
	if err != nil {
		h.logger.Error("failed to load card", "card_id", cardID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if card == nil {
		WriteError(w, apierrors.NewNotFoundError("Card not found"))
		return
	}

	if _, err := h.access.RequireMember(r.Context(), card.BoardID, userID); err != nil {
		writeAccessError(w, err)
		return
	}

	var req struct {
		ListID   string `json:"listId"`
		Position int    `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}
	if !parseID(w, req.ListID, "list id") {
		return
	}
	if req.Position < 0 {
		WriteError(w, apierrors.NewValidationError("Position must not be negative"))
		return
	}

	fromListID := card.ListID

	target, err := h.store.Lists().Get(r.Context(), req.ListID)
	if err != nil {
		h.logger.Error("failed to load list", "list_id", req.ListID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if target == nil || target.BoardID != card.BoardID {
		WriteError(w, apierrors.NewNotFoundError("List not found"))
		return
	}

	from, err := h.store.Lists().Get(r.Context(), fromListID)
	if err != nil || from == nil {
		h.logger.Error("failed to load source list", "list_id", fromListID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		ctx := r.Context()
		if err := tx.Cards().Move(ctx, card.ID, target.ID, req.Position); err != nil {
			return err
		}
		h.recorder.RecordIn(ctx, tx, models.AuditCardMoved, userID, card.BoardID,
			audit.CardMoved(card.Title, from.Title, target.Title))
		return nil
	})
	if err != nil {
		h.logger.Error("failed to move card", "card_id", card.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to move card"))
		return
	}

	moved, err := h.store.Cards().Get(r.Context(), card.ID)
	if err != nil || moved == nil {
		h.logger.Error("failed to reload card", "card_id", card.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"card":       moved,
		"fromListId": fromListID,
		"toListId":   moved.ListID,
	})
}

// Delete removes a card and its comments in one transaction.
func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardID")
	if !parseID(w, cardID, "card id") {
		return
	}
	userID := middleware.GetUserID(r.Context())

	card, err := h.store.Cards().Get(r.Context(), cardID)
	if err != nil {
		h.logger.Error("failed to load card", "card_id", cardID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if card == nil {
		WriteError(w, apierrors.NewNotFoundError("Card not found"))
		return
	}

	if _, err := h.access.RequireMember(r.Context(), card.BoardID, userID); err != nil {
		writeAccessError(w, err)
		return
	}

	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		ctx := r.Context()
		if err := tx.Comments().DeleteByCard(ctx, card.ID); err != nil {
			return err
		}
		if err := tx.Cards().Delete(ctx, card.ID); err != nil {
			return err
		}
		if err := tx.Cards().ReindexList(ctx, card.ListID); err != nil {
			return err
		}
		h.recorder.RecordIn(ctx, tx, models.AuditCardDeleted, userID, card.BoardID, audit.CardDeleted(card.Title))
		return nil
	})
	if err != nil {
		h.logger.Error("failed to delete card", "card_id", card.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to delete card"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// parseDueDate interprets a raw dueDate value. null and "" clear the date.
func parseDueDate(raw json.RawMessage) (*time.Time, bool) {
	if string(raw) == "null" {
		return nil, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
