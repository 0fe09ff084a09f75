package handlers

import (
	"context"
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

// BoardHandler handles board endpoints.
type BoardHandler struct {
	store    store.Store
	access   *auth.AccessService
	recorder *audit.Recorder
	logger   *slog.Logger
}

// NewBoardHandler creates a new board handler.
func NewBoardHandler(st store.Store, access *auth.AccessService, recorder *audit.Recorder, logger *slog.Logger) *BoardHandler {
	return &BoardHandler{
		store:    st,
		access:   access,
		recorder: recorder,
		logger:   logger,
	}
}

// List returns all boards the user owns or collaborates on, with nested
// lists and cards.
func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	boards, err := h.store.Boards().ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list boards", "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	for _, board := range boards {
		if err := hydrateBoard(r.Context(), h.store, board, false); err != nil {
			h.logger.Error("failed to load board children", "board_id", board.ID, "error", err)
			WriteError(w, apierrors.NewInternalError("Internal server error"))
			return
		}
	}
	if boards == nil {
		boards = []*models.Board{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

// Get returns a single board with lists, cards, and comments.
func (h *BoardHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	if err := hydrateBoard(r.Context(), h.store, board, true); err != nil {
		h.logger.Error("failed to load board children", "board_id", board.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"board": board})
}

// Create creates a new board owned by the authenticated user.
func (h *BoardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}
	if v := validateBoardInput(req.Title, req.Description, req.Color); v.HasErrors() {
		WriteError(w, v.ToAPIError())
		return
	}

	userID := middleware.GetUserID(r.Context())
	if req.Color == "" {
		req.Color = "#0066cc"
	}

	board := &models.Board{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Color:       req.Color,
		OwnerID:     userID,
	}
	if err := h.store.Boards().Create(r.Context(), board); err != nil {
		h.logger.Error("failed to create board", "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to create board"))
		return
	}

	h.recorder.Record(r.Context(), models.AuditBoardCreated, userID, board.ID, audit.BoardCreated(board.Title))

	created, err := h.store.Boards().Get(r.Context(), board.ID)
	if err != nil || created == nil {
		h.logger.Error("failed to reload board", "board_id", board.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	created.Lists = []*models.List{}

	WriteJSON(w, http.StatusCreated, map[string]any{"board": created})
}

// Update changes a board's title, description, or color. Owner only.
func (h *BoardHandler) Update(w http.ResponseWriter, r *http.Request) {
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
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}

	if req.Title != nil {
		board.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		board.Description = *req.Description
	}
	if req.Color != nil {
		board.Color = *req.Color
	}
	if v := validateBoardInput(board.Title, board.Description, board.Color); v.HasErrors() {
		WriteError(w, v.ToAPIError())
		return
	}

	if err := h.store.Boards().Update(r.Context(), board); err != nil {
		h.logger.Error("failed to update board", "board_id", board.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to update board"))
		return
	}

	h.recorder.Record(r.Context(), models.AuditBoardUpdated, userID, board.ID, audit.BoardUpdated(board.Title))

	WriteJSON(w, http.StatusOK, map[string]any{"board": board})
}

// Delete removes a board and everything under it in one transaction.
// Owner only.
func (h *BoardHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		ctx := r.Context()
		if err := tx.Comments().DeleteByBoard(ctx, board.ID); err != nil {
			return err
		}
		if err := tx.Cards().DeleteByBoard(ctx, board.ID); err != nil {
			return err
		}
		if err := tx.Lists().DeleteByBoard(ctx, board.ID); err != nil {
			return err
		}
		if err := tx.Invitations().DeleteByBoard(ctx, board.ID); err != nil {
			return err
		}
		if err := tx.AuditLogs().DeleteByBoard(ctx, board.ID); err != nil {
			return err
		}
		return tx.Boards().Delete(ctx, board.ID)
	})
	if err != nil {
		h.logger.Error("failed to delete board", "board_id", board.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to delete board"))
		return
	}

	h.logger.Info("board deleted", "board_id", board.ID, "user_id", userID)

	WriteJSON(w, http.StatusNoContent, nil)
}

// Activity returns the most recent audit entries for a board.
func (h *BoardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	if !parseID(w, boardID, "board id") {
		return
	}
	userID := middleware.GetUserID(r.Context())

	if _, err := h.access.RequireMember(r.Context(), boardID, userID); err != nil {
		writeAccessError(w, err)
		return
	}

	entries, err := h.store.AuditLogs().ListByBoard(r.Context(), boardID, 50)
	if err != nil {
		h.logger.Error("failed to list audit entries", "board_id", boardID, "error", err)
		WriteError(w, apierrors.NewInternalError("Internal server error"))
		return
	}
	if entries == nil {
		entries = []*models.AuditLog{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

// hydrateBoard attaches the board's lists and cards, and optionally each
// card's comments.
func hydrateBoard(ctx context.Context, st store.Store, board *models.Board, withComments bool) error {
	lists, err := st.Lists().ListByBoard(ctx, board.ID)
	if err != nil {
		return err
	}
	if lists == nil {
		lists = []*models.List{}
	}

	for _, list := range lists {
		cards, err := st.Cards().ListByList(ctx, list.ID)
		if err != nil {
			return err
		}
		if cards == nil {
			cards = []*models.Card{}
		}
		if withComments {
			for _, card := range cards {
				comments, err := st.Comments().ListByCard(ctx, card.ID)
				if err != nil {
					return err
				}
				if comments == nil {
					comments = []*models.Comment{}
				}
				card.Comments = comments
			}
		}
		list.Cards = cards
	}

	board.Lists = lists
	return nil
}
