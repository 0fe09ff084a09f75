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

// CommentHandler handles comment endpoints.
type CommentHandler struct {
	store    store.Store
	access   *auth.AccessService
	recorder *audit.Recorder
	logger   *slog.Logger
}

// NewCommentHandler creates a new comment handler.
func NewCommentHandler(st store.Store, access *auth.AccessService, recorder *audit.Recorder, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		store:    st,
		access:   access,
		recorder: recorder,
		logger:   logger,
	}
}

// Create adds a comment to a card.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
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
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, apierrors.NewValidationError("Invalid request body"))
		return
	}
	if v := validateCommentContent(req.Content); v.HasErrors() {
		WriteError(w, v.ToAPIError())
		return
	}

	comment := &models.Comment{
		CardID:   card.ID,
		AuthorID: userID,
		Content:  strings.TrimSpace(req.Content),
	}
	if err := h.store.Comments().Create(r.Context(), comment); err != nil {
		h.logger.Error("failed to create comment", "card_id", card.ID, "error", err)
		WriteError(w, apierrors.NewInternalError("Failed to create comment"))
		return
	}

	h.recorder.Record(r.Context(), models.AuditCommentAdded, userID, card.BoardID, audit.CommentAdded(card.Title))

	if user, err := h.store.Users().GetByID(r.Context(), userID); err == nil && user != nil {
		p := user.Profile()
		comment.Author = &p
	}

	WriteJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}
