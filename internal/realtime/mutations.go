package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/kanbanflow/kanbanflow/internal/audit"
	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

var hexColorRe = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// handleEvent dispatches one inbound envelope. Mutations mirror what the
// client already did over REST, so persistence here is an upsert: a row that
// exists is updated in place, a missing one is created with the id the
// client supplied. Duplicate delivery therefore converges instead of
// erroring.
func (h *Hub) handleEvent(ctx context.Context, c *Conn, env Envelope) {
	switch env.Event {
	case EventJoinBoard:
		h.onJoin(ctx, c, env)
	case EventLeaveBoard:
		h.leaveBoard(c)
	case EventBoardUpdate:
		h.onBoardUpdate(ctx, c, env)
	case EventListCreate, EventListUpdate:
		h.onListUpsert(ctx, c, env)
	case EventListDelete:
		h.onListDelete(ctx, c, env)
	case EventCardCreate, EventCardUpdate:
		h.onCardUpsert(ctx, c, env)
	case EventCardDelete:
		h.onCardDelete(ctx, c, env)
	case EventCardMove:
		h.onCardMove(ctx, c, env)
	case EventCommentCreate:
		h.onCommentCreate(ctx, c, env)
	default:
		c.sendError(env.Event, "VALIDATION_ERROR", "Unknown event")
	}
}

func (h *Hub) onJoin(ctx context.Context, c *Conn, env Envelope) {
	var p JoinPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.BoardID == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "A board id is required")
		return
	}
	if err := h.joinBoard(ctx, c, p.BoardID); err != nil {
		h.sendAccessError(c, env.Event, err)
	}
}

// inRoom verifies the connection joined a room and that the event targets
// it. Every mutation is gated on this plus a fresh membership check, so a
// revoked collaborator cannot keep writing through a stale socket.
func (h *Hub) inRoom(ctx context.Context, c *Conn, event, boardID string) bool {
	room := c.board()
	if room == "" {
		c.sendError(event, "FORBIDDEN", "Join a board first")
		return false
	}
	if boardID != "" && boardID != room {
		c.sendError(event, "FORBIDDEN", "Event targets a different board")
		return false
	}
	if _, err := h.access.RequireMember(ctx, room, c.userID); err != nil {
		h.sendAccessError(c, event, err)
		return false
	}
	return true
}

// onBoardUpdate replaces the board header with the payload. The payload
// carries the full desired state, so every field is validated and applied;
// peers receive the applied values, never the raw payload.
func (h *Hub) onBoardUpdate(ctx context.Context, c *Conn, env Envelope) {
	var p BoardUpdatePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		c.sendError(env.Event, "VALIDATION_ERROR", "Malformed payload")
		return
	}
	if !h.inRoom(ctx, c, env.Event, p.BoardID) {
		return
	}

	title := strings.TrimSpace(p.Title)
	switch {
	case title == "" || len(title) > 100:
		c.sendError(env.Event, "VALIDATION_ERROR", "Title must be 1 to 100 characters")
		return
	case len(p.Description) > 500:
		c.sendError(env.Event, "VALIDATION_ERROR", "Description must be at most 500 characters")
		return
	case !hexColorRe.MatchString(p.Color):
		c.sendError(env.Event, "VALIDATION_ERROR", "Color must be a hex value like #0066cc")
		return
	}

	board, err := h.access.RequireOwner(ctx, c.board(), c.userID)
	if err != nil {
		h.sendAccessError(c, env.Event, err)
		return
	}

	board.Title = title
	board.Description = p.Description
	board.Color = p.Color

	if err := h.store.Boards().Update(ctx, board); err != nil {
		h.logger.Error("failed to update board", "board_id", board.ID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to update board")
		return
	}
	h.recorder.Record(ctx, models.AuditBoardUpdated, c.userID, board.ID, audit.BoardUpdated(board.Title))

	h.Broadcast(c.board(), Frame{Event: env.Event, Data: BoardUpdatePayload{
		BoardID:     board.ID,
		Title:       board.Title,
		Description: board.Description,
		Color:       board.Color,
	}}, c)
}

func (h *Hub) onListUpsert(ctx context.Context, c *Conn, env Envelope) {
	var p ListPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ID == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "Malformed payload")
		return
	}
	if !h.inRoom(ctx, c, env.Event, p.BoardID) {
		return
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "Title is required")
		return
	}

	existing, err := h.store.Lists().Get(ctx, p.ID)
	if err != nil {
		h.logger.Error("failed to load list", "list_id", p.ID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save list")
		return
	}

	switch {
	case existing == nil:
		list := &models.List{
			ID:       p.ID,
			BoardID:  c.board(),
			Title:    title,
			Position: p.Position,
		}
		if err := h.store.Lists().Create(ctx, list); err != nil {
			h.logger.Error("failed to create list", "list_id", p.ID, "error", err)
			c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save list")
			return
		}
		h.recorder.Record(ctx, models.AuditListCreated, c.userID, c.board(), audit.ListCreated(title))
	case existing.BoardID != c.board():
		c.sendError(env.Event, "FORBIDDEN", "List belongs to a different board")
		return
	default:
		existing.Title = title
		existing.Position = p.Position
		if err := h.store.Lists().Update(ctx, existing); err != nil {
			h.logger.Error("failed to update list", "list_id", p.ID, "error", err)
			c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save list")
			return
		}
		if env.Event == EventListUpdate {
			h.recorder.Record(ctx, models.AuditListUpdated, c.userID, c.board(), audit.ListUpdated(title))
		}
	}

	p.BoardID = c.board()
	h.Broadcast(c.board(), Frame{Event: env.Event, Data: p}, c)
}

func (h *Hub) onListDelete(ctx context.Context, c *Conn, env Envelope) {
	var p ListDeletePayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ID == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "Malformed payload")
		return
	}
	if !h.inRoom(ctx, c, env.Event, p.BoardID) {
		return
	}

	list, err := h.store.Lists().Get(ctx, p.ID)
	if err != nil {
		h.logger.Error("failed to load list", "list_id", p.ID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to delete list")
		return
	}
	if list != nil {
		if list.BoardID != c.board() {
			c.sendError(env.Event, "FORBIDDEN", "List belongs to a different board")
			return
		}
		err := h.store.WithTx(ctx, func(tx store.Store) error {
			if err := tx.Comments().DeleteByList(ctx, list.ID); err != nil {
				return err
			}
			if err := tx.Cards().DeleteByList(ctx, list.ID); err != nil {
				return err
			}
			if err := tx.Lists().Delete(ctx, list.ID); err != nil {
				return err
			}
			h.recorder.RecordIn(ctx, tx, models.AuditListDeleted, c.userID, c.board(), audit.ListDeleted(list.Title))
			return nil
		})
		if err != nil {
			h.logger.Error("failed to delete list", "list_id", list.ID, "error", err)
			c.sendError(env.Event, "INTERNAL_ERROR", "Failed to delete list")
			return
		}
	}

	p.BoardID = c.board()
	h.Broadcast(c.board(), Frame{Event: env.Event, Data: p}, c)
}

func (h *Hub) onCardUpsert(ctx context.Context, c *Conn, env Envelope) {
	var p CardPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ID == "" || p.ListID == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "Malformed payload")
		return
	}
	if !h.inRoom(ctx, c, env.Event, p.BoardID) {
		return
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "Title is required")
		return
	}

	list, err := h.store.Lists().Get(ctx, p.ListID)
	if err != nil {
		h.logger.Error("failed to load list", "list_id", p.ListID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save card")
		return
	}
	if list == nil || list.BoardID != c.board() {
		c.sendError(env.Event, "NOT_FOUND", "List not found")
		return
	}

	existing, err := h.store.Cards().Get(ctx, p.ID)
	if err != nil {
		h.logger.Error("failed to load card", "card_id", p.ID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save card")
		return
	}

	switch {
	case existing == nil:
		card := &models.Card{
			ID:          p.ID,
			ListID:      p.ListID,
			BoardID:     c.board(),
			Title:       title,
			Description: p.Description,
			Position:    p.Position,
			Labels:      p.Labels,
			AssigneeID:  p.AssigneeID,
			DueDate:     p.DueDate,
			CreatedByID: c.userID,
		}
		if err := h.store.Cards().Create(ctx, card); err != nil {
			h.logger.Error("failed to create card", "card_id", p.ID, "error", err)
			c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save card")
			return
		}
		h.recorder.Record(ctx, models.AuditCardCreated, c.userID, c.board(), audit.CardCreated(title))
	case existing.BoardID != c.board():
		c.sendError(env.Event, "FORBIDDEN", "Card belongs to a different board")
		return
	default:
		existing.Title = title
		existing.Description = p.Description
		existing.Labels = p.Labels
		existing.AssigneeID = p.AssigneeID
		existing.DueDate = p.DueDate
		if err := h.store.Cards().Update(ctx, existing); err != nil {
			h.logger.Error("failed to update card", "card_id", p.ID, "error", err)
			c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save card")
			return
		}
		if env.Event == EventCardUpdate {
			h.recorder.Record(ctx, models.AuditCardUpdated, c.userID, c.board(), audit.CardUpdated(title))
		}
	}

	p.BoardID = c.board()
	h.Broadcast(c.board(), Frame{Event: env.Event, Data: p}, c)
}

func (h *Hub) onCardDelete(ctx context.Context, c *Conn, env Envelope) {
	var p CardDeletePayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.ID == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "Malformed payload")
		return
	}
	if !h.inRoom(ctx, c, env.Event, "") {
		return
	}

	card, err := h.store.Cards().Get(ctx, p.ID)
	if err != nil {
		h.logger.Error("failed to load card", "card_id", p.ID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to delete card")
		return
	}
	if card != nil {
		if card.BoardID != c.board() {
			c.sendError(env.Event, "FORBIDDEN", "Card belongs to a different board")
			return
		}
		p.ListID = card.ListID
		err := h.store.WithTx(ctx, func(tx store.Store) error {
			if err := tx.Comments().DeleteByCard(ctx, card.ID); err != nil {
				return err
			}
			if err := tx.Cards().Delete(ctx, card.ID); err != nil {
				return err
			}
			if err := tx.Cards().ReindexList(ctx, card.ListID); err != nil {
				return err
			}
			h.recorder.RecordIn(ctx, tx, models.AuditCardDeleted, c.userID, c.board(), audit.CardDeleted(card.Title))
			return nil
		})
		if err != nil {
			h.logger.Error("failed to delete card", "card_id", card.ID, "error", err)
			c.sendError(env.Event, "INTERNAL_ERROR", "Failed to delete card")
			return
		}
	}

	h.Broadcast(c.board(), Frame{Event: env.Event, Data: p}, c)
}

func (h *Hub) onCardMove(ctx context.Context, c *Conn, env Envelope) {
	var p MovePayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.CardID == "" || p.ToListID == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "Malformed payload")
		return
	}
	if p.Position < 0 {
		c.sendError(env.Event, "VALIDATION_ERROR", "Position must not be negative")
		return
	}
	if !h.inRoom(ctx, c, env.Event, "") {
		return
	}

	card, err := h.store.Cards().Get(ctx, p.CardID)
	if err != nil {
		h.logger.Error("failed to load card", "card_id", p.CardID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to move card")
		return
	}
	if card == nil || card.BoardID != c.board() {
		c.sendError(env.Event, "NOT_FOUND", "Card not found")
		return
	}

	target, err := h.store.Lists().Get(ctx, p.ToListID)
	if err != nil {
		h.logger.Error("failed to load list", "list_id", p.ToListID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to move card")
		return
	}
	if target == nil || target.BoardID != c.board() {
		c.sendError(env.Event, "NOT_FOUND", "List not found")
		return
	}

	fromListID := card.ListID
	fromTitle := ""
	if from, err := h.store.Lists().Get(ctx, fromListID); err == nil && from != nil {
		fromTitle = from.Title
	}

	err = h.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Cards().Move(ctx, card.ID, target.ID, p.Position); err != nil {
			return err
		}
		h.recorder.RecordIn(ctx, tx, models.AuditCardMoved, c.userID, c.board(),
			audit.CardMoved(card.Title, fromTitle, target.Title))
		return nil
	})
	if err != nil {
		h.logger.Error("failed to move card", "card_id", card.ID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to move card")
		return
	}

	p.FromListID = fromListID
	h.Broadcast(c.board(), Frame{Event: env.Event, Data: p}, c)
}

func (h *Hub) onCommentCreate(ctx context.Context, c *Conn, env Envelope) {
	var p CommentPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.CardID == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "Malformed payload")
		return
	}
	if !h.inRoom(ctx, c, env.Event, "") {
		return
	}

	content := strings.TrimSpace(p.Content)
	if content == "" {
		c.sendError(env.Event, "VALIDATION_ERROR", "Content is required")
		return
	}

	card, err := h.store.Cards().Get(ctx, p.CardID)
	if err != nil {
		h.logger.Error("failed to load card", "card_id", p.CardID, "error", err)
		c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save comment")
		return
	}
	if card == nil || card.BoardID != c.board() {
		c.sendError(env.Event, "NOT_FOUND", "Card not found")
		return
	}

	comment := &models.Comment{
		ID:       p.ID,
		CardID:   card.ID,
		AuthorID: c.userID,
		Content:  content,
	}

	created := false
	if p.ID != "" {
		existing, err := h.store.Comments().ListByCard(ctx, card.ID)
		if err != nil {
			h.logger.Error("failed to load comments", "card_id", card.ID, "error", err)
			c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save comment")
			return
		}
		for _, e := range existing {
			if e.ID == p.ID {
				comment = e
				created = true
				break
			}
		}
	}
	if !created {
		if err := h.store.Comments().Create(ctx, comment); err != nil {
			h.logger.Error("failed to create comment", "card_id", card.ID, "error", err)
			c.sendError(env.Event, "INTERNAL_ERROR", "Failed to save comment")
			return
		}
		h.recorder.Record(ctx, models.AuditCommentAdded, c.userID, c.board(), audit.CommentAdded(card.Title))
	}
	comment.Author = &c.profile

	h.Broadcast(c.board(), Frame{Event: env.Event, Data: comment}, c)
}

func (h *Hub) sendAccessError(c *Conn, event string, err error) {
	switch {
	case errors.Is(err, auth.ErrBoardNotFound):
		c.sendError(event, "NOT_FOUND", "Board not found")
	case errors.Is(err, auth.ErrAccessDenied):
		c.sendError(event, "FORBIDDEN", "Access denied")
	case errors.Is(err, auth.ErrOwnerOnly):
		c.sendError(event, "FORBIDDEN", "Only the board owner may perform this action")
	default:
		c.sendError(event, "INTERNAL_ERROR", "Internal server error")
	}
}
