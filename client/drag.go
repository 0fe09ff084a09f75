package client

import (
	"context"
	"sync"

	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// MovePlan is a resolved drop target for a card drag.
type MovePlan struct {
	CardID   string
	ListID   string
	Position int
}

// PlanDrop resolves where a dragged card should land. hoveredCardID is the
// card under the cursor in the target list, or empty when dropping on the
// list itself, which appends. Dropping a card onto itself yields its current
// slot, so the resulting move is a no-op.
func PlanDrop(board *models.Board, cardID, targetListID, hoveredCardID string) (MovePlan, bool) {
	target := findList(board, targetListID)
	if target == nil {
		return MovePlan{}, false
	}
	card, from := findCard(board, cardID)
	if card == nil {
		return MovePlan{}, false
	}

	position := len(target.Cards)
	if from != nil && from.ID == target.ID {
		// Moving within the list: the card's own slot is vacated first,
		// so the append index is one less.
		position--
	}
	if hoveredCardID != "" {
		for i, c := range target.Cards {
			if c.ID == hoveredCardID {
				position = i
				break
			}
		}
	}

	return MovePlan{CardID: cardID, ListID: target.ID, Position: position}, true
}

// Mover executes card moves optimistically. The local state is updated
// before the server answers; a failed request triggers the invalidate
// callback so the caller can reload authoritative state. Concurrent moves
// are not queued, the last server response wins.
type Mover struct {
	client     *Client
	invalidate func()

	mu    sync.Mutex
	state State
	seq   int
}

// NewMover wraps a client and an initial state. invalidate is called when a
// move is rejected; it may be nil.
func NewMover(c *Client, initial State, invalidate func()) *Mover {
	return &Mover{client: c, state: initial, invalidate: invalidate}
}

// State returns the current (possibly optimistic) state.
func (m *Mover) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetState replaces the state, discarding any optimistic changes. Used after
// a reload or when a fresh board arrives over the socket.
func (m *Mover) SetState(s State) {
	m.mu.Lock()
	m.state = s
	m.seq++
	m.mu.Unlock()
}

// Move applies the plan locally and sends it to the server. The optimistic
// state stands unless the server rejects the move, in which case invalidate
// fires and the error is returned.
func (m *Mover) Move(ctx context.Context, plan MovePlan) error {
	m.mu.Lock()
	next, ok := ApplyMove(m.state, plan.CardID, plan.ListID, plan.Position)
	if !ok {
		m.mu.Unlock()
		return &APIError{Code: "NOT_FOUND", Message: "Card not found", Status: 404}
	}
	m.state = next
	m.seq++
	seq := m.seq
	m.mu.Unlock()

	result, err := m.client.MoveCard(ctx, plan.CardID, plan.ListID, plan.Position)
	if err != nil {
		if m.invalidate != nil {
			m.invalidate()
		}
		return err
	}

	// Stale responses are dropped; a newer move or reload already owns
	// the state.
	m.mu.Lock()
	if m.seq == seq && result.Card != nil {
		if card, _ := findCard(m.state.Board, result.Card.ID); card != nil {
			card.UpdatedAt = result.Card.UpdatedAt
		}
	}
	m.mu.Unlock()
	return nil
}
