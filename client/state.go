package client

import (
	"encoding/json"
	"sort"

	"github.com/kanbanflow/kanbanflow/pkg/models"
	"github.com/kanbanflow/kanbanflow/pkg/ws"
)

// State is a client's view of one board plus room presence. Values are
// treated as immutable; Apply returns a new State and never mutates its
// input, so a caller can keep old states for comparison or rollback.
type State struct {
	Board          *models.Board
	ConnectedUsers []models.Profile
}

// NewState builds the initial state from a board fetched over REST.
func NewState(board *models.Board) State {
	return State{Board: cloneBoard(board)}
}

// Apply folds one server event into the state. Unknown events and events for
// other boards leave the state unchanged.
func Apply(s State, event string, data json.RawMessage) State {
	if s.Board == nil {
		return s
	}

	switch event {
	case EventBoardUpdate:
		var p ws.BoardUpdatePayload
		if json.Unmarshal(data, &p) != nil || p.BoardID != s.Board.ID {
			return s
		}
		next := clone(s)
		next.Board.Title = p.Title
		next.Board.Description = p.Description
		next.Board.Color = p.Color
		return next

	case EventListCreate, EventListUpdate:
		var p ws.ListPayload
		if json.Unmarshal(data, &p) != nil || p.BoardID != s.Board.ID {
			return s
		}
		next := clone(s)
		if list := findList(next.Board, p.ID); list != nil {
			list.Title = p.Title
			list.Position = p.Position
		} else {
			next.Board.Lists = append(next.Board.Lists, &models.List{
				ID:       p.ID,
				BoardID:  p.BoardID,
				Title:    p.Title,
				Position: p.Position,
				Cards:    []*models.Card{},
			})
		}
		sortLists(next.Board.Lists)
		return next

	case EventListDelete:
		var p ws.ListDeletePayload
		if json.Unmarshal(data, &p) != nil {
			return s
		}
		next := clone(s)
		lists := next.Board.Lists[:0:0]
		for _, l := range next.Board.Lists {
			if l.ID != p.ID {
				lists = append(lists, l)
			}
		}
		next.Board.Lists = lists
		return next

	case EventCardCreate, EventCardUpdate:
		var p ws.CardPayload
		if json.Unmarshal(data, &p) != nil {
			return s
		}
		next := clone(s)
		if card, _ := findCard(next.Board, p.ID); card != nil {
			card.Title = p.Title
			card.Description = p.Description
			card.Labels = p.Labels
			card.AssigneeID = p.AssigneeID
			card.DueDate = p.DueDate
			return next
		}
		list := findList(next.Board, p.ListID)
		if list == nil {
			return s
		}
		list.Cards = append(list.Cards, &models.Card{
			ID:          p.ID,
			ListID:      p.ListID,
			BoardID:     p.BoardID,
			Title:       p.Title,
			Description: p.Description,
			Position:    len(list.Cards),
			Labels:      p.Labels,
			AssigneeID:  p.AssigneeID,
			DueDate:     p.DueDate,
			Comments:    []*models.Comment{},
		})
		return next

	case EventCardDelete:
		var p ws.CardDeletePayload
		if json.Unmarshal(data, &p) != nil {
			return s
		}
		next := clone(s)
		removeCard(next.Board, p.ID)
		return next

	case EventCardMove:
		var p ws.MovePayload
		if json.Unmarshal(data, &p) != nil {
			return s
		}
		next := clone(s)
		if !moveCard(next.Board, p.CardID, p.ToListID, p.Position) {
			return s
		}
		return next

	case EventCommentCreate:
		var comment models.Comment
		if json.Unmarshal(data, &comment) != nil {
			return s
		}
		next := clone(s)
		card, _ := findCard(next.Board, comment.CardID)
		if card == nil {
			return s
		}
		for _, existing := range card.Comments {
			if existing.ID == comment.ID {
				return s
			}
		}
		card.Comments = append(card.Comments, &comment)
		return next

	case EventUserJoin:
		var p ws.PresencePayload
		if json.Unmarshal(data, &p) != nil || p.BoardID != s.Board.ID {
			return s
		}
		for _, u := range s.ConnectedUsers {
			if u.ID == p.User.ID {
				return s
			}
		}
		next := clone(s)
		next.ConnectedUsers = append(next.ConnectedUsers, p.User)
		return next

	case EventUserLeave:
		var p ws.PresencePayload
		if json.Unmarshal(data, &p) != nil {
			return s
		}
		next := clone(s)
		users := next.ConnectedUsers[:0:0]
		for _, u := range next.ConnectedUsers {
			if u.ID != p.User.ID {
				users = append(users, u)
			}
		}
		next.ConnectedUsers = users
		return next
	}

	return s
}

// ApplyMove performs an optimistic local move, returning the new state and
// whether the card was found. The caller confirms or reloads when the server
// responds; a later authoritative state simply replaces this one.
func ApplyMove(s State, cardID, toListID string, position int) (State, bool) {
	if s.Board == nil {
		return s, false
	}
	next := clone(s)
	if !moveCard(next.Board, cardID, toListID, position) {
		return s, false
	}
	return next, true
}

// moveCard splices a card out of its current list and into the target at the
// clamped position, renumbering both lists. Returns false if the card or the
// target list is missing.
func moveCard(board *models.Board, cardID, toListID string, position int) bool {
	target := findList(board, toListID)
	if target == nil {
		return false
	}
	card := removeCard(board, cardID)
	if card == nil {
		return false
	}

	if position < 0 {
		position = 0
	}
	if position > len(target.Cards) {
		position = len(target.Cards)
	}

	card.ListID = target.ID
	target.Cards = append(target.Cards, nil)
	copy(target.Cards[position+1:], target.Cards[position:])
	target.Cards[position] = card

	for i, c := range target.Cards {
		c.Position = i
	}
	return true
}

// removeCard takes a card out of whichever list holds it, renumbering that
// list. Returns nil if no list holds it.
func removeCard(board *models.Board, cardID string) *models.Card {
	for _, list := range board.Lists {
		for i, c := range list.Cards {
			if c.ID != cardID {
				continue
			}
			list.Cards = append(list.Cards[:i], list.Cards[i+1:]...)
			for j, rest := range list.Cards {
				rest.Position = j
			}
			return c
		}
	}
	return nil
}

func findList(board *models.Board, listID string) *models.List {
	for _, l := range board.Lists {
		if l.ID == listID {
			return l
		}
	}
	return nil
}

func findCard(board *models.Board, cardID string) (*models.Card, *models.List) {
	for _, l := range board.Lists {
		for _, c := range l.Cards {
			if c.ID == cardID {
				return c, l
			}
		}
	}
	return nil, nil
}

func sortLists(lists []*models.List) {
	sort.SliceStable(lists, func(i, j int) bool {
		return lists[i].Position < lists[j].Position
	})
}

func clone(s State) State {
	next := State{Board: cloneBoard(s.Board)}
	next.ConnectedUsers = append([]models.Profile(nil), s.ConnectedUsers...)
	return next
}

func cloneBoard(b *models.Board) *models.Board {
	if b == nil {
		return nil
	}
	nb := *b
	nb.Collaborators = append([]models.Collaborator(nil), b.Collaborators...)
	nb.Lists = make([]*models.List, len(b.Lists))
	for i, l := range b.Lists {
		nl := *l
		nl.Cards = make([]*models.Card, len(l.Cards))
		for j, c := range l.Cards {
			nc := *c
			nc.Labels = append([]models.Label(nil), c.Labels...)
			nc.Comments = make([]*models.Comment, len(c.Comments))
			for k, cm := range c.Comments {
				ncm := *cm
				nc.Comments[k] = &ncm
			}
			nl.Cards[j] = &nc
		}
		nb.Lists[i] = &nl
	}
	return &nb
}
