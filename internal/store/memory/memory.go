// Package memory provides an in-memory implementation of the store
// interfaces, used in tests and for running without a database.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kanbanflow/kanbanflow/internal/store"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

// MemoryStore implements the Store interface with in-process maps.
type MemoryStore struct {
	mu sync.RWMutex

	users         map[string]*models.User
	boards        map[string]*models.Board
	collaborators map[string][]models.Collaborator
	lists         map[string]*models.List
	cards         map[string]*models.Card
	comments      map[string]*models.Comment
	invitations   map[string]*models.Invitation
	auditLogs     []*models.AuditLog
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*models.User),
		boards:        make(map[string]*models.Board),
		collaborators: make(map[string][]models.Collaborator),
		lists:         make(map[string]*models.List),
		cards:         make(map[string]*models.Card),
		comments:      make(map[string]*models.Comment),
		invitations:   make(map[string]*models.Invitation),
	}
}

func (s *MemoryStore) Users() store.UserStore             { return &userStore{s} }
func (s *MemoryStore) Boards() store.BoardStore           { return &boardStore{s} }
func (s *MemoryStore) Lists() store.ListStore             { return &listStore{s} }
func (s *MemoryStore) Cards() store.CardStore             { return &cardStore{s} }
func (s *MemoryStore) Comments() store.CommentStore       { return &commentStore{s} }
func (s *MemoryStore) Invitations() store.InvitationStore { return &invitationStore{s} }
func (s *MemoryStore) AuditLogs() store.AuditLogStore     { return &auditLogStore{s} }

// WithTx runs fn against the same store. Mutations are not rolled back on
// error, which is acceptable for the test scenarios this store backs.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) profile(userID string) *models.Profile {
	if u, ok := s.users[userID]; ok {
		p := u.Profile()
		return &p
	}
	return nil
}

// userStore implements store.UserStore.
type userStore struct{ s *MemoryStore }

func (u *userStore) Create(ctx context.Context, name, email, password string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, existing := range u.s.users {
		if existing.Email == email {
			return nil, store.ErrDuplicateEmail
		}
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    time.Now(),
	}
	u.s.users[user.ID] = user

	clone := *user
	return &clone, nil
}

func (u *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range u.s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, nil
}

func (u *userStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (u *userStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := u.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}
	return user, nil
}

// boardStore implements store.BoardStore.
type boardStore struct{ s *MemoryStore }

func (b *boardStore) Create(ctx context.Context, board *models.Board) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	if board.ID == "" {
		board.ID = uuid.New().String()
	}
	now := time.Now()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
		board.UpdatedAt = now
	}

	clone := *board
	clone.Lists = nil
	clone.Collaborators = nil
	b.s.boards[board.ID] = &clone
	return nil
}

func (b *boardStore) Get(ctx context.Context, id string) (*models.Board, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	board, ok := b.s.boards[id]
	if !ok {
		return nil, nil
	}
	return b.hydrate(board), nil
}

func (b *boardStore) ListForUser(ctx context.Context, userID string) ([]*models.Board, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	var boards []*models.Board
	for _, board := range b.s.boards {
		hydrated := b.hydrate(board)
		if hydrated.HasAccess(userID) {
			boards = append(boards, hydrated)
		}
	}
	sort.Slice(boards, func(i, j int) bool {
		return boards[i].UpdatedAt.After(boards[j].UpdatedAt)
	})
	return boards, nil
}

func (b *boardStore) Update(ctx context.Context, board *models.Board) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	existing, ok := b.s.boards[board.ID]
	if !ok {
		return errors.New("board not found")
	}
	existing.Title = board.Title
	existing.Description = board.Description
	existing.Color = board.Color
	existing.UpdatedAt = time.Now()
	board.UpdatedAt = existing.UpdatedAt
	return nil
}

func (b *boardStore) Delete(ctx context.Context, id string) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	delete(b.s.boards, id)
	delete(b.s.collaborators, id)
	return nil
}

func (b *boardStore) AddCollaborator(ctx context.Context, boardID, userID string, joinedAt time.Time) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	for _, c := range b.s.collaborators[boardID] {
		if c.UserID == userID {
			return errors.New("already a collaborator")
		}
	}
	b.s.collaborators[boardID] = append(b.s.collaborators[boardID], models.Collaborator{
		UserID:   userID,
		Role:     models.RoleCollaborator,
		JoinedAt: joinedAt,
	})
	return nil
}

// hydrate copies a board and fills in owner and collaborator profiles.
// Callers must hold at least a read lock.
func (b *boardStore) hydrate(board *models.Board) *models.Board {
	clone := *board
	clone.Owner = b.s.profile(board.OwnerID)
	clone.Collaborators = []models.Collaborator{}
	for _, c := range b.s.collaborators[board.ID] {
		c.User = b.s.profile(c.UserID)
		clone.Collaborators = append(clone.Collaborators, c)
	}
	return &clone
}

// listStore implements store.ListStore.
type listStore struct{ s *MemoryStore }

func (l *listStore) Create(ctx context.Context, list *models.List) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	now := time.Now()
	if list.CreatedAt.IsZero() {
		list.CreatedAt = now
		list.UpdatedAt = now
	}

	clone := *list
	clone.Cards = nil
	l.s.lists[list.ID] = &clone
	return nil
}

func (l *listStore) Get(ctx context.Context, id string) (*models.List, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	list, ok := l.s.lists[id]
	if !ok {
		return nil, nil
	}
	clone := *list
	return &clone, nil
}

func (l *listStore) ListByBoard(ctx context.Context, boardID string) ([]*models.List, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	var lists []*models.List
	for _, list := range l.s.lists {
		if list.BoardID == boardID {
			clone := *list
			lists = append(lists, &clone)
		}
	}
	sort.Slice(lists, func(i, j int) bool {
		if lists[i].Position != lists[j].Position {
			return lists[i].Position < lists[j].Position
		}
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})
	return lists, nil
}

func (l *listStore) Update(ctx context.Context, list *models.List) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	existing, ok := l.s.lists[list.ID]
	if !ok {
		return errors.New("list not found")
	}
	existing.Title = list.Title
	existing.Position = list.Position
	existing.UpdatedAt = time.Now()
	list.UpdatedAt = existing.UpdatedAt
	return nil
}

func (l *listStore) Delete(ctx context.Context, id string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	delete(l.s.lists, id)
	return nil
}

func (l *listStore) DeleteByBoard(ctx context.Context, boardID string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	for id, list := range l.s.lists {
		if list.BoardID == boardID {
			delete(l.s.lists, id)
		}
	}
	return nil
}

// cardStore implements store.CardStore.
type cardStore struct{ s *MemoryStore }

func (c *cardStore) Create(ctx context.Context, card *models.Card) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	now := time.Now()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
		card.UpdatedAt = now
	}
	if card.Labels == nil {
		card.Labels = []models.Label{}
	}

	c.s.cards[card.ID] = cloneCard(card)
	return nil
}

func (c *cardStore) Get(ctx context.Context, id string) (*models.Card, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	card, ok := c.s.cards[id]
	if !ok {
		return nil, nil
	}
	return c.hydrate(card), nil
}

func (c *cardStore) ListByList(ctx context.Context, listID string) ([]*models.Card, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	var cards []*models.Card
	for _, card := range c.s.cards {
		if card.ListID == listID {
			cards = append(cards, c.hydrate(card))
		}
	}
	sortCards(cards)
	return cards, nil
}

func (c *cardStore) Update(ctx context.Context, card *models.Card) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	existing, ok := c.s.cards[card.ID]
	if !ok {
		return errors.New("card not found")
	}
	existing.Title = card.Title
	existing.Description = card.Description
	existing.Labels = append([]models.Label(nil), card.Labels...)
	existing.AssigneeID = card.AssigneeID
	existing.DueDate = card.DueDate
	existing.UpdatedAt = time.Now()
	card.UpdatedAt = existing.UpdatedAt
	return nil
}

// Move splices the card into the target list at the clamped position,
// renumbering both lists. The position counts the target list without the
// moved card, matching remove-then-insert ordering.
func (c *cardStore) Move(ctx context.Context, cardID, listID string, position int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	card, ok := c.s.cards[cardID]
	if !ok {
		return errors.New("card not found")
	}
	fromListID := card.ListID

	var siblings []*models.Card
	for _, other := range c.s.cards {
		if other.ListID == listID && other.ID != cardID {
			siblings = append(siblings, other)
		}
	}
	sortCards(siblings)

	if position < 0 {
		position = 0
	}
	if position > len(siblings) {
		position = len(siblings)
	}

	card.ListID = listID
	card.UpdatedAt = time.Now()

	ordered := make([]*models.Card, 0, len(siblings)+1)
	ordered = append(ordered, siblings[:position]...)
	ordered = append(ordered, card)
	ordered = append(ordered, siblings[position:]...)
	for i, o := range ordered {
		o.Position = i
	}

	if fromListID != listID {
		c.renumberLocked(fromListID)
	}
	return nil
}

func (c *cardStore) ReindexList(ctx context.Context, listID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	c.renumberLocked(listID)
	return nil
}

func (c *cardStore) renumberLocked(listID string) {
	var cards []*models.Card
	for _, card := range c.s.cards {
		if card.ListID == listID {
			cards = append(cards, card)
		}
	}
	sortCards(cards)
	for i, card := range cards {
		card.Position = i
	}
}

func (c *cardStore) Delete(ctx context.Context, id string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	delete(c.s.cards, id)
	return nil
}

func (c *cardStore) DeleteByList(ctx context.Context, listID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for id, card := range c.s.cards {
		if card.ListID == listID {
			delete(c.s.cards, id)
		}
	}
	return nil
}

func (c *cardStore) DeleteByBoard(ctx context.Context, boardID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for id, card := range c.s.cards {
		if card.BoardID == boardID {
			delete(c.s.cards, id)
		}
	}
	return nil
}

func (c *cardStore) hydrate(card *models.Card) *models.Card {
	clone := cloneCard(card)
	if clone.AssigneeID != "" {
		clone.Assignee = c.s.profile(clone.AssigneeID)
	}
	clone.CreatedBy = c.s.profile(clone.CreatedByID)
	return clone
}

func cloneCard(card *models.Card) *models.Card {
	clone := *card
	clone.Labels = append([]models.Label(nil), card.Labels...)
	if clone.Labels == nil {
		clone.Labels = []models.Label{}
	}
	if card.DueDate != nil {
		t := *card.DueDate
		clone.DueDate = &t
	}
	clone.Comments = nil
	return &clone
}

func sortCards(cards []*models.Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Position != cards[j].Position {
			return cards[i].Position < cards[j].Position
		}
		return cards[i].UpdatedAt.After(cards[j].UpdatedAt)
	})
}

// commentStore implements store.CommentStore.
type commentStore struct{ s *MemoryStore }

func (c *commentStore) Create(ctx context.Context, comment *models.Comment) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	clone := *comment
	clone.Author = nil
	c.s.comments[comment.ID] = &clone
	return nil
}

func (c *commentStore) ListByCard(ctx context.Context, cardID string) ([]*models.Comment, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	var comments []*models.Comment
	for _, comment := range c.s.comments {
		if comment.CardID == cardID {
			clone := *comment
			clone.Author = c.s.profile(comment.AuthorID)
			comments = append(comments, &clone)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (c *commentStore) DeleteByCard(ctx context.Context, cardID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for id, comment := range c.s.comments {
		if comment.CardID == cardID {
			delete(c.s.comments, id)
		}
	}
	return nil
}

func (c *commentStore) DeleteByList(ctx context.Context, listID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for id, comment := range c.s.comments {
		if card, ok := c.s.cards[comment.CardID]; ok && card.ListID == listID {
			delete(c.s.comments, id)
		}
	}
	return nil
}

func (c *commentStore) DeleteByBoard(ctx context.Context, boardID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for id, comment := range c.s.comments {
		if card, ok := c.s.cards[comment.CardID]; ok && card.BoardID == boardID {
			delete(c.s.comments, id)
		}
	}
	return nil
}

// invitationStore implements store.InvitationStore.
type invitationStore struct{ s *MemoryStore }

func (i *invitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))

	for _, existing := range i.s.invitations {
		if existing.Token == inv.Token {
			return errors.New("duplicate invitation token")
		}
	}

	clone := *inv
	i.s.invitations[inv.ID] = &clone
	return nil
}

func (i *invitationStore) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	for _, inv := range i.s.invitations {
		if inv.Token == token {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, nil
}

func (i *invitationStore) GetPending(ctx context.Context, boardID, email string) (*models.Invitation, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	var latest *models.Invitation
	for _, inv := range i.s.invitations {
		if inv.BoardID == boardID && inv.Email == email && inv.Status == models.InvitationStatusPending {
			if latest == nil || inv.CreatedAt.After(latest.CreatedAt) {
				latest = inv
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (i *invitationStore) Update(ctx context.Context, inv *models.Invitation) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	existing, ok := i.s.invitations[inv.ID]
	if !ok {
		return errors.New("invitation not found")
	}
	existing.Status = inv.Status
	existing.AcceptedAt = inv.AcceptedAt
	return nil
}

func (i *invitationStore) Delete(ctx context.Context, id string) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	delete(i.s.invitations, id)
	return nil
}

func (i *invitationStore) DeleteByBoard(ctx context.Context, boardID string) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	for id, inv := range i.s.invitations {
		if inv.BoardID == boardID {
			delete(i.s.invitations, id)
		}
	}
	return nil
}

func (i *invitationStore) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	n := 0
	for _, inv := range i.s.invitations {
		if inv.Status == models.InvitationStatusPending && inv.ExpiresAt.Before(now) {
			inv.Status = models.InvitationStatusExpired
			n++
		}
	}
	return n, nil
}

// auditLogStore implements store.AuditLogStore.
type auditLogStore struct{ s *MemoryStore }

func (a *auditLogStore) Create(ctx context.Context, entry *models.AuditLog) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	clone := *entry
	a.s.auditLogs = append(a.s.auditLogs, &clone)
	return nil
}

func (a *auditLogStore) ListByBoard(ctx context.Context, boardID string, limit int) ([]*models.AuditLog, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	var entries []*models.AuditLog
	for _, e := range a.s.auditLogs {
		if e.BoardID == boardID {
			clone := *e
			entries = append(entries, &clone)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (a *auditLogStore) DeleteByBoard(ctx context.Context, boardID string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	kept := a.s.auditLogs[:0]
	for _, e := range a.s.auditLogs {
		if e.BoardID != boardID {
			kept = append(kept, e)
		}
	}
	a.s.auditLogs = kept
	return nil
}
