package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kanbanflow/kanbanflow/client"
	"github.com/kanbanflow/kanbanflow/internal/auth"
	"github.com/kanbanflow/kanbanflow/internal/email"
	"github.com/kanbanflow/kanbanflow/internal/store/memory"
	"github.com/kanbanflow/kanbanflow/pkg/config"
	"github.com/kanbanflow/kanbanflow/pkg/models"
)

func newTestServer(t *testing.T) (*Server, *memory.MemoryStore) {
	t.Helper()
	cfg := config.LoadWithDefaults()
	st := memory.NewMemoryStore()
	authSvc := auth.NewService(&auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}, nil)
	mail := email.NewService(email.Config{}, nil)
	return NewServer(cfg, st, authSvc, nil, mail, nil, nil), st
}

// request performs a JSON request against the test server's router.
func request(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Code string `json:"code"`
	}
	decode(t, rec, &resp)
	return resp.Code
}

// signup registers a user and returns its token and profile.
func signup(t *testing.T, s *Server, name, emailAddr string) (string, models.Profile) {
	t.Helper()
	rec := request(t, s, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": name, "email": emailAddr, "password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string         `json:"token"`
		User  models.Profile `json:"user"`
	}
	decode(t, rec, &resp)
	return resp.Token, resp.User
}

func createBoard(t *testing.T, s *Server, token, title string) *models.Board {
	t.Helper()
	rec := request(t, s, http.MethodPost, "/api/boards", token, map[string]string{"title": title})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create board returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Board *models.Board `json:"board"`
	}
	decode(t, rec, &resp)
	return resp.Board
}

func createList(t *testing.T, s *Server, token, boardID, title string) *models.List {
	t.Helper()
	rec := request(t, s, http.MethodPost, "/api/boards/"+boardID+"/lists", token, map[string]string{"title": title})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create list returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		List *models.List `json:"list"`
	}
	decode(t, rec, &resp)
	return resp.List
}

func createCard(t *testing.T, s *Server, token, boardID, listID, title string) *models.Card {
	t.Helper()
	rec := request(t, s, http.MethodPost, "/api/boards/"+boardID+"/cards", token, map[string]string{
		"listId": listID, "title": title,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create card returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Card *models.Card `json:"card"`
	}
	decode(t, rec, &resp)
	return resp.Card
}

func TestSignupAndLogin(t *testing.T) {
	s, _ := newTestServer(t)

	token, user := signup(t, s, "Ada", "ada@example.com")
	if token == "" || user.ID == "" {
		t.Fatal("signup returned empty token or user")
	}

	// Duplicate email
	rec := request(t, s, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Ada Again", "email": "ada@example.com", "password": "password123",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate signup returned %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "DUPLICATE" {
		t.Errorf("duplicate signup code %q, want DUPLICATE", code)
	}

	// Login
	rec = request(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	// Wrong password
	rec = request(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login returned %d, want 401", rec.Code)
	}

	// Me
	rec = request(t, s, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me returned %d", rec.Code)
	}
	var me struct {
		User models.Profile `json:"user"`
	}
	decode(t, rec, &me)
	if me.User.ID != user.ID {
		t.Errorf("me returned user %q, want %q", me.User.ID, user.ID)
	}

	// Missing token
	rec = request(t, s, http.MethodGet, "/api/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated me returned %d, want 401", rec.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing name", map[string]string{"email": "a@b.com", "password": "password123"}},
		{"bad email", map[string]string{"name": "A", "email": "not-an-email", "password": "password123"}},
		{"short password", map[string]string{"name": "A", "email": "a@b.com", "password": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(t, s, http.MethodPost, "/api/auth/signup", "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("returned %d, want 400", rec.Code)
			}
			if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
				t.Errorf("code %q, want VALIDATION_ERROR", code)
			}
		})
	}
}

func TestBoardAccessControl(t *testing.T) {
	s, _ := newTestServer(t)

	ownerToken, _ := signup(t, s, "Owner", "owner@example.com")
	strangerToken, _ := signup(t, s, "Stranger", "stranger@example.com")

	board := createBoard(t, s, ownerToken, "Private Board")

	// Strangers cannot read the board
	rec := request(t, s, http.MethodGet, "/api/boards/"+board.ID, strangerToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger get returned %d, want 403", rec.Code)
	}

	// Nor mutate under it
	rec = request(t, s, http.MethodPost, "/api/boards/"+board.ID+"/lists", strangerToken, map[string]string{"title": "Sneaky"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger list create returned %d, want 403", rec.Code)
	}

	// The stranger's board listing stays empty
	rec = request(t, s, http.MethodGet, "/api/boards", strangerToken, nil)
	var listing struct {
		Boards []*models.Board `json:"boards"`
	}
	decode(t, rec, &listing)
	if len(listing.Boards) != 0 {
		t.Errorf("stranger sees %d boards, want 0", len(listing.Boards))
	}

	// Malformed ids are rejected before any lookup
	rec = request(t, s, http.MethodGet, "/api/boards/not-a-uuid", ownerToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id returned %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_ID" {
		t.Errorf("bad id code %q, want INVALID_ID", code)
	}
}

func TestBoardUpdateOwnerOnly(t *testing.T) {
	s, st := newTestServer(t)

	ownerToken, _ := signup(t, s, "Owner", "owner@example.com")
	collabToken, collab := signup(t, s, "Collab", "collab@example.com")

	board := createBoard(t, s, ownerToken, "Shared Board")
	if err := st.Boards().AddCollaborator(context.Background(), board.ID, collab.ID, board.CreatedAt); err != nil {
		t.Fatalf("adding collaborator: %v", err)
	}

	// Collaborators may read
	rec := request(t, s, http.MethodGet, "/api/boards/"+board.ID, collabToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("collaborator get returned %d, want 200", rec.Code)
	}

	// But not change settings
	rec = request(t, s, http.MethodPut, "/api/boards/"+board.ID, collabToken, map[string]string{"title": "Hijacked"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("collaborator update returned %d, want 403", rec.Code)
	}

	// Or delete
	rec = request(t, s, http.MethodDelete, "/api/boards/"+board.ID, collabToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("collaborator delete returned %d, want 403", rec.Code)
	}

	// The owner can do both
	rec = request(t, s, http.MethodPut, "/api/boards/"+board.ID, ownerToken, map[string]string{"title": "Renamed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner update returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Board *models.Board `json:"board"`
	}
	decode(t, rec, &resp)
	if resp.Board.Title != "Renamed" {
		t.Errorf("title %q, want Renamed", resp.Board.Title)
	}
}

func TestBoardDeleteCascade(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()

	token, _ := signup(t, s, "Owner", "owner@example.com")
	board := createBoard(t, s, token, "Doomed")
	list := createList(t, s, token, board.ID, "Todo")
	card := createCard(t, s, token, board.ID, list.ID, "Task")

	rec := request(t, s, http.MethodPost, "/api/boards/cards/"+card.ID+"/comments", token, map[string]string{"content": "note"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment create returned %d", rec.Code)
	}

	rec = request(t, s, http.MethodDelete, "/api/boards/"+board.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("board delete returned %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != 0 {
		t.Errorf("board delete wrote a body: %s", rec.Body.String())
	}

	rec = request(t, s, http.MethodGet, "/api/boards/"+board.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted board get returned %d, want 404", rec.Code)
	}

	if got, _ := st.Lists().Get(ctx, list.ID); got != nil {
		t.Error("list survived board delete")
	}
	if got, _ := st.Cards().Get(ctx, card.ID); got != nil {
		t.Error("card survived board delete")
	}
	if comments, _ := st.Comments().ListByCard(ctx, card.ID); len(comments) != 0 {
		t.Errorf("%d comments survived board delete", len(comments))
	}
	if entries, _ := st.AuditLogs().ListByBoard(ctx, board.ID, 50); len(entries) != 0 {
		t.Errorf("%d audit entries survived board delete", len(entries))
	}
}

func TestCardMoveIsIdempotent(t *testing.T) {
	s, _ := newTestServer(t)

	token, _ := signup(t, s, "Owner", "owner@example.com")
	board := createBoard(t, s, token, "Sprint")
	todo := createList(t, s, token, board.ID, "Todo")
	doing := createList(t, s, token, board.ID, "Doing")

	var todoCards []*models.Card
	for i := 0; i < 3; i++ {
		todoCards = append(todoCards, createCard(t, s, token, board.ID, todo.ID, fmt.Sprintf("task-%d", i)))
	}
	doingCard := createCard(t, s, token, board.ID, doing.ID, "busy")

	move := func() *httptest.ResponseRecorder {
		return request(t, s, http.MethodPut, "/api/boards/cards/"+todoCards[2].ID+"/move", token, map[string]any{
			"listId": doing.ID, "position": 0,
		})
	}

	rec := move()
	if rec.Code != http.StatusOK {
		t.Fatalf("move returned %d: %s", rec.Code, rec.Body.String())
	}
	var moveResp struct {
		Card       *models.Card `json:"card"`
		FromListID string       `json:"fromListId"`
		ToListID   string       `json:"toListId"`
	}
	decode(t, rec, &moveResp)
	if moveResp.FromListID != todo.ID || moveResp.ToListID != doing.ID {
		t.Errorf("move reported %s -> %s, want %s -> %s", moveResp.FromListID, moveResp.ToListID, todo.ID, doing.ID)
	}

	order := func() ([]string, []string) {
		rec := request(t, s, http.MethodGet, "/api/boards/"+board.ID, token, nil)
		var resp struct {
			Board *models.Board `json:"board"`
		}
		decode(t, rec, &resp)
		var todoIDs, doingIDs []string
		for _, l := range resp.Board.Lists {
			for _, c := range l.Cards {
				if l.ID == todo.ID {
					todoIDs = append(todoIDs, c.ID)
				} else {
					doingIDs = append(doingIDs, c.ID)
				}
			}
		}
		return todoIDs, doingIDs
	}

	todoAfter, doingAfter := order()
	wantTodo := []string{todoCards[0].ID, todoCards[1].ID}
	wantDoing := []string{todoCards[2].ID, doingCard.ID}
	assertOrder(t, "todo", todoAfter, wantTodo)
	assertOrder(t, "doing", doingAfter, wantDoing)

	// Repeating the same move changes nothing
	rec = move()
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat move returned %d", rec.Code)
	}
	todoAgain, doingAgain := order()
	assertOrder(t, "todo after repeat", todoAgain, wantTodo)
	assertOrder(t, "doing after repeat", doingAgain, wantDoing)
}

func TestCardMoveWithinList(t *testing.T) {
	s, _ := newTestServer(t)

	token, _ := signup(t, s, "Owner", "owner@example.com")
	board := createBoard(t, s, token, "Sprint")
	list := createList(t, s, token, board.ID, "Todo")

	var cards []*models.Card
	for i := 0; i < 3; i++ {
		cards = append(cards, createCard(t, s, token, board.ID, list.ID, fmt.Sprintf("task-%d", i)))
	}

	fetch := func() *models.Board {
		rec := request(t, s, http.MethodGet, "/api/boards/"+board.ID, token, nil)
		var resp struct {
			Board *models.Board `json:"board"`
		}
		decode(t, rec, &resp)
		return resp.Board
	}
	ids := func(b *models.Board) []string {
		var out []string
		for _, l := range b.Lists {
			if l.ID == list.ID {
				for _, c := range l.Cards {
					out = append(out, c.ID)
				}
			}
		}
		return out
	}

	// The reducers predict the outcome of dragging the first card to the end
	predicted, ok := client.ApplyMove(client.NewState(fetch()), cards[0].ID, list.ID, 2)
	if !ok {
		t.Fatal("reducer did not find the card")
	}
	want := ids(predicted.Board)
	assertOrder(t, "predicted", want, []string{cards[1].ID, cards[2].ID, cards[0].ID})

	move := func() *httptest.ResponseRecorder {
		return request(t, s, http.MethodPut, "/api/boards/cards/"+cards[0].ID+"/move", token, map[string]any{
			"listId": list.ID, "position": 2,
		})
	}
	if rec := move(); rec.Code != http.StatusOK {
		t.Fatalf("move returned %d: %s", rec.Code, rec.Body.String())
	}

	// The persisted order matches what every connected client computed
	assertOrder(t, "after move", ids(fetch()), want)

	if rec := move(); rec.Code != http.StatusOK {
		t.Fatalf("repeat move returned %d", rec.Code)
	}
	assertOrder(t, "after repeat", ids(fetch()), want)
}

func assertOrder(t *testing.T, label string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d cards, want %d", label, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: position %d holds %s, want %s", label, i, got[i], want[i])
		}
	}
}

func TestInvitationFlow(t *testing.T) {
	s, _ := newTestServer(t)

	ownerToken, _ := signup(t, s, "Owner", "owner@example.com")
	inviteeToken, _ := signup(t, s, "Invitee", "invitee@example.com")
	board := createBoard(t, s, ownerToken, "Team Board")

	// Only the owner may invite
	rec := request(t, s, http.MethodPost, "/api/boards/"+board.ID+"/invite", inviteeToken, map[string]string{"email": "x@example.com"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-owner invite returned %d, want 403", rec.Code)
	}

	rec = request(t, s, http.MethodPost, "/api/boards/"+board.ID+"/invite", ownerToken, map[string]string{"email": "invitee@example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("invite returned %d: %s", rec.Code, rec.Body.String())
	}
	var invResp struct {
		Invitation *models.Invitation `json:"invitation"`
	}
	decode(t, rec, &invResp)
	token := invResp.Invitation.Token

	// Duplicate pending invitation
	rec = request(t, s, http.MethodPost, "/api/boards/"+board.ID+"/invite", ownerToken, map[string]string{"email": "invitee@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate invite returned %d, want 400", rec.Code)
	}

	// Details are public
	rec = request(t, s, http.MethodGet, "/api/boards/invitation/"+token+"/details", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("details returned %d: %s", rec.Code, rec.Body.String())
	}
	var details struct {
		Invitation *models.Invitation `json:"invitation"`
		BoardTitle string             `json:"boardTitle"`
		InvitedBy  string             `json:"invitedBy"`
	}
	decode(t, rec, &details)
	if details.BoardTitle != "Team Board" || details.InvitedBy != "Owner" {
		t.Errorf("details = %q by %q", details.BoardTitle, details.InvitedBy)
	}

	// The wrong user cannot accept
	wrongToken, _ := signup(t, s, "Wrong", "wrong@example.com")
	rec = request(t, s, http.MethodPost, "/api/boards/invitation/"+token+"/accept", wrongToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("mismatched accept returned %d, want 403", rec.Code)
	}

	// Accept joins the board
	rec = request(t, s, http.MethodPost, "/api/boards/invitation/"+token+"/accept", inviteeToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept returned %d: %s", rec.Code, rec.Body.String())
	}
	var acceptResp struct {
		Board *models.Board `json:"board"`
	}
	decode(t, rec, &acceptResp)
	if len(acceptResp.Board.Collaborators) != 1 {
		t.Fatalf("expected 1 collaborator, got %d", len(acceptResp.Board.Collaborators))
	}

	// Accepting again fails without duplicating membership
	rec = request(t, s, http.MethodPost, "/api/boards/invitation/"+token+"/accept", inviteeToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("repeat accept returned %d, want 400", rec.Code)
	}

	// The invitee now sees the board
	rec = request(t, s, http.MethodGet, "/api/boards", inviteeToken, nil)
	var listing struct {
		Boards []*models.Board `json:"boards"`
	}
	decode(t, rec, &listing)
	if len(listing.Boards) != 1 {
		t.Errorf("invitee sees %d boards, want 1", len(listing.Boards))
	}
}

func TestRejectInvitationFlow(t *testing.T) {
	s, _ := newTestServer(t)

	ownerToken, _ := signup(t, s, "Owner", "owner@example.com")
	inviteeToken, _ := signup(t, s, "Invitee", "invitee@example.com")
	board := createBoard(t, s, ownerToken, "Team Board")

	rec := request(t, s, http.MethodPost, "/api/boards/"+board.ID+"/invite", ownerToken, map[string]string{"email": "invitee@example.com"})
	var invResp struct {
		Invitation *models.Invitation `json:"invitation"`
	}
	decode(t, rec, &invResp)
	token := invResp.Invitation.Token

	rec = request(t, s, http.MethodPost, "/api/boards/invitation/"+token+"/reject", inviteeToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject returned %d: %s", rec.Code, rec.Body.String())
	}

	// The row is gone
	rec = request(t, s, http.MethodGet, "/api/boards/invitation/"+token+"/details", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("details after reject returned %d, want 404", rec.Code)
	}
}

func TestActivityLog(t *testing.T) {
	s, _ := newTestServer(t)

	token, _ := signup(t, s, "Owner", "owner@example.com")
	board := createBoard(t, s, token, "Logged")
	list := createList(t, s, token, board.ID, "Todo")
	createCard(t, s, token, board.ID, list.ID, "Task")

	rec := request(t, s, http.MethodGet, "/api/boards/"+board.ID+"/activity", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity returned %d", rec.Code)
	}
	var resp struct {
		Activity []*models.AuditLog `json:"activity"`
	}
	decode(t, rec, &resp)
	if len(resp.Activity) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(resp.Activity))
	}
	// Newest first
	if resp.Activity[0].Action != models.AuditCardCreated {
		t.Errorf("newest action %q, want %q", resp.Activity[0].Action, models.AuditCardCreated)
	}
}

func TestHealthWithoutDatabase(t *testing.T) {
	s, _ := newTestServer(t)

	rec := request(t, s, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	decode(t, rec, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status %q, want degraded", resp.Status)
	}
}
