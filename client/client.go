// Package client provides a Go client for the KanbanFlow API: a typed REST
// client, a websocket client for the realtime channel, pure board-state
// reducers, and a drag-and-drop move planner.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kanbanflow/kanbanflow/pkg/models"
	"github.com/kanbanflow/kanbanflow/pkg/ws"
)

// Client is an API client for the KanbanFlow server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient creates a new API client. baseURL is the server root without the
// /api prefix, e.g. "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithToken returns a new client with the specified auth token.
func (c *Client) WithToken(token string) *Client {
	return &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		token:      token,
	}
}

// Token returns the client's current auth token.
func (c *Client) Token() string {
	return c.token
}

// APIError is a structured error response from the server.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d %s): %s", e.Status, e.Code, e.Message)
}

// Session is the result of signup and login.
type Session struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

// Signup registers a new account and returns a session.
func (c *Client) Signup(ctx context.Context, name, email, password string) (*Session, error) {
	var session Session
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Login authenticates an existing account and returns a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	var resp struct {
		User models.Profile `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// ListBoards fetches all boards the user owns or collaborates on.
func (c *Client) ListBoards(ctx context.Context) ([]*models.Board, error) {
	var resp struct {
		Boards []*models.Board `json:"boards"`
	}
	err := c.do(ctx, http.MethodGet, "/api/boards", nil, &resp)
	return resp.Boards, err
}

// GetBoard fetches a single board with lists, cards, and comments.
func (c *Client) GetBoard(ctx context.Context, boardID string) (*models.Board, error) {
	var resp struct {
		Board *models.Board `json:"board"`
	}
	err := c.do(ctx, http.MethodGet, "/api/boards/"+boardID, nil, &resp)
	return resp.Board, err
}

// CreateBoardRequest holds the fields for a new board.
type CreateBoardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// CreateBoard creates a new board owned by the authenticated user.
func (c *Client) CreateBoard(ctx context.Context, req CreateBoardRequest) (*models.Board, error) {
	var resp struct {
		Board *models.Board `json:"board"`
	}
	err := c.do(ctx, http.MethodPost, "/api/boards", req, &resp)
	return resp.Board, err
}

// UpdateBoardRequest patches board settings. Nil fields are left unchanged.
type UpdateBoardRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// UpdateBoard changes a board's settings. Owner only.
func (c *Client) UpdateBoard(ctx context.Context, boardID string, req UpdateBoardRequest) (*models.Board, error) {
	var resp struct {
		Board *models.Board `json:"board"`
	}
	err := c.do(ctx, http.MethodPut, "/api/boards/"+boardID, req, &resp)
	return resp.Board, err
}

// DeleteBoard removes a board and everything under it. Owner only.
func (c *Client) DeleteBoard(ctx context.Context, boardID string) error {
	return c.do(ctx, http.MethodDelete, "/api/boards/"+boardID, nil, nil)
}

// BoardActivity fetches the most recent audit entries for a board.
func (c *Client) BoardActivity(ctx context.Context, boardID string) ([]*models.AuditLog, error) {
	var resp struct {
		Activity []*models.AuditLog `json:"activity"`
	}
	err := c.do(ctx, http.MethodGet, "/api/boards/"+boardID+"/activity", nil, &resp)
	return resp.Activity, err
}

// CreateList adds a list at the end of a board.
func (c *Client) CreateList(ctx context.Context, boardID, title string) (*models.List, error) {
	var resp struct {
		List *models.List `json:"list"`
	}
	body := map[string]string{"title": title}
	err := c.do(ctx, http.MethodPost, "/api/boards/"+boardID+"/lists", body, &resp)
	return resp.List, err
}

// UpdateListRequest patches list fields. Nil fields are left unchanged.
type UpdateListRequest struct {
	Title    *string `json:"title,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// UpdateList renames or repositions a list.
func (c *Client) UpdateList(ctx context.Context, listID string, req UpdateListRequest) (*models.List, error) {
	var resp struct {
		List *models.List `json:"list"`
	}
	err := c.do(ctx, http.MethodPut, "/api/boards/lists/"+listID, req, &resp)
	return resp.List, err
}

// DeleteList removes a list with its cards and their comments.
func (c *Client) DeleteList(ctx context.Context, listID string) error {
	return c.do(ctx, http.MethodDelete, "/api/boards/lists/"+listID, nil, nil)
}

// CreateCardRequest holds the fields for a new card.
type CreateCardRequest struct {
	ListID      string         `json:"listId"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Labels      []models.Label `json:"labels,omitempty"`
	AssigneeID  string         `json:"assigneeId,omitempty"`
	DueDate     *time.Time     `json:"dueDate,omitempty"`
}

// CreateCard adds a card at the end of a list.
func (c *Client) CreateCard(ctx context.Context, boardID string, req CreateCardRequest) (*models.Card, error) {
	var resp struct {
		Card *models.Card `json:"card"`
	}
	err := c.do(ctx, http.MethodPost, "/api/boards/"+boardID+"/cards", req, &resp)
	return resp.Card, err
}

// UpdateCardRequest patches card fields. Nil fields are left unchanged; an
// explicit null DueDate clears the due date.
type UpdateCardRequest struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Labels      *[]models.Label `json:"labels,omitempty"`
	AssigneeID  *string         `json:"assigneeId,omitempty"`
	DueDate     json.RawMessage `json:"dueDate,omitempty"`
}

// UpdateCard patches a card's fields.
func (c *Client) UpdateCard(ctx context.Context, cardID string, req UpdateCardRequest) (*models.Card, error) {
	var resp struct {
		Card *models.Card `json:"card"`
	}
	err := c.do(ctx, http.MethodPut, "/api/boards/cards/"+cardID, req, &resp)
	return resp.Card, err
}

// MoveResult is the server's answer to a card move: the moved card plus the
// lists whose orderings changed.
type MoveResult struct {
	Card       *models.Card `json:"card"`
	FromListID string       `json:"fromListId"`
	ToListID   string       `json:"toListId"`
}

// MoveCard places a card into a list at a position. The server renumbers both
// affected lists; repeating the same move is a no-op.
func (c *Client) MoveCard(ctx context.Context, cardID, listID string, position int) (*MoveResult, error) {
	var result MoveResult
	body := map[string]any{"listId": listID, "position": position}
	if err := c.do(ctx, http.MethodPut, "/api/boards/cards/"+cardID+"/move", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteCard removes a card and its comments.
func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	return c.do(ctx, http.MethodDelete, "/api/boards/cards/"+cardID, nil, nil)
}

// CreateComment adds a comment to a card.
func (c *Client) CreateComment(ctx context.Context, cardID, content string) (*models.Comment, error) {
	var resp struct {
		Comment *models.Comment `json:"comment"`
	}
	body := map[string]string{"content": content}
	err := c.do(ctx, http.MethodPost, "/api/boards/cards/"+cardID+"/comments", body, &resp)
	return resp.Comment, err
}

// Invite sends a board invitation to an email address. Owner only.
func (c *Client) Invite(ctx context.Context, boardID, email string) (*models.Invitation, error) {
	var resp struct {
		Invitation *models.Invitation `json:"invitation"`
	}
	body := map[string]string{"email": email}
	err := c.do(ctx, http.MethodPost, "/api/boards/"+boardID+"/invite", body, &resp)
	return resp.Invitation, err
}

// InvitationDetails is an invitation with display context for the accept
// screen.
type InvitationDetails struct {
	Invitation *models.Invitation `json:"invitation"`
	BoardTitle string             `json:"boardTitle"`
	InvitedBy  string             `json:"invitedBy"`
}

// GetInvitationDetails fetches an invitation by token. No auth required.
func (c *Client) GetInvitationDetails(ctx context.Context, token string) (*InvitationDetails, error) {
	var details InvitationDetails
	if err := c.do(ctx, http.MethodGet, "/api/boards/invitation/"+token+"/details", nil, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// AcceptInvitation joins the invitation's board and returns it.
func (c *Client) AcceptInvitation(ctx context.Context, token string) (*models.Board, error) {
	var resp struct {
		Board *models.Board `json:"board"`
	}
	err := c.do(ctx, http.MethodPost, "/api/boards/invitation/"+token+"/accept", nil, &resp)
	return resp.Board, err
}

// RejectInvitation declines and deletes a pending invitation.
func (c *Client) RejectInvitation(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/boards/invitation/"+token+"/reject", nil, nil)
}

// do performs a request and unmarshals the response. Non-2xx responses are
// returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "INTERNAL_ERROR"
			apiErr.Message = string(raw)
		}
		return apiErr
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Events re-exported from pkg/ws so socket consumers do not need to import
// it directly.
const (
	EventJoinBoard     = ws.EventJoinBoard
	EventLeaveBoard    = ws.EventLeaveBoard
	EventBoardUpdate   = ws.EventBoardUpdate
	EventListCreate    = ws.EventListCreate
	EventListUpdate    = ws.EventListUpdate
	EventListDelete    = ws.EventListDelete
	EventCardCreate    = ws.EventCardCreate
	EventCardUpdate    = ws.EventCardUpdate
	EventCardDelete    = ws.EventCardDelete
	EventCardMove      = ws.EventCardMove
	EventCommentCreate = ws.EventCommentCreate
	EventUserJoin      = ws.EventUserJoin
	EventUserLeave     = ws.EventUserLeave
	EventError         = ws.EventError
)
