package models

import "time"

// Label is a colored tag attached to a card.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Card is a work item within a list. BoardID is denormalized from the parent
// list so access checks do not need a join.
type Card struct {
	ID          string     `json:"id"`
	ListID      string     `json:"list_id"`
	BoardID     string     `json:"board_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Position    int        `json:"position"`
	Labels      []Label    `json:"labels"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	Assignee    *Profile   `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedByID string     `json:"created_by_id"`
	CreatedBy   *Profile   `json:"created_by,omitempty"`
	Comments    []*Comment `json:"comments"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
