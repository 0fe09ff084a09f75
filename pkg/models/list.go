package models

import "time"

// List is an ordered column of cards on a board. Position defines ascending
// display order among lists sharing a board; gaps are permitted.
type List struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	Cards     []*Card   `json:"cards"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
