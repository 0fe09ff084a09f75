package models

import "time"

// Role represents a user's role on a board.
type Role string

const (
	// RoleOwner is the board creator. Only owners may invite, delete, or
	// change board settings.
	RoleOwner Role = "owner"
	// RoleCollaborator is an invited member with full edit access.
	RoleCollaborator Role = "collaborator"
)

// Collaborator is a membership entry on a board. The owner is never listed
// among the collaborators.
type Collaborator struct {
	UserID   string    `json:"user_id"`
	User     *Profile  `json:"user,omitempty"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Board is the top-level container owning lists.
type Board struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Color         string         `json:"color"`
	OwnerID       string         `json:"owner_id"`
	Owner         *Profile       `json:"owner,omitempty"`
	Collaborators []Collaborator `json:"collaborators"`
	Lists         []*List        `json:"lists"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// HasAccess reports whether the user may read or mutate entities under the
// board: the owner or any collaborator.
func (b *Board) HasAccess(userID string) bool {
	if b.OwnerID == userID {
		return true
	}
	for _, c := range b.Collaborators {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// IsOwner reports whether the user owns the board.
func (b *Board) IsOwner(userID string) bool {
	return b.OwnerID == userID
}

// IsCollaborator reports whether the user is listed as a collaborator.
func (b *Board) IsCollaborator(userID string) bool {
	for _, c := range b.Collaborators {
		if c.UserID == userID {
			return true
		}
	}
	return false
}
