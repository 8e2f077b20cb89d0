package model

import "github.com/google/uuid"

// Roles ordered by privilege. Managers review requests and manage records;
// editors submit requests; viewers only run pre-check queries.
const (
	RoleManager = "manager"
	RoleEditor  = "editor"
	RoleViewer  = "viewer"
)

// Identity is the resolved caller tuple handed to every mutating core call.
// It is built by the auth middleware from verified token claims and passed
// explicitly — core services never read it from ambient state. The ID is an
// opaque reference and may be nil for identities imported from older data.
type Identity struct {
	ID          *uuid.UUID `json:"id"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	HotelName   string     `json:"hotel_name"`
	Department  string     `json:"department"`
}

// CanReview reports whether this identity may approve or reject requests.
func (i Identity) CanReview() bool {
	return i.Role == RoleManager
}

// CanSubmit reports whether this identity may submit pre-check requests.
func (i Identity) CanSubmit() bool {
	return i.Role == RoleManager || i.Role == RoleEditor
}
