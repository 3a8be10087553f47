// Package user defines operator accounts and their session visibility rules.
// Operators connect over the observer channel; what each operator can see is
// decided here so broadcast filtering and snapshot assembly stay in agreement.
package user

import "time"

// Operator represents an authenticated observer account.
type Operator struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	CredentialHash string    `json:"-"` // Never serialize credential hash
	CreatedAt      time.Time `json:"createdAt"`
	LastLogin      time.Time `json:"lastLogin,omitempty"`
}

// Visibility describes which sessions an observer may see. The administrator
// gets full access; a regular operator is restricted to sessions assigned to
// its own account.
type Visibility struct {
	fullAccess bool
	ownerID    string
}

// FullAccess grants visibility over every session.
func FullAccess() Visibility {
	return Visibility{fullAccess: true}
}

// RestrictedTo limits visibility to sessions assigned to the given operator.
func RestrictedTo(operatorID string) Visibility {
	return Visibility{ownerID: operatorID}
}

// IsFullAccess reports whether this visibility covers all sessions.
func (v Visibility) IsFullAccess() bool {
	return v.fullAccess
}

// OwnerID returns the operator the visibility is restricted to, or empty for
// full access.
func (v Visibility) OwnerID() string {
	return v.ownerID
}

// CanSee reports whether a session with the given assignment is visible.
func (v Visibility) CanSee(assignedOperator string) bool {
	if v.fullAccess {
		return true
	}
	return assignedOperator != "" && assignedOperator == v.ownerID
}
