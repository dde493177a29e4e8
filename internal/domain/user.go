package domain

import "errors"

// Role represents a user's access level
type Role string

const (
	// RoleAdmin has full access to all operations
	RoleAdmin Role = "admin"

	// RoleOperator can view balances and record payments
	RoleOperator Role = "operator"

	// RoleViewer can only view balances, no mutations
	RoleViewer Role = "viewer"
)

// Valid roles
var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleOperator: true,
	RoleViewer:   true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// Resource is a protected part of the API.
type Resource string

const (
	ResourceOutstanding Resource = "outstanding"
	ResourceLedger      Resource = "ledger"
	ResourceBreakdown   Resource = "breakdown"
	ResourcePayment     Resource = "payment"
)

// Action is what a caller wants to do with a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
)

// HasPermission reports whether role may perform action on resource.
func HasPermission(role Role, resource Resource, action Action) bool {
	if !role.IsValid() {
		return false
	}
	switch action {
	case ActionRead:
		return true
	case ActionCreate:
		return resource == ResourcePayment && (role == RoleAdmin || role == RoleOperator)
	}
	return false
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)

// User is the authenticated caller of the API.
type User struct {
	ID   string
	Role Role
}

// Can reports whether the user may perform action on resource.
func (u *User) Can(resource Resource, action Action) bool {
	return u != nil && HasPermission(u.Role, resource, action)
}
