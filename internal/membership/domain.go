// internal/membership/domain.go
package membership

import (
	"strings"
	"time"
)

// Role is the closed set of roles a library user can hold.
type Role string

const (
	RoleStudent   Role = "student"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a stored role name onto a Role. Unknown names map to the
// empty role, which has no capabilities.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleLibrarian, RoleAdmin:
		return r
	default:
		return ""
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return ParseRole(string(r)) != ""
}

// Capability is something a role may be allowed to do.
type Capability string

const (
	CapBorrowBooks         Capability = "borrow_books"
	CapUseAssistant        Capability = "use_assistant"
	CapManageCatalog       Capability = "manage_catalog"
	CapViewAllTransactions Capability = "view_all_transactions"
	CapManageUsers         Capability = "manage_users"
)

var capabilities = map[Role][]Capability{
	RoleStudent: {
		CapBorrowBooks,
		CapUseAssistant,
	},
	RoleLibrarian: {
		CapBorrowBooks,
		CapUseAssistant,
		CapManageCatalog,
		CapViewAllTransactions,
	},
	RoleAdmin: {
		CapBorrowBooks,
		CapUseAssistant,
		CapManageCatalog,
		CapViewAllTransactions,
		CapManageUsers,
	},
}

// Can is the single capability check used for every role-gated surface.
func (r Role) Can(c Capability) bool {
	for _, have := range capabilities[r] {
		if have == c {
			return true
		}
	}
	return false
}

// Capabilities lists what the role may do. The result is never nil.
func (r Role) Capabilities() []Capability {
	return append([]Capability{}, capabilities[r]...)
}

// Profile represents a library user as stored by the backend.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
