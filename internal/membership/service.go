// internal/membership/service.go
package membership

import (
	"context"
)

// Service defines the interface for the membership service.
type Service interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]*Profile, error)
	ChangeRole(ctx context.Context, actor *Profile, userID string, role Role) (*Profile, error)
}

// Store is the backend surface the membership service reads and writes.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]*Profile, error)
	UpdateRole(ctx context.Context, userID string, role Role) error
}
