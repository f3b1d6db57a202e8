// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrForbidden   = errors.New("forbidden: insufficient role")
	ErrInvalidRole = errors.New("invalid role")
)

// service implements the Service interface.
type service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new membership service instance.
func NewService(store Store, logger *zap.Logger) Service {
	return &service{
		store:  store,
		logger: logger,
	}
}

// GetProfile retrieves a user's profile. Unknown stored roles are
// normalised to the empty role.
func (s *service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if !profile.Role.Valid() {
		s.logger.Warn("profile has unknown role",
			zap.String("user_id", userID),
			zap.String("role", string(profile.Role)))
		profile.Role = ""
	}
	return profile, nil
}

// ListProfiles returns every profile.
func (s *service) ListProfiles(ctx context.Context) ([]*Profile, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	for _, p := range profiles {
		p.Role = ParseRole(string(p.Role))
	}
	return profiles, nil
}

// ChangeRole updates a user's role on behalf of actor.
func (s *service) ChangeRole(ctx context.Context, actor *Profile, userID string, role Role) (*Profile, error) {
	if actor == nil || !actor.Role.Can(CapManageUsers) {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if actor.ID == userID && role != RoleAdmin {
		return nil, fmt.Errorf("%w: admins cannot demote themselves", ErrForbidden)
	}

	if err := s.store.UpdateRole(ctx, userID, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	s.logger.Info("role changed",
		zap.String("actor_id", actor.ID),
		zap.String("user_id", userID),
		zap.String("role", string(role)))

	return s.GetProfile(ctx, userID)
}
