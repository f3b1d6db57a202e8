// internal/membership/middleware.go
package membership

import (
	"context"
	"librarydesk/internal/auth"
	"librarydesk/internal/httpx"
	"net/http"

	"go.uber.org/zap"
)

type profileKey struct{}

// WithProfile stores p in ctx.
func WithProfile(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// ProfileFrom returns the caller's profile loaded by LoadProfile.
func ProfileFrom(ctx context.Context) (*Profile, bool) {
	p, ok := ctx.Value(profileKey{}).(*Profile)
	return p, ok && p != nil
}

// LoadProfile resolves the authenticated identity to a profile. It must run
// after auth.Verifier.Middleware.
func LoadProfile(svc Service, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFrom(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
				return
			}
			profile, err := svc.GetProfile(r.Context(), id.UserID)
			if err != nil {
				logger.Error("failed to load profile", zap.String("user_id", id.UserID), zap.Error(err))
				httpx.Error(w, http.StatusBadGateway, "", "could not load your profile")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), profile)))
		})
	}
}

// RequireCapability rejects callers whose role lacks c.
func RequireCapability(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profile, ok := ProfileFrom(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, "", "unauthorized")
				return
			}
			if !profile.Role.Can(c) {
				httpx.Error(w, http.StatusForbidden, "", ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
