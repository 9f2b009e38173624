package auth

import (
	"context"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
)

type contextKey string

const principalContextKey contextKey = "github.com/Bassamalsaqqa/delivery-app-backend/internal/auth/principal"

// WithPrincipal stores the authenticated principal on the context.
func WithPrincipal(ctx context.Context, principal *domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the principal stored by the middleware.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	principal, ok := ctx.Value(principalContextKey).(*domain.Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}
