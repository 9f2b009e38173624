package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
	"github.com/Bassamalsaqqa/delivery-app-backend/pkg/logger"
)

const defaultLoadTimeout = 5 * time.Second

// Authenticator verifies bearer tokens and loads the caller's profile.
type Authenticator struct {
	verifier *TokenVerifier
	users    repository.UserRepository
	timeout  time.Duration
}

func NewAuthenticator(verifier *TokenVerifier, users repository.UserRepository) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		users:    users,
		timeout:  defaultLoadTimeout,
	}
}

// RequireAuth rejects requests without a valid bearer token for a known user.
// The role on the principal is the stored one; the token's role claim is
// not trusted for authorisation.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
			return
		}

		claims, err := a.verifier.Verify(tokenStr)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				respondAuthError(w, http.StatusUnauthorized, "token_expired", "token has expired")
				return
			}
			respondAuthError(w, http.StatusUnauthorized, "invalid_token", "token is invalid")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
		defer cancel()

		principal, err := a.users.GetUser(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				respondAuthError(w, http.StatusUnauthorized, "unknown_user", "user no longer exists")
				return
			}
			logger.FromContext(r.Context()).Error("failed to load principal",
				zap.String("user_id", claims.Subject),
				zap.Error(err),
			)
			respondAuthError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}

		reqCtx := WithPrincipal(r.Context(), principal)
		reqCtx = logger.WithContext(reqCtx, logger.FromContext(r.Context()).With(zap.String("user_id", principal.ID)))
		next.ServeHTTP(w, r.WithContext(reqCtx))
	})
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
			return
		}
		if !principal.IsAdmin() {
			respondAuthError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
