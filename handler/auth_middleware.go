package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"smad-api/common"
	"smad-api/model"
	"smad-api/service"
)

// TokenVerifier resolves a raw access token to the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*model.Identity, error)
}

// FailureRecorder counts rejected authentication attempts by error code.
type FailureRecorder interface {
	AuthFailure(code string)
}

type identityKey struct{}

// IdentityFromContext returns the identity set by Authenticate, if any.
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*model.Identity)
	return identity, ok && identity != nil
}

func contextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// bearerToken extracts the token of an "Authorization: Bearer <jwt>" header.
// The scheme is case-insensitive; anything else yields "".
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate verifies the bearer token and attaches the identity of the
// caller to the request context. Failures are answered with the 401 family.
func Authenticate(verifier TokenVerifier, recorder FailureRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ErrorHandlingMiddleware(func(w http.ResponseWriter, r *http.Request) error {
			identity, err := verifier.Verify(r.Context(), bearerToken(r))
			if err != nil {
				recordFailure(recorder, err)
				return err
			}
			next.ServeHTTP(w, r.WithContext(contextWithIdentity(r.Context(), identity)))
			return nil
		})
	}
}

// RequireRole lets the request through when the authenticated caller holds
// one of roles. It must run after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ErrorHandlingMiddleware(func(w http.ResponseWriter, r *http.Request) error {
			identity, _ := IdentityFromContext(r.Context())
			if err := service.CheckRole(identity, roles); err != nil {
				return err
			}
			next.ServeHTTP(w, r)
			return nil
		})
	}
}

func recordFailure(recorder FailureRecorder, err error) {
	if recorder == nil {
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.StatusCode == http.StatusUnauthorized {
		recorder.AuthFailure(appErr.Code)
	}
}
