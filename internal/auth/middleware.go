package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cashcal/internal/log"
)

var ErrMissingToken = errors.New("missing bearer token")

type userKey struct{}

// WithUserID returns ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the authenticated user id stored in ctx.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Require rejects requests without a valid bearer token. onError writes the
// response for ErrMissingToken and ErrInvalidToken failures.
func Require(tokens *Tokens, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				onError(w, r, ErrMissingToken)
				return
			}
			userID, err := tokens.Verify(raw)
			if err != nil {
				log.FromContext(r.Context()).DebugContext(r.Context(), "Rejected session token", log.FieldError, err)
				onError(w, r, err)
				return
			}
			ctx := log.WithUser(WithUserID(r.Context(), userID), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
