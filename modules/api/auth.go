package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/pulse/handler"
	"github.com/dmitrymomot/pulse/pkg/hub"
)

var identityKey = handler.NewContextKey("identity")

// Authenticate requires an Authorization: Bearer token accepted by auth and
// stores the resulting identity in the request context.
func Authenticate(auth hub.Authenticator, errs handler.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				errs(w, r, hub.ErrMissingToken)
				return
			}
			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				errs(w, r, errors.Join(hub.ErrUnauthorized, err))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func WithIdentity(ctx context.Context, id hub.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity set by Authenticate.
func IdentityFrom(ctx context.Context) (hub.Identity, bool) {
	return handler.ContextValueOK[hub.Identity](ctx, identityKey)
}
