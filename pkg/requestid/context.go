package requestid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithContext tags ctx with id. An empty id leaves ctx as it is.
func WithContext(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the id set by WithContext, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure returns ctx with its id, tagging it with a new UUID when it has
// none. Work started outside an HTTP request, such as relayed change events,
// uses it so that everything it enqueues shares one id.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithContext(ctx, id), id
}
