package handler

import "context"

// ContextKey is a typed context key. Create one per value as a package
// variable.
type ContextKey struct{ name string }

func (c *ContextKey) String() string { return "handler context key " + c.name }

func NewContextKey(name string) *ContextKey { return &ContextKey{name} }

// ContextValue returns the value stored under key, or the zero T.
func ContextValue[T any](ctx context.Context, key any) T {
	v, _ := ctx.Value(key).(T)
	return v
}

// ContextValueOK distinguishes a missing key from a stored zero value.
func ContextValueOK[T any](ctx context.Context, key any) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}
