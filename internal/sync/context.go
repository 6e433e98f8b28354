package sync

import "context"

type centerKey struct{}

// WithCenter returns a copy of ctx carrying c.
func WithCenter(ctx context.Context, c *Center) context.Context {
	return context.WithValue(ctx, centerKey{}, c)
}

// FromContext returns the center attached to ctx, if any.
func FromContext(ctx context.Context) (*Center, bool) {
	c, ok := ctx.Value(centerKey{}).(*Center)
	return c, ok && c != nil
}

// MustFromContext returns the center attached to ctx. It panics when ctx
// has none: callers outside a session are a programming error.
func MustFromContext(ctx context.Context) *Center {
	c, ok := FromContext(ctx)
	if !ok {
		panic("sync: no notification center in context; wrap it with WithCenter")
	}
	return c
}
