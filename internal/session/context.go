package session

import "context"

type ctxKey struct{}

// NewContext returns a copy of ctx carrying c.
func NewContext(ctx context.Context, c *Controller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the controller stored by NewContext, if any.
func FromContext(ctx context.Context) (*Controller, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Controller)
	return c, ok && c != nil
}
