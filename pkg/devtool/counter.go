package devtool

import (
	"context"
	"sync/atomic"
)

// Counter counts renders of a view. The caller owns it and passes it down
// through a context so the panel can report how often the view redrew.
type Counter struct {
	n atomic.Uint64
}

// Inc records one render and returns the new total.
func (c *Counter) Inc() uint64 {
	if c == nil {
		return 0
	}
	return c.n.Add(1)
}

// Count returns the number of renders so far.
func (c *Counter) Count() uint64 {
	if c == nil {
		return 0
	}
	return c.n.Load()
}

type counterKey struct{}

// WithCounter attaches c to ctx.
func WithCounter(ctx context.Context, c *Counter) context.Context {
	return context.WithValue(ctx, counterKey{}, c)
}

// CounterFrom returns the counter in ctx, or nil.
func CounterFrom(ctx context.Context) *Counter {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(counterKey{}).(*Counter)
	return c
}
