// Package runctl starts and stops the handful of long-lived busy-spin
// goroutines each femtoex process owns (matching engine, network
// threads, publisher, snapshot synthesizer, consumer) as one group: the
// first goroutine to return an error cancels the shared context, and
// Wait blocks until every goroutine has exited.
package runctl

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group owns a set of goroutines that should all stop when the first
// one returns an error, or when the caller cancels it.
type Group struct {
	ctx context.Context
	eg  *errgroup.Group
}

// New creates a Group derived from parent. Cancel (via the returned
// context) the normal way: store the context passed to each worker.
func New(parent context.Context) (*Group, context.Context) {
	eg, ctx := errgroup.WithContext(parent)
	return &Group{ctx: ctx, eg: eg}, ctx
}

// Go starts fn in its own goroutine. fn should select on the Group's
// context and return promptly once it is done. The workers started by
// cmd/exchange and cmd/participant return as soon as they observe
// cancellation; input still queued in their rings is not drained.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		return fn(g.ctx)
	})
}

// Wait blocks until every goroutine started with Go has returned, and
// returns the first non-nil error, if any.
func (g *Group) Wait() error {
	return g.eg.Wait()
}
