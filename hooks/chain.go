package hooks

import (
	"context"

	"github.com/rickchristie/ctxwindow"
)

// Chain runs several hooks as one pre-model step. The output state
// of each hook is the input of the next.
//
// # Creating and Using
//
//	ctxHook, err := hooks.NewContextHook(cfg)
//	if err != nil {
//	    return err
//	}
//	chain := hooks.NewChain(ctxHook).
//	    Register(&AuditHook{})
//
//	next, err := chain.Invoke(ctx, state)
//
// Hooks run in the order they were registered. A chain with no
// hooks returns its input state.
//
// # Async
//
// InvokeAsync awaits each hook in turn. Hooks that implement
// ctxwindow.AsyncHook run through it; blocking-only hooks are
// adapted with ctxwindow.Async. Behavior is the same either way,
// only scheduling differs.
//
// # Thread Safety
//
// Register all hooks before the first invocation. After that a
// Chain may be invoked concurrently for different sessions.
type Chain struct {
	hooks []ctxwindow.Hook
}

var (
	_ ctxwindow.Hook      = (*Chain)(nil)
	_ ctxwindow.AsyncHook = (*Chain)(nil)
)

// NewChain creates a chain of hooks.
func NewChain(hooks ...ctxwindow.Hook) *Chain {
	return &Chain{
		hooks: append([]ctxwindow.Hook(nil), hooks...),
	}
}

// Register appends a hook to the chain.
func (c *Chain) Register(hook ctxwindow.Hook) *Chain {
	c.hooks = append(c.hooks, hook)
	return c
}

// Len returns the number of registered hooks.
func (c *Chain) Len() int {
	return len(c.hooks)
}

// Invoke implements ctxwindow.Hook. The first error stops the
// chain.
func (c *Chain) Invoke(
	ctx context.Context,
	state *ctxwindow.State,
) (*ctxwindow.State, error) {
	for _, h := range c.hooks {
		next, err := h.Invoke(ctx, state)
		if err != nil {
			return nil, err
		}
		state = next
	}
	return state, nil
}

// InvokeAsync implements ctxwindow.AsyncHook.
func (c *Chain) InvokeAsync(
	ctx context.Context,
	state *ctxwindow.State,
) <-chan ctxwindow.HookResult {
	out := make(chan ctxwindow.HookResult, 1)
	go func() {
		defer close(out)
		for _, h := range c.hooks {
			if err := ctx.Err(); err != nil {
				out <- ctxwindow.HookResult{Err: err}
				return
			}
			next, err := ctxwindow.Await(
				ctx,
				ctxwindow.Async(h).InvokeAsync(ctx, state),
			)
			if err != nil {
				out <- ctxwindow.HookResult{Err: err}
				return
			}
			state = next
		}
		out <- ctxwindow.HookResult{State: state}
	}()
	return out
}
