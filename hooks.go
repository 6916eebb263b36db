package ctxwindow

import "context"

// -----------------------------------------------------------------------------
// Pre-model Hook Interfaces
// -----------------------------------------------------------------------------
//
// A hook runs before each model call. It receives the current
// [State] and returns the state the agent loop should persist and
// send to the model. Hooks never mutate the state they receive.
//
// Two call surfaces exist:
//
//   - [Hook] blocks until the new state is ready.
//   - [AsyncHook] returns immediately and delivers the new state on
//     a channel, so callers can wait on it alongside other work and
//     abandon it on cancellation.
//
// Any Hook can be used where an AsyncHook is expected through
// [Async]. Chaining several hooks into one pre-model step is done
// by hooks.Chain.
//
// # Concurrency
//
// One session must not be processed by two invocations at the
// same time; the agent loop serializes turns. Different sessions
// may be processed concurrently by the same hook value.
// -----------------------------------------------------------------------------

// Hook transforms the state before a model call, blocking until
// done.
type Hook interface {
	Invoke(ctx context.Context, state *State) (*State, error)
}

// AsyncHook transforms the state before a model call without
// blocking the caller. The returned channel receives exactly one
// result and is then closed. When ctx is cancelled before the
// work finishes the result carries ctx.Err() and the input state
// is left untouched.
type AsyncHook interface {
	InvokeAsync(ctx context.Context, state *State) <-chan HookResult
}

// HookResult is delivered by [AsyncHook.InvokeAsync].
type HookResult struct {
	State *State
	Err   error
}

// HookFunc adapts a function to [Hook].
type HookFunc func(ctx context.Context, state *State) (*State, error)

// Invoke implements Hook.
func (f HookFunc) Invoke(
	ctx context.Context,
	state *State,
) (*State, error) {
	return f(ctx, state)
}

// Async adapts a blocking hook to [AsyncHook]. If hook already
// implements AsyncHook it is returned as is. Otherwise Invoke
// runs on its own goroutine; when ctx is done first, the result
// is discarded once Invoke returns and the channel reports
// ctx.Err().
func Async(hook Hook) AsyncHook {
	if ah, ok := hook.(AsyncHook); ok {
		return ah
	}
	return asyncAdapter{hook: hook}
}

type asyncAdapter struct {
	hook Hook
}

func (a asyncAdapter) InvokeAsync(
	ctx context.Context,
	state *State,
) <-chan HookResult {
	out := make(chan HookResult, 1)
	go func() {
		defer close(out)

		done := make(chan HookResult, 1)
		go func() {
			s, err := a.hook.Invoke(ctx, state)
			done <- HookResult{State: s, Err: err}
		}()

		select {
		case r := <-done:
			out <- r
		case <-ctx.Done():
			out <- HookResult{Err: ctx.Err()}
		}
	}()
	return out
}

// Await waits for an async result, honoring ctx.
func Await(ctx context.Context, ch <-chan HookResult) (*State, error) {
	select {
	case r, ok := <-ch:
		if !ok {
			return nil, context.Canceled
		}
		return r.State, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
