package hooks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rickchristie/ctxwindow"
	"github.com/rickchristie/ctxwindow/compaction"
	"github.com/rickchristie/ctxwindow/hooks"
	"github.com/rickchristie/ctxwindow/internal/tt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appendHook appends a human message with the given ID.
func appendHook(id string) ctxwindow.Hook {
	return ctxwindow.HookFunc(func(
		ctx context.Context,
		state *ctxwindow.State,
	) (*ctxwindow.State, error) {
		next := state.Clone()
		next.Messages = append(next.Messages, tt.Human(id, id))
		return next, nil
	})
}

func failingHook(err error) ctxwindow.Hook {
	return ctxwindow.HookFunc(func(
		ctx context.Context,
		state *ctxwindow.State,
	) (*ctxwindow.State, error) {
		return nil, err
	})
}

func TestChain(t *testing.T) {
	errBoom := errors.New("boom")

	type expected struct {
		messages []string
		err      error
	}

	tests := []struct {
		name     string
		hooks    []ctxwindow.Hook
		expected expected
	}{
		{
			name:     "empty chain is identity",
			expected: expected{messages: []string{"h0"}},
		},
		{
			name:     "hooks run in order",
			hooks:    []ctxwindow.Hook{appendHook("h1"), appendHook("h2")},
			expected: expected{messages: []string{"h0", "h1", "h2"}},
		},
		{
			name: "error stops the chain",
			hooks: []ctxwindow.Hook{
				appendHook("h1"),
				failingHook(errBoom),
				appendHook("h2"),
			},
			expected: expected{err: errBoom},
		},
	}

	for _, tc := range tests {
		for _, async := range []bool{false, true} {
			name := tc.name
			if async {
				name += " (async)"
			}
			t.Run(name, func(t *testing.T) {
				chain := hooks.NewChain(tc.hooks...)
				state := ctxwindow.NewState(tt.Human("h0", "h0"))

				var (
					next *ctxwindow.State
					err  error
				)
				if async {
					next, err = ctxwindow.Await(
						context.Background(),
						chain.InvokeAsync(context.Background(), state),
					)
				} else {
					next, err = chain.Invoke(context.Background(), state)
				}

				if tc.expected.err != nil {
					assert.ErrorIs(t, err, tc.expected.err)
					assert.Nil(t, next)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tc.expected.messages, tt.Describe(next.Messages))
				if len(tc.hooks) == 0 {
					assert.Same(t, state, next)
				}
			})
		}
	}
}

func TestChain_Register(t *testing.T) {
	chain := hooks.NewChain().
		Register(appendHook("h1")).
		Register(appendHook("h2"))

	assert.Equal(t, 2, chain.Len())
}

func TestChain_ComposesContextHook(t *testing.T) {
	ctxHook := newHook(t, hooks.Config{
		Strategy: compaction.KeepLast{N: 2},
	})
	var seen []string
	audit := ctxwindow.HookFunc(func(
		ctx context.Context,
		state *ctxwindow.State,
	) (*ctxwindow.State, error) {
		seen = tt.Describe(state.Messages)
		return state, nil
	})
	chain := hooks.NewChain(ctxHook, audit)
	state := ctxwindow.NewState(
		tt.Human("h1", "one"),
		tt.Human("h2", "two"),
		tt.Human("h3", "three"),
	)

	next, err := ctxwindow.Await(
		context.Background(),
		chain.InvokeAsync(context.Background(), state),
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"-h1", "h2", "h3"}, seen)
	assert.Equal(t, seen, tt.Describe(next.Messages))
	assert.Equal(t, 1, next.Invocations)
}

func TestChain_InvokeAsyncCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chain := hooks.NewChain(appendHook("h1"))

	_, err := ctxwindow.Await(
		context.Background(),
		chain.InvokeAsync(ctx, ctxwindow.NewState()),
	)

	assert.ErrorIs(t, err, context.Canceled)
}
