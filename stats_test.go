package ctxwindow_test

import (
	"sync"
	"testing"

	"github.com/rickchristie/ctxwindow"
	"github.com/stretchr/testify/assert"
)

func TestStats_Counters(t *testing.T) {
	s := ctxwindow.NewStats()

	s.IncrCounter(ctxwindow.KeyCompactions, 1)
	s.IncrCounter(ctxwindow.KeyCompactions, 2)
	s.IncrCounter(ctxwindow.KeyCompactionsFor.For("summary"), 1)

	assert.Equal(t, int64(3), s.GetCounter(ctxwindow.KeyCompactions))
	assert.Equal(
		t,
		int64(1),
		s.GetCounter("ctxwindow:compactions:summary"),
	)
	assert.Zero(t, s.GetCounter(ctxwindow.KeyMessagesDropped))
	assert.Equal(t, map[string]int64{
		"ctxwindow:compactions":         3,
		"ctxwindow:compactions:summary": 1,
	}, s.Counters())
}

func TestStats_Gauges(t *testing.T) {
	s := ctxwindow.NewStats()

	s.SetGauge(ctxwindow.KeyContextTokens, 1200)
	s.SetGauge(ctxwindow.KeyContextTokens, 800)

	assert.Equal(t, float64(800), s.GetGauge(ctxwindow.KeyContextTokens))
	assert.Equal(
		t,
		map[string]float64{"ctxwindow:context_tokens": 800},
		s.Gauges(),
	)
}

func TestStats_NegativeDeltaPanics(t *testing.T) {
	s := ctxwindow.NewStats()

	assert.Panics(t, func() {
		s.IncrCounter(ctxwindow.KeyCompactions, -1)
	})
}

func TestStats_NilIsNoOp(t *testing.T) {
	var s *ctxwindow.Stats

	assert.NotPanics(t, func() {
		s.IncrCounter(ctxwindow.KeyCompactions, 1)
		s.SetGauge(ctxwindow.KeyContextTokens, 5)
	})
	assert.Zero(t, s.GetCounter(ctxwindow.KeyCompactions))
	assert.Zero(t, s.GetGauge(ctxwindow.KeyContextTokens))
}

func TestStats_Concurrent(t *testing.T) {
	s := ctxwindow.NewStats()
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrCounter(ctxwindow.KeyInvocations, 1)
			s.SetGauge(ctxwindow.KeyContextTokens, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), s.GetCounter(ctxwindow.KeyInvocations))
}
