package ctxwindow

import "sync"

// Stats contains counters and gauges describing what the engine
// did. All standard keys are prefixed with "ctxwindow:" to avoid
// collisions with user-defined keys.
//
// Stats are for monitoring only; no engine decision reads them.
// Sustained summarization failure, for example, leaves the
// context growing turn over turn, and
// [KeySummarizationFailures] is the signal to alert on.
//
// # Counters vs Gauges
//
// Counters only go up. Gauges can be set to any value and hold
// the latest observation, such as the token count of the last
// invocation.
//
// # Thread Safety
//
// All methods are safe for concurrent use. One Stats value may be
// shared by hooks serving many sessions.
type Stats struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

// IncrCounter increments a counter by delta. Creates the counter
// if it doesn't exist. A nil Stats ignores the call.
//
// Panics if delta is negative (counters only go up).
func (s *Stats) IncrCounter(key StatKey, delta int64) {
	if delta < 0 {
		panic("ctxwindow: IncrCounter called with negative delta")
	}
	if s == nil {
		return
	}
	s.mu.Lock()
	s.counters[string(key)] += delta
	s.mu.Unlock()
}

// GetCounter returns the current value of a counter, or 0 if not
// set.
func (s *Stats) GetCounter(key StatKey) int64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[string(key)]
}

// SetGauge sets a gauge to a specific value. A nil Stats ignores
// the call.
func (s *Stats) SetGauge(key StatKey, value float64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.gauges[string(key)] = value
	s.mu.Unlock()
}

// GetGauge returns the current value of a gauge, or 0.0 if not
// set.
func (s *Stats) GetGauge(key StatKey) float64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gauges[string(key)]
}

// Counters returns a copy of all counters.
func (s *Stats) Counters() map[string]int64 {
	if s == nil {
		return map[string]int64{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		result[k] = v
	}
	return result
}

// Gauges returns a copy of all gauges.
func (s *Stats) Gauges() map[string]float64 {
	if s == nil {
		return map[string]float64{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]float64, len(s.gauges))
	for k, v := range s.gauges {
		result[k] = v
	}
	return result
}
