package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/printbound/api/internal/repositories"
)

type counterState struct {
	current int64
	step    int64
	max     *int64
}

// CounterRepository issues process-local monotonic sequence numbers.
type CounterRepository struct {
	mu       sync.Mutex
	counters map[string]*counterState
}

// NewCounterRepository constructs an empty memory-backed counter repository.
func NewCounterRepository() *CounterRepository {
	return &CounterRepository{counters: make(map[string]*counterState)}
}

// Next atomically increments the counter identified by counterID and returns the next value.
func (r *CounterRepository) Next(_ context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	if step < 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", step), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.counters[id]
	if !ok {
		state = &counterState{}
		r.counters[id] = state
	}

	increment := step
	if increment <= 0 {
		if state.step > 0 {
			increment = state.step
		} else {
			increment = 1
		}
	}

	next := state.current + increment
	if state.max != nil && next > *state.max {
		return 0, repositories.NewCounterError(repositories.CounterErrorExhausted, fmt.Sprintf("counter %s exceeded max value %d", id, *state.max), nil)
	}

	state.current = next
	state.step = increment
	return next, nil
}

// Configure updates optional settings for the counter such as step size, max value, or initial value.
func (r *CounterRepository) Configure(_ context.Context, counterID string, cfg repositories.CounterConfig) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.counters[id]
	if !ok {
		state = &counterState{}
		r.counters[id] = state
	}
	if cfg.Step > 0 {
		state.step = cfg.Step
	}
	if cfg.MaxValue != nil {
		max := *cfg.MaxValue
		state.max = &max
	}
	if cfg.InitialValue != nil {
		state.current = *cfg.InitialValue
	}
	return nil
}
