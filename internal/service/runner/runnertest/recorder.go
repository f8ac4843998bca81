// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"slices"
	"sync"
)

// Handler decides the outcome of one recorded call.
type Handler func(argv []string) (int, error)

// Recorder records every argv it is asked to run and answers through Handler.
// A nil Handler makes every call succeed with status 0.
type Recorder struct {
	// Handler produces the exit status for each call.
	Handler Handler

	mu    sync.Mutex
	calls [][]string
}

// Run records argv and delegates to Handler.
func (r *Recorder) Run(_ context.Context, argv []string) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, slices.Clone(argv))
	r.mu.Unlock()

	if r.Handler == nil {
		return 0, nil
	}

	return r.Handler(argv)
}

// Calls returns a copy of the recorded argv lists in call order.
func (r *Recorder) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]string, 0, len(r.calls))
	for _, call := range r.calls {
		out = append(out, slices.Clone(call))
	}

	return out
}
