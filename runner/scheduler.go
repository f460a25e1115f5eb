package runner

// This file contains the bounded worker pool that runs independent test
// stage machines concurrently, plus the cooperative cancellation token the
// pool and the result-consuming loop share.

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ra2003/kphp/model"
)

// Token is a cooperative cancellation flag. It is the only mutable state
// shared between the signal watcher, the pool feeder and the consuming
// loop. Cancellation is checked between completed results; in-flight
// subprocesses are never force-killed, the per-process timeout remains the
// only preemptive mechanism.
type Token struct {
	cancelled atomic.Bool
}

// Cancel marks the token. Safe to call from any goroutine, idempotent.
func (t *Token) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether cancellation was requested.
func (t *Token) Cancelled() bool { return t.cancelled.Load() }

// Pool runs test stage machines on a fixed number of workers.
type Pool struct {
	logger  zerolog.Logger
	workers int
}

// NewPool builds a pool with at least one worker.
func NewPool(logger zerolog.Logger, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{logger: logger, workers: workers}
}

// Run dispatches each test to a worker and returns a channel yielding
// results in completion order, closed once every dispatched test finished.
// No new test is started after the token fires; tests already handed to a
// worker run to completion. The results channel is buffered for the whole
// test set so workers never block on a consumer that stopped reading.
func (p *Pool) Run(tests []*model.TestFile, token *Token, run func(*model.TestFile) model.Result) <-chan model.Result {
	queue := make(chan *model.TestFile)
	results := make(chan model.Result, len(tests))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for test := range queue {
				results <- run(test)
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, test := range tests {
			if token.Cancelled() {
				p.logger.Debug().Msg("Cancellation requested, not dispatching further tests")
				return
			}
			queue <- test
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
