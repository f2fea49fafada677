package llm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type job func(ctx context.Context)

// Worker runs LLM calls off the signaling path on a fixed pool of goroutines. Submissions
// never block: a full queue rejects the job.
type Worker struct {
	client  Client
	jobs    chan job
	workers int
	timeout time.Duration

	wg conc.WaitGroup

	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
}

func NewWorker(client Client, workers, queue int, timeout time.Duration) *Worker {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = 1
	}
	return &Worker{
		client:  client,
		jobs:    make(chan job, queue),
		workers: workers,
		timeout: timeout,
	}
}

func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	for i := 0; i < w.workers; i++ {
		w.wg.Go(func() {
			for j := range w.jobs {
				w.run(ctx, j)
			}
		})
	}
	log.Info().Str("module", "llm").Int("workers", w.workers).Msg("worker started")
}

func (w *Worker) run(ctx context.Context, j job) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	j(ctx)
}

func (w *Worker) submit(j job) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.jobs <- j:
		return true
	default:
		log.Warn().Str("module", "llm").Msg("queue full, job dropped")
		return false
	}
}

// Hints queues a hint request. reply runs on a worker goroutine.
func (w *Worker) Hints(transcript, medicalHistory string, reply func(string, error)) bool {
	return w.submit(func(ctx context.Context) {
		reply(w.client.Hints(ctx, transcript, medicalHistory))
	})
}

// Summarize queues a summary request. done runs on a worker goroutine.
func (w *Worker) Summarize(transcript string, done func(string, error)) bool {
	return w.submit(func(ctx context.Context) {
		done(w.client.Summarize(ctx, transcript))
	})
}

// Close stops accepting jobs, lets queued ones finish and waits for the pool.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	w.wg.Wait()
	w.mu.RLock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.RUnlock()
	log.Info().Str("module", "llm").Msg("worker stopped")
}
