package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/inkwell/internal/logger"
)

// JobProcessor handles one batch of queued jobs. more reports that the batch
// was full and another one is probably waiting.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) (more bool, err error)
}

// Worker polls a JobProcessor in the background.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	log          *logger.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
	stopOnce     sync.Once
}

func NewWorker(processor JobProcessor, pollInterval time.Duration, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		log:          log,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start drains the queue once, then every poll interval until ctx is
// cancelled or Stop is called. It blocks.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	w.log.Info("worker started", "poll_interval", w.pollInterval.String())
	w.drain(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			w.log.Info("worker stopped: stop signal received")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain keeps processing batches while they come back full.
func (w *Worker) drain(ctx context.Context) {
	for {
		more, err := w.processor.ProcessJobs(ctx)
		if err != nil {
			w.log.Error("error processing jobs", "error", err)
			return
		}
		if !more {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		default:
		}
	}
}

// Stop signals the loop to exit and waits for the batch in flight.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
	w.log.Info("worker shutdown complete")
}
