package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Destination is the interface for an export target.
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// RunDestination is implemented by destinations whose target depends on the
// export time. ForRun is called once per run, before any retry.
type RunDestination interface {
	Destination
	ForRun(at time.Time) Destination
}

// WriterDestination writes each export to an io.Writer.
type WriterDestination struct {
	W io.Writer
}

func (d WriterDestination) Write(_ context.Context, data []byte) error {
	_, err := d.W.Write(data)
	return err
}

// Scheduler runs periodic exports to one or more destinations.
type Scheduler struct {
	src          Source
	destinations []Destination
	interval     time.Duration
	retries      uint64
	logger       *slog.Logger
	now          func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from src to the given
// destinations at the specified interval. Each destination write is retried
// twice with exponential backoff.
func NewScheduler(src Source, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		src:          src,
		destinations: destinations,
		interval:     interval,
		retries:      2,
		logger:       logger,
		now:          time.Now,
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	_ = s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single export. It returns the first destination error;
// the remaining destinations are still attempted.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var buf bytes.Buffer
	if err := WriteJSONL(ctx, s.src, &buf); err != nil {
		s.logger.Error("export failed", "err", err)
		return err
	}
	data := buf.Bytes()
	at := s.now()

	var firstErr error
	for i, dest := range s.destinations {
		if rd, ok := dest.(RunDestination); ok {
			dest = rd.ForRun(at)
		}
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.retries), ctx)
		err := backoff.Retry(func() error { return dest.Write(ctx, data) }, b)
		if err != nil {
			s.logger.Error("export destination write failed", "destination", fmt.Sprintf("%d", i), "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.logger.Info("export completed", "destinations", len(s.destinations), "bytes", len(data))
	return firstErr
}
