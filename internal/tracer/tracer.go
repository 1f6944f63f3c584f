package tracer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tcassar-diss/syscount/internal/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInterrupted means the trace was cut short by a timeout or a signal. The accompanying
// Result only covers what was read up to that point.
var ErrInterrupted = errors.New("trace interrupted")

// Result is the outcome of one trace session.
type Result struct {
	Snapshot *stats.Snapshot
	Lines    int
	Skipped  int
}

// Tracer drives a Source into a fresh Aggregator.
type Tracer struct {
	logger    *zap.SugaredLogger
	timeout   time.Duration
	observers []stats.Observer
}

// NewTracer returns a Tracer. A zero timeout means the trace runs until the source is exhausted.
func NewTracer(logger *zap.SugaredLogger, timeout time.Duration, observers ...stats.Observer) *Tracer {
	return &Tracer{
		logger:    logger,
		timeout:   timeout,
		observers: observers,
	}
}

// Run consumes src until it is exhausted and returns the finalized statistics.
func (t *Tracer) Run(ctx context.Context, src Source) (*Result, error) {
	var cancel context.CancelFunc

	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	rd, err := src.Start(gctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start trace source: %w", err)
	}
	defer rd.Close()

	agg := stats.NewAggregator(t.logger, t.observers...)

	// unblocks the consumer if the producer dies or we get interrupted while it waits on a read
	go func() {
		<-gctx.Done()
		rd.Close()
	}()

	group.Go(func() error {
		if err := agg.Consume(gctx, rd); err != nil {
			return fmt.Errorf("failed to consume trace: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		return src.Wait()
	})

	groupErr := group.Wait()

	res := &Result{
		Snapshot: agg.Snapshot(),
		Lines:    agg.Lines(),
		Skipped:  agg.Skipped(),
	}

	if ctx.Err() != nil {
		t.logger.Warnw("trace interrupted, statistics are partial", "reason", context.Cause(ctx), "lines", res.Lines)

		return res, fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	}

	if groupErr != nil {
		return res, fmt.Errorf("failed while processing trace: %w", groupErr)
	}

	t.logger.Infow(
		"trace summarised",
		"syscalls", len(res.Snapshot.Counts),
		"events", res.Snapshot.Total(),
		"lines", res.Lines,
		"skipped", res.Skipped,
	)

	return res, nil
}
