package stats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tcassar-diss/syscount/internal/strace"
	"go.uber.org/zap"
)

// maxLineSize bounds a single trace line. strace can print very long argument strings.
const maxLineSize = 64 << 20

// Observer is notified of every event folded into the snapshot.
type Observer interface {
	Observe(ev *strace.Event)
}

// Aggregator turns raw strace lines into a Snapshot.
//
// An Aggregator belongs to one trace session and is not safe for concurrent use.
type Aggregator struct {
	logger    *zap.SugaredLogger
	snapshot  *Snapshot
	observers []Observer
	lines     int
	skipped   int
}

func NewAggregator(logger *zap.SugaredLogger, observers ...Observer) *Aggregator {
	return &Aggregator{
		logger:    logger,
		snapshot:  NewSnapshot(),
		observers: observers,
	}
}

// AddLine parses line and folds it in. It reports whether the line was a syscall record.
func (a *Aggregator) AddLine(line string) bool {
	a.lines++

	ev, err := strace.Parse(line)
	if errors.Is(err, strace.ErrNoMatch) {
		a.skipped++
		return false
	}

	a.Add(ev)

	return true
}

// Add folds an already parsed event.
func (a *Aggregator) Add(ev *strace.Event) {
	if a.snapshot.Final() {
		a.logger.Warnw("event received after finalisation", "event", ev.String())
		return
	}

	Fold(ev, a.snapshot)

	for _, o := range a.observers {
		o.Observe(ev)
	}
}

// Consume reads r line by line until EOF or until ctx is cancelled.
func (a *Aggregator) Consume(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		a.AddLine(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read trace stream: %w", err)
	}

	a.logger.Infow("trace stream exhausted", "lines", a.lines, "skipped", a.skipped)

	return nil
}

// Skipped is the number of lines that were not syscall records.
func (a *Aggregator) Skipped() int {
	return a.skipped
}

// Lines is the number of lines seen, records or not.
func (a *Aggregator) Lines() int {
	return a.lines
}

// Snapshot finalizes and returns the accumulated statistics.
func (a *Aggregator) Snapshot() *Snapshot {
	return Finalize(a.snapshot)
}
