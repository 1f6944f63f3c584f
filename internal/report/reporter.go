package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tcassar-diss/syscount/internal/latency"
	"github.com/tcassar-diss/syscount/internal/stats"
	"go.uber.org/zap"
)

var ErrNotFinal = errors.New("snapshot has not been finalized")

// Reporter renders a finalized snapshot.
type Reporter interface {
	Write(w io.Writer, snap *stats.Snapshot) error
	WriteFile(filepath string, snap *stats.Snapshot) error
}

type textReporter struct {
	logger  *zap.SugaredLogger
	latency *latency.Recorder
}

// NewTextReporter writes the human readable summary.
//
// If rec is non-nil, a latency section is appended after the failures.
func NewTextReporter(logger *zap.SugaredLogger, rec *latency.Recorder) Reporter {
	return &textReporter{logger: logger, latency: rec}
}

func (r *textReporter) Write(w io.Writer, snap *stats.Snapshot) error {
	if !snap.Final() {
		return ErrNotFinal
	}

	var buf bytes.Buffer

	buf.WriteString("System Call Summary:\n")
	for _, name := range snap.Names() {
		fmt.Fprintf(&buf, "%s: %d calls, %.6f s\n", name, snap.Counts[name], snap.TotalTime[name])
	}

	if failed := snap.FailedNames(); len(failed) > 0 {
		buf.WriteString("\nFailed System Calls:\n")
		for _, name := range failed {
			fmt.Fprintf(&buf, "%s: %d failures\n", name, snap.Failures[name])
		}
	}

	if r.latency != nil {
		if sums := r.latency.Summaries(); len(sums) > 0 {
			buf.WriteString("\nLatency (us):\n")
			for _, s := range sums {
				fmt.Fprintf(&buf, "%s: p50=%d p99=%d max=%d\n", s.Name, s.P50, s.P99, s.Max)
			}
		}
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	return nil
}

func (r *textReporter) WriteFile(filepath string, snap *stats.Snapshot) error {
	r.logger.Infow("saving syscall summary", "path", filepath)

	return writeFile(filepath, snap, r)
}

type jsonReporter struct {
	logger *zap.SugaredLogger
}

// NewJSONReporter writes the three name keyed mappings as a json object.
func NewJSONReporter(logger *zap.SugaredLogger) Reporter {
	return &jsonReporter{logger: logger}
}

func (r *jsonReporter) Write(w io.Writer, snap *stats.Snapshot) error {
	if !snap.Final() {
		return ErrNotFinal
	}

	bts, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshall stats: %w", err)
	}

	if _, err := w.Write(bts); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}

	return nil
}

func (r *jsonReporter) WriteFile(filepath string, snap *stats.Snapshot) error {
	r.logger.Infow("saving syscall stats as json", "path", filepath)

	return writeFile(filepath, snap, r)
}

func writeFile(filepath string, snap *stats.Snapshot, r Reporter) error {
	var buf bytes.Buffer

	if err := r.Write(&buf, snap); err != nil {
		return err
	}

	if err := os.WriteFile(filepath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to save syscall stats: %w", err)
	}

	return nil
}
