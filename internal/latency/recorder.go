package latency

import (
	"math"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/tcassar-diss/syscount/internal/strace"
	"go.uber.org/zap"
)

// Histogram bounds are in microseconds.
const (
	histMin     = 1
	histMax     = 60 * 1000 * 1000
	histSigFigs = 3
)

// Summary is the latency distribution of one syscall, in microseconds.
type Summary struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	P50   int64  `json:"p50_us"`
	P99   int64  `json:"p99_us"`
	Max   int64  `json:"max_us"`
}

// Recorder keeps a latency histogram per syscall. Untimed events are ignored.
type Recorder struct {
	logger *zap.SugaredLogger
	hists  map[string]*hdrhistogram.Histogram
	order  []string
}

func NewRecorder(logger *zap.SugaredLogger) *Recorder {
	return &Recorder{
		logger: logger,
		hists:  make(map[string]*hdrhistogram.Histogram),
	}
}

func (r *Recorder) Observe(ev *strace.Event) {
	if !ev.Timed {
		return
	}

	h, ok := r.hists[ev.Name]
	if !ok {
		h = hdrhistogram.New(histMin, histMax, histSigFigs)
		r.hists[ev.Name] = h
		r.order = append(r.order, ev.Name)
	}

	us := int64(math.Round(ev.Elapsed * 1e6))
	us = max(us, histMin)

	if err := h.RecordValue(min(us, histMax)); err != nil {
		r.logger.Warnw("failed to record latency", "syscall", ev.Name, "elapsed", ev.Elapsed, "err", err)
	}
}

// Summaries returns one Summary per timed syscall, in order of first appearance.
func (r *Recorder) Summaries() []Summary {
	out := make([]Summary, 0, len(r.order))

	for _, name := range r.order {
		h := r.hists[name]

		out = append(out, Summary{
			Name:  name,
			Count: h.TotalCount(),
			P50:   h.ValueAtQuantile(50),
			P99:   h.ValueAtQuantile(99),
			Max:   h.Max(),
		})
	}

	return out
}
