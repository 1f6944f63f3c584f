package report_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/syscount/internal/latency"
	"github.com/tcassar-diss/syscount/internal/report"
	"github.com/tcassar-diss/syscount/internal/stats"
	"github.com/tcassar-diss/syscount/internal/strace"
	"go.uber.org/zap"
)

func snapshot(events ...*strace.Event) *stats.Snapshot {
	s := stats.NewSnapshot()
	for _, ev := range events {
		stats.Fold(ev, s)
	}

	return stats.Finalize(s)
}

func TestTextReport(t *testing.T) {
	snap := snapshot(
		&strace.Event{Name: "openat", Return: 3, Elapsed: 0.00001, Timed: true},
		&strace.Event{Name: "read", Return: 832, Elapsed: 0.000003, Timed: true},
		&strace.Event{Name: "close", Return: 0, Elapsed: 0.000001, Timed: true},
		&strace.Event{Name: "read", Return: -1, Elapsed: 0.000002, Timed: true},
		&strace.Event{Name: "exit_group", Unresolved: true},
	)

	var buf bytes.Buffer
	require.NoError(t, report.NewTextReporter(zap.NewNop().Sugar(), nil).Write(&buf, snap))

	expected := `System Call Summary:
openat: 1 calls, 0.000010 s
read: 2 calls, 0.000005 s
close: 1 calls, 0.000001 s
exit_group: 1 calls, 0.000000 s

Failed System Calls:
read: 1 failures
`
	require.Equal(t, expected, buf.String())
}

func TestTextReportNoFailures(t *testing.T) {
	snap := snapshot(&strace.Event{Name: "getpid", Return: 1, Elapsed: 0.5, Timed: true})

	var buf bytes.Buffer
	require.NoError(t, report.NewTextReporter(zap.NewNop().Sugar(), nil).Write(&buf, snap))

	require.Equal(t, "System Call Summary:\ngetpid: 1 calls, 0.500000 s\n", buf.String())
}

func TestTextReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.NewTextReporter(zap.NewNop().Sugar(), nil).Write(&buf, snapshot()))

	require.Equal(t, "System Call Summary:\n", buf.String())
}

func TestTextReportLatency(t *testing.T) {
	ev := &strace.Event{Name: "read", Return: 1, Elapsed: 0.000010, Timed: true}

	rec := latency.NewRecorder(zap.NewNop().Sugar())
	rec.Observe(ev)

	var buf bytes.Buffer
	require.NoError(t, report.NewTextReporter(zap.NewNop().Sugar(), rec).Write(&buf, snapshot(ev)))

	require.Contains(t, buf.String(), "\nLatency (us):\nread: p50=10 p99=10 max=10\n")
}

func TestReportRequiresFinalSnapshot(t *testing.T) {
	s := stats.NewSnapshot()

	var buf bytes.Buffer
	require.ErrorIs(t, report.NewTextReporter(zap.NewNop().Sugar(), nil).Write(&buf, s), report.ErrNotFinal)
	require.ErrorIs(t, report.NewJSONReporter(zap.NewNop().Sugar()).Write(&buf, s), report.ErrNotFinal)
}

func TestJSONReportFile(t *testing.T) {
	snap := snapshot(
		&strace.Event{Name: "write", Return: 6, Elapsed: 0.25, Timed: true},
		&strace.Event{Name: "write", Return: -1, Elapsed: 0.5, Timed: true},
		&strace.Event{Name: "close", Return: 0},
	)

	fp := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, report.NewJSONReporter(zap.NewNop().Sugar()).WriteFile(fp, snap))

	bts, err := os.ReadFile(fp)
	require.NoError(t, err)

	var got struct {
		Counts    map[string]int     `json:"counts"`
		TotalTime map[string]float64 `json:"total_time"`
		Failures  map[string]int     `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(bts, &got))

	require.Equal(t, map[string]int{"write": 2, "close": 1}, got.Counts)
	require.Equal(t, map[string]float64{"write": 0.75}, got.TotalTime)
	require.Equal(t, map[string]int{"write": 1}, got.Failures)
}

func TestTextReportFileUnwritable(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "missing", "dir", "out.txt")

	err := report.NewTextReporter(zap.NewNop().Sugar(), nil).WriteFile(fp, snapshot())
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
}
