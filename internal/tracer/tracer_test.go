package tracer_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/syscount/internal/latency"
	"github.com/tcassar-diss/syscount/internal/tracer"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestRunFileSource(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	rec := latency.NewRecorder(logger)
	tr := tracer.NewTracer(logger, 0, rec)

	res, err := tr.Run(context.Background(), tracer.NewFileSource(logger, filepath.Join("testdata", "hello.trace")))
	require.NoError(t, err)

	snap := res.Snapshot
	require.True(t, snap.Final())
	require.Equal(t, 17, res.Lines)
	require.Equal(t, 6, res.Skipped)

	require.Equal(t, map[string]int{
		"execve":       1,
		"access":       1,
		"openat":       2,
		"fstat":        1,
		"close":        2,
		"read":         2,
		"write":        1,
		"rt_sigreturn": 1,
	}, snap.Counts)
	require.Equal(t, map[string]int{"access": 1, "read": 1}, snap.Failures)

	require.InDelta(t, 0.000018, snap.TotalTime["openat"], 1e-12)
	require.InDelta(t, 0.000006, snap.TotalTime["read"], 1e-12)
	require.InDelta(t, 0.000001, snap.TotalTime["rt_sigreturn"], 1e-12)

	require.Equal(t,
		[]string{"execve", "access", "openat", "fstat", "close", "read", "write", "rt_sigreturn"},
		snap.Names(),
	)

	require.Len(t, rec.Summaries(), 8)
}

func TestRunMissingFile(t *testing.T) {
	logger := zap.NewNop().Sugar()

	_, err := tracer.NewTracer(logger, 0).Run(
		context.Background(),
		tracer.NewFileSource(logger, filepath.Join(t.TempDir(), "nope.trace")),
	)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// endlessSource writes a couple of lines and then never finishes, like a traced daemon.
type endlessSource struct {
	ctx context.Context
	w   *io.PipeWriter
}

func (e *endlessSource) Start(ctx context.Context) (io.ReadCloser, error) {
	r, w := io.Pipe()
	e.ctx, e.w = ctx, w

	go func() {
		_, _ = io.WriteString(w, "write(1, \"a\", 1) = 1 <0.000001>\nwrite(1, \"b\", 1) = 1 <0.000001>\n")
	}()

	return r, nil
}

func (e *endlessSource) Wait() error {
	<-e.ctx.Done()
	return e.w.Close()
}

func TestRunTimeout(t *testing.T) {
	logger := zap.NewNop().Sugar()

	res, err := tracer.NewTracer(logger, 100*time.Millisecond).Run(context.Background(), &endlessSource{})
	require.ErrorIs(t, err, tracer.ErrInterrupted)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NotNil(t, res)
	require.True(t, res.Snapshot.Final())
}

func TestRunTimeoutWithIdleStdin(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	stdin := os.Stdin
	os.Stdin = r

	t.Cleanup(func() {
		os.Stdin = stdin
		w.Close()
		r.Close()
	})

	logger := zap.NewNop().Sugar()
	done := make(chan error, 1)

	go func() {
		_, err := tracer.NewTracer(logger, 100*time.Millisecond).Run(
			context.Background(),
			tracer.NewFileSource(logger, tracer.Stdin),
		)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, tracer.ErrInterrupted)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout did not interrupt a blocked stdin read")
	}
}

func TestFileSourceStdin(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	stdin := os.Stdin
	os.Stdin = r

	t.Cleanup(func() {
		os.Stdin = stdin
		r.Close()
	})

	_, err = w.WriteString("close(3) = 0 <0.000001>\nread(3, \"\", 1) = -1 <0.000002>\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	logger := zap.NewNop().Sugar()

	res, err := tracer.NewTracer(logger, 0).Run(context.Background(), tracer.NewFileSource(logger, tracer.Stdin))
	require.NoError(t, err)
	require.Equal(t, map[string]int{"close": 1, "read": 1}, res.Snapshot.Counts)
	require.Equal(t, map[string]int{"read": 1}, res.Snapshot.Failures)
}

type failingSource struct{}

func (failingSource) Start(context.Context) (io.ReadCloser, error) {
	return nil, io.ErrUnexpectedEOF
}

func (failingSource) Wait() error { return nil }

func TestRunSourceFailsToStart(t *testing.T) {
	res, err := tracer.NewTracer(zap.NewNop().Sugar(), 0).Run(context.Background(), failingSource{})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Nil(t, res)
}
