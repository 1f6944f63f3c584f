package tracer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrStraceNotFound = errors.New("strace not found")
	ErrTargetNotFound = errors.New("program not found")
	ErrNotStarted     = errors.New("strace has not been started")
)

// traceFD is the descriptor strace writes its trace to, see exec.Cmd.ExtraFiles.
const traceFD = 3

// DrainGrace is how long the trace pipe may stay idle after strace exits before it is treated as finished.
// Descendants of the traced program inherit traceFD and can keep the pipe open long after strace is gone.
const DrainGrace = 200 * time.Millisecond

// timedFlag makes strace annotate every call with the time spent in it.
const timedFlag = "-T"

// StraceSource runs a program under strace and streams strace's output.
//
// The trace goes through a dedicated pipe so it never mixes with the program's own stderr.
type StraceSource struct {
	logger     *zap.SugaredLogger
	stracePath string
	straceArgs []string
	executable string
	args       []string

	// Stdout receives the traced program's stdout. Nil discards it.
	Stdout io.Writer
	// Stderr receives the traced program's stderr and strace's own diagnostics.
	Stderr io.Writer

	// DrainGrace overrides the package default when non-zero.
	DrainGrace time.Duration

	cmd   *exec.Cmd
	trace *drainReader
}

func NewStraceSource(
	logger *zap.SugaredLogger,
	stracePath string,
	straceArgs []string,
	executable string,
	args ...string,
) (*StraceSource, error) {
	resolved, err := exec.LookPath(stracePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStraceNotFound, err)
	}

	executable, err = ResolveTarget(executable)
	if err != nil {
		return nil, err
	}

	isELF, err := isElf(executable)
	if err != nil {
		logger.Warnw("failed to inspect program", "executable", executable, "err", err)
	} else if !isELF {
		logger.Infow("program is not an elf, tracing its interpreter", "executable", executable)
	}

	return &StraceSource{
		logger:     logger,
		stracePath: resolved,
		straceArgs: straceArgs,
		executable: executable,
		args:       args,
		Stderr:     os.Stderr,
	}, nil
}

// ResolveTarget finds the program to trace. Paths are used as given; bare names are looked up in $PATH
// the way strace itself would.
func ResolveTarget(executable string) (string, error) {
	if executable == "" {
		return "", fmt.Errorf("%w: empty program name", ErrTargetNotFound)
	}

	_, err := os.Stat(executable)
	if err == nil {
		return executable, nil
	}

	if strings.Contains(executable, "/") {
		return "", fmt.Errorf("%w: %s: %w", ErrTargetNotFound, executable, err)
	}

	resolved, lookErr := exec.LookPath(executable)
	if lookErr != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrTargetNotFound, executable, lookErr)
	}

	return resolved, nil
}

// commandLine is everything after the strace binary. -T is always passed since timing is what we summarise.
func (s *StraceSource) commandLine() []string {
	line := make([]string, 0, len(s.straceArgs)+len(s.args)+5)

	if !slices.Contains(s.straceArgs, timedFlag) {
		line = append(line, timedFlag)
	}

	line = append(line, s.straceArgs...)
	line = append(line, "-o", fmt.Sprintf("/dev/fd/%d", traceFD), "--", s.executable)
	line = append(line, s.args...)

	return line
}

func (s *StraceSource) Start(ctx context.Context) (io.ReadCloser, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create trace pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.stracePath, s.commandLine()...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	cmd.ExtraFiles = []*os.File{w}

	s.logger.Infow("tracing program execution", "executable", s.executable, "args", s.args, "strace", cmd.Args)

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()

		return nil, fmt.Errorf("failed to start strace: %w", err)
	}

	// strace (and the traced program) hold their own copies now; EOF arrives once they exit.
	if err := w.Close(); err != nil {
		s.logger.Warnw("failed to close parent end of trace pipe", "err", err)
	}

	grace := s.DrainGrace
	if grace == 0 {
		grace = DrainGrace
	}

	s.cmd = cmd
	s.trace = &drainReader{f: r, grace: grace}

	return s.trace, nil
}

// Wait waits for strace to exit. A non-zero exit status is the traced program's and is only logged.
func (s *StraceSource) Wait() error {
	if s.cmd == nil {
		return ErrNotStarted
	}

	err := s.cmd.Wait()

	// strace has flushed everything it will ever write; only stragglers can still hold the pipe open
	s.trace.finish()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		s.logger.Warnw("traced program exited with non-zero status", "executable", s.executable, "code", exitErr.ExitCode())

		return nil
	}

	if err != nil {
		return fmt.Errorf("strace did not exit cleanly: %w", err)
	}

	s.logger.Infow("trace finished", "executable", s.executable)

	return nil
}

// drainReader reads the trace pipe. Once finish is called, a read that sees no data for grace ends the
// stream with io.EOF instead of waiting for every holder of the write end to exit.
type drainReader struct {
	f        *os.File
	grace    time.Duration
	finished atomic.Bool
}

func (d *drainReader) Read(p []byte) (int, error) {
	if d.finished.Load() {
		if err := d.f.SetReadDeadline(time.Now().Add(d.grace)); err != nil {
			return 0, fmt.Errorf("failed to set trace pipe deadline: %w", err)
		}
	}

	n, err := d.f.Read(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, io.EOF
	}

	return n, err
}

// finish also wakes a Read that is already blocked.
func (d *drainReader) finish() {
	d.finished.Store(true)

	// the pipe may already be closed if the consumer gave up first
	_ = d.f.SetReadDeadline(time.Now().Add(d.grace))
}

func (d *drainReader) Close() error {
	return d.f.Close()
}

func isElf(fp string) (bool, error) {
	f, err := os.Open(fp)
	if err != nil {
		return false, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	bts, err := io.ReadAll(io.LimitReader(f, 4))
	if err != nil {
		return false, fmt.Errorf("failed to read first bytes of executable: %w", err)
	}

	return len(bts) == 4 && string(bts[1:4]) == "ELF", nil
}
