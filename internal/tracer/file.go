package tracer

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Stdin is the path FileSource treats as standard input.
const Stdin = "-"

// FileSource replays a previously captured trace, e.g. the output of `strace -T -o trace.txt prog`.
type FileSource struct {
	logger *zap.SugaredLogger
	path   string
}

func NewFileSource(logger *zap.SugaredLogger, path string) *FileSource {
	return &FileSource{logger: logger, path: path}
}

func (f *FileSource) Start(_ context.Context) (io.ReadCloser, error) {
	if f.path == Stdin {
		f.logger.Infow("reading trace from stdin")
		return pump(os.Stdin), nil
	}

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	f.logger.Infow("reading trace from file", "path", f.path)

	return fh, nil
}

func (f *FileSource) Wait() error {
	return nil
}

// pump copies src into a pipe whose reader can be closed while a Read is blocked.
//
// Closing os.Stdin does not interrupt a pending read on it; closing the pipe reader does. The copying
// goroutine stays parked on src until it yields data or EOF.
func pump(src io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		_, err := io.Copy(pw, src)
		pw.CloseWithError(err)
	}()

	return pr
}
