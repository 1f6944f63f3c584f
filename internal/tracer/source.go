package tracer

import (
	"context"
	"io"
)

// Source produces raw trace lines, one syscall record per line.
type Source interface {
	// Start begins producing lines. The returned reader yields EOF once the producer is done.
	Start(ctx context.Context) (io.ReadCloser, error)

	// Wait blocks until the producer has exited. It must only be called after a successful Start.
	Wait() error
}
