package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tcassar-diss/syscount/internal/tracer"
)

func (a *app) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [flags] trace-file",
		Short: `Summarise a captured "strace -T" log ("-" reads stdin)`,
		Args:  cobra.ExactArgs(1),
		RunE:  a.runParse,
	}
}

func (a *app) runParse(cmd *cobra.Command, args []string) error {
	rec, observers := a.observers()

	res, err := tracer.NewTracer(a.logger, a.cfg.Timeout, observers...).Run(
		cmd.Context(),
		tracer.NewFileSource(a.logger, args[0]),
	)
	if errors.Is(err, tracer.ErrInterrupted) {
		a.logger.Warnw("reporting partial statistics", "trace", args[0], "err", err)
	} else if err != nil {
		return fmt.Errorf("failed to summarise %s: %w", args[0], err)
	}

	return a.report(cmd.OutOrStdout(), res, rec)
}
