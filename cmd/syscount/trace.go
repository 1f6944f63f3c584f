package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tcassar-diss/syscount/internal/config"
	"github.com/tcassar-diss/syscount/internal/latency"
	"github.com/tcassar-diss/syscount/internal/report"
	"github.com/tcassar-diss/syscount/internal/stats"
	"github.com/tcassar-diss/syscount/internal/tracer"
)

func (a *app) traceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace [flags] [--] program [args...]",
		Short: "Run a program under strace and summarise its system calls",
		Long: `Run a program under strace and summarise its system calls.

Without a program, syscount asks for the program and the output file.`,
		Args: cobra.ArbitraryArgs,
		RunE: a.runTrace,
	}

	// everything after the program belongs to the program
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().String("strace", "strace", "strace binary")
	cmd.Flags().StringSlice("strace-args", []string{"-T", "-e", "trace=all"}, "arguments passed to strace before the program (-T is always added)")
	cmd.Flags().Duration("timeout", 0, "stop tracing after this long (0 means no limit)")

	a.bind(cmd.Flags().Lookup("strace"), config.KeyStracePath)
	a.bind(cmd.Flags().Lookup("strace-args"), config.KeyStraceArgs)
	a.bind(cmd.Flags().Lookup("timeout"), config.KeyTimeout)

	return cmd
}

func (a *app) runTrace(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		answers, err := prompt(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}

		args = []string{answers.program}
		if answers.output != "" {
			a.cfg.Output = answers.output
		}
	}

	executable, progArgs := args[0], args[1:]

	rec, observers := a.observers()

	src, err := tracer.NewStraceSource(a.logger, a.cfg.StracePath, a.cfg.StraceArgs, executable, progArgs...)
	if err != nil {
		return fmt.Errorf("failed to set up trace: %w", err)
	}

	res, err := tracer.NewTracer(a.logger, a.cfg.Timeout, observers...).Run(cmd.Context(), src)
	if errors.Is(err, tracer.ErrInterrupted) {
		a.logger.Warnw("reporting partial statistics", "executable", executable, "err", err)
	} else if err != nil {
		return fmt.Errorf("failed to trace %s: %w", executable, err)
	}

	return a.report(cmd.OutOrStdout(), res, rec)
}

// observers returns the optional latency recorder and the observers to hand to the tracer.
func (a *app) observers() (*latency.Recorder, []stats.Observer) {
	if !a.cfg.Latency {
		return nil, nil
	}

	rec := latency.NewRecorder(a.logger)

	return rec, []stats.Observer{rec}
}

// report prints the summary and saves it to the configured destinations.
func (a *app) report(out io.Writer, res *tracer.Result, rec *latency.Recorder) error {
	text := report.NewTextReporter(a.logger, rec)

	if err := text.Write(out, res.Snapshot); err != nil {
		return fmt.Errorf("failed to print summary: %w", err)
	}

	if a.cfg.Output != "" {
		if err := text.WriteFile(a.cfg.Output, res.Snapshot); err != nil {
			return fmt.Errorf("failed to write summary to %s: %w", a.cfg.Output, err)
		}

		a.logger.Infow("system call summary saved", "path", a.cfg.Output)
	}

	if a.cfg.JSON != "" {
		if err := report.NewJSONReporter(a.logger).WriteFile(a.cfg.JSON, res.Snapshot); err != nil {
			return fmt.Errorf("failed to write json stats to %s: %w", a.cfg.JSON, err)
		}
	}

	return nil
}
