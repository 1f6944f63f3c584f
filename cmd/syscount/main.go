package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcassar-diss/syscount/internal/config"
	"go.uber.org/zap"
)

type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.SugaredLogger
}

func main() {
	a := &app{v: viper.New()}

	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "syscount",
		Short: "Summarise the system calls a program makes",
		Long: `syscount runs a program under strace -T and reports, per system call,
how often it was called, how long it spent in the kernel and how often it failed.

A previously captured strace -T log can be summarised with "syscount parse".`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.syscount.yaml)")
	flags.StringP("output", "o", "syscall_summary.txt", "file to write the summary to")
	flags.String("json", "", "also write the raw statistics as json to this file")
	flags.Bool("latency", false, "add per syscall latency percentiles to the summary")
	flags.Bool("debug", false, "development logging")

	a.bind(flags.Lookup("output"), config.KeyOutput)
	a.bind(flags.Lookup("json"), config.KeyJSON)
	a.bind(flags.Lookup("latency"), config.KeyLatency)
	a.bind(flags.Lookup("debug"), config.KeyDebug)

	root.AddCommand(a.traceCmd())
	root.AddCommand(a.parseCmd())

	return root
}

func (a *app) setup(*cobra.Command, []string) error {
	if err := config.Init(a.v, a.cfgFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to get logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Infow("using config file", "path", used)
	}

	return nil
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)

	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}
