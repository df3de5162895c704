// Command datalog runs provenance-tracking Datalog programs from the
// command line. Each subcommand builds a small program, evaluates it and
// prints the resulting relations as markdown tables.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wbrown/janus-provenance/datalog/annotations"
	"github.com/wbrown/janus-provenance/datalog/integrate"
)

var (
	// Global flags
	verbose    bool
	logEvents  bool
	configPath string
	workers    int
	factLogDir string

	// Logger
	logger *zap.Logger

	current *env
)

// env carries the settings every scenario runs with
type env struct {
	cfg     integrate.Config
	handler annotations.Handler
	out     io.Writer
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "datalog",
	Short: "Datalog with provenance semirings",
	Long: `datalog evaluates Datalog programs whose facts carry provenance tags.

Tags are combined by a semiring while rules fire, so every derived fact
records how it was derived: plain truth (unit), the probability of its
best derivation (minmaxprob), or its most probable proofs with an exact
probability computed by weighted model counting (topkproofs).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "print evaluation annotations to stderr")
	flags.BoolVar(&logEvents, "log", false, "log evaluation events as JSON through zap")
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.IntVarP(&workers, "workers", "w", 1, "goroutines evaluating the rules of one round")
	flags.StringVar(&factLogDir, "fact-log", "", "directory of the durable fact journal used by paths")

	rootCmd.AddCommand(basicCmd, probabilisticCmd, proofsCmd, incrementalCmd,
		functionsCmd, predicatesCmd, pathsCmd, allCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, applies flag overrides and builds the event
// handler shared by every context the command creates
func setup(cmd *cobra.Command, args []string) error {
	cfg := integrate.DefaultConfig()
	if configPath != "" {
		loaded, err := integrate.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	if cmd.Flags().Changed("fact-log") {
		cfg.FactLog = factLogDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var handlers []annotations.Handler
	if verbose {
		handlers = append(handlers, annotations.NewOutputFormatter(os.Stderr).Handle)
	}
	if logEvents {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		handlers = append(handlers, annotations.NewZapHandler(logger))
	}

	current = &env{
		cfg:     cfg,
		handler: annotations.Multi(handlers...),
		out:     cmd.OutOrStdout(),
	}
	return nil
}

// scenario adapts a scenario function to a cobra RunE
func scenario(fn func(e *env) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return fn(current)
	}
}
