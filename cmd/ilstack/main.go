// Command ilstack computes stack depths of contract-annotated bytecode
// fixtures and decodes them into explicit stack-slot form.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/funvibe/ilstack/internal/config"
)

// app is the state shared by all subcommands
type app struct {
	configPath string
	verbose    bool

	settings *config.Settings
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ilstack",
		Short: "Stack-shape analysis of contract-annotated bytecode",
		Long: `ilstack reads YAML fixtures describing methods, their control-flow
graphs and contract subroutines, computes the evaluation stack depth at every
program point and rewrites stack instructions into explicit slot form.

Settings are read from --config, or from the first ilstack.yaml found walking
up from the current directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "settings file (default: search for ilstack.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newDepthsCmd(a),
		newDecodeCmd(a),
		newExportCmd(a),
		newRunsCmd(a),
	)
	return root
}

func (a *app) init() error {
	settings, err := config.Resolve(a.configPath, ".")
	if err != nil {
		return err
	}
	a.settings = settings

	level, err := zapcore.ParseLevel(settings.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	a.logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
