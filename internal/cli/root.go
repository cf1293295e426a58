// Package cli implements the cardsynth command-line interface.
//
// Commands:
//   - generate: build a labeled dataset from a card catalog and a background directory
//   - sample: synthesize a single sample from local files
//   - overlay: draw the labeled corners of a generated dataset for inspection
//   - config: write or show the configuration file
//
// All commands accept --verbose (-v) for debug logging and --config (-c) to
// select a JSON or TOML configuration file.
package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/menta2k/cardsynth"
	"github.com/menta2k/cardsynth/internal/config"
	"github.com/menta2k/cardsynth/internal/utils"
)

const appName = "cardsynth"

// options holds the persistent flags shared by all commands.
type options struct {
	verbose    bool
	configPath string
}

// NewRootCommand creates the root command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          appName,
		Short:        "Synthesize labeled card-detection training images",
		Long:         `cardsynth distorts card images with random rotations, affine skews and perspective warps, composites them onto background photos and records the card corners as ground-truth labels.`,
		Version:      cardsynth.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if opts.verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (.json or .toml)")

	root.AddCommand(newGenerateCommand(opts))
	root.AddCommand(newSampleCommand(opts))
	root.AddCommand(newOverlayCommand())
	root.AddCommand(newConfigCommand(opts))

	return root
}

// Execute runs the CLI with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// loadConfig reads the file named by --config, or the default config path
// when it exists, and falls back to built-in defaults.
func (o *options) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		if p := config.GetConfigPath(); utils.FileExists(p) {
			path = p
		}
	}
	if path == "" {
		return config.Default(), nil
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func validated(cfg *config.Config) (*config.Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
