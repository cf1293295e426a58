package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/menta2k/cardsynth/pkg/background"
	"github.com/menta2k/cardsynth/pkg/catalog"
	"github.com/menta2k/cardsynth/pkg/composite"
	"github.com/menta2k/cardsynth/pkg/fetch"
	"github.com/menta2k/cardsynth/pkg/generator"
	"github.com/menta2k/cardsynth/pkg/transform"
)

// newGenerateCommand creates the "generate" command.
func newGenerateCommand(opts *options) *cobra.Command {
	var (
		catalogPath   string
		backgroundDir string
		outputDir     string
		format        string
		cycles        int
		seed          uint64
		delay         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a labeled dataset",
		Long: `Generate walks every border color and color group of the catalog for the
configured number of cycles, downloads a random matching card, distorts it onto
a random background crop and writes the sample with its corner annotation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("catalog") {
				cfg.Generator.CatalogPath = catalogPath
			}
			if flags.Changed("backgrounds") {
				cfg.Generator.BackgroundDir = backgroundDir
			}
			if flags.Changed("output") {
				cfg.Generator.OutputDir = outputDir
			}
			if flags.Changed("format") {
				cfg.Output.Format = format
			}
			if flags.Changed("cycles") {
				cfg.Generator.Cycles = cycles
			}
			if flags.Changed("seed") {
				cfg.Generator.Seed = seed
			}
			if flags.Changed("delay") {
				cfg.Generator.Delay.Duration = delay
			}
			if cfg, err = validated(cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cards, err := catalog.LoadFile(cfg.Generator.CatalogPath)
			if err != nil {
				return err
			}
			logger.Info("loaded catalog", "path", cfg.Generator.CatalogPath,
				"cards", len(cards), "usable", len(catalog.FilterUsable(cards)))

			pool, skipped, err := background.LoadDir(cfg.Generator.BackgroundDir, cfg.Composite.CanvasSize)
			for _, p := range skipped {
				logger.Warn("skipping background", "path", p)
			}
			if err != nil {
				return err
			}
			logger.Info("loaded backgrounds", "count", pool.Len())

			synth := generator.NewSynthesizer(
				transform.NewWithConfig(cfg.TransformSettings()),
				composite.NewWithConfig(cfg.CompositeSettings()),
			)
			g := generator.New(cfg.GeneratorSettings(), cards, fetch.New(cfg.FetchSettings()), pool, synth,
				generator.WithRand(generator.NewRand(cfg.Generator.Seed)),
				generator.WithLogger(logger),
			)

			prog := newProgress(logger)
			stats, err := g.Run(ctx)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Generated %d samples in %s", stats.Samples, cfg.Generator.OutputDir))
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "card catalog JSON file")
	cmd.Flags().StringVar(&backgroundDir, "backgrounds", "", "directory of background photos")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVar(&format, "format", "", "sample format: jpg|png|webp")
	cmd.Flags().IntVar(&cycles, "cycles", 0, "number of passes over all border/color combinations")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = time-based)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause after each downloaded sample")

	return cmd
}
