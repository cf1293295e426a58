// Package generator runs the dataset loop: it walks every border color and
// color group for a number of cycles, downloads a matching card, synthesizes
// a sample and records its label. Per-sample failures are logged and skipped.
package generator

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/menta2k/cardsynth/internal/utils"
	"github.com/menta2k/cardsynth/pkg/annotation"
	"github.com/menta2k/cardsynth/pkg/background"
	"github.com/menta2k/cardsynth/pkg/catalog"
	"github.com/menta2k/cardsynth/pkg/imagefile"
	"github.com/menta2k/cardsynth/pkg/types"
)

// ImageSource provides decoded card images. *fetch.Fetcher satisfies it.
type ImageSource interface {
	LoadImage(ctx context.Context, url string) (image.Image, error)
}

// BackgroundSource provides canvas-sized background crops. *background.Pool satisfies it.
type BackgroundSource interface {
	RandomCrop(rng background.Rand) (*image.NRGBA, error)
}

// Config holds run parameters.
type Config struct {
	Cycles int
	// Delay is the pause after each successfully written sample.
	Delay          time.Duration
	OutputDir      string
	AnnotationFile string
	Output         imagefile.SaveOptions
}

// DefaultConfig returns the run parameters used for dataset generation.
func DefaultConfig() Config {
	return Config{
		Cycles:         250,
		Delay:          200 * time.Millisecond,
		OutputDir:      "dataset",
		AnnotationFile: "annotations.json",
		Output:         imagefile.SaveOptions{Format: imagefile.JPEG, Quality: 90},
	}
}

// AnnotationPath returns where the annotation file is written.
func (c Config) AnnotationPath() string {
	if filepath.IsAbs(c.AnnotationFile) {
		return c.AnnotationFile
	}
	return filepath.Join(c.OutputDir, c.AnnotationFile)
}

// Stats summarizes a run.
type Stats struct {
	Samples  int
	Skipped  int
	NoMatch  int
	Duration time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the random source. The default is seeded from the clock.
func WithRand(rng Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// Generator produces a labeled dataset.
type Generator struct {
	config      Config
	groups      []catalog.ColorGroup
	matches     map[string][][]catalog.Card
	source      ImageSource
	backgrounds BackgroundSource
	synth       *Synthesizer
	emitter     *annotation.Emitter
	rng         Rand
	logger      *log.Logger
}

// New creates a Generator over the usable cards of cards.
func New(config Config, cards []catalog.Card, source ImageSource, backgrounds BackgroundSource, synth *Synthesizer, opts ...Option) *Generator {
	g := &Generator{
		config:      config,
		groups:      catalog.ColorGroups(),
		matches:     make(map[string][][]catalog.Card),
		source:      source,
		backgrounds: backgrounds,
		synth:       synth,
		emitter:     annotation.NewEmitter(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = NewRand(0)
	}
	if g.logger == nil {
		g.logger = log.Default()
	}

	usable := catalog.FilterUsable(cards)
	for _, border := range catalog.BorderColors {
		perGroup := make([][]catalog.Card, len(g.groups))
		for i, group := range g.groups {
			perGroup[i] = catalog.Matching(usable, border, group)
		}
		g.matches[border] = perGroup
	}
	return g
}

// NewRand returns a PCG-backed source for seed. Zero seeds from the clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Annotations returns the records collected so far.
func (g *Generator) Annotations() []types.Annotation {
	return g.emitter.Records()
}

// Run generates the dataset. Annotations are written once when the loop
// ends, including when ctx is canceled, in which case ctx.Err() is returned.
func (g *Generator) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	if err := utils.EnsureDir(g.config.OutputDir); err != nil {
		return stats, fmt.Errorf("failed to create output directory: %w", err)
	}

	runErr := g.loop(ctx, &stats)

	path := g.config.AnnotationPath()
	if err := g.emitter.WriteFile(path); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)

	g.logger.Info("generation finished",
		"samples", stats.Samples,
		"skipped", stats.Skipped,
		"annotations", path,
		"elapsed", stats.Duration.Round(time.Millisecond))
	return stats, runErr
}

func (g *Generator) loop(ctx context.Context, stats *Stats) error {
	for cycle := 0; cycle < g.config.Cycles; cycle++ {
		g.logger.Debug("starting cycle", "cycle", cycle+1, "cycles", g.config.Cycles)
		for _, border := range catalog.BorderColors {
			for i, group := range g.groups {
				if err := ctx.Err(); err != nil {
					return err
				}

				card, ok := catalog.Pick(g.rng, g.matches[border][i])
				if !ok {
					stats.NoMatch++
					continue
				}

				filename, err := g.generateSample(ctx, stats.Samples, card)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					stats.Skipped++
					g.logger.Warn("skipping sample",
						"card", card.Name,
						"border", border,
						"colors", group.Name,
						"skippable", types.Skippable(err),
						"err", err)
					continue
				}

				stats.Samples++
				g.logger.Debug("sample written", "file", filename, "card", card.Name)

				if err := sleep(ctx, g.config.Delay); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// generateSample downloads card, synthesizes sample n and saves it. The
// annotation is recorded only after the image is on disk.
func (g *Generator) generateSample(ctx context.Context, n int, card catalog.Card) (string, error) {
	img, err := g.source.LoadImage(ctx, card.ImageURL())
	if err != nil {
		return "", err
	}

	bg, err := g.backgrounds.RandomCrop(g.rng)
	if err != nil {
		return "", err
	}

	sample, err := g.synth.Synthesize(g.rng, img, bg)
	if err != nil {
		return "", err
	}

	format := g.config.Output.Format
	if format == "" {
		format = imagefile.JPEG
	}
	filename := utils.SampleFilename(n, card.Name, string(format))
	if err := imagefile.Save(sample.Image, filepath.Join(g.config.OutputDir, filename), g.config.Output); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", filename, err)
	}

	g.emitter.Add(filename, card.Name, sample.Corners)
	return filename, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
