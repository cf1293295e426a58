package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/menta2k/cardsynth/pkg/composite"
	"github.com/menta2k/cardsynth/pkg/fetch"
	"github.com/menta2k/cardsynth/pkg/generator"
	"github.com/menta2k/cardsynth/pkg/imagefile"
	"github.com/menta2k/cardsynth/pkg/transform"
)

// Config holds the application configuration
type Config struct {
	Generator GeneratorConfig `json:"generator" toml:"generator"`
	Transform TransformConfig `json:"transform" toml:"transform"`
	Composite CompositeConfig `json:"composite" toml:"composite"`
	Fetch     FetchConfig     `json:"fetch" toml:"fetch"`
	Output    OutputConfig    `json:"output" toml:"output"`
}

// GeneratorConfig holds configuration for the dataset loop
type GeneratorConfig struct {
	Cycles         int      `json:"cycles" toml:"cycles"`
	Delay          Duration `json:"delay" toml:"delay"`
	OutputDir      string   `json:"output_dir" toml:"output_dir"`
	AnnotationFile string   `json:"annotation_file" toml:"annotation_file"`
	BackgroundDir  string   `json:"background_dir" toml:"background_dir"`
	CatalogPath    string   `json:"catalog_path" toml:"catalog_path"`
	// Seed 0 seeds from the clock.
	Seed uint64 `json:"seed" toml:"seed"`
}

// TransformConfig holds configuration for the random distortion
type TransformConfig struct {
	PadRatio          float64 `json:"pad_ratio" toml:"pad_ratio"`
	RotateWeight      float64 `json:"rotate_weight" toml:"rotate_weight"`
	AffineWeight      float64 `json:"affine_weight" toml:"affine_weight"`
	PerspectiveWeight float64 `json:"perspective_weight" toml:"perspective_weight"`
	MaxRotation       float64 `json:"max_rotation" toml:"max_rotation"`
	AffineShift       float64 `json:"affine_shift" toml:"affine_shift"`
	PerspectiveMargin float64 `json:"perspective_margin" toml:"perspective_margin"`
	RejectNonConvex   bool    `json:"reject_non_convex" toml:"reject_non_convex"`
}

// CompositeConfig holds configuration for canvas placement
type CompositeConfig struct {
	CanvasSize int     `json:"canvas_size" toml:"canvas_size"`
	ScaleMin   float64 `json:"scale_min" toml:"scale_min"`
	ScaleMax   float64 `json:"scale_max" toml:"scale_max"`
	BlendMode  string  `json:"blend_mode" toml:"blend_mode"`
}

// FetchConfig holds configuration for card downloads
type FetchConfig struct {
	Timeout   Duration `json:"timeout" toml:"timeout"`
	MaxBytes  int64    `json:"max_bytes" toml:"max_bytes"`
	MinHeight int      `json:"min_height" toml:"min_height"`
	UserAgent string   `json:"user_agent" toml:"user_agent"`
}

// OutputConfig holds configuration for sample encoding
type OutputConfig struct {
	Format   string `json:"format" toml:"format"`
	Quality  int    `json:"quality" toml:"quality"`
	Lossless bool   `json:"lossless" toml:"lossless"`
}

// Duration is a time.Duration written as a string such as "200ms".
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns a configuration with default values
func Default() *Config {
	gen := generator.DefaultConfig()
	tr := transform.DefaultConfig()
	comp := composite.DefaultConfig()
	fe := fetch.DefaultConfig()

	return &Config{
		Generator: GeneratorConfig{
			Cycles:         gen.Cycles,
			Delay:          Duration{gen.Delay},
			OutputDir:      gen.OutputDir,
			AnnotationFile: gen.AnnotationFile,
			BackgroundDir:  "backgrounds",
			CatalogPath:    "cards.json",
		},
		Transform: TransformConfig{
			PadRatio:          tr.PadRatio,
			RotateWeight:      tr.RotateWeight,
			AffineWeight:      tr.AffineWeight,
			PerspectiveWeight: tr.PerspectiveWeight,
			MaxRotation:       tr.MaxRotation,
			AffineShift:       tr.AffineShift,
			PerspectiveMargin: tr.PerspectiveMargin,
			RejectNonConvex:   tr.RejectNonConvex,
		},
		Composite: CompositeConfig{
			CanvasSize: comp.CanvasSize,
			ScaleMin:   comp.ScaleMin,
			ScaleMax:   comp.ScaleMax,
			BlendMode:  string(comp.BlendMode),
		},
		Fetch: FetchConfig{
			Timeout:   Duration{fe.Timeout},
			MaxBytes:  fe.MaxBytes,
			MinHeight: fe.MinHeight,
			UserAgent: fe.UserAgent,
		},
		Output: OutputConfig{
			Format:  string(gen.Output.Format),
			Quality: gen.Output.Quality,
		},
	}
}

func isTOML(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}

// LoadFromFile loads configuration from a JSON or TOML file. Keys missing
// from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isTOML(filename) {
		err = toml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON or TOML file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	if isTOML(filename) {
		var buf bytes.Buffer
		if err := c.WriteTOML(&buf); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WriteTOML encodes the configuration as TOML to w
func (c *Config) WriteTOML(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Generator.Cycles < 0 {
		return fmt.Errorf("generator.cycles cannot be negative")
	}

	if c.Generator.Delay.Duration < 0 {
		return fmt.Errorf("generator.delay cannot be negative")
	}

	if c.Generator.OutputDir == "" {
		return fmt.Errorf("generator.output_dir cannot be empty")
	}

	if c.Generator.AnnotationFile == "" {
		return fmt.Errorf("generator.annotation_file cannot be empty")
	}

	if c.Transform.PadRatio < 0 || c.Transform.PadRatio > 1 {
		return fmt.Errorf("transform.pad_ratio must be between 0 and 1")
	}

	weights := []float64{c.Transform.RotateWeight, c.Transform.AffineWeight, c.Transform.PerspectiveWeight}
	var total float64
	for _, w := range weights {
		if w < 0 {
			return fmt.Errorf("transform weights cannot be negative")
		}
		total += w
	}
	if total == 0 {
		return fmt.Errorf("at least one transform weight must be positive")
	}

	if c.Transform.MaxRotation < 0 || c.Transform.MaxRotation > 180 {
		return fmt.Errorf("transform.max_rotation must be between 0 and 180")
	}

	if c.Transform.AffineShift < 0 || c.Transform.AffineShift > 0.5 {
		return fmt.Errorf("transform.affine_shift must be between 0 and 0.5")
	}

	if c.Transform.PerspectiveMargin < 0 || c.Transform.PerspectiveMargin > 0.5 {
		return fmt.Errorf("transform.perspective_margin must be between 0 and 0.5")
	}

	if c.Composite.CanvasSize < 1 {
		return fmt.Errorf("composite.canvas_size must be positive")
	}

	if c.Composite.ScaleMin <= 0 || c.Composite.ScaleMax > 1 || c.Composite.ScaleMin > c.Composite.ScaleMax {
		return fmt.Errorf("composite scale range must satisfy 0 < scale_min <= scale_max <= 1")
	}

	switch composite.BlendMode(c.Composite.BlendMode) {
	case composite.Hard, composite.Soft:
	default:
		return fmt.Errorf("composite.blend_mode must be %q or %q", composite.Hard, composite.Soft)
	}

	if c.Fetch.Timeout.Duration <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}

	if c.Fetch.MaxBytes < 1 {
		return fmt.Errorf("fetch.max_bytes must be positive")
	}

	if _, err := imagefile.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// GeneratorSettings returns the run parameters for the generator package.
func (c *Config) GeneratorSettings() generator.Config {
	return generator.Config{
		Cycles:         c.Generator.Cycles,
		Delay:          c.Generator.Delay.Duration,
		OutputDir:      c.Generator.OutputDir,
		AnnotationFile: c.Generator.AnnotationFile,
		Output:         c.SaveOptions(),
	}
}

// TransformSettings returns the transform engine parameters.
func (c *Config) TransformSettings() transform.Config {
	return transform.Config{
		PadRatio:          c.Transform.PadRatio,
		RotateWeight:      c.Transform.RotateWeight,
		AffineWeight:      c.Transform.AffineWeight,
		PerspectiveWeight: c.Transform.PerspectiveWeight,
		MaxRotation:       c.Transform.MaxRotation,
		AffineShift:       c.Transform.AffineShift,
		PerspectiveMargin: c.Transform.PerspectiveMargin,
		RejectNonConvex:   c.Transform.RejectNonConvex,
	}
}

// CompositeSettings returns the compositor parameters.
func (c *Config) CompositeSettings() composite.Config {
	return composite.Config{
		CanvasSize: c.Composite.CanvasSize,
		ScaleMin:   c.Composite.ScaleMin,
		ScaleMax:   c.Composite.ScaleMax,
		BlendMode:  composite.BlendMode(c.Composite.BlendMode),
	}
}

// FetchSettings returns the download limits.
func (c *Config) FetchSettings() fetch.Config {
	return fetch.Config{
		Timeout:   c.Fetch.Timeout.Duration,
		MaxBytes:  c.Fetch.MaxBytes,
		MinHeight: c.Fetch.MinHeight,
		UserAgent: c.Fetch.UserAgent,
	}
}

// SaveOptions returns the encoding options for samples. An invalid format
// falls back to JPEG; Validate reports it.
func (c *Config) SaveOptions() imagefile.SaveOptions {
	format, err := imagefile.ParseFormat(c.Output.Format)
	if err != nil {
		format = imagefile.JPEG
	}
	return imagefile.SaveOptions{
		Format:   format,
		Quality:  c.Output.Quality,
		Lossless: c.Output.Lossless,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./cardsynth.toml"
	}
	return filepath.Join(home, ".config", "cardsynth", "config.toml")
}
