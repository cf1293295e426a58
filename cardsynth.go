// Package cardsynth synthesizes labeled training images for card detection.
//
// A card image is shrunk by a random factor, padded with a transparent border
// and distorted by one randomly chosen rotation, affine skew or perspective
// warp. The result is fitted and centered onto a square background crop and
// the card's four corners, tracked through exactly the same matrices, become
// the ground-truth label.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//		"math/rand/v2"
//
//		"github.com/menta2k/cardsynth"
//	)
//
//	func main() {
//		cs := cardsynth.New()
//		rng := rand.New(rand.NewPCG(1, 2))
//
//		ann, err := cs.SynthesizeFile(rng, "card.png", "table.jpg", "out/00000_card.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("corners: %v", ann.Corners)
//	}
//
// The package consists of these components:
//
// 1. Transform (pkg/transform): padding and the rotate/affine/perspective warps
// 2. Composite (pkg/composite): pre-scale, fit-to-canvas, centering and alpha blending
// 3. Annotation (pkg/annotation): the JSON label file of a run
// 4. Generator (pkg/generator): the catalog-driven dataset loop
// 5. Overlay (pkg/overlay): corner drawing for checking labels by eye
//
// Every random draw comes from a caller-supplied source, so a seeded source
// reproduces byte-identical samples.
package cardsynth

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/menta2k/cardsynth/pkg/background"
	"github.com/menta2k/cardsynth/pkg/composite"
	"github.com/menta2k/cardsynth/pkg/generator"
	"github.com/menta2k/cardsynth/pkg/imagefile"
	"github.com/menta2k/cardsynth/pkg/transform"
	"github.com/menta2k/cardsynth/pkg/types"
)

// Version of the cardsynth library
const Version = "1.0.0"

// CardSynth provides a high-level interface for synthesizing single samples
type CardSynth struct {
	synth *generator.Synthesizer
}

// New creates a new CardSynth with default configuration
func New() *CardSynth {
	return &CardSynth{
		synth: generator.NewSynthesizer(transform.New(), composite.New()),
	}
}

// NewWithConfig creates a new CardSynth with custom configuration
func NewWithConfig(transformConfig transform.Config, compositeConfig composite.Config) *CardSynth {
	return &CardSynth{
		synth: generator.NewSynthesizer(transform.NewWithConfig(transformConfig), composite.NewWithConfig(compositeConfig)),
	}
}

// CanvasSize returns the side length of synthesized samples
func (cs *CardSynth) CanvasSize() int {
	return cs.synth.Compositor().Config().CanvasSize
}

// LoadImage loads an image from file
func (cs *CardSynth) LoadImage(path string) (image.Image, error) {
	return imagefile.Load(path)
}

// SaveImage saves an image, choosing the encoder from the file extension
func (cs *CardSynth) SaveImage(img image.Image, path string) error {
	format, err := imagefile.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	return imagefile.Save(img, path, imagefile.SaveOptions{Format: format, Quality: 90})
}

// Synthesize distorts card and composites it onto background, which must
// already be a canvas-sized crop
func (cs *CardSynth) Synthesize(rng generator.Rand, card, background image.Image) (generator.Sample, error) {
	return cs.synth.Synthesize(rng, card, background)
}

// SynthesizeFile is a convenience function that loads a card and a
// background photo, cuts a random canvas-sized crop from the photo,
// synthesizes one sample and saves it to outputPath. The label is the card
// file's base name.
func (cs *CardSynth) SynthesizeFile(rng generator.Rand, cardPath, backgroundPath, outputPath string) (types.Annotation, error) {
	card, err := cs.LoadImage(cardPath)
	if err != nil {
		return types.Annotation{}, fmt.Errorf("failed to load card: %w", err)
	}

	photo, err := cs.LoadImage(backgroundPath)
	if err != nil {
		return types.Annotation{}, fmt.Errorf("failed to load background: %w", err)
	}
	size := cs.CanvasSize()
	if err := imagefile.ValidateSize(photo, size, size); err != nil {
		return types.Annotation{}, fmt.Errorf("background validation failed: %w", err)
	}
	crop := background.Crop(rng, imagefile.Opaque(photo), size)

	sample, err := cs.Synthesize(rng, card, crop)
	if err != nil {
		return types.Annotation{}, err
	}

	if err := cs.SaveImage(sample.Image, outputPath); err != nil {
		return types.Annotation{}, fmt.Errorf("failed to save sample: %w", err)
	}

	return types.Annotation{
		Filename: filepath.Base(outputPath),
		CardName: getBaseName(cardPath),
		Corners:  sample.Corners,
	}, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// getBaseName extracts the base filename without extension
func getBaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
