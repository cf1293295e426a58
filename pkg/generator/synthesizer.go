package generator

import (
	"fmt"
	"image"

	"github.com/menta2k/cardsynth/pkg/composite"
	"github.com/menta2k/cardsynth/pkg/transform"
	"github.com/menta2k/cardsynth/pkg/types"
)

// Rand is the single random source threaded through a run. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Sample is one synthesized training image and its label polygon.
type Sample struct {
	Image   *image.NRGBA
	Polygon types.Polygon
	Corners types.Corners
	Kind    types.TransformKind
	// Scale is the pre-scale factor drawn for the card.
	Scale float64
}

// Synthesizer turns a card image and a background crop into a labeled sample.
type Synthesizer struct {
	engine     *transform.Engine
	compositor *composite.Compositor
}

// NewSynthesizer creates a Synthesizer from an engine and a compositor.
func NewSynthesizer(engine *transform.Engine, compositor *composite.Compositor) *Synthesizer {
	return &Synthesizer{engine: engine, compositor: compositor}
}

// Engine returns the transform engine.
func (s *Synthesizer) Engine() *transform.Engine {
	return s.engine
}

// Compositor returns the compositor.
func (s *Synthesizer) Compositor() *composite.Compositor {
	return s.compositor
}

// Synthesize pre-scales card, distorts it and composites it onto background.
// All randomness is drawn from rng in a fixed order, so a seeded source
// reproduces the same sample. Errors matching types.Skippable only
// invalidate this sample.
func (s *Synthesizer) Synthesize(rng Rand, card, background image.Image) (Sample, error) {
	if card == nil {
		return Sample{}, fmt.Errorf("%w: nil card image", types.ErrTransform)
	}

	scaled, pg, f := s.compositor.PreScale(rng, card)
	res, err := s.engine.Apply(rng, scaled, pg)
	if err != nil {
		return Sample{}, err
	}

	out, err := s.compositor.Composite(res, background)
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		Image:   out.Image,
		Polygon: out.Polygon,
		Corners: out.Corners,
		Kind:    res.Kind,
		Scale:   f,
	}, nil
}
