// Package transform applies one random geometric distortion to a card image
// and maps the card's corner polygon through exactly the same matrix.
package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cardsynth/pkg/geometry"
	"github.com/menta2k/cardsynth/pkg/types"
)

// Rand is the random source consumed by the engine. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Config holds the distortion parameters.
type Config struct {
	// PadRatio is the transparent border added on every side, as a fraction of max(w, h).
	PadRatio float64
	// Relative selection weights of the three transform kinds.
	RotateWeight      float64
	AffineWeight      float64
	PerspectiveWeight float64
	// MaxRotation bounds the rotation angle to [-MaxRotation, MaxRotation) degrees.
	MaxRotation float64
	// AffineShift is the maximum anchor displacement as a fraction of min(w, h).
	AffineShift float64
	// PerspectiveMargin is the maximum inward corner displacement as a fraction of min(w, h).
	PerspectiveMargin float64
	// RejectNonConvex turns a non-convex perspective quad into a transform failure.
	RejectNonConvex bool
}

// DefaultConfig returns the distortion parameters used for dataset generation.
func DefaultConfig() Config {
	return Config{
		PadRatio:          0.25,
		RotateWeight:      0.6,
		AffineWeight:      0.2,
		PerspectiveWeight: 0.2,
		MaxRotation:       180,
		AffineShift:       0.08,
		PerspectiveMargin: 0.05,
		RejectNonConvex:   true,
	}
}

// Engine distorts padded card images.
type Engine struct {
	config Config
}

// New creates an Engine with the default configuration.
func New() *Engine {
	return &Engine{config: DefaultConfig()}
}

// NewWithConfig creates an Engine with a custom configuration.
func NewWithConfig(config Config) *Engine {
	return &Engine{config: config}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Result is a distorted image together with its corner polygon. Both live in
// the coordinate space of the padded canvas.
type Result struct {
	Image   *image.NRGBA
	Polygon types.Polygon
	Kind    types.TransformKind
	// Matrix maps padded-image coordinates to output coordinates.
	Matrix geometry.Homography
}

// padded is a card placed on a transparent border, with the card's own
// geometry kept for computing control points.
type padded struct {
	img     *image.NRGBA
	polygon types.Polygon
	pad     int
	w, h    int
}

// Apply pads img, draws a transform kind and its parameters from rng, and
// warps both the image and pg. pg must be expressed in img's pixel coordinates.
func (e *Engine) Apply(rng Rand, img image.Image, pg types.Polygon) (Result, error) {
	p, err := e.pad(img, pg)
	if err != nil {
		return Result{}, err
	}

	kind := e.ChooseKind(rng)
	switch kind {
	case types.Rotate:
		angle := uniform(rng, -e.config.MaxRotation, e.config.MaxRotation)
		return e.rotate(p, angle)
	case types.Affine:
		return e.affine(p, e.affineTargets(rng, p))
	case types.Perspective:
		return e.perspective(p, e.perspectiveTargets(rng, p))
	default:
		return Result{}, fmt.Errorf("%w: unknown transform kind %v", types.ErrTransform, kind)
	}
}

// ChooseKind draws a transform kind according to the configured weights.
func (e *Engine) ChooseKind(rng Rand) types.TransformKind {
	weights := []float64{e.config.RotateWeight, e.config.AffineWeight, e.config.PerspectiveWeight}
	var total float64
	for _, w := range weights {
		total += math.Max(w, 0)
	}
	r := rng.Float64() * total
	for i, w := range weights {
		w = math.Max(w, 0)
		if w > 0 && r < w {
			return types.Kinds[i]
		}
		r -= w
	}
	// Rounding at the upper edge lands on the last kind with a positive weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return types.Kinds[i]
		}
	}
	return types.Rotate
}

// Rotate pads img and rotates it by angle degrees about the padded center.
func (e *Engine) Rotate(img image.Image, pg types.Polygon, angle float64) (Result, error) {
	p, err := e.pad(img, pg)
	if err != nil {
		return Result{}, err
	}
	return e.rotate(p, angle)
}

// Affine pads img and applies the affine transform that moves the card's
// top-left, top-right and bottom-left anchors by the given offsets.
func (e *Engine) Affine(img image.Image, pg types.Polygon, offsets [3]types.Point) (Result, error) {
	p, err := e.pad(img, pg)
	if err != nil {
		return Result{}, err
	}
	dst := affineAnchors(p)
	for i := range dst {
		dst[i] = dst[i].Add(offsets[i].X, offsets[i].Y)
	}
	return e.affine(p, dst)
}

// Perspective pads img and applies the homography that moves the card's
// top-left, top-right, bottom-left and bottom-right corners by the given offsets.
func (e *Engine) Perspective(img image.Image, pg types.Polygon, offsets [4]types.Point) (Result, error) {
	p, err := e.pad(img, pg)
	if err != nil {
		return Result{}, err
	}
	dst := perspectiveAnchors(p)
	for i := range dst {
		dst[i] = dst[i].Add(offsets[i].X, offsets[i].Y)
	}
	return e.perspective(p, dst)
}

// PadWidth returns the border width used for a w x h card.
func (e *Engine) PadWidth(w, h int) int {
	return int(float64(max(w, h)) * e.config.PadRatio)
}

func (e *Engine) pad(img image.Image, pg types.Polygon) (padded, error) {
	if img == nil {
		return padded{}, fmt.Errorf("%w: nil image", types.ErrTransform)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return padded{}, fmt.Errorf("%w: empty image %dx%d", types.ErrTransform, w, h)
	}
	if !pg.Valid() {
		return padded{}, fmt.Errorf("%w: polygon has non-finite coordinates", types.ErrTransform)
	}

	pad := e.PadWidth(w, h)
	canvas := imaging.New(w+2*pad, h+2*pad, color.NRGBA{})
	canvas = imaging.Paste(canvas, img, image.Pt(pad, pad))

	return padded{
		img:     canvas,
		polygon: pg.Translate(float64(pad), float64(pad)),
		pad:     pad,
		w:       w,
		h:       h,
	}, nil
}

func (e *Engine) rotate(p padded, angle float64) (Result, error) {
	b := p.img.Bounds()
	center := types.Point{X: float64(b.Dx()) / 2, Y: float64(b.Dy()) / 2}
	return warpAffineResult(p, geometry.Rotation(center, angle), types.Rotate)
}

func (e *Engine) affine(p padded, dst [3]types.Point) (Result, error) {
	m, err := geometry.SolveAffine(affineAnchors(p), dst)
	if err != nil {
		return Result{}, fmt.Errorf("%w: affine solve: %v", types.ErrTransform, err)
	}
	return warpAffineResult(p, m, types.Affine)
}

func (e *Engine) perspective(p padded, dst [4]types.Point) (Result, error) {
	if e.config.RejectNonConvex && !geometry.Convex(types.Polygon{dst[0], dst[1], dst[3], dst[2]}) {
		return Result{}, fmt.Errorf("%w: perturbed corners do not form a convex quad", types.ErrTransform)
	}
	h, err := geometry.SolveHomography(perspectiveAnchors(p), dst)
	if err != nil {
		return Result{}, fmt.Errorf("%w: homography solve: %v", types.ErrTransform, err)
	}

	out, err := WarpPerspective(p.img, h)
	if err != nil {
		return Result{}, err
	}
	pg := h.ApplyPolygon(p.polygon)
	if !pg.Valid() {
		return Result{}, fmt.Errorf("%w: corner mapped to infinity", types.ErrTransform)
	}
	return Result{Image: out, Polygon: pg, Kind: types.Perspective, Matrix: h}, nil
}

func warpAffineResult(p padded, m geometry.Affine, kind types.TransformKind) (Result, error) {
	out, err := WarpAffine(p.img, m)
	if err != nil {
		return Result{}, err
	}
	pg := m.ApplyPolygon(p.polygon)
	if !pg.Valid() {
		return Result{}, fmt.Errorf("%w: non-finite corner", types.ErrTransform)
	}
	return Result{Image: out, Polygon: pg, Kind: kind, Matrix: geometry.HomographyFromAffine(m)}, nil
}

// affineAnchors returns the card's top-left, top-right and bottom-left
// corners in padded coordinates.
func affineAnchors(p padded) [3]types.Point {
	pad := float64(p.pad)
	w, h := float64(p.w), float64(p.h)
	return [3]types.Point{{X: pad, Y: pad}, {X: pad + w, Y: pad}, {X: pad, Y: pad + h}}
}

// perspectiveAnchors returns the card's top-left, top-right, bottom-left and
// bottom-right corners in padded coordinates.
func perspectiveAnchors(p padded) [4]types.Point {
	pad := float64(p.pad)
	w, h := float64(p.w), float64(p.h)
	return [4]types.Point{{X: pad, Y: pad}, {X: pad + w, Y: pad}, {X: pad, Y: pad + h}, {X: pad + w, Y: pad + h}}
}

func (e *Engine) affineTargets(rng Rand, p padded) [3]types.Point {
	shift := float64(int(float64(min(p.w, p.h)) * e.config.AffineShift))
	dst := affineAnchors(p)
	for i := range dst {
		dx := uniform(rng, -shift, shift)
		dy := uniform(rng, -shift, shift)
		dst[i] = dst[i].Add(dx, dy)
	}
	return dst
}

func (e *Engine) perspectiveTargets(rng Rand, p padded) [4]types.Point {
	margin := float64(int(float64(min(p.w, p.h)) * e.config.PerspectiveMargin))
	// Every corner moves toward the card interior.
	inward := [4][2]float64{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}}
	dst := perspectiveAnchors(p)
	for i := range dst {
		dx := uniform(rng, 0, margin)
		dy := uniform(rng, 0, margin)
		dst[i] = dst[i].Add(inward[i][0]*dx, inward[i][1]*dy)
	}
	return dst
}

func uniform(rng Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
