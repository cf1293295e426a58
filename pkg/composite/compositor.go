// Package composite places a distorted card onto a fixed-size square canvas
// and keeps its corner polygon in canvas coordinates.
package composite

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cardsynth/pkg/imagefile"
	"github.com/menta2k/cardsynth/pkg/transform"
	"github.com/menta2k/cardsynth/pkg/types"
)

// BlendMode selects how the card's alpha channel is applied.
type BlendMode string

const (
	// Hard draws a card pixel wherever its alpha is non-zero and keeps the background elsewhere.
	Hard BlendMode = "hard"
	// Soft blends card and background by the card's alpha.
	Soft BlendMode = "soft"
)

// Rand is the random source used for the pre-scale draw.
type Rand interface {
	Float64() float64
}

// Config holds compositing parameters.
type Config struct {
	CanvasSize int
	// Cards are shrunk by a factor drawn from [ScaleMin, ScaleMax] before distortion.
	ScaleMin  float64
	ScaleMax  float64
	BlendMode BlendMode
}

// DefaultConfig returns the compositing parameters used for dataset generation.
func DefaultConfig() Config {
	return Config{
		CanvasSize: 1024,
		ScaleMin:   0.60,
		ScaleMax:   0.85,
		BlendMode:  Hard,
	}
}

// Compositor blends distorted cards onto background crops.
type Compositor struct {
	config Config
}

// New creates a Compositor with the default configuration.
func New() *Compositor {
	return &Compositor{config: DefaultConfig()}
}

// NewWithConfig creates a Compositor with a custom configuration.
func NewWithConfig(config Config) *Compositor {
	return &Compositor{config: config}
}

// Config returns the compositor configuration.
func (c *Compositor) Config() Config {
	return c.config
}

// Result is the final opaque canvas and the card polygon in canvas coordinates.
type Result struct {
	Image   *image.NRGBA
	Polygon types.Polygon
	Corners types.Corners
	// FitScale is the factor applied to fit the card inside the canvas (1 when it already fit).
	FitScale float64
	Offset   image.Point
}

// PreScale converts img to NRGBA with an alpha channel and shrinks it by a
// factor drawn from the configured range. It returns the scaled card, its
// corner polygon and the factor used.
func (c *Compositor) PreScale(rng Rand, img image.Image) (*image.NRGBA, types.Polygon, float64) {
	f := c.config.ScaleMin + (c.config.ScaleMax-c.config.ScaleMin)*rng.Float64()
	card := Resize(imagefile.ToNRGBA(img), f)
	b := card.Bounds()
	return card, types.RectPolygon(b.Dx(), b.Dy()), f
}

// Resize scales img uniformly by f. Dimensions are truncated like int(w*f).
func Resize(img *image.NRGBA, f float64) *image.NRGBA {
	b := img.Bounds()
	w, h := scaledDim(b.Dx(), f), scaledDim(b.Dy(), f)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return imaging.Resize(img, max(w, 1), max(h, 1), imaging.Lanczos)
}

// FitToCanvas shrinks img so that neither side exceeds size, scaling pg by
// the identical factor. Images that already fit are returned unchanged with factor 1.
func FitToCanvas(img *image.NRGBA, pg types.Polygon, size int) (*image.NRGBA, types.Polygon, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= size && h <= size {
		return img, pg, 1
	}
	f := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw, nh := min(scaledDim(w, f), size), min(scaledDim(h, f), size)
	scaled := imaging.Resize(img, max(nw, 1), max(nh, 1), imaging.Lanczos)
	return scaled, pg.Scale(f), f
}

// CenterOffset returns the top-left position that centers a w x h image on a
// size x size canvas.
func CenterOffset(size, w, h int) image.Point {
	return image.Pt((size-w)/2, (size-h)/2)
}

// Composite fits the distorted card to the canvas, centers it on an opaque
// copy of background and returns the final image with the card polygon in
// canvas coordinates. background is expected to be a canvas-sized crop.
func (c *Compositor) Composite(res transform.Result, background image.Image) (Result, error) {
	if res.Image == nil {
		return Result{}, fmt.Errorf("%w: missing transformed image", types.ErrTransform)
	}
	if background == nil {
		return Result{}, fmt.Errorf("composite: nil background")
	}

	size := c.config.CanvasSize
	if bb := background.Bounds(); bb.Dx() != size || bb.Dy() != size {
		return Result{}, fmt.Errorf("%w: background %dx%d, canvas %dx%d", types.ErrShapeMismatch,
			bb.Dx(), bb.Dy(), size, size)
	}
	card, pg, f := FitToCanvas(res.Image, res.Polygon, size)
	cb := card.Bounds()
	offset := CenterOffset(size, cb.Dx(), cb.Dy())

	canvas := imagefile.Opaque(background)
	region := image.Rectangle{Min: offset, Max: offset.Add(cb.Size())}.Intersect(canvas.Bounds())
	roi, ok := canvas.SubImage(region).(*image.NRGBA)
	if !ok {
		return Result{}, fmt.Errorf("composite: unexpected canvas type")
	}

	if err := Blend(roi, card, AlphaMask(card), c.config.BlendMode); err != nil {
		return Result{}, err
	}

	pg = pg.Translate(float64(offset.X), float64(offset.Y))
	return Result{
		Image:    canvas,
		Polygon:  pg,
		Corners:  pg.Round(),
		FitScale: f,
		Offset:   offset,
	}, nil
}

// AlphaMask extracts the alpha channel of img.
func AlphaMask(img *image.NRGBA) *image.Alpha {
	b := img.Bounds()
	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			mask.Pix[y*mask.Stride+x] = img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3]
		}
	}
	return mask
}

// Blend draws fg onto region through mask. region, fg and mask must share
// the same dimensions, otherwise ErrShapeMismatch is returned and region is
// left untouched.
func Blend(region, fg *image.NRGBA, mask *image.Alpha, mode BlendMode) error {
	rb, fb, mb := region.Bounds(), fg.Bounds(), mask.Bounds()
	if rb.Size() != mb.Size() || fb.Size() != mb.Size() {
		return fmt.Errorf("%w: region %dx%d, card %dx%d, mask %dx%d", types.ErrShapeMismatch,
			rb.Dx(), rb.Dy(), fb.Dx(), fb.Dy(), mb.Dx(), mb.Dy())
	}

	for y := 0; y < mb.Dy(); y++ {
		for x := 0; x < mb.Dx(); x++ {
			a := mask.AlphaAt(mb.Min.X+x, mb.Min.Y+y).A
			if a == 0 {
				continue
			}
			d := region.PixOffset(rb.Min.X+x, rb.Min.Y+y)
			s := fg.PixOffset(fb.Min.X+x, fb.Min.Y+y)
			switch mode {
			case Soft:
				t := float64(a) / 255
				for k := 0; k < 3; k++ {
					v := float64(fg.Pix[s+k])*t + float64(region.Pix[d+k])*(1-t)
					region.Pix[d+k] = uint8(math.Min(255, v+0.5))
				}
			default:
				copy(region.Pix[d:d+3], fg.Pix[s:s+3])
			}
			region.Pix[d+3] = 0xff
		}
	}
	return nil
}

func scaledDim(n int, f float64) int {
	// The small bias keeps products such as 1500*(1024/1500) from truncating to 1023.
	return int(math.Floor(float64(n)*f + 1e-9))
}
