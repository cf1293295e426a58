package transform

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/cardsynth/pkg/geometry"
	"github.com/menta2k/cardsynth/pkg/types"
)

// Integer coordinates address pixel centers: the pixel at (x, y) of src lands
// at m.Apply(x, y) of the output. Output size equals src size and pixels that
// map from outside src stay fully transparent.

// WarpAffine warps src through m with bilinear interpolation.
func WarpAffine(src *image.NRGBA, m geometry.Affine) (*image.NRGBA, error) {
	if !m.Finite() {
		return nil, fmt.Errorf("%w: non-finite affine matrix", types.ErrTransform)
	}
	if _, err := m.Invert(); err != nil {
		return nil, fmt.Errorf("%w: affine matrix is not invertible", types.ErrTransform)
	}

	// x/image/draw samples at pixel centers (x+0.5, y+0.5).
	centered := geometry.Translation(0.5, 0.5).Mul(m).Mul(geometry.Translation(-0.5, -0.5))
	s2d := f64.Aff3{
		centered.A, centered.B, centered.TX,
		centered.C, centered.D, centered.TY,
	}

	dst := image.NewNRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.BiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// WarpPerspective warps src through h using inverse mapping and bilinear
// interpolation in premultiplied space.
func WarpPerspective(src *image.NRGBA, h geometry.Homography) (*image.NRGBA, error) {
	inv, err := h.Invert()
	if err != nil || !inv.Finite() {
		return nil, fmt.Errorf("%w: homography is not invertible", types.ErrTransform)
	}

	sb := src.Bounds()
	w, hgt := sb.Dx(), sb.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, hgt))

	for y := 0; y < hgt; y++ {
		row := y * dst.Stride
		for x := 0; x < w; x++ {
			p := inv.Apply(types.Point{X: float64(x), Y: float64(y)})
			if math.IsNaN(p.X) || p.X <= -1 || p.Y <= -1 || p.X >= float64(w) || p.Y >= float64(hgt) {
				continue
			}
			r, g, b, a := sampleBilinear(src, p.X, p.Y)
			if a <= 0 {
				continue
			}
			i := row + x*4
			dst.Pix[i+0] = clampByte(r / a * 255)
			dst.Pix[i+1] = clampByte(g / a * 255)
			dst.Pix[i+2] = clampByte(b / a * 255)
			dst.Pix[i+3] = clampByte(a)
		}
	}
	return dst, nil
}

// sampleBilinear returns premultiplied channels in [0, 255] at (x, y) of src.
// Neighbors outside the image count as transparent.
func sampleBilinear(src *image.NRGBA, x, y float64) (r, g, b, a float64) {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	taps := [4]struct {
		x, y int
		w    float64
	}{
		{x0, y0, (1 - fx) * (1 - fy)},
		{x0 + 1, y0, fx * (1 - fy)},
		{x0, y0 + 1, (1 - fx) * fy},
		{x0 + 1, y0 + 1, fx * fy},
	}

	sb := src.Bounds()
	for _, t := range taps {
		if t.w == 0 || t.x < 0 || t.y < 0 || t.x >= sb.Dx() || t.y >= sb.Dy() {
			continue
		}
		i := src.PixOffset(sb.Min.X+t.x, sb.Min.Y+t.y)
		alpha := float64(src.Pix[i+3])
		if alpha == 0 {
			continue
		}
		pa := alpha / 255 * t.w
		r += float64(src.Pix[i+0]) * pa
		g += float64(src.Pix[i+1]) * pa
		b += float64(src.Pix[i+2]) * pa
		a += alpha * t.w
	}
	return r, g, b, a
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
