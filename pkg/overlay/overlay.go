// Package overlay draws annotated card corners onto sample images so labels
// can be checked by eye.
package overlay

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/cardsynth/pkg/types"
)

// Colors
var (
	EdgeColor   = color.NRGBA{0, 255, 0, 255}   // polygon edges
	FirstColor  = color.NRGBA{255, 0, 0, 255}   // top-left corner
	CornerColor = color.NRGBA{255, 204, 0, 255} // other corners
)

// Draw returns a copy of img with the corner polygon outlined and every
// corner marked by a crosshair. The top-left corner gets its own color so
// the corner order is visible.
func Draw(img image.Image, corners types.Corners) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(min(w, h))))   // ~1% of min side

	for i := range corners {
		a, b := corners[i], corners[(i+1)%len(corners)]
		drawLine(nrgba, a[0], a[1], b[0], b[1], EdgeColor, stroke)
	}

	for i, c := range corners {
		col := CornerColor
		if i == 0 {
			col = FirstColor
		}
		drawHLine(nrgba, c[1], c[0]-cross, c[0]+cross+1, col)
		drawVLine(nrgba, c[0], c[1]-cross, c[1]+cross+1, col)
	}

	return nrgba
}

// drawLine draws a Bresenham line, stamping a stroke x stroke square per step.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA, stroke int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	off := stroke / 2
	e := dx + dy
	for {
		for s := 0; s < stroke; s++ {
			drawHLine(img, y0-off+s, x0-off, x0-off+stroke, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
