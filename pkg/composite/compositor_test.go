package composite

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/menta2k/cardsynth/pkg/transform"
	"github.com/menta2k/cardsynth/pkg/types"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

var (
	cardColor = color.NRGBA{10, 120, 230, 255}
	bgColor   = color.NRGBA{90, 90, 20, 255}
)

// createSolid creates a single-color NRGBA image.
func createSolid(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
	if c.config.CanvasSize != 1024 {
		t.Errorf("Expected canvas size 1024, got %d", c.config.CanvasSize)
	}
	if c.config.BlendMode != Hard {
		t.Errorf("Expected hard blending by default, got %q", c.config.BlendMode)
	}
}

func TestPreScale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScaleMin, cfg.ScaleMax = 0.7, 0.7
	c := NewWithConfig(cfg)

	card, pg, f := c.PreScale(fixedRand(0.3), createSolid(600, 800, cardColor))
	if f != 0.7 {
		t.Errorf("Expected factor 0.7, got %f", f)
	}
	b := card.Bounds()
	if b.Dx() != 420 || b.Dy() != 560 {
		t.Errorf("Expected 420x560, got %dx%d", b.Dx(), b.Dy())
	}
	if pg != types.RectPolygon(420, 560) {
		t.Errorf("Expected polygon of scaled card, got %v", pg)
	}
	if got := card.NRGBAAt(210, 280); got != cardColor {
		t.Errorf("Expected card color preserved, got %v", got)
	}
}

func TestPreScaleRange(t *testing.T) {
	c := New()
	for _, draw := range []float64{0, 0.5, 0.999} {
		_, _, f := c.PreScale(fixedRand(draw), createSolid(100, 100, cardColor))
		if f < 0.60 || f >= 0.85 {
			t.Errorf("draw %v: factor %f outside [0.60, 0.85)", draw, f)
		}
	}
}

func TestPreScaleAddsAlpha(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 50, 50))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}
	cfg := DefaultConfig()
	cfg.ScaleMin, cfg.ScaleMax = 1, 1
	card, _, _ := NewWithConfig(cfg).PreScale(fixedRand(0), gray)
	if got := card.NRGBAAt(25, 25); got.A != 255 || got.R != 128 {
		t.Errorf("Expected opaque gray, got %v", got)
	}
}

func TestFitToCanvas(t *testing.T) {
	img := createSolid(1500, 900, cardColor)
	pg := types.Polygon{{X: 100, Y: 50}, {X: 1400, Y: 60}, {X: 1390, Y: 850}, {X: 90, Y: 840}}

	scaled, spg, f := FitToCanvas(img, pg, 1024)
	b := scaled.Bounds()
	if max(b.Dx(), b.Dy()) != 1024 {
		t.Errorf("Expected larger side 1024, got %dx%d", b.Dx(), b.Dy())
	}
	wantF := 1024.0 / 1500.0
	if math.Abs(f-wantF) > 1e-12 {
		t.Errorf("Expected factor %f, got %f", wantF, f)
	}
	if b.Dy() != int(900*wantF) {
		t.Errorf("Expected height %d, got %d", int(900*wantF), b.Dy())
	}
	for i := range pg {
		if math.Abs(spg[i].X-pg[i].X*f) > 1e-9 || math.Abs(spg[i].Y-pg[i].Y*f) > 1e-9 {
			t.Errorf("corner %d: expected %v scaled by %f, got %v", i, pg[i], f, spg[i])
		}
	}
}

func TestFitToCanvasTall(t *testing.T) {
	img := createSolid(700, 2048, cardColor)
	scaled, _, f := FitToCanvas(img, types.RectPolygon(700, 2048), 1024)
	if f != 0.5 {
		t.Errorf("Expected factor 0.5, got %f", f)
	}
	if b := scaled.Bounds(); b.Dx() != 350 || b.Dy() != 1024 {
		t.Errorf("Expected 350x1024, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestFitToCanvasAlreadyFits(t *testing.T) {
	img := createSolid(1024, 800, cardColor)
	pg := types.RectPolygon(1024, 800)
	scaled, spg, f := FitToCanvas(img, pg, 1024)
	if scaled != img || spg != pg || f != 1 {
		t.Error("Expected image that fits to be returned unchanged")
	}
}

func TestCenterOffset(t *testing.T) {
	tests := []struct {
		size, w, h int
		want       image.Point
	}{
		{1024, 700, 840, image.Pt(162, 92)},
		{1024, 1024, 615, image.Pt(0, 204)},
		{1024, 1023, 1, image.Pt(0, 511)},
	}
	for _, tt := range tests {
		if got := CenterOffset(tt.size, tt.w, tt.h); got != tt.want {
			t.Errorf("CenterOffset(%d, %d, %d): expected %v, got %v", tt.size, tt.w, tt.h, tt.want, got)
		}
	}
}

func TestCompositeCentersPolygon(t *testing.T) {
	c := New()
	card := createSolid(300, 200, cardColor)
	pg := types.Polygon{{X: 10.5, Y: 20.25}, {X: 290, Y: 15}, {X: 280, Y: 190}, {X: 5, Y: 180}}
	res, err := c.Composite(transform.Result{Image: card, Polygon: pg}, createSolid(1024, 1024, bgColor))
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}

	off := CenterOffset(1024, 300, 200)
	if res.Offset != off {
		t.Errorf("Expected offset %v, got %v", off, res.Offset)
	}
	for i := range pg {
		want := pg[i].Add(float64(off.X), float64(off.Y))
		if res.Polygon[i] != want {
			t.Errorf("corner %d: expected %v, got %v", i, want, res.Polygon[i])
		}
	}
	if res.Corners[0] != [2]int{int(math.Round(10.5 + 362)), int(math.Round(20.25 + 412))} {
		t.Errorf("Unexpected rounded corner %v", res.Corners[0])
	}
}

func TestCompositeHardMask(t *testing.T) {
	c := New()
	card := createSolid(4, 1, cardColor)
	// Alpha ramp: transparent, faint, half, opaque.
	for x, a := range []uint8{0, 1, 128, 255} {
		card.Pix[x*4+3] = a
	}
	bg := createSolid(1024, 1024, bgColor)

	res, err := c.Composite(transform.Result{Image: card, Polygon: types.RectPolygon(4, 1)}, bg)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	y := res.Offset.Y
	want := []color.NRGBA{bgColor, {10, 120, 230, 255}, {10, 120, 230, 255}, cardColor}
	for x := 0; x < 4; x++ {
		if got := res.Image.NRGBAAt(res.Offset.X+x, y); got != want[x] {
			t.Errorf("pixel %d: expected %v, got %v", x, want[x], got)
		}
	}
}

func TestCompositeSoftMask(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlendMode = Soft
	c := NewWithConfig(cfg)

	card := createSolid(2, 1, color.NRGBA{200, 200, 200, 255})
	card.Pix[3] = 0
	card.Pix[7] = 128
	bg := createSolid(1024, 1024, color.NRGBA{0, 0, 0, 255})

	res, err := c.Composite(transform.Result{Image: card, Polygon: types.RectPolygon(2, 1)}, bg)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if got := res.Image.NRGBAAt(res.Offset.X, res.Offset.Y); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("Expected untouched background, got %v", got)
	}
	got := res.Image.NRGBAAt(res.Offset.X+1, res.Offset.Y)
	if got.R < 99 || got.R > 101 || got.A != 255 {
		t.Errorf("Expected half blend around 100, got %v", got)
	}
}

func TestCompositeOutputOpaque(t *testing.T) {
	bg := createSolid(1024, 1024, color.NRGBA{1, 2, 3, 7})
	res, err := New().Composite(transform.Result{Image: createSolid(10, 10, cardColor), Polygon: types.RectPolygon(10, 10)}, bg)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	for i := 3; i < len(res.Image.Pix); i += 4 {
		if res.Image.Pix[i] != 255 {
			t.Fatalf("Expected opaque canvas, found alpha %d", res.Image.Pix[i])
		}
	}
	if got := bg.NRGBAAt(0, 0); got.A != 7 {
		t.Error("Expected background input to be left untouched")
	}
}

func TestBlendShapeMismatch(t *testing.T) {
	region := createSolid(10, 10, bgColor)
	fg := createSolid(10, 12, cardColor)
	mask := AlphaMask(fg)

	err := Blend(region, fg, mask, Hard)
	if !errors.Is(err, types.ErrShapeMismatch) {
		t.Fatalf("Expected ErrShapeMismatch, got %v", err)
	}
	if !types.Skippable(err) {
		t.Error("Expected shape mismatch to be skippable")
	}
	if got := region.NRGBAAt(5, 5); got != bgColor {
		t.Errorf("Expected region untouched, got %v", got)
	}
}

func TestCompositeUndersizedBackground(t *testing.T) {
	// A background smaller than the canvas cannot hold the centered card.
	bg := createSolid(300, 300, bgColor)
	_, err := New().Composite(transform.Result{Image: createSolid(400, 400, cardColor), Polygon: types.RectPolygon(400, 400)}, bg)
	if !errors.Is(err, types.ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
}

// TestEndToEndRotateZero runs a 600x800 card through pre-scale 0.7, a zero
// rotation and compositing onto a 1024 canvas.
func TestEndToEndRotateZero(t *testing.T) {
	ccfg := DefaultConfig()
	ccfg.ScaleMin, ccfg.ScaleMax = 0.7, 0.7
	comp := NewWithConfig(ccfg)

	tcfg := transform.DefaultConfig()
	tcfg.RotateWeight, tcfg.AffineWeight, tcfg.PerspectiveWeight = 1, 0, 0
	tcfg.MaxRotation = 0
	engine := transform.NewWithConfig(tcfg)

	rng := fixedRand(0.5)
	card, pg, _ := comp.PreScale(rng, createSolid(600, 800, cardColor))
	tr, err := engine.Apply(rng, card, pg)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if b := tr.Image.Bounds(); b.Dx() != 700 || b.Dy() != 840 {
		t.Fatalf("Expected padded 700x840, got %dx%d", b.Dx(), b.Dy())
	}

	bg := createSolid(1024, 1024, bgColor)
	res, err := comp.Composite(tr, bg)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}

	if res.FitScale != 1 {
		t.Errorf("Expected no fit scaling, got %f", res.FitScale)
	}
	want := types.Corners{{302, 232}, {721, 232}, {721, 791}, {302, 791}}
	if res.Corners != want {
		t.Errorf("Expected corners %v, got %v", want, res.Corners)
	}

	inside := []image.Point{{302, 232}, {721, 232}, {721, 791}, {302, 791}, {512, 512}}
	for _, p := range inside {
		if got := res.Image.NRGBAAt(p.X, p.Y); got != cardColor {
			t.Errorf("pixel %v: expected card color, got %v", p, got)
		}
	}
	outside := []image.Point{{301, 232}, {722, 500}, {500, 231}, {500, 792}, {0, 0}, {1023, 1023}}
	for _, p := range outside {
		if got := res.Image.NRGBAAt(p.X, p.Y); got != bgColor {
			t.Errorf("pixel %v: expected background color, got %v", p, got)
		}
	}
}

func BenchmarkComposite(b *testing.B) {
	c := New()
	card := createSolid(700, 840, cardColor)
	bg := createSolid(1024, 1024, bgColor)
	tr := transform.Result{Image: card, Polygon: types.RectPolygon(700, 840)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Composite(tr, bg)
	}
}
