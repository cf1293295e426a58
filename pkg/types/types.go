package types

import (
	"errors"
	"fmt"
	"math"
)

// Per-sample failure kinds. Neither is fatal to a generation run.
var (
	// ErrTransform reports a numerical or geometric failure while solving or applying a warp.
	ErrTransform = errors.New("transform failed")
	// ErrShapeMismatch reports a compositing region whose shape differs from the mask.
	ErrShapeMismatch = errors.New("region and mask shape mismatch")
)

// Skippable reports whether err only invalidates the current sample.
func Skippable(err error) bool {
	return errors.Is(err, ErrTransform) || errors.Is(err, ErrShapeMismatch)
}

// Point is a 2D point with floating-point coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Scale returns p with both coordinates multiplied by f.
func (p Point) Scale(f float64) Point {
	return Point{X: p.X * f, Y: p.Y * f}
}

// Polygon holds the four corners of a card in the order
// top-left, top-right, bottom-right, bottom-left.
type Polygon [4]Point

// RectPolygon returns the corner polygon of a w x h image in source-pixel coordinates.
func RectPolygon(w, h int) Polygon {
	fw, fh := float64(w-1), float64(h-1)
	return Polygon{{0, 0}, {fw, 0}, {fw, fh}, {0, fh}}
}

// Translate returns the polygon shifted by (dx, dy).
func (pg Polygon) Translate(dx, dy float64) Polygon {
	var out Polygon
	for i, p := range pg {
		out[i] = p.Add(dx, dy)
	}
	return out
}

// Scale returns the polygon with every coordinate multiplied by f.
func (pg Polygon) Scale(f float64) Polygon {
	var out Polygon
	for i, p := range pg {
		out[i] = p.Scale(f)
	}
	return out
}

// Centroid returns the mean of the four corners.
func (pg Polygon) Centroid() Point {
	var c Point
	for _, p := range pg {
		c.X += p.X
		c.Y += p.Y
	}
	return Point{X: c.X / 4, Y: c.Y / 4}
}

// Round converts the polygon to integer corners.
func (pg Polygon) Round() Corners {
	var out Corners
	for i, p := range pg {
		out[i] = [2]int{int(math.Round(p.X)), int(math.Round(p.Y))}
	}
	return out
}

// Valid reports whether all coordinates are finite.
func (pg Polygon) Valid() bool {
	for _, p := range pg {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

// Corners is a polygon rounded to integer pixel coordinates.
// It serializes as [[x,y],[x,y],[x,y],[x,y]].
type Corners [4][2]int

// TransformKind selects one of the supported geometric distortions.
type TransformKind int

const (
	Rotate TransformKind = iota
	Affine
	Perspective
)

// Kinds lists every transform kind in selection order.
var Kinds = []TransformKind{Rotate, Affine, Perspective}

func (k TransformKind) String() string {
	switch k {
	case Rotate:
		return "rotate"
	case Affine:
		return "affine"
	case Perspective:
		return "perspective"
	default:
		return fmt.Sprintf("TransformKind(%d)", int(k))
	}
}

// Annotation is the ground-truth record of one synthesized sample.
type Annotation struct {
	Filename string  `json:"filename"`
	CardName string  `json:"card_name"`
	Corners  Corners `json:"corners"`
}
