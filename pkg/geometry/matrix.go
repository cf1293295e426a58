// Package geometry provides the 2D matrices used to distort card images and
// to track their corners through the same distortion.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/cardsynth/pkg/types"
)

// ErrDegenerate is returned when a set of control points does not define a unique transform.
var ErrDegenerate = errors.New("degenerate control points")

const eps = 1e-12

// Affine is a 2x3 affine matrix.
// [A B TX]
// [C D TY]
type Affine struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Rotation returns the rotation by angle degrees about center. Positive angles
// rotate counter-clockwise as seen on screen (y axis pointing down).
func Rotation(center types.Point, angle float64) Affine {
	rad := angle * math.Pi / 180
	a, b := math.Cos(rad), math.Sin(rad)
	return Affine{
		A: a, B: b, TX: (1-a)*center.X - b*center.Y,
		C: -b, D: a, TY: b*center.X + (1-a)*center.Y,
	}
}

// Translation returns a pure translation.
func Translation(dx, dy float64) Affine {
	return Affine{A: 1, TX: dx, D: 1, TY: dy}
}

// Apply maps p through the transform.
func (m Affine) Apply(p types.Point) types.Point {
	return types.Point{
		X: m.A*p.X + m.B*p.Y + m.TX,
		Y: m.C*p.X + m.D*p.Y + m.TY,
	}
}

// ApplyPolygon maps every corner of pg through the transform.
func (m Affine) ApplyPolygon(pg types.Polygon) types.Polygon {
	var out types.Polygon
	for i, p := range pg {
		out[i] = m.Apply(p)
	}
	return out
}

// Mul returns m∘n, the transform that applies n first and then m.
func (m Affine) Mul(n Affine) Affine {
	return Affine{
		A: m.A*n.A + m.B*n.C, B: m.A*n.B + m.B*n.D, TX: m.A*n.TX + m.B*n.TY + m.TX,
		C: m.C*n.A + m.D*n.C, D: m.C*n.B + m.D*n.D, TY: m.C*n.TX + m.D*n.TY + m.TY,
	}
}

// Det returns the determinant of the linear part.
func (m Affine) Det() float64 {
	return m.A*m.D - m.B*m.C
}

// Invert returns the inverse transform.
func (m Affine) Invert() (Affine, error) {
	det := m.Det()
	if math.Abs(det) < eps || math.IsNaN(det) {
		return Affine{}, ErrDegenerate
	}
	a, b, c, d := m.D/det, -m.B/det, -m.C/det, m.A/det
	return Affine{
		A: a, B: b, TX: -(a*m.TX + b*m.TY),
		C: c, D: d, TY: -(c*m.TX + d*m.TY),
	}, nil
}

// Finite reports whether every coefficient is a finite number.
func (m Affine) Finite() bool {
	return allFinite(m.A, m.B, m.TX, m.C, m.D, m.TY)
}

// SolveAffine computes the unique affine transform mapping the three src
// points onto the three dst points.
func SolveAffine(src, dst [3]types.Point) (Affine, error) {
	// [x', y'] = [a, b, tx; c, d, ty] * [x, y, 1]
	A := mat.NewDense(6, 6, nil)
	B := mat.NewVecDense(6, nil)

	for i := 0; i < 3; i++ {
		x, y := src[i].X, src[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, dst[i].X)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, dst[i].Y)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return Affine{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	m := Affine{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		TX: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		TY: params.AtVec(5),
	}
	if !m.Finite() || math.Abs(m.Det()) < eps {
		return Affine{}, ErrDegenerate
	}
	return m, nil
}

// Homography is a 3x3 projective matrix stored row-major with H[8] normally 1.
type Homography [9]float64

// HomographyFromAffine lifts an affine transform to a homography.
func HomographyFromAffine(m Affine) Homography {
	return Homography{m.A, m.B, m.TX, m.C, m.D, m.TY, 0, 0, 1}
}

// Apply maps p through the homography. A point on the line at infinity maps
// to NaN coordinates.
func (h Homography) Apply(p types.Point) types.Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < eps {
		return types.Point{X: math.NaN(), Y: math.NaN()}
	}
	return types.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// ApplyPolygon maps every corner of pg through the homography.
func (h Homography) ApplyPolygon(pg types.Polygon) types.Polygon {
	var out types.Polygon
	for i, p := range pg {
		out[i] = h.Apply(p)
	}
	return out
}

// Invert returns the inverse homography, normalized so that the last element is 1
// whenever possible.
func (h Homography) Invert() (Homography, error) {
	adj := Homography{
		h[4]*h[8] - h[5]*h[7], h[2]*h[7] - h[1]*h[8], h[1]*h[5] - h[2]*h[4],
		h[5]*h[6] - h[3]*h[8], h[0]*h[8] - h[2]*h[6], h[2]*h[3] - h[0]*h[5],
		h[3]*h[7] - h[4]*h[6], h[1]*h[6] - h[0]*h[7], h[0]*h[4] - h[1]*h[3],
	}
	det := h[0]*adj[0] + h[1]*adj[3] + h[2]*adj[6]
	if math.Abs(det) < eps || math.IsNaN(det) {
		return Homography{}, ErrDegenerate
	}
	scale := det
	if math.Abs(adj[8]) > eps {
		scale = adj[8]
	}
	for i := range adj {
		adj[i] /= scale
	}
	return adj, nil
}

// Finite reports whether every coefficient is a finite number.
func (h Homography) Finite() bool {
	return allFinite(h[:]...)
}

// SolveHomography computes the projective transform mapping the four src
// points onto the four dst points.
func SolveHomography(src, dst [4]types.Point) (Homography, error) {
	// x' = (h0 X + h1 Y + h2) / (h6 X + h7 Y + 1)
	// y' = (h3 X + h4 Y + h5) / (h6 X + h7 Y + 1)
	A := mat.NewDense(8, 8, nil)
	B := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i

		A.Set(r, 0, X)
		A.Set(r, 1, Y)
		A.Set(r, 2, 1)
		A.Set(r, 6, -X*x)
		A.Set(r, 7, -Y*x)
		B.SetVec(r, x)

		A.Set(r+1, 3, X)
		A.Set(r+1, 4, Y)
		A.Set(r+1, 5, 1)
		A.Set(r+1, 6, -X*y)
		A.Set(r+1, 7, -Y*y)
		B.SetVec(r+1, y)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h[i] = params.AtVec(i)
	}
	h[8] = 1
	if !h.Finite() {
		return Homography{}, ErrDegenerate
	}
	return h, nil
}

// Convex reports whether pg is a strictly convex, non-self-intersecting quadrilateral.
func Convex(pg types.Polygon) bool {
	var sign float64
	for i := range pg {
		a, b, c := pg[i], pg[(i+1)%4], pg[(i+2)%4]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		if math.Abs(cross) < eps || math.IsNaN(cross) {
			return false
		}
		if sign == 0 {
			sign = math.Copysign(1, cross)
		} else if math.Copysign(1, cross) != sign {
			return false
		}
	}
	return true
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
