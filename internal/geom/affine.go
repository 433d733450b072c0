// Package geom provides the 2D vector and affine transform types used to map
// points between model tensor space, image space and world space.
package geom

import "math"

// Vec2 is a 2D point or offset.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// V is shorthand for Vec2{X: x, Y: y}.
func V(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Mul scales v by s.
func (v Vec2) Mul(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Abs returns v with both components made non-negative.
func (v Vec2) Abs() Vec2 {
	return Vec2{X: math.Abs(v.X), Y: math.Abs(v.Y)}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec2) float64 {
	return b.Sub(a).Len()
}

// Affine is a 2x3 matrix mapping p to (A*x + B*y + Tx, C*x + D*y + Ty).
//
//	| A  B  Tx |
//	| C  D  Ty |
//
// The zero value is the degenerate all-zero transform, not the identity.
type Affine struct {
	A, B, Tx float64
	C, D, Ty float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Translation returns a transform that offsets points by v.
func Translation(v Vec2) Affine {
	return Affine{A: 1, D: 1, Tx: v.X, Ty: v.Y}
}

// Scale returns a transform that scales x by v.X and y by v.Y.
// A negative component mirrors that axis.
func Scale(v Vec2) Affine {
	return Affine{A: v.X, D: v.Y}
}

// Rotation returns a counter-clockwise rotation by theta radians.
func Rotation(theta float64) Affine {
	s, c := math.Sincos(theta)
	return Affine{A: c, B: -s, C: s, D: c}
}

// FlipY mirrors the y axis inside a space of the given height, converting
// between bottom-left and top-left origin conventions.
func FlipY(height float64) Affine {
	return Affine{A: 1, D: -1, Ty: height}
}

// Compose returns the transform that applies b first, then a.
func Compose(a, b Affine) Affine {
	return Affine{
		A:  a.A*b.A + a.B*b.C,
		B:  a.A*b.B + a.B*b.D,
		Tx: a.A*b.Tx + a.B*b.Ty + a.Tx,
		C:  a.C*b.A + a.D*b.C,
		D:  a.C*b.B + a.D*b.D,
		Ty: a.C*b.Tx + a.D*b.Ty + a.Ty,
	}
}

// Chain composes transforms in matrix order: Chain(a, b, c) applies c, then b,
// then a. Chain() is the identity.
func Chain(ts ...Affine) Affine {
	out := Identity()
	for i := len(ts) - 1; i >= 0; i-- {
		out = Compose(ts[i], out)
	}
	return out
}

// Apply maps p through t.
func (t Affine) Apply(p Vec2) Vec2 {
	return Vec2{
		X: t.A*p.X + t.B*p.Y + t.Tx,
		Y: t.C*p.X + t.D*p.Y + t.Ty,
	}
}

// Det returns the determinant of the linear part.
func (t Affine) Det() float64 {
	return t.A*t.D - t.B*t.C
}

// Invert returns the inverse transform. ok is false when t is singular.
func (t Affine) Invert() (inv Affine, ok bool) {
	det := t.Det()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Affine{}, false
	}

	inv.A = t.D / det
	inv.B = -t.B / det
	inv.C = -t.C / det
	inv.D = t.A / det
	inv.Tx = -(inv.A*t.Tx + inv.B*t.Ty)
	inv.Ty = -(inv.C*t.Tx + inv.D*t.Ty)
	return inv, true
}
