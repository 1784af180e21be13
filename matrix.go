// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package rewrite

import (
	"fmt"
	"math"
)

// Matrix is a PDF-style affine transform. The six coefficients map a
// point (x, y) to (A*x + C*y + E, B*x + D*y + F); the implicit third
// column is always [0 0 1].
type Matrix struct {
	A, B, C, D, E, F float64
}

// TransformKind classifies what a matrix does geometrically.
type TransformKind string

const (
	KindIdentity    TransformKind = "identity"
	KindTranslation TransformKind = "translation"
	KindScaling     TransformKind = "scaling"
	KindRotation    TransformKind = "rotation"
	KindSkew        TransformKind = "skew"
	KindGeneral     TransformKind = "general"
)

const (
	// kindEpsilon is the tolerance used when classifying coefficients.
	kindEpsilon = 1e-6
	// detEpsilon is the determinant threshold below which a matrix is
	// treated as singular.
	detEpsilon = 1e-10
)

// Identity returns the identity matrix.
func Identity() Matrix {
	return Matrix{A: 1, D: 1}
}

// Translation returns a matrix that moves points by (tx, ty).
func Translation(tx, ty float64) Matrix {
	return Matrix{A: 1, D: 1, E: tx, F: ty}
}

// Scaling returns a matrix that scales by sx horizontally and sy
// vertically about the origin.
func Scaling(sx, sy float64) Matrix {
	return Matrix{A: sx, D: sy}
}

// Rotation returns a counter-clockwise rotation about the origin.
// The angle is in radians.
func Rotation(rad float64) Matrix {
	sin, cos := math.Sincos(rad)
	return Matrix{A: cos, B: sin, C: -sin, D: cos}
}

// RotationDeg is Rotation with the angle in degrees.
func RotationDeg(deg float64) Matrix {
	return Rotation(deg * math.Pi / 180)
}

// Skew returns a shear matrix. ax shears x as a function of y, ay
// shears y as a function of x; both angles are in radians.
func Skew(ax, ay float64) Matrix {
	return Matrix{A: 1, B: math.Tan(ay), C: math.Tan(ax), D: 1}
}

// Mul composes the receiver with other such that the receiver is
// applied first: p.Apply(m.Mul(n)) == n applied to m applied to p.
// This matches PDF operand order, where cm premultiplies the CTM.
func (m Matrix) Mul(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.B*n.C,
		B: m.A*n.B + m.B*n.D,
		C: m.C*n.A + m.D*n.C,
		D: m.C*n.B + m.D*n.D,
		E: m.E*n.A + m.F*n.C + n.E,
		F: m.E*n.B + m.F*n.D + n.F,
	}
}

// Det returns the determinant of the linear part.
func (m Matrix) Det() float64 {
	return m.A*m.D - m.B*m.C
}

// IsInvertible reports whether the matrix has a usable inverse.
func (m Matrix) IsInvertible() bool {
	return math.Abs(m.Det()) > detEpsilon
}

// Inverse returns the inverse transform. The second return value is
// false when the matrix is singular or numerically too close to it.
func (m Matrix) Inverse() (Matrix, bool) {
	det := m.Det()
	if math.Abs(det) <= detEpsilon {
		return Matrix{}, false
	}
	inv := 1 / det
	return Matrix{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}, true
}

// Apply transforms the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// ApplyDistance transforms a displacement vector, ignoring the
// translation component.
func (m Matrix) ApplyDistance(dx, dy float64) (float64, float64) {
	return m.A*dx + m.C*dy, m.B*dx + m.D*dy
}

// ApplyRect transforms all four corners of r and returns their
// axis-aligned bounding rectangle.
func (m Matrix) ApplyRect(r Rect) Rect {
	x0, y0 := m.Apply(r.LLX, r.LLY)
	x1, y1 := m.Apply(r.URX, r.LLY)
	x2, y2 := m.Apply(r.LLX, r.URY)
	x3, y3 := m.Apply(r.URX, r.URY)
	return Rect{
		LLX: math.Min(math.Min(x0, x1), math.Min(x2, x3)),
		LLY: math.Min(math.Min(y0, y1), math.Min(y2, y3)),
		URX: math.Max(math.Max(x0, x1), math.Max(x2, x3)),
		URY: math.Max(math.Max(y0, y1), math.Max(y2, y3)),
	}
}

// Decomposition breaks a matrix into human-readable components.
// RotationDeg is counter-clockwise. SkewDeg is a best-effort estimate:
// recovering shear from composed transforms is numerically fragile, so
// Approximate is set whenever a non-trivial skew was detected and the
// value should be treated as informational rather than exact.
type Decomposition struct {
	TranslateX  float64
	TranslateY  float64
	ScaleX      float64
	ScaleY      float64
	RotationDeg float64
	SkewDeg     float64
	Approximate bool
}

// Decompose extracts translation, scale, rotation and skew from the
// matrix. Degenerate matrices decompose with zero scale components.
func (m Matrix) Decompose() Decomposition {
	d := Decomposition{TranslateX: m.E, TranslateY: m.F}
	d.ScaleX = math.Hypot(m.A, m.B)
	if d.ScaleX < detEpsilon {
		return d
	}
	rot := math.Atan2(m.B, m.A)
	d.RotationDeg = rot * 180 / math.Pi
	d.ScaleY = m.Det() / d.ScaleX
	if math.Abs(d.ScaleY) > detEpsilon {
		sin, cos := math.Sincos(rot)
		skew := math.Atan2(m.C/d.ScaleY+sin, cos)
		d.SkewDeg = skew * 180 / math.Pi
		if math.Abs(d.SkewDeg) > kindEpsilon {
			d.Approximate = true
		}
	}
	return d
}

// Kind classifies the matrix. Classification looks at coefficients
// within kindEpsilon, so tiny float drift (for example the residue of
// a rotate/unrotate round trip) still counts as the simpler kind.
func (m Matrix) Kind() TransformKind {
	near := func(v, target float64) bool { return math.Abs(v-target) < kindEpsilon }
	linearID := near(m.A, 1) && near(m.B, 0) && near(m.C, 0) && near(m.D, 1)
	noTranslate := near(m.E, 0) && near(m.F, 0)
	switch {
	case linearID && noTranslate:
		return KindIdentity
	case linearID:
		return KindTranslation
	case near(m.B, 0) && near(m.C, 0):
		return KindScaling
	}
	// A pure rotation keeps B == -C, A == D and unit column norms.
	if near(m.A, m.D) && near(m.B, -m.C) && near(math.Hypot(m.A, m.B), 1) {
		return KindRotation
	}
	if near(m.A, 1) && near(m.D, 1) {
		return KindSkew
	}
	return KindGeneral
}

// HasRotation reports whether the matrix includes a rotation
// component.
func (m Matrix) HasRotation() bool {
	return math.Abs(m.B) >= kindEpsilon || math.Abs(m.C) >= kindEpsilon
}

// HasSkew reports whether the matrix shears in a way a rotation alone
// cannot explain.
func (m Matrix) HasSkew() bool {
	if !m.HasRotation() {
		return false
	}
	k := m.Kind()
	return k == KindSkew || k == KindGeneral
}

// NearEqual reports whether two matrices agree coefficient-wise
// within eps.
func (m Matrix) NearEqual(n Matrix, eps float64) bool {
	return math.Abs(m.A-n.A) <= eps && math.Abs(m.B-n.B) <= eps &&
		math.Abs(m.C-n.C) <= eps && math.Abs(m.D-n.D) <= eps &&
		math.Abs(m.E-n.E) <= eps && math.Abs(m.F-n.F) <= eps
}

func (m Matrix) String() string {
	return fmt.Sprintf("[%g %g %g %g %g %g]", m.A, m.B, m.C, m.D, m.E, m.F)
}

// Rect is an axis-aligned rectangle in the PDF coordinate convention,
// lower-left origin.
type Rect struct {
	LLX, LLY, URX, URY float64
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.URX - r.LLX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.URY - r.LLY }

// Area returns width times height, never negative.
func (r Rect) Area() float64 {
	w, h := r.Width(), r.Height()
	if w < 0 || h < 0 {
		return 0
	}
	return w * h
}

// Contains reports whether the point lies inside or on the edge of r.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.LLX && x <= r.URX && y >= r.LLY && y <= r.URY
}

// Intersect returns the overlapping region of two rectangles and
// whether they overlap at all.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	out := Rect{
		LLX: math.Max(r.LLX, o.LLX),
		LLY: math.Max(r.LLY, o.LLY),
		URX: math.Min(r.URX, o.URX),
		URY: math.Min(r.URY, o.URY),
	}
	if out.LLX >= out.URX || out.LLY >= out.URY {
		return Rect{}, false
	}
	return out, true
}

// Inflate grows the rectangle by margin on every side.
func (r Rect) Inflate(margin float64) Rect {
	return Rect{LLX: r.LLX - margin, LLY: r.LLY - margin, URX: r.URX + margin, URY: r.URY + margin}
}

// TextTransform captures the combined effect of the CTM and the text
// matrix on a run of text.
type TextTransform struct {
	Combined Matrix
	// EffectiveFontSize is the nominal font size scaled by the
	// vertical magnification of the combined matrix.
	EffectiveFontSize float64
	// OriginX, OriginY is the device-space position of the text
	// origin.
	OriginX, OriginY float64
	Kind             TransformKind
}

// NewTextTransform combines a text matrix with the current transform
// and a nominal font size.
func NewTextTransform(tm, ctm Matrix, fontSize float64) TextTransform {
	combined := tm.Mul(ctm)
	d := combined.Decompose()
	x, y := combined.Apply(0, 0)
	return TextTransform{
		Combined:          combined,
		EffectiveFontSize: fontSize * math.Abs(d.ScaleY),
		OriginX:           x,
		OriginY:           y,
		Kind:              combined.Kind(),
	}
}
