package geometry

import (
	"fmt"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
	"gonum.org/v1/gonum/mat"
)

// Homography is a row-major 3×3 projective transform.
type Homography [9]float64

// PerspectiveTransform solves for the homography mapping each src corner to
// the matching dst corner. The 8 unknowns (h33 fixed at 1) are found with a
// dense linear solve.
func PerspectiveTransform(src, dst [4]vision.Point) (Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		b.SetVec(2*i, u)
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i+1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("failed to solve perspective transform: %w", err)
	}

	var out Homography
	for i := 0; i < 8; i++ {
		out[i] = h.AtVec(i)
	}
	out[8] = 1
	return out, nil
}

// Apply maps p through the transform.
func (h Homography) Apply(p vision.Point) vision.Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return vision.Point{}
	}
	return vision.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Inverse returns the inverse transform.
func (h Homography) Inverse() (Homography, error) {
	m := mat.NewDense(3, 3, h[:])
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("homography is singular: %w", err)
	}
	var out Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	if out[8] != 0 {
		s := out[8]
		for i := range out {
			out[i] /= s
		}
	}
	return out, nil
}

// RectCorners returns the TL, TR, BR, BL corners of a width × height
// rectangle anchored at the origin.
func RectCorners(width, height float64) [4]vision.Point {
	return [4]vision.Point{
		{X: 0, Y: 0},
		{X: width, Y: 0},
		{X: width, Y: height},
		{X: 0, Y: height},
	}
}
