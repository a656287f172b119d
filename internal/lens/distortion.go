package lens

import "github.com/go-gl/mathgl/mgl64"

// Coefficients holds the Brown-Conrady lens distortion terms: three radial
// coefficients (K1, K2, K3) and two tangential coefficients (P1, P2).
// The zero value models a perfect (distortion-free) lens.
type Coefficients struct {
	K1 float64 `mapstructure:"k1" yaml:"k1" json:"k1"`
	K2 float64 `mapstructure:"k2" yaml:"k2" json:"k2"`
	K3 float64 `mapstructure:"k3" yaml:"k3" json:"k3"`
	P1 float64 `mapstructure:"p1" yaml:"p1" json:"p1"`
	P2 float64 `mapstructure:"p2" yaml:"p2" json:"p2"`
}

// IsZero reports whether every coefficient is zero.
func (c Coefficients) IsZero() bool {
	return c == Coefficients{}
}

// Distort maps an undistorted normalized view position (a point on the z=1
// plane) to the position the lens bends it to. This is the physical forward
// direction of the model; it has no closed-form inverse.
//
//	x_d = x*(1 + r2*(k1 + r2*(k2 + r2*k3))) + p2*(r2 + 2x^2) + 2*p1*x*y
//	y_d = y*(1 + r2*(k1 + r2*(k2 + r2*k3))) + p1*(r2 + 2y^2) + 2*p2*x*y
//
// The radial polynomial is evaluated in exactly this Horner nesting so that
// results match calibration tooling bit for bit.
func (c Coefficients) Distort(v mgl64.Vec2) mgl64.Vec2 {
	x, y := v.X(), v.Y()
	r2 := x*x + y*y
	radial := 1 + r2*(c.K1+r2*(c.K2+r2*c.K3))
	return mgl64.Vec2{
		x*radial + c.P2*(r2+2*x*x) + 2*c.P1*x*y,
		y*radial + c.P1*(r2+2*y*y) + 2*c.P2*x*y,
	}
}
