package lens

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistortOpticalCenter(t *testing.T) {
	tests := []struct {
		name   string
		coeffs Coefficients
	}{
		{"zero model", Coefficients{}},
		{"radial only", Coefficients{K1: 0.1, K2: -0.05, K3: 0.01}},
		{"tangential only", Coefficients{P1: 0.02, P2: -0.01}},
		{"full model", Coefficients{K1: 0.2, K2: 0.05, K3: -0.002, P1: 0.01, P2: 0.003}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.coeffs.Distort(mgl64.Vec2{0, 0})
			assert.Equal(t, mgl64.Vec2{0, 0}, out, "no distortion at the optical center")
		})
	}
}

func TestDistortZeroModelIsIdentity(t *testing.T) {
	c := Coefficients{}
	for _, v := range []mgl64.Vec2{{0.3, -0.2}, {-0.7, 0.5}, {0.01, 0.99}} {
		assert.Equal(t, v, c.Distort(v))
	}
}

func TestDistortRadialPolynomial(t *testing.T) {
	// For a purely radial model the displacement must be parallel to the
	// input vector and scaled by the radial polynomial.
	c := Coefficients{K1: 0.1, K2: -0.02, K3: 0.005}
	v := mgl64.Vec2{0.4, -0.3}
	r2 := v.X()*v.X() + v.Y()*v.Y()
	scale := 1 + r2*(c.K1+r2*(c.K2+r2*c.K3))

	out := c.Distort(v)
	assert.InDelta(t, v.X()*scale, out.X(), 1e-15)
	assert.InDelta(t, v.Y()*scale, out.Y(), 1e-15)
}

func TestDistortTangentialTerms(t *testing.T) {
	c := Coefficients{P1: 0.01, P2: -0.02}
	v := mgl64.Vec2{0.2, 0.3}
	r2 := v.X()*v.X() + v.Y()*v.Y()

	out := c.Distort(v)
	assert.InDelta(t, v.X()+c.P2*(r2+2*v.X()*v.X())+2*c.P1*v.X()*v.Y(), out.X(), 1e-15)
	assert.InDelta(t, v.Y()+c.P1*(r2+2*v.Y()*v.Y())+2*c.P2*v.X()*v.Y(), out.Y(), 1e-15)
}

func TestDistortRadialMonotonicFromCenter(t *testing.T) {
	// Barrel distortion with k1 > 0 pushes points outward, increasingly so
	// with distance from the center.
	c := Coefficients{K1: 0.1}
	prev := 0.0
	for i := 1; i <= 10; i++ {
		r := float64(i) * 0.05
		v := mgl64.Vec2{r / math.Sqrt2, r / math.Sqrt2}
		disp := c.Distort(v).Sub(v).Len()
		assert.Greater(t, disp, prev, "displacement must grow with radius")
		prev = disp
	}
}

func TestDistortDeterministic(t *testing.T) {
	c := Coefficients{K1: 0.15, K2: -0.03, K3: 0.004, P1: 0.002, P2: -0.001}
	v := mgl64.Vec2{0.37, -0.21}
	first := c.Distort(v)
	for range 10 {
		assert.Equal(t, first, c.Distort(v))
	}
}

func TestUndistortInvertsDistort(t *testing.T) {
	tests := []struct {
		name   string
		coeffs Coefficients
	}{
		{"mild barrel", Coefficients{K1: 0.1}},
		{"pincushion", Coefficients{K1: -0.08, K2: 0.01}},
		{"full model", Coefficients{K1: 0.12, K2: -0.02, K3: 0.003, P1: 0.004, P2: -0.002}},
	}
	points := []mgl64.Vec2{{0, 0}, {0.25, 0.25}, {-0.4, 0.1}, {0.3, -0.45}, {-0.2, -0.2}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, p := range points {
				d := tt.coeffs.Distort(p)
				u := tt.coeffs.Undistort(d)
				require.InDelta(t, p.X(), u.X(), 1e-9)
				require.InDelta(t, p.Y(), u.Y(), 1e-9)
			}
		})
	}
}

func TestUndistortZeroModelPassthrough(t *testing.T) {
	c := Coefficients{}
	v := mgl64.Vec2{0.6, -0.8}
	assert.Equal(t, v, c.Undistort(v))
}
