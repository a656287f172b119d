package lens

import "github.com/go-gl/mathgl/mgl64"

const (
	newtonMaxIterations = 20
	newtonTolerance     = 1e-10
)

// Undistort numerically inverts Distort: given a distorted normalized view
// position it finds the undistorted position that the forward model maps
// there. It runs a damped-free Newton-Raphson iteration on the 2x2 system,
// starting from the distorted point itself, which converges in a handful of
// steps for calibrations whose working viewport stays inside the model's
// valid domain.
func (c Coefficients) Undistort(d mgl64.Vec2) mgl64.Vec2 {
	if c.IsZero() {
		return d
	}

	xd, yd := d.X(), d.Y()
	xu, yu := xd, yd

	for range newtonMaxIterations {
		r2 := xu*xu + yu*yu
		radial := 1 + r2*(c.K1+r2*(c.K2+r2*c.K3))

		xdEst := xu*radial + c.P2*(r2+2*xu*xu) + 2*c.P1*xu*yu
		ydEst := yu*radial + c.P1*(r2+2*yu*yu) + 2*c.P2*xu*yu

		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < newtonTolerance*newtonTolerance {
			break
		}

		// Jacobian of the forward model at the current estimate.
		dRadial := c.K1 + r2*(2*c.K2+3*r2*c.K3)
		j00 := radial + 2*xu*xu*dRadial + 2*c.P1*yu + 6*c.P2*xu
		j01 := 2*xu*yu*dRadial + 2*c.P1*xu + 2*c.P2*yu
		j10 := 2*xu*yu*dRadial + 2*c.P2*yu + 2*c.P1*xu
		j11 := radial + 2*yu*yu*dRadial + 2*c.P2*xu + 6*c.P1*yu

		det := j00*j11 - j01*j10
		if det == 0 {
			break
		}

		xu -= (j11*errX - j01*errY) / det
		yu -= (j00*errY - j10*errX) / det
	}

	return mgl64.Vec2{xu, yu}
}
