package lens

import "github.com/go-gl/mathgl/mgl64"

// Mapper converts viewport UV coordinates between the distorted and
// undistorted camera frames. Two intrinsics are involved because the
// distorted and undistorted renders of the same scene generally use
// different focal scales and principal points.
//
// All UV math in this package is bottom-left originated; callers that work
// in image (top-left) coordinates flip on their side of the boundary.
type Mapper struct {
	Model       Coefficients
	Distorted   Intrinsics
	Undistorted Intrinsics
}

// CheckValid verifies both camera intrinsics at the configuration boundary.
func (m Mapper) CheckValid() error {
	if err := m.Distorted.CheckValid(); err != nil {
		return err
	}
	return m.Undistorted.CheckValid()
}

// UndistortUV maps a viewport UV in the distorted frame to its equivalent in
// the undistorted frame. Note the distortion model only runs forward here
// (undistorted view -> distorted-looking view); sandwiching that forward map
// between the distorted camera's inverse intrinsics and the undistorted
// camera's intrinsics is what makes the composite behave as "undistort".
// This is exact: no iteration, no approximation.
func (m Mapper) UndistortUV(uv mgl64.Vec2) mgl64.Vec2 {
	return m.Undistorted.ViewToUV(m.Model.Distort(m.Distorted.UVToView(uv)))
}

// DistortUV is the inverse of UndistortUV: it maps an undistorted-frame UV
// back to the distorted frame. There is no closed form for this direction,
// so it leans on the Newton inverse of the model. Used as the exact
// reference that the grid approximation is measured against, and as the
// fallback for pixels the distorted grid does not cover.
func (m Mapper) DistortUV(uv mgl64.Vec2) mgl64.Vec2 {
	return m.Distorted.ViewToUV(m.Model.Undistort(m.Undistorted.UVToView(uv)))
}
