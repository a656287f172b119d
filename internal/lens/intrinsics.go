package lens

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Intrinsics is a 4-parameter affine camera intrinsic transform: focal
// scales (Fx, Fy) and principal point (Cx, Cy), expressed in viewport UV
// units. It maps between normalized view positions on the z=1 plane and
// viewport UV coordinates. This is the scale+offset reduction of a full
// pinhole intrinsic matrix; no skew and no projective terms.
type Intrinsics struct {
	Fx float64 `mapstructure:"fx" yaml:"fx" json:"fx"`
	Fy float64 `mapstructure:"fy" yaml:"fy" json:"fy"`
	Cx float64 `mapstructure:"cx" yaml:"cx" json:"cx"`
	Cy float64 `mapstructure:"cy" yaml:"cy" json:"cy"`
}

// IdentityIntrinsics maps the unit UV square straight onto the view plane.
func IdentityIntrinsics() Intrinsics {
	return Intrinsics{Fx: 1, Fy: 1}
}

// CheckValid rejects intrinsics whose focal scales would divide by zero in
// UVToView. This is the configuration-boundary guard; the mapping functions
// themselves never validate, and degenerate values propagate as IEEE
// infinities per the usual float semantics.
func (in Intrinsics) CheckValid() error {
	if in.Fx == 0 || in.Fy == 0 {
		return fmt.Errorf("invalid intrinsics: zero focal scale (fx=%v, fy=%v)", in.Fx, in.Fy)
	}
	return nil
}

// UVToView converts a viewport UV coordinate to a normalized view position.
func (in Intrinsics) UVToView(uv mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{(uv.X() - in.Cx) / in.Fx, (uv.Y() - in.Cy) / in.Fy}
}

// ViewToUV converts a normalized view position to a viewport UV coordinate.
func (in Intrinsics) ViewToUV(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{v.X()*in.Fx + in.Cx, v.Y()*in.Fy + in.Cy}
}
