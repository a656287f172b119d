package dispmap

import "github.com/go-gl/mathgl/mgl64"

// Channel layout of one texel. Channels 0,1 hold the displacement from a
// distorted viewport UV to its undistorted equivalent; channels 2,3 hold the
// opposite direction. Stored values are post output-transform
// (stored = Add + Multiply*displacement).
const (
	ChanDistortToUndistortX = iota
	ChanDistortToUndistortY
	ChanUndistortToDistortX
	ChanUndistortToDistortY
	channels
)

// Direction selects which displacement pair a lookup or warp uses, named by
// what applying it to an image does.
type Direction int

const (
	// DirectionUndistort removes lens distortion (uses channels 2,3).
	DirectionUndistort Direction = iota
	// DirectionDistort applies lens distortion (uses channels 0,1).
	DirectionDistort
)

// Map is a baked two-direction lens displacement texture: one 4-channel
// float texel per viewport pixel. Texel (x,y) describes viewport UV
// (x/Width, y/Height), top-left originated.
type Map struct {
	Width    int
	Height   int
	Multiply float64
	Add      float64
	Pix      []float32 // stride 4, row-major
}

// New allocates a zeroed map with the given output transform.
func New(width, height int, multiply, add float64) *Map {
	return &Map{
		Width:    width,
		Height:   height,
		Multiply: multiply,
		Add:      add,
		Pix:      make([]float32, width*height*channels),
	}
}

// At returns the stored (post-transform) texel at (x, y).
func (m *Map) At(x, y int) [4]float32 {
	i := (y*m.Width + x) * channels
	return [4]float32{m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]}
}

// Set stores a texel at (x, y).
func (m *Map) Set(x, y int, v [4]float32) {
	i := (y*m.Width + x) * channels
	m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3] = v[0], v[1], v[2], v[3]
}

// Displacement returns the raw UV displacement at texel (x, y) for the given
// direction, with the output transform undone. Multiply must be nonzero,
// which the bake options guarantee.
func (m *Map) Displacement(x, y int, dir Direction) mgl64.Vec2 {
	t := m.At(x, y)
	var dx, dy float64
	if dir == DirectionDistort {
		dx, dy = float64(t[ChanDistortToUndistortX]), float64(t[ChanDistortToUndistortY])
	} else {
		dx, dy = float64(t[ChanUndistortToDistortX]), float64(t[ChanUndistortToDistortY])
	}
	return mgl64.Vec2{(dx - m.Add) / m.Multiply, (dy - m.Add) / m.Multiply}
}
