package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/lensmap/internal/lens"
)

// DefaultSubdivision is the default grid resolution per axis. Finer grids
// track the distortion curvature more closely at the cost of more vertices.
const DefaultSubdivision = 32

const verticesPerCell = 6

// quadCorners visits the four logical corners of a grid cell as two
// triangles sharing the main diagonal: (0,0)-(1,0)-(1,1) and (0,0)-(1,1)-(0,1).
var quadCorners = [verticesPerCell][2]float64{
	{0, 0}, {1, 0}, {1, 1},
	{0, 0}, {1, 1}, {0, 1},
}

// Grid is a logical tessellation of the viewport into SubdivX x SubdivY quad
// cells of two triangles each. It exists only for the duration of one bake
// pass; vertices are generated on the fly from their index, never stored.
type Grid struct {
	SubdivX int
	SubdivY int
}

// NewGrid returns a grid with defaults applied for non-positive subdivisions.
func NewGrid(subdivX, subdivY int) Grid {
	if subdivX <= 0 {
		subdivX = DefaultSubdivision
	}
	if subdivY <= 0 {
		subdivY = DefaultSubdivision
	}
	return Grid{SubdivX: subdivX, SubdivY: subdivY}
}

// CheckValid rejects degenerate tessellations at the configuration boundary.
func (g Grid) CheckValid() error {
	if g.SubdivX <= 0 || g.SubdivY <= 0 {
		return fmt.Errorf("invalid grid subdivision %dx%d", g.SubdivX, g.SubdivY)
	}
	return nil
}

// VertexCount returns the total number of logical vertices (6 per cell).
func (g Grid) VertexCount() int {
	return verticesPerCell * g.SubdivX * g.SubdivY
}

// Vertex is one evaluated grid vertex: a clip-space ([-1,1]) output position
// at the point's undistorted location, and the distorted-frame viewport UV of
// the original grid point, carried along as the varying that the rasterizer
// interpolates linearly across each triangle.
type Vertex struct {
	ClipPos mgl64.Vec2
	UV      mgl64.Vec2
}

// Vertex evaluates logical vertex i. pixel is the viewport-UV size of one
// output pixel; the half-pixel shift keeps grid points aligned with pixel
// centers. The UV handed to the mapper is flipped to top-left origin exactly
// once here, and the undistorted result is flipped exactly once on the way
// to clip space; adding or removing either flip breaks displacement signs.
func (g Grid) Vertex(i int, m lens.Mapper, pixel mgl64.Vec2) Vertex {
	cell := i / verticesPerCell
	col := cell / g.SubdivY
	row := cell % g.SubdivY
	corner := quadCorners[i%verticesPerCell]

	u := (float64(col) + corner[0]) / float64(g.SubdivX)
	v := (float64(row) + corner[1]) / float64(g.SubdivY)

	half := pixel.Mul(0.5)
	uv := mgl64.Vec2{u, 1 - v}.Sub(half)

	und := m.UndistortUV(uv).Add(half)
	pos := mgl64.Vec2{und.X()*2 - 1, (1-und.Y())*2 - 1}

	return Vertex{ClipPos: pos, UV: uv}
}

// Vertices evaluates the whole grid into a freshly allocated slice.
func (g Grid) Vertices(m lens.Mapper, pixel mgl64.Vec2) []Vertex {
	out := make([]Vertex, g.VertexCount())
	for i := range out {
		out[i] = g.Vertex(i, m, pixel)
	}
	return out
}
