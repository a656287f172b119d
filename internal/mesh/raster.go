package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/lensmap/internal/lens"
	"github.com/MeKo-Tech/lensmap/internal/mempool"
)

// barycentricEpsilon tolerates pixels sitting exactly on shared triangle
// edges; both neighbors then write the same interpolated value.
const barycentricEpsilon = 1e-9

// VaryingPlane is the software replacement for the GPU rasterizer stage: the
// per-pixel linear interpolation of the grid's distorted-UV varying, sampled
// at pixel centers, plus a mask of which pixels any triangle covered.
type VaryingPlane struct {
	Width  int
	Height int
	uv     []float32 // stride 2, row-major
	mask   []bool
}

// Covered reports whether any grid triangle covered the pixel.
func (p *VaryingPlane) Covered(x, y int) bool {
	return p.mask[y*p.Width+x]
}

// UV returns the interpolated distorted-frame viewport UV at the pixel.
// Only meaningful where Covered is true.
func (p *VaryingPlane) UV(x, y int) mgl64.Vec2 {
	i := (y*p.Width + x) * 2
	return mgl64.Vec2{float64(p.uv[i]), float64(p.uv[i+1])}
}

// Rasterize evaluates every grid vertex through the mapper, then fills a
// varying plane of the given output size by barycentric interpolation over
// each of the grid's triangles. This is the piecewise-linear approximation of
// the (closed-form-less) undistorted->distorted inverse: each vertex is moved
// to its analytically undistorted position while carrying its original
// distorted UV, and interpolation supplies the in-between estimates.
func Rasterize(g Grid, m lens.Mapper, width, height int) *VaryingPlane {
	pixel := mgl64.Vec2{1 / float64(width), 1 / float64(height)}
	verts := g.Vertices(m, pixel)

	p := &VaryingPlane{
		Width:  width,
		Height: height,
		uv:     mempool.GetFloat32(width * height * 2),
		mask:   mempool.GetBool(width * height),
	}
	for i := 0; i+2 < len(verts); i += 3 {
		p.fillTriangle(verts[i], verts[i+1], verts[i+2])
	}
	return p
}

// Release returns the plane's buffers to the pool. The plane must not be
// used afterwards.
func (p *VaryingPlane) Release() {
	mempool.PutFloat32(p.uv)
	mempool.PutBool(p.mask)
	p.uv = nil
	p.mask = nil
}

// screen converts a clip-space position to pixel coordinates (top-left
// origin, y down).
func (p *VaryingPlane) screen(clip mgl64.Vec2) (float64, float64) {
	return (clip.X() + 1) * 0.5 * float64(p.Width), (1 - clip.Y()) * 0.5 * float64(p.Height)
}

func (p *VaryingPlane) fillTriangle(v0, v1, v2 Vertex) {
	x0, y0 := p.screen(v0.ClipPos)
	x1, y1 := p.screen(v1.ClipPos)
	x2, y2 := p.screen(v2.ClipPos)

	minX := int(math.Floor(math.Min(math.Min(x0, x1), x2) - 0.5))
	maxX := int(math.Ceil(math.Max(math.Max(x0, x1), x2) - 0.5))
	minY := int(math.Floor(math.Min(math.Min(y0, y1), y2) - 0.5))
	maxY := int(math.Ceil(math.Max(math.Max(y0, y1), y2) - 0.5))

	minX = max(minX, 0)
	minY = max(minY, 0)
	maxX = min(maxX, p.Width-1)
	maxY = min(maxY, p.Height-1)
	if minX > maxX || minY > maxY {
		return
	}

	det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
	if math.Abs(det) < 1e-12 {
		return
	}
	invDet := 1 / det

	dy12 := y1 - y2
	dx21 := x2 - x1
	dy20 := y2 - y0
	dx02 := x0 - x2

	for py := minY; py <= maxY; py++ {
		dy := float64(py) + 0.5 - y2
		rowOff := py * p.Width
		for px := minX; px <= maxX; px++ {
			dx := float64(px) + 0.5 - x2
			w0 := (dy12*dx + dx21*dy) * invDet
			w1 := (dy20*dx + dx02*dy) * invDet
			w2 := 1 - w0 - w1
			if w0 < -barycentricEpsilon || w1 < -barycentricEpsilon || w2 < -barycentricEpsilon {
				continue
			}

			i := (rowOff + px) * 2
			p.uv[i] = float32(w0*v0.UV.X() + w1*v1.UV.X() + w2*v2.UV.X())
			p.uv[i+1] = float32(w0*v0.UV.Y() + w1*v1.UV.Y() + w2*v2.UV.Y())
			p.mask[rowOff+px] = true
		}
	}
}
