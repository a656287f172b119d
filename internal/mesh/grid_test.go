package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lensmap/internal/lens"
)

func identityMapper() lens.Mapper {
	return lens.Mapper{
		Distorted:   lens.IdentityIntrinsics(),
		Undistorted: lens.IdentityIntrinsics(),
	}
}

func TestNewGridDefaults(t *testing.T) {
	g := NewGrid(0, -3)
	assert.Equal(t, DefaultSubdivision, g.SubdivX)
	assert.Equal(t, DefaultSubdivision, g.SubdivY)

	g = NewGrid(8, 16)
	assert.Equal(t, 8, g.SubdivX)
	assert.Equal(t, 16, g.SubdivY)
}

func TestGridCheckValid(t *testing.T) {
	assert.NoError(t, Grid{SubdivX: 1, SubdivY: 1}.CheckValid())
	assert.Error(t, Grid{SubdivX: 0, SubdivY: 4}.CheckValid())
	assert.Error(t, Grid{SubdivX: 4, SubdivY: -1}.CheckValid())
}

func TestGridVertexCount(t *testing.T) {
	assert.Equal(t, 6, Grid{SubdivX: 1, SubdivY: 1}.VertexCount())
	assert.Equal(t, 6*32*32, NewGrid(32, 32).VertexCount())
}

func TestGridTriangleTopology(t *testing.T) {
	// Each cell decomposes into two triangles sharing the main diagonal, so
	// local vertices 0/3 and 2/4 must coincide.
	g := Grid{SubdivX: 3, SubdivY: 2}
	m := identityMapper()
	pixel := mgl64.Vec2{1.0 / 64, 1.0 / 64}

	for cell := range g.SubdivX * g.SubdivY {
		base := cell * 6
		assert.Equal(t, g.Vertex(base, m, pixel), g.Vertex(base+3, m, pixel))
		assert.Equal(t, g.Vertex(base+2, m, pixel), g.Vertex(base+4, m, pixel))
	}
}

func TestGridIdentityClipPositions(t *testing.T) {
	// Without distortion the grid maps the viewport straight onto clip space:
	// the bottom-left corner of cell (0,0) lands at clip (-1,-1) and the
	// far corner of the last cell at (1,1).
	g := Grid{SubdivX: 4, SubdivY: 4}
	m := identityMapper()
	pixel := mgl64.Vec2{1.0 / 64, 1.0 / 64}

	first := g.Vertex(0, m, pixel)
	assert.InDelta(t, -1, first.ClipPos.X(), 1e-12)
	assert.InDelta(t, -1, first.ClipPos.Y(), 1e-12)

	last := g.Vertex(g.VertexCount()-2, m, pixel) // corner (1,1) of the last cell
	assert.InDelta(t, 1, last.ClipPos.X(), 1e-12)
	assert.InDelta(t, 1, last.ClipPos.Y(), 1e-12)
}

func TestGridVertexUVPixelCenterShift(t *testing.T) {
	g := Grid{SubdivX: 2, SubdivY: 2}
	m := identityMapper()
	pixel := mgl64.Vec2{1.0 / 32, 1.0 / 32}

	// Corner (0,0) of cell (0,0) sits at bottom-left: UV (0,1) in top-left
	// orientation, minus the half-pixel correction.
	v := g.Vertex(0, m, pixel)
	assert.InDelta(t, -pixel.X()/2, v.UV.X(), 1e-12)
	assert.InDelta(t, 1-pixel.Y()/2, v.UV.Y(), 1e-12)
}

func TestGridVerticesMatchesVertex(t *testing.T) {
	g := Grid{SubdivX: 2, SubdivY: 3}
	m := identityMapper()
	pixel := mgl64.Vec2{1.0 / 128, 1.0 / 128}

	all := g.Vertices(m, pixel)
	require.Len(t, all, g.VertexCount())
	for i, v := range all {
		assert.Equal(t, g.Vertex(i, m, pixel), v)
	}
}
