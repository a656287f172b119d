package testutil

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// GradientImage returns a synthetic image whose red and green channels ramp
// across x and y, so that warps shift recognizable values.
func GradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(width-1, 1)),
				G: uint8(y * 255 / max(height-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// WriteGradientPNG writes a gradient image into dir and returns its path.
func WriteGradientPNG(t *testing.T, dir string, width, height int) string {
	t.Helper()

	path := filepath.Join(dir, "gradient.png")
	require.NoError(t, imaging.Save(GradientImage(width, height), path))
	return path
}
