package dispmap

import (
	"image"
	"image/color"
)

// WarpImage resamples src through the displacement map: each output pixel
// looks up its displacement at the matching map texel and samples src at the
// displaced location with bilinear interpolation. This is the texture-lookup
// application the map is baked for, and doubles as a visual check of a bake.
// Samples outside src come back transparent black.
func WarpImage(src image.Image, m *Map, dir Direction) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := range h {
		for x := range w {
			// Nearest map texel for this pixel's viewport UV.
			mx := x * m.Width / w
			my := y * m.Height / h
			d := m.Displacement(mx, my, dir)

			sx := float64(x) + d.X()*float64(w)
			sy := float64(y) + d.Y()*float64(h)
			out.SetNRGBA(x, y, bilinearSample(src, sx+float64(b.Min.X), sy+float64(b.Min.Y)))
		}
	}
	return out
}

func bilinearSample(src image.Image, x, y float64) color.NRGBA {
	b := src.Bounds()
	if x < float64(b.Min.X) || y < float64(b.Min.Y) || x > float64(b.Max.X-1) || y > float64(b.Max.Y-1) {
		return color.NRGBA{}
	}
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 >= b.Max.X {
		x1 = b.Max.X - 1
	}
	if y1 >= b.Max.Y {
		y1 = b.Max.Y - 1
	}
	fx := x - float64(x0)
	fy := y - float64(y0)

	c00 := toFloatRGBA(src.At(x0, y0))
	c10 := toFloatRGBA(src.At(x1, y0))
	c01 := toFloatRGBA(src.At(x0, y1))
	c11 := toFloatRGBA(src.At(x1, y1))

	return color.NRGBA{
		R: uint8(lerp(lerp(c00.r, c10.r, fx), lerp(c01.r, c11.r, fx), fy) + 0.5),
		G: uint8(lerp(lerp(c00.g, c10.g, fx), lerp(c01.g, c11.g, fx), fy) + 0.5),
		B: uint8(lerp(lerp(c00.b, c10.b, fx), lerp(c01.b, c11.b, fx), fy) + 0.5),
		A: uint8(lerp(lerp(c00.a, c10.a, fx), lerp(c01.a, c11.a, fx), fy) + 0.5),
	}
}

type floatRGBA struct{ r, g, b, a float64 }

func toFloatRGBA(c color.Color) floatRGBA {
	r, g, b, a := c.RGBA()
	return floatRGBA{float64(r >> 8), float64(g >> 8), float64(b >> 8), float64(a >> 8)}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
