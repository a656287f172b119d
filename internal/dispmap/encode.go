package dispmap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Raw container for full-precision maps: a small little-endian header
// followed by the float32 texel plane.
const (
	rawMagic   = "LMAP"
	rawVersion = 1
)

var errBadMagic = errors.New("not a lensmap displacement file")

type rawHeader struct {
	Magic    [4]byte
	Version  uint32
	Width    uint32
	Height   uint32
	Multiply float64
	Add      float64
}

// Encode writes the map in the raw float32 container format.
func Encode(w io.Writer, m *Map) error {
	bw := bufio.NewWriter(w)
	hdr := rawHeader{
		Version:  rawVersion,
		Width:    uint32(m.Width),
		Height:   uint32(m.Height),
		Multiply: m.Multiply,
		Add:      m.Add,
	}
	copy(hdr.Magic[:], rawMagic)
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, m.Pix); err != nil {
		return fmt.Errorf("writing texels: %w", err)
	}
	return bw.Flush()
}

// Decode reads a map written by Encode.
func Decode(r io.Reader) (*Map, error) {
	var hdr rawHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(hdr.Magic[:]) != rawMagic {
		return nil, errBadMagic
	}
	if hdr.Version != rawVersion {
		return nil, fmt.Errorf("unsupported displacement file version %d", hdr.Version)
	}
	if hdr.Width == 0 || hdr.Height == 0 || hdr.Width > 1<<16 || hdr.Height > 1<<16 {
		return nil, fmt.Errorf("implausible map dimensions %dx%d", hdr.Width, hdr.Height)
	}
	m := New(int(hdr.Width), int(hdr.Height), hdr.Multiply, hdr.Add)
	if err := binary.Read(r, binary.LittleEndian, m.Pix); err != nil {
		return nil, fmt.Errorf("reading texels: %w", err)
	}
	return m, nil
}

func clamp01(v float32) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return float64(v)
}

// ToImage16 converts the stored texels to a 16-bit RGBA image, clamping to
// [0,1]. Only meaningful when the output transform maps the displacement
// range into [0,1] (e.g. multiply=0.5, add=0.5 for signed displacements).
func (m *Map) ToImage16() *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, m.Width, m.Height))
	for y := range m.Height {
		for x := range m.Width {
			t := m.At(x, y)
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: uint16(clamp01(t[0])*65535 + 0.5),
				G: uint16(clamp01(t[1])*65535 + 0.5),
				B: uint16(clamp01(t[2])*65535 + 0.5),
				A: uint16(clamp01(t[3])*65535 + 0.5),
			})
		}
	}
	return img
}

// ToImage8 converts the stored texels to an 8-bit RGBA preview with the same
// clamping as ToImage16. Too coarse to drive a warp, but enough to eyeball a
// bake in any image viewer.
func (m *Map) ToImage8() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := range m.Height {
		for x := range m.Width {
			t := m.At(x, y)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(clamp01(t[0])*255 + 0.5),
				G: uint8(clamp01(t[1])*255 + 0.5),
				B: uint8(clamp01(t[2])*255 + 0.5),
				A: uint8(clamp01(t[3])*255 + 0.5),
			})
		}
	}
	return img
}

// Save writes the map to path, choosing the container from the extension:
// .f32 for the raw full-precision format, .png for a 16-bit PNG.
func Save(path string, m *Map) error {
	f, err := os.Create(path) //nolint:gosec // G304: user-chosen output path is expected
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".f32":
		return Encode(f, m)
	case ".png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(f, m.ToImage16()); err != nil {
			return fmt.Errorf("encoding png: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported displacement map extension %q (use .f32 or .png)", filepath.Ext(path))
	}
}

// Load reads a raw .f32 map from path.
func Load(path string) (*Map, error) {
	f, err := os.Open(path) //nolint:gosec // G304: user-chosen input path is expected
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Decode(bufio.NewReader(f))
}
