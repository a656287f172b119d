// Package baker fills two-direction lens displacement maps: one pass over a
// fixed-size output, combining an exact per-pixel evaluation of the forward
// mapping with the grid-tessellation approximation of its inverse.
package baker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/lensmap/internal/dispmap"
	"github.com/MeKo-Tech/lensmap/internal/lens"
	"github.com/MeKo-Tech/lensmap/internal/mesh"
)

// Options configures one bake pass.
type Options struct {
	Width  int
	Height int

	Model             lens.Coefficients
	DistortedCamera   lens.Intrinsics
	UndistortedCamera lens.Intrinsics

	// Grid tessellation for the undistort->distort approximation; zero
	// values take mesh.DefaultSubdivision.
	GridX int
	GridY int

	// Output transform applied uniformly to all four channels:
	// stored = Add + Multiply*displacement. A zero Multiply means 1.
	Multiply float64
	Add      float64

	// ExactInverse replaces the grid approximation with a per-pixel Newton
	// solve for channels 2,3. Slower; useful as a reference bake.
	ExactInverse bool

	// Workers bounds the row-level parallelism; zero means NumCPU.
	Workers int

	// Progress, when set, is invoked after each completed row. It may be
	// called from multiple worker goroutines.
	Progress func(rowsDone, totalRows int)
}

func (o Options) withDefaults() Options {
	if o.GridX <= 0 {
		o.GridX = mesh.DefaultSubdivision
	}
	if o.GridY <= 0 {
		o.GridY = mesh.DefaultSubdivision
	}
	if o.Multiply == 0 {
		o.Multiply = 1
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Validate enforces the calibration-boundary checks. The numeric pipeline
// itself is total and unguarded; everything that could divide by zero is
// rejected here instead.
func (o Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", o.Width, o.Height)
	}
	m := lens.Mapper{Distorted: o.DistortedCamera, Undistorted: o.UndistortedCamera}
	if err := m.CheckValid(); err != nil {
		return err
	}
	return mesh.Grid{SubdivX: o.GridX, SubdivY: o.GridY}.CheckValid()
}

// Bake computes the displacement map. Every texel holds, post output
// transform, the distorted->undistorted displacement in channels 0,1
// (recomputed exactly per pixel) and the undistorted->distorted displacement
// in channels 2,3 (interpolated from the pre-undistorted grid, or Newton
// when ExactInverse is set or the grid left the pixel uncovered).
func Bake(ctx context.Context, opts Options) (*dispmap.Map, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	m := lens.Mapper{
		Model:       opts.Model,
		Distorted:   opts.DistortedCamera,
		Undistorted: opts.UndistortedCamera,
	}

	// Phase 1: tessellate, undistort the grid vertices analytically, and let
	// the software rasterizer interpolate the distorted-UV varying. The
	// barrier between this and the pixel phase is the only synchronization
	// the pass needs.
	var plane *mesh.VaryingPlane
	if !opts.ExactInverse {
		plane = mesh.Rasterize(mesh.Grid{SubdivX: opts.GridX, SubdivY: opts.GridY}, m, opts.Width, opts.Height)
		defer plane.Release()
	}

	out := dispmap.New(opts.Width, opts.Height, opts.Multiply, opts.Add)

	// Phase 2: embarrassingly parallel over rows.
	rows := make(chan int)
	var wg sync.WaitGroup
	var done atomic.Int64

	for range opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				bakeRow(m, plane, opts, out, y)
				if opts.Progress != nil {
					opts.Progress(int(done.Add(1)), opts.Height)
				}
			}
		}()
	}

	err := func() error {
		defer close(rows)
		for y := range opts.Height {
			select {
			case rows <- y:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}()
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func bakeRow(m lens.Mapper, plane *mesh.VaryingPlane, opts Options, out *dispmap.Map, y int) {
	pw := 1 / float64(opts.Width)
	ph := 1 / float64(opts.Height)

	for x := range opts.Width {
		// Pixel-center UV minus the half-pixel correction, matching the
		// grid's own shift.
		uv := mgl64.Vec2{float64(x) * pw, float64(y) * ph}

		// Exact closed-form direction, fresh per pixel.
		d2u := m.UndistortUV(uv).Sub(uv)

		// Approximated direction from the interpolated varying; Newton when
		// no triangle of the distorted grid reached this pixel.
		var inv mgl64.Vec2
		if plane != nil && plane.Covered(x, y) {
			inv = plane.UV(x, y)
		} else {
			inv = m.DistortUV(uv)
		}
		u2d := inv.Sub(uv)

		mul, add := opts.Multiply, opts.Add
		out.Set(x, y, [4]float32{
			float32(add + mul*d2u.X()),
			float32(add + mul*d2u.Y()),
			float32(add + mul*u2d.X()),
			float32(add + mul*u2d.Y()),
		})
	}
}
