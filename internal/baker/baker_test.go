package baker

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lensmap/internal/dispmap"
	"github.com/MeKo-Tech/lensmap/internal/lens"
)

func centered() lens.Intrinsics {
	return lens.Intrinsics{Fx: 1, Fy: 1, Cx: 0.5, Cy: 0.5}
}

func TestBakeZeroModelIsAllZero(t *testing.T) {
	// Perfect lens, matched identity cameras, 512x512 output: every texel
	// must be exactly (0,0,0,0). No distortion means no displacement, and
	// the grid interpolation introduces no error on an affine mapping.
	m, err := Bake(context.Background(), Options{
		Width:             512,
		Height:            512,
		DistortedCamera:   lens.IdentityIntrinsics(),
		UndistortedCamera: lens.IdentityIntrinsics(),
	})
	require.NoError(t, err)

	for y := 0; y < 512; y += 13 {
		for x := 0; x < 512; x += 13 {
			require.Equal(t, [4]float32{0, 0, 0, 0}, m.At(x, y), "texel (%d,%d)", x, y)
		}
	}
	// Corners and edges too, where coverage is most fragile.
	for _, p := range [][2]int{{0, 0}, {511, 0}, {0, 511}, {511, 511}, {255, 511}, {511, 255}} {
		require.Equal(t, [4]float32{0, 0, 0, 0}, m.At(p[0], p[1]), "texel %v", p)
	}
}

func TestBakeDisplacementMonotonicFromCenter(t *testing.T) {
	// Barrel distortion with the principal point at the viewport center:
	// displacement magnitude must grow with distance from (0.5, 0.5).
	m, err := Bake(context.Background(), Options{
		Width:             128,
		Height:            128,
		Model:             lens.Coefficients{K1: 0.1},
		DistortedCamera:   centered(),
		UndistortedCamera: centered(),
		GridX:             32,
		GridY:             32,
	})
	require.NoError(t, err)

	prev := -1.0
	for x := 64; x < 128; x += 4 {
		t4 := m.At(x, 64)
		mag := math.Hypot(float64(t4[0]), float64(t4[1]))
		assert.Greater(t, mag, prev, "distort->undistort displacement at x=%d", x)
		prev = mag
	}

	prev = -1.0
	for x := 64; x < 124; x += 4 { // stay clear of the uncovered border
		t4 := m.At(x, 64)
		mag := math.Hypot(float64(t4[2]), float64(t4[3]))
		assert.Greater(t, mag, prev, "undistort->distort displacement at x=%d", x)
		prev = mag
	}
}

func bakeBoth(t *testing.T, gridSubdiv int) (*dispmap.Map, *dispmap.Map) {
	t.Helper()
	opts := Options{
		Width:             64,
		Height:            64,
		Model:             lens.Coefficients{K1: 0.1, K2: -0.01},
		DistortedCamera:   centered(),
		UndistortedCamera: centered(),
		GridX:             gridSubdiv,
		GridY:             gridSubdiv,
	}
	approx, err := Bake(context.Background(), opts)
	require.NoError(t, err)
	opts.ExactInverse = true
	exact, err := Bake(context.Background(), opts)
	require.NoError(t, err)
	return approx, exact
}

func maxInverseDeviation(a, b *dispmap.Map) float64 {
	worst := 0.0
	for y := range a.Height {
		for x := range a.Width {
			ta, tb := a.At(x, y), b.At(x, y)
			d := math.Hypot(float64(ta[2]-tb[2]), float64(ta[3]-tb[3]))
			worst = math.Max(worst, d)
		}
	}
	return worst
}

func TestBakeGridConvergesToNewtonInverse(t *testing.T) {
	coarseApprox, coarseExact := bakeBoth(t, 8)
	fineApprox, fineExact := bakeBoth(t, 32)

	coarseErr := maxInverseDeviation(coarseApprox, coarseExact)
	fineErr := maxInverseDeviation(fineApprox, fineExact)

	assert.Less(t, fineErr, coarseErr, "finer grid must approximate the Newton inverse better")
	assert.Less(t, fineErr, 1e-3)
}

func TestBakeExactChannelsAgreeAcrossModes(t *testing.T) {
	// Channels 0,1 are computed identically in both modes.
	approx, exact := bakeBoth(t, 16)
	for y := 0; y < 64; y += 5 {
		for x := 0; x < 64; x += 5 {
			ta, te := approx.At(x, y), exact.At(x, y)
			assert.Equal(t, te[0], ta[0])
			assert.Equal(t, te[1], ta[1])
		}
	}
}

func TestBakeUncoveredPixelsFallBackToNewton(t *testing.T) {
	// Pincushion distortion shrinks the grid, so border pixels go uncovered
	// and must carry the same values an exact bake produces.
	opts := Options{
		Width:             64,
		Height:            64,
		Model:             lens.Coefficients{K1: -0.2},
		DistortedCamera:   centered(),
		UndistortedCamera: centered(),
		GridX:             16,
		GridY:             16,
	}
	approx, err := Bake(context.Background(), opts)
	require.NoError(t, err)
	opts.ExactInverse = true
	exact, err := Bake(context.Background(), opts)
	require.NoError(t, err)

	ta, te := approx.At(0, 0), exact.At(0, 0)
	assert.Equal(t, te[2], ta[2])
	assert.Equal(t, te[3], ta[3])
}

func TestBakeOutputTransform(t *testing.T) {
	base := Options{
		Width:             32,
		Height:            32,
		Model:             lens.Coefficients{K1: 0.05},
		DistortedCamera:   centered(),
		UndistortedCamera: centered(),
	}
	raw, err := Bake(context.Background(), base)
	require.NoError(t, err)

	base.Multiply = 0.5
	base.Add = 0.5
	packed, err := Bake(context.Background(), base)
	require.NoError(t, err)

	for y := 0; y < 32; y += 3 {
		for x := 0; x < 32; x += 3 {
			tr, tp := raw.At(x, y), packed.At(x, y)
			for c := range 4 {
				assert.InDelta(t, 0.5+0.5*float64(tr[c]), float64(tp[c]), 1e-6)
			}
		}
	}
}

func TestBakeDeterministicAcrossWorkerCounts(t *testing.T) {
	opts := Options{
		Width:             48,
		Height:            48,
		Model:             lens.Coefficients{K1: 0.08, P1: 0.003},
		DistortedCamera:   centered(),
		UndistortedCamera: centered(),
	}
	opts.Workers = 1
	a, err := Bake(context.Background(), opts)
	require.NoError(t, err)
	opts.Workers = 8
	b, err := Bake(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestBakeProgress(t *testing.T) {
	var mu sync.Mutex
	rows := 0
	_, err := Bake(context.Background(), Options{
		Width:             16,
		Height:            16,
		DistortedCamera:   lens.IdentityIntrinsics(),
		UndistortedCamera: lens.IdentityIntrinsics(),
		Progress: func(done, total int) {
			mu.Lock()
			rows++
			mu.Unlock()
			assert.Equal(t, 16, total)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 16, rows)
}

func TestBakeContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Bake(ctx, Options{
		Width:             256,
		Height:            256,
		DistortedCamera:   lens.IdentityIntrinsics(),
		UndistortedCamera: lens.IdentityIntrinsics(),
		Workers:           1,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBakeValidation(t *testing.T) {
	_, err := Bake(context.Background(), Options{Width: 0, Height: 64})
	assert.Error(t, err)

	_, err = Bake(context.Background(), Options{
		Width: 8, Height: 8,
		DistortedCamera: lens.Intrinsics{Fx: 0, Fy: 1},
	})
	assert.Error(t, err)
}
