package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/lensmap/internal/config"
	"github.com/MeKo-Tech/lensmap/internal/lens"
)

// BarrelCalibration returns a mild barrel-distortion calibration with both
// cameras centered on the viewport.
func BarrelCalibration() config.CalibrationConfig {
	centered := lens.Intrinsics{Fx: 1, Fy: 1, Cx: 0.5, Cy: 0.5}
	return config.CalibrationConfig{
		Coefficients: lens.Coefficients{K1: 0.1, K2: 0.01},
		Distorted:    centered,
		Undistorted:  centered,
	}
}

// WriteCalibrationJSON writes the calibration to a JSON file in dir and
// returns its path.
func WriteCalibrationJSON(t *testing.T, dir string, calib config.CalibrationConfig) string {
	t.Helper()

	data, err := json.MarshalIndent(calib, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(dir, "calibration.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
