package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/lensmap/internal/dispmap"
	"github.com/MeKo-Tech/lensmap/internal/testutil"
)

// RegisterSteps wires all step definitions into the scenario context.
func (testCtx *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a calibration file with barrel distortion$`, testCtx.aCalibrationFileWithBarrelDistortion)
	sc.Step(`^a gradient test image of size (\d+)x(\d+)$`, testCtx.aGradientTestImage)
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the file "([^"]*)" should be a displacement map of size (\d+)x(\d+)$`,
		testCtx.theFileShouldBeADisplacementMap)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
}

// aCalibrationFileWithBarrelDistortion writes a mild barrel calibration into
// the scenario temp directory.
func (testCtx *TestContext) aCalibrationFileWithBarrelDistortion() error {
	data, err := json.MarshalIndent(testutil.BarrelCalibration(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal calibration: %w", err)
	}

	path := filepath.Join(testCtx.TempDir, "calibration.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write calibration: %w", err)
	}
	testCtx.CalibrationPath = path
	return nil
}

// aGradientTestImage writes a synthetic gradient PNG into the scenario temp
// directory.
func (testCtx *TestContext) aGradientTestImage(width, height int) error {
	path := filepath.Join(testCtx.TempDir, "gradient.png")
	if err := imaging.Save(testutil.GradientImage(width, height), path); err != nil {
		return fmt.Errorf("failed to write test image: %w", err)
	}
	testCtx.InputImagePath = path
	return nil
}

// substituteCommandVariables replaces {temp_dir}, {calibration} and {image}
// placeholders in a feature command line.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	command = strings.ReplaceAll(command, "{temp_dir}", testCtx.TempDir)
	command = strings.ReplaceAll(command, "{calibration}", testCtx.CalibrationPath)
	command = strings.ReplaceAll(command, "{image}", testCtx.InputImagePath)
	return command
}

// iRunCommand executes a command and stores the result.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // G204: feature-file command under test
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}

	return nil
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

// theFileShouldExist verifies a file was produced.
func (testCtx *TestContext) theFileShouldExist(path string) error {
	path = testCtx.substituteCommandVariables(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

// theFileShouldBeADisplacementMap decodes the file and checks its dimensions.
func (testCtx *TestContext) theFileShouldBeADisplacementMap(path string, width, height int) error {
	path = testCtx.substituteCommandVariables(path)
	m, err := dispmap.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load displacement map %s: %w", path, err)
	}
	if m.Width != width || m.Height != height {
		return fmt.Errorf("displacement map is %dx%d, expected %dx%d", m.Width, m.Height, width, height)
	}
	return nil
}
