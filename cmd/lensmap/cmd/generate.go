package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/lensmap/internal/baker"
	"github.com/MeKo-Tech/lensmap/internal/config"
	"github.com/MeKo-Tech/lensmap/internal/dispmap"
	"github.com/MeKo-Tech/lensmap/internal/utils"
)

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Bake a displacement map from a lens calibration",
	Long: `Bake a two-direction displacement map for the configured lens model.

Channels 0 and 1 hold the distorted-to-undistorted displacement, channels
2 and 3 the reverse. The output is written as a raw .f32 container or as a
16-bit PNG, chosen by the output file extension.

Examples:
  lensmap generate --calibration lens.json -o map.f32
  lensmap generate --k1 0.1 --width 1024 --height 1024 -o map.png
  lensmap generate --calibration lens.yaml --exact -o map.f32`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		if path, _ := cmd.Flags().GetString("calibration"); path != "" {
			if err := cfg.LoadCalibration(path); err != nil {
				return err
			}
		}
		applyCoefficientFlags(cmd, cfg)

		if out, _ := cmd.Flags().GetString("output"); cmd.Flags().Changed("output") {
			cfg.Output.File = out
		}

		if printConfig, _ := cmd.Flags().GetBool("print-config"); printConfig {
			rendered, err := cfg.RenderYAML()
			if err != nil {
				return err
			}
			_, _ = cmd.OutOrStdout().Write([]byte(rendered))
			return nil
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		opts := bakeOptions(cfg)
		slog.Info("Baking displacement map",
			"width", opts.Width, "height", opts.Height,
			"grid_x", opts.GridX, "grid_y", opts.GridY,
			"exact_inverse", opts.ExactInverse)

		start := time.Now()
		m, err := baker.Bake(cmd.Context(), opts)
		if err != nil {
			return err
		}
		slog.Info("Bake finished", "duration", time.Since(start).String())

		if err := dispmap.Save(cfg.Output.File, m); err != nil {
			return err
		}
		slog.Info("Displacement map written", "file", cfg.Output.File)

		if preview, _ := cmd.Flags().GetString("preview"); preview != "" {
			if err := utils.SaveImage(m.ToImage8(), preview); err != nil {
				return err
			}
			slog.Info("Preview written", "file", preview)
		}
		return nil
	},
}

// applyCoefficientFlags lets per-coefficient flags override whatever the
// config sources or a calibration file supplied.
func applyCoefficientFlags(cmd *cobra.Command, cfg *config.Config) {
	coeffs := map[string]*float64{
		"k1": &cfg.Calibration.Coefficients.K1,
		"k2": &cfg.Calibration.Coefficients.K2,
		"k3": &cfg.Calibration.Coefficients.K3,
		"p1": &cfg.Calibration.Coefficients.P1,
		"p2": &cfg.Calibration.Coefficients.P2,
	}
	for name, dst := range coeffs {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetFloat64(name)
		}
	}
}

// bakeOptions translates the resolved configuration into bake options.
func bakeOptions(cfg *config.Config) baker.Options {
	return baker.Options{
		Width:             cfg.Bake.Width,
		Height:            cfg.Bake.Height,
		Model:             cfg.Calibration.Coefficients,
		DistortedCamera:   cfg.Calibration.Distorted,
		UndistortedCamera: cfg.Calibration.Undistorted,
		GridX:             cfg.Bake.GridX,
		GridY:             cfg.Bake.GridY,
		Multiply:          cfg.Output.Multiply,
		Add:               cfg.Output.Add,
		ExactInverse:      cfg.Bake.ExactInverse,
		Workers:           cfg.Bake.Workers,
	}
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().Int("width", 512, "output map width in texels")
	generateCmd.Flags().Int("height", 512, "output map height in texels")
	generateCmd.Flags().Int("grid-x", 32, "tessellation grid columns")
	generateCmd.Flags().Int("grid-y", 32, "tessellation grid rows")
	generateCmd.Flags().Int("workers", 0, "bake worker count (0 = all CPUs)")
	generateCmd.Flags().Bool("exact", false, "use the iterative exact inverse instead of the grid approximation")
	generateCmd.Flags().String("calibration", "", "calibration file (.json or .yaml)")
	generateCmd.Flags().Float64("k1", 0, "radial distortion coefficient k1")
	generateCmd.Flags().Float64("k2", 0, "radial distortion coefficient k2")
	generateCmd.Flags().Float64("k3", 0, "radial distortion coefficient k3")
	generateCmd.Flags().Float64("p1", 0, "tangential distortion coefficient p1")
	generateCmd.Flags().Float64("p2", 0, "tangential distortion coefficient p2")
	generateCmd.Flags().Float64("multiply", 1, "output transform scale")
	generateCmd.Flags().Float64("add", 0, "output transform offset")
	generateCmd.Flags().StringP("output", "o", "displacement.f32", "output file (.f32 or .png)")
	generateCmd.Flags().String("preview", "", "also write an 8-bit preview PNG to this path")
	generateCmd.Flags().Bool("print-config", false, "print the resolved configuration as YAML and exit")

	_ = viper.BindPFlag("bake.width", generateCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("bake.height", generateCmd.Flags().Lookup("height"))
	_ = viper.BindPFlag("bake.grid_x", generateCmd.Flags().Lookup("grid-x"))
	_ = viper.BindPFlag("bake.grid_y", generateCmd.Flags().Lookup("grid-y"))
	_ = viper.BindPFlag("bake.workers", generateCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("bake.exact_inverse", generateCmd.Flags().Lookup("exact"))
	_ = viper.BindPFlag("output.multiply", generateCmd.Flags().Lookup("multiply"))
	_ = viper.BindPFlag("output.add", generateCmd.Flags().Lookup("add"))
}
