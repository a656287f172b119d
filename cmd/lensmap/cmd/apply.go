package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/lensmap/internal/dispmap"
	"github.com/MeKo-Tech/lensmap/internal/utils"
)

// applyCmd represents the apply command.
var applyCmd = &cobra.Command{
	Use:   "apply [image]",
	Short: "Warp an image through a baked displacement map",
	Long: `Warp an image through a previously baked displacement map.

The undistort direction removes lens distortion from a distorted photo;
the distort direction applies the lens model to a rectilinear render.

Supported input formats: JPEG, PNG, BMP, TIFF

Examples:
  lensmap apply photo.jpg --map map.f32 -o undistorted.png
  lensmap apply render.png --map map.f32 --direction distort -o distorted.png`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		mapPath, _ := cmd.Flags().GetString("map")
		if mapPath == "" {
			return errors.New("no displacement map provided (use --map)")
		}
		dir, err := parseDirection(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")

		m, err := dispmap.Load(mapPath)
		if err != nil {
			return err
		}

		src, meta, err := utils.LoadImage(args[0])
		if err != nil {
			return err
		}
		slog.Debug("Loaded input image",
			"path", meta.Path, "format", meta.Format,
			"width", meta.Width, "height", meta.Height)

		warped := dispmap.WarpImage(src, m, dir)
		if err := utils.SaveImage(warped, output); err != nil {
			return err
		}
		slog.Info("Warped image written", "file", output)
		return nil
	},
}

func parseDirection(cmd *cobra.Command) (dispmap.Direction, error) {
	name, _ := cmd.Flags().GetString("direction")
	switch name {
	case "undistort":
		return dispmap.DirectionUndistort, nil
	case "distort":
		return dispmap.DirectionDistort, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (use distort or undistort)", name)
	}
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().String("map", "", "baked displacement map (.f32)")
	applyCmd.Flags().String("direction", "undistort", "warp direction (distort or undistort)")
	applyCmd.Flags().StringP("output", "o", "warped.png", "output image file")
}
