package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panoblur/internal/blur"
	"github.com/MeKo-Tech/panoblur/internal/config"
	"github.com/MeKo-Tech/panoblur/internal/utils"
)

func newBlurCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "blur image objects.yaml output-image",
		Short: "Blur detected objects and write the modified image",
		Long: `Blur every detection of a document that is not flagged as a false positive.
Detections crossing the panorama seam or a pole are blurred on both sides.

The output format follows the extension of output-image.

Examples:
  panoblur blur pano.jpg pano.yaml pano-blurred.jpg
  panoblur blur pano.tiff pano.yaml out.png --algorithm box --radius 12`,
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBlur(cmd, args[0], args[1], args[2])
		},
	}
	f := cmd.Flags()
	f.String("algorithm", d.Blur.Algorithm, "blur algorithm: gaussian, box or none")
	f.Float64("radius", d.Blur.Radius, "kernel radius in pixels (0 = scale with each object)")
	f.Int("jpeg-quality", d.Export.JPEGQuality, "JPEG quality of the output (1-100)")
	bindFlag(cmd, "algorithm", "blur.algorithm")
	bindFlag(cmd, "radius", "blur.radius")
	bindFlag(cmd, "jpeg-quality", "export.jpeg_quality")
	return cmd
}

func (a *app) runBlur(cmd *cobra.Command, imagePath, objectsPath, output string) error {
	img, _, err := utils.LoadImage(imagePath)
	if err != nil {
		return err
	}
	_, objects, err := loadObjects(objectsPath)
	if err != nil {
		return err
	}
	blurred, n, err := blur.Apply(img, objects, a.cfg.BlurOptions())
	if err != nil {
		return err
	}
	if err := utils.SaveImage(blurred, output, a.cfg.Export.JPEGQuality); err != nil {
		return err
	}
	slog.Info("Blurred image written", "output", output, "regions", n)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Blurred %d regions into %s\n", n, output)
	return err
}
