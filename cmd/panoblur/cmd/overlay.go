package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panoblur/internal/config"
	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/overlay"
	"github.com/MeKo-Tech/panoblur/internal/utils"
)

func newOverlayCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "overlay image objects.yaml output-image",
		Short: "Draw detections on a copy of the panorama",
		Long: `Draw the outline of every detection and its children on a copy of the
panorama, one colour per class. False positives are drawn in grey.

Examples:
  panoblur overlay pano.jpg pano.yaml preview.png
  panoblur overlay pano.jpg pano.yaml preview.png --merge --invalid`,
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			merge, _ := cmd.Flags().GetBool("merge")
			invalid, _ := cmd.Flags().GetBool("invalid")
			return a.runOverlay(cmd, args, merge, invalid)
		},
	}
	f := cmd.Flags()
	f.Int("thickness", d.Overlay.Thickness, "outline thickness in pixels")
	f.Bool("merge", false, "merge overlapping detections before drawing")
	f.Int("min-overlap", d.Merge.MinOverlap, "minimum number of overlapping detections to keep a merged object")
	f.Bool("invalid", false, "also draw the invalidObjects of the document")
	bindFlag(cmd, "thickness", "overlay.thickness")
	bindFlag(cmd, "min-overlap", "merge.min_overlap")
	return cmd
}

func (a *app) runOverlay(cmd *cobra.Command, args []string, merge, invalid bool) error {
	img, _, err := utils.LoadImage(args[0])
	if err != nil {
		return err
	}
	doc, objects, err := loadObjects(args[1])
	if err != nil {
		return err
	}
	if merge {
		objects = detector.Merge(objects, a.cfg.Merge.MinOverlap)
	}
	if invalid {
		rejected, err := doc.InvalidDetections()
		if err != nil {
			return fmt.Errorf("%s: %w", args[1], err)
		}
		objects = append(objects, rejected...)
	}

	out := overlay.Render(img, objects, a.cfg.OverlayOptions())
	if err := utils.SaveImage(out, args[2], a.cfg.Export.JPEGQuality); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Drew %d objects into %s\n", len(objects), args[2])
	return err
}
