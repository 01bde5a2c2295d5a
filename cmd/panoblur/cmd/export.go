package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panoblur/internal/config"
	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/export"
	"github.com/MeKo-Tech/panoblur/internal/utils"
)

func newExportCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "export image objects.yaml output-dir",
		Short: "Export a crop of every detection",
		Long: `Export every detection of a document as an image, plus a descriptor
output-dir/<run>.yaml listing the object records and their image paths.

Spherical detections are reprojected onto a tangent plane centred on the object
so the crops are free of equirectangular distortion. Images are grouped per class;
false positives go to a false_positives sub-directory.

Examples:
  panoblur export pano.jpg pano.yaml crops/
  panoblur export pano.jpg pano.yaml crops/ --format jpeg --merge=false`,
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			return a.runExport(cmd, args[0], args[1], args[2], runID)
		},
	}
	f := cmd.Flags()
	f.String("format", d.Export.Format, "image format: png, jpeg or tiff")
	f.Int("jpeg-quality", d.Export.JPEGQuality, "JPEG quality (1-100)")
	f.Int("gnomonic-width", d.Export.GnomonicWidth, "reprojection window width for spherical objects")
	f.Float64("extra-aperture", d.Export.ExtraAperture, "margin around spherical objects in degrees")
	f.Bool("merge", d.Export.Merge, "merge overlapping detections before export")
	f.Int("min-overlap", d.Merge.MinOverlap, "minimum number of overlapping detections to keep a merged object")
	f.String("run-id", "", "run identifier naming the descriptor (default random)")
	bindFlag(cmd, "format", "export.format")
	bindFlag(cmd, "jpeg-quality", "export.jpeg_quality")
	bindFlag(cmd, "gnomonic-width", "export.gnomonic_width")
	bindFlag(cmd, "extra-aperture", "export.extra_aperture")
	bindFlag(cmd, "merge", "export.merge")
	bindFlag(cmd, "min-overlap", "merge.min_overlap")
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, imagePath, objectsPath, dir, runID string) error {
	img, _, err := utils.LoadImage(imagePath)
	if err != nil {
		return err
	}
	doc, objects, err := loadObjects(objectsPath)
	if err != nil {
		return err
	}
	if a.cfg.Export.Merge {
		objects = detector.Merge(objects, a.cfg.Merge.MinOverlap)
	}

	opts := a.cfg.ExportOptions()
	opts.RunID = runID
	source := doc.Source
	if source == "" {
		source = imagePath
	}
	res, err := export.Export(img, source, objects, dir, opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d images (%d skipped), descriptor %s\n",
		res.Images, res.Skipped, res.DescriptorPath)
	return err
}
