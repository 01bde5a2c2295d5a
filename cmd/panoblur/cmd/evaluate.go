package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/panoblur/internal/evaluate"
	"github.com/MeKo-Tech/panoblur/internal/utils"
)

func newEvaluateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate objects.yaml mask-image",
		Short: "Compute detection error rates against a reference mask",
		Long: `Compare the area covered by the detections of a document with a reference
mask (black = nothing to detect, white = object) of the same panorama and report
the false positive and false negative pixel ratios.

With --preview the source panorama is written darkened with correct pixels in
green, false positives in red and false negatives in blue.

Examples:
  panoblur evaluate pano.yaml pano-mask.png
  panoblur evaluate pano.yaml pano-mask.png --format json
  panoblur evaluate pano.yaml pano-mask.png --source pano.jpg --preview errors.png`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEvaluate(cmd, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.String("format", "text", "report format: text, json or yaml")
	f.String("source", "", "source panorama for --preview")
	f.String("preview", "", "write an error preview image to this path")
	return cmd
}

func (a *app) runEvaluate(cmd *cobra.Command, objectsPath, maskPath string) error {
	format, _ := cmd.Flags().GetString("format")
	source, _ := cmd.Flags().GetString("source")
	preview, _ := cmd.Flags().GetString("preview")
	if preview != "" && source == "" {
		return errors.New("--preview needs --source")
	}

	_, objects, err := loadObjects(objectsPath)
	if err != nil {
		return err
	}
	mask, _, err := utils.LoadImage(maskPath)
	if err != nil {
		return err
	}
	report, err := evaluate.Evaluate(objects, mask)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "text":
		_, err = fmt.Fprint(out, report.String())
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(out)
		err = enc.Encode(report)
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if preview == "" {
		return nil
	}
	src, _, err := utils.LoadImage(source)
	if err != nil {
		return err
	}
	img, err := evaluate.Preview(src, objects, mask)
	if err != nil {
		return err
	}
	return utils.SaveImage(img, preview, a.cfg.Export.JPEGQuality)
}
