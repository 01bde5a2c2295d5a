package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panoblur/internal/config"
	"github.com/MeKo-Tech/panoblur/internal/detector"
	"github.com/MeKo-Tech/panoblur/internal/store"
)

func newMergeCmd(a *app) *cobra.Command {
	d := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "merge input.yaml [output.yaml]",
		Short: "Merge overlapping detections of a document",
		Long: `Merge overlapping detections of a detection document.

Clusters with fewer than --min-overlap members are dropped. With --auto-validate
only merged objects whose every member was reviewed as not a false positive stay
in objects, the others move to invalidObjects. The result is written
to output.yaml, or to stdout when no output is given.

Examples:
  panoblur merge pano.yaml pano-merged.yaml --min-overlap 2
  panoblur merge pano.yaml --auto-validate`,
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := ""
			if len(args) == 2 {
				output = args[1]
			}
			autoValidate, _ := cmd.Flags().GetBool("auto-validate")
			return a.runMerge(cmd, args[0], output, autoValidate)
		},
	}
	cmd.Flags().Int("min-overlap", d.Merge.MinOverlap, "minimum number of overlapping detections to keep a merged object")
	cmd.Flags().Bool("auto-validate", false, "move objects not confirmed as true detections to invalidObjects")
	bindFlag(cmd, "min-overlap", "merge.min_overlap")
	return cmd
}

func (a *app) runMerge(cmd *cobra.Command, input, output string, autoValidate bool) error {
	doc, objects, err := loadObjects(input)
	if err != nil {
		return err
	}
	merged := detector.Merge(objects, a.cfg.Merge.MinOverlap)
	slog.Info("Merged detections", "input", len(objects), "output", len(merged),
		"min_overlap", a.cfg.Merge.MinOverlap)

	if !autoValidate {
		doc.Objects = store.FromObjects(merged)
		return writeDocument(cmd.OutOrStdout(), output, doc)
	}

	var valid, rejected []detector.DetectedObject
	for _, o := range merged {
		if o.FalsePositive == detector.FalsePositiveNo {
			valid = append(valid, o)
		} else {
			rejected = append(rejected, o)
		}
	}
	doc.Objects = store.FromObjects(valid)
	doc.InvalidObjects = append(doc.InvalidObjects, store.FromObjects(rejected)...)
	if err := writeDocument(cmd.OutOrStdout(), output, doc); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	return nil
}
