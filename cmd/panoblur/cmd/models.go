package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/panoblur/internal/models"
	"github.com/MeKo-Tech/panoblur/internal/onnx"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect detection models",
	}

	listCmd := &cobra.Command{
		Use:          "list",
		Short:        "List model files under the models directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := models.GetModelsDir(a.cfg.ModelsDir)
			infos, err := models.ListAvailableModels(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				_, err := fmt.Fprintf(out, "No models found in %s\n", dir)
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tKIND\tPATH")
			for _, m := range infos {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, m.Kind, m.Path)
			}
			return tw.Flush()
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the ONNX Runtime library can be loaded",
		Long: `Check that the ONNX Runtime shared library can be found and initialised.
Cascade models do not need it; text region (.onnx) models do.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := onnx.FindLibrary()
			if err != nil {
				return err
			}
			if err := onnx.Init(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ONNX Runtime ready: %s\n", lib)
			return err
		},
	}

	cmd.AddCommand(listCmd, checkCmd)
	return cmd
}
