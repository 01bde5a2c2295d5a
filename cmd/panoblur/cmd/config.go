package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/panoblur/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a configuration file with every default value",
		Long: `Write a configuration file with every default value, panoblur.yaml in the
current directory unless a file is given. Existing files are not overwritten
without --force.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		Annotations:  map[string]string{lenientAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			file := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				file = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if !force && fileExists(file) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", file)
			}
			if err := config.GenerateDefaultConfigFile(file); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", file)
			return err
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:          "show",
		Short:        "Print the effective configuration",
		Long:         `Print the configuration after merging defaults, the config file, environment variables and flags.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Annotations:  map[string]string{lenientAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			a.loader.PrintConfigInfo(out)
			if err := a.cfg.Validate(); err != nil {
				_, _ = fmt.Fprintf(out, "Validation: %v\n", err)
			}
			_, _ = fmt.Fprintln(out)
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(a.cfg); err != nil {
				return fmt.Errorf("encode configuration: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
