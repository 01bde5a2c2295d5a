// Package cmd implements the panoblur command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/panoblur/internal/config"
	"github.com/MeKo-Tech/panoblur/internal/metrics"
	"github.com/MeKo-Tech/panoblur/internal/version"
)

// viperKeyAnnotation marks a flag with the configuration key it overrides.
const viperKeyAnnotation = "panoblur_config_key"

// lenientAnnotation lets a command run with a configuration that fails validation.
const lenientAnnotation = "panoblur_lenient_config"

// app carries the configuration state shared by one command tree.
type app struct {
	v       *viper.Viper
	loader  *config.Loader
	cfg     *config.Config
	cfgFile string
}

// NewRootCommand builds a fresh command tree with its own configuration state.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	a.loader = config.NewLoaderWithViper(a.v)
	d := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "panoblur",
		Short: "Object detection and blurring for equirectangular panoramas",
		Long: `panoblur detects objects such as faces and signs in 360° equirectangular
panoramas and obscures them.

Detection can run on the flat panorama or on gnomonic tiles projected from the
sphere, which removes the distortion near the poles. Detections are stored as
YAML documents that the other commands consume.

Examples:
  panoblur detect pano.jpg -m face:facefinder -o pano.yaml
  panoblur detect panoramas/ --output-dir results/ --gnomonic
  panoblur blur pano.jpg pano.yaml pano-blurred.jpg
  panoblur serve --port 8080`,
		Version:       version.String(),
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initialize(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.cfg == nil || a.cfg.MetricsFile == "" {
				return nil
			}
			return metrics.WriteTextfile(a.cfg.MetricsFile)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/panoblur, /etc/panoblur)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	pf.String("models-dir", d.ModelsDir,
		"directory containing cascade and ONNX models (can also be set via PANOBLUR_MODELS_DIR)")
	pf.String("metrics-file", "", "write Prometheus metrics in text format to this file on exit")
	bindPersistentFlag(rootCmd, "verbose", "verbose")
	bindPersistentFlag(rootCmd, "log-level", "log_level")
	bindPersistentFlag(rootCmd, "models-dir", "models_dir")
	bindPersistentFlag(rootCmd, "metrics-file", "metrics_file")

	rootCmd.AddCommand(
		newDetectCmd(a),
		newMergeCmd(a),
		newExportCmd(a),
		newBlurCmd(a),
		newOverlayCmd(a),
		newEvaluateCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newModelsCmd(a),
	)
	return rootCmd
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bindFlag ties a local flag of cmd to a configuration key.
func bindFlag(cmd *cobra.Command, flag, key string) {
	if err := cmd.Flags().SetAnnotation(flag, viperKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

func bindPersistentFlag(cmd *cobra.Command, flag, key string) {
	if err := cmd.PersistentFlags().SetAnnotation(flag, viperKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// initialize binds the flags of the executing command, loads the configuration and
// installs the logger. Binding happens per run so commands sharing a key do not
// shadow each other.
func (a *app) initialize(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys, ok := f.Annotations[viperKeyAnnotation]; ok && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return fmt.Errorf("bind flags: %w", bindErr)
	}

	var err error
	if cmd.Annotations[lenientAnnotation] != "" {
		a.cfg, err = a.loader.LoadWithFileWithoutValidation(a.cfgFile)
	} else {
		a.cfg, err = a.loader.LoadWithFile(a.cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel(a.cfg),
	}))
	slog.SetDefault(logger)
	slog.Debug("Configuration loaded", "file", a.loader.GetConfigFileUsed(), "command", cmd.Name())
	return nil
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
