// Package cli defines the coco2yolo command tree.
package cli

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ironsheep/coco2yolo/internal/config"
	"github.com/ironsheep/coco2yolo/internal/logging"
	"github.com/ironsheep/coco2yolo/internal/pipeline"
)

// BuildInfo is set by ldflags in main.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// app carries the state shared by every subcommand once the root command
// has loaded the configuration.
type app struct {
	fsys   afero.Fs
	v      *viper.Viper
	build  BuildInfo
	stdout io.Writer
	stderr io.Writer

	configFile string
	settings   *config.Settings
	log        zerolog.Logger
}

// NewRootCommand returns the root command. Results go to stdout, logs to
// stderr.
func NewRootCommand(fsys afero.Fs, stdout, stderr io.Writer, build BuildInfo) *cobra.Command {
	a := &app{
		fsys:   fsys,
		v:      config.New(),
		build:  build,
		stdout: stdout,
		stderr: stderr,
		log:    zerolog.Nop(),
	}

	rootCmd := &cobra.Command{
		Use:           "coco2yolo",
		Short:         "Diagnose, clean and export COCO datasets to YOLO",
		Long:          "coco2yolo checks a COCO annotation file against its image directory, cleans it, splits the images into train, val and test, and writes a YOLO training layout.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	setupFlags(rootCmd, a)

	versionCmd := versionCommand(a)
	rootCmd.AddCommand(
		diagnoseCommand(a),
		cleanCommand(a),
		exportCommand(a),
		runCommand(a),
		reportCommand(a),
		serveCommand(a),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return a.initialize(cmd)
	}

	return rootCmd
}

// setupFlags defines the global flags. Their defaults only document the
// configuration defaults; a flag overrides the file and the environment only
// when it is given.
func setupFlags(rootCmd *cobra.Command, a *app) {
	d := config.Defaults()
	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&a.configFile, "config", "c", "", "Path to a YAML configuration file")
	pf.String("log-level", d.LogLevel, "Log level: trace, debug, info, warn, error")
	pf.Bool("log-pretty", d.LogPretty, "Human-readable logs instead of JSON lines")

	pf.StringP("annotations-source", "a", d.AnnotationsSource, "COCO annotation file")
	pf.StringP("images-directory", "i", d.ImagesDirectory, "Directory holding the image files")
	pf.StringP("output-path", "o", d.OutputPath, "Where the cleaned annotation file is written")
	pf.StringP("export-dir", "e", d.ExportDir, "Root directory of the YOLO export")

	pf.Float64("train-fraction", d.TrainFraction, "Fraction of images assigned to train")
	pf.Float64("val-fraction", d.ValFraction, "Fraction of images assigned to val")
	pf.Float64("test-fraction", d.TestFraction, "Fraction of images assigned to test")
	pf.Int64("seed", d.Seed, "Shuffle seed for the split")

	pf.Int("workers", d.Workers, "Concurrent image copies and probes")
	pf.Int("few-annotations-threshold", d.FewAnnotationsThreshold, "Report images with fewer annotations than this")
	pf.Bool("probe-dimensions", d.ProbeDimensions, "Compare declared image sizes with the files on disk")
}

// initialize loads the configuration and builds the logger.
func (a *app) initialize(cmd *cobra.Command) error {
	if err := config.BindFlags(a.v, cmd); err != nil {
		return err
	}

	settings, err := config.Load(a.fsys, a.v, a.configFile)
	if err != nil {
		return err
	}
	a.settings = settings

	log, err := logging.New(a.stderr, settings.LogLevel, settings.LogPretty)
	if err != nil {
		return err
	}
	a.log = log
	a.log.Debug().Str("command", cmd.Name()).Str("config", a.configFile).Msg("configuration loaded")
	return nil
}

func (a *app) pipeline() *pipeline.Pipeline {
	return pipeline.New(a.fsys, *a.settings, a.log)
}

// printJSON writes v to stdout as indented JSON.
func (a *app) printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(a.stdout, string(b))
	return err
}
