// Package config loads pipeline settings from defaults, an optional YAML
// file, COCO2YOLO_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "COCO2YOLO"

// Configuration keys.
const (
	KeyAnnotationsSource       = "annotations_source"
	KeyImagesDirectory         = "images_directory"
	KeyOutputPath              = "output_path"
	KeyExportDir               = "export_dir"
	KeyTrainFraction           = "train_fraction"
	KeyValFraction             = "val_fraction"
	KeyTestFraction            = "test_fraction"
	KeySeed                    = "seed"
	KeyWorkers                 = "workers"
	KeyFewAnnotationsThreshold = "few_annotations_threshold"
	KeyProbeDimensions         = "probe_dimensions"
	KeyLogLevel                = "log_level"
	KeyLogPretty               = "log_pretty"
)

var keys = []string{
	KeyAnnotationsSource, KeyImagesDirectory, KeyOutputPath, KeyExportDir,
	KeyTrainFraction, KeyValFraction, KeyTestFraction, KeySeed,
	KeyWorkers, KeyFewAnnotationsThreshold, KeyProbeDimensions,
	KeyLogLevel, KeyLogPretty,
}

// Settings holds every knob of the pipeline.
type Settings struct {
	AnnotationsSource string `mapstructure:"annotations_source" json:"annotations_source"`
	ImagesDirectory   string `mapstructure:"images_directory" json:"images_directory"`
	OutputPath        string `mapstructure:"output_path" json:"output_path"`
	ExportDir         string `mapstructure:"export_dir" json:"export_dir"`

	TrainFraction float64 `mapstructure:"train_fraction" json:"train_fraction"`
	ValFraction   float64 `mapstructure:"val_fraction" json:"val_fraction"`
	TestFraction  float64 `mapstructure:"test_fraction" json:"test_fraction"`
	Seed          int64   `mapstructure:"seed" json:"seed"`

	Workers                 int  `mapstructure:"workers" json:"workers"`
	FewAnnotationsThreshold int  `mapstructure:"few_annotations_threshold" json:"few_annotations_threshold"`
	ProbeDimensions         bool `mapstructure:"probe_dimensions" json:"probe_dimensions"`

	LogLevel  string `mapstructure:"log_level" json:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty" json:"log_pretty"`
}

// New returns a viper instance carrying the defaults and the environment
// binding.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAnnotationsSource, "data/_annotations.coco.json")
	v.SetDefault(KeyImagesDirectory, "data/images")
	v.SetDefault(KeyOutputPath, "data/annotations_clean.json")
	v.SetDefault(KeyExportDir, "data/dataset_yolo")
	v.SetDefault(KeyTrainFraction, 0.7)
	v.SetDefault(KeyValFraction, 0.2)
	v.SetDefault(KeyTestFraction, 0.1)
	v.SetDefault(KeySeed, 42)
	v.SetDefault(KeyWorkers, 4)
	v.SetDefault(KeyFewAnnotationsThreshold, 2)
	v.SetDefault(KeyProbeDimensions, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogPretty, false)
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Settings {
	v := viper.New()
	setDefaults(v)
	var s Settings
	// Decoding literal defaults cannot fail.
	_ = v.Unmarshal(&s)
	return s
}

// Load reads configFile through fsys when it is non-empty, then decodes and
// validates the merged settings.
func Load(fsys afero.Fs, v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetFs(fsys)
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate reports every invalid setting at once.
func (s *Settings) Validate() error {
	var problems []string

	paths := []struct{ key, value string }{
		{KeyAnnotationsSource, s.AnnotationsSource},
		{KeyImagesDirectory, s.ImagesDirectory},
		{KeyOutputPath, s.OutputPath},
		{KeyExportDir, s.ExportDir},
	}
	for _, p := range paths {
		if strings.TrimSpace(p.value) == "" {
			problems = append(problems, fmt.Sprintf("%s must not be empty", p.key))
		}
	}

	fractions := []struct {
		key   string
		value float64
	}{
		{KeyTrainFraction, s.TrainFraction},
		{KeyValFraction, s.ValFraction},
		{KeyTestFraction, s.TestFraction},
	}
	for _, f := range fractions {
		if !(f.value >= 0 && f.value <= 1) {
			problems = append(problems, fmt.Sprintf("%s must be within [0, 1], got %v", f.key, f.value))
		}
	}

	if s.Workers < 1 {
		problems = append(problems, fmt.Sprintf("%s must be at least 1, got %d", KeyWorkers, s.Workers))
	}
	if s.FewAnnotationsThreshold < 0 {
		problems = append(problems, fmt.Sprintf("%s must not be negative, got %d", KeyFewAnnotationsThreshold, s.FewAnnotationsThreshold))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// BindFlags binds every flag of cmd whose name, with dashes read as
// underscores, is a configuration key. Flags left unset on the command line
// do not override the file or the environment.
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	known := make(map[string]bool, len(keys))
	for _, k := range keys {
		known[k] = true
	}

	var err error
	bind := func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err != nil || !known[key] {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("error binding flag %s: %w", f.Name, bindErr)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	return err
}
