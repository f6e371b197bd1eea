package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/theimaginaryfoundation/thread-digest/digest"
	"github.com/theimaginaryfoundation/thread-digest/internal/logging"
)

const (
	envPrefix       = "THREAD_DIGEST"
	configName      = "thread-digest"
	archiveFileName = "threads.db"
)

type Config struct {
	DataDir    string `mapstructure:"data_dir"`
	Threads    string `mapstructure:"threads"`
	Archive    string `mapstructure:"archive"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	MaxThreads int    `mapstructure:"max_threads"`

	AnalysisPercentage      float64 `mapstructure:"analysis_percentage"`
	Temperature             float64 `mapstructure:"temperature"`
	ClassificationBatchSize int     `mapstructure:"classification_batch_size"`
	Criterion               string  `mapstructure:"criterion"`
	CriterionDefinition     string  `mapstructure:"criterion_definition"`

	Lock      bool   `mapstructure:"lock"`
	Pretty    bool   `mapstructure:"pretty"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func defaultConfig() Config {
	return Config{
		DataDir:                 filepath.FromSlash("data/analysis"),
		Model:                   digest.DefaultModel,
		AnalysisPercentage:      digest.DefaultAnalysisPercentage,
		Temperature:             digest.DefaultTemperature,
		ClassificationBatchSize: digest.DefaultClassificationBatchSize,
		Criterion:               digest.DefaultCriterion().Name,
		Lock:                    true,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("missing --data-dir")
	}
	if c.MaxThreads < 0 {
		return errors.New("max-threads must be >= 0")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("log-format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// ArchivePath is the SQLite thread archive, by default inside the data directory.
func (c Config) ArchivePath() string {
	if c.Archive != "" {
		return c.Archive
	}
	return filepath.Join(c.DataDir, archiveFileName)
}

// Options maps the pipeline settings onto digest.Options and validates them. Only generate needs them,
// so Validate leaves them alone.
func (c Config) Options() (digest.Options, error) {
	opts := digest.DefaultOptions()
	opts.Model = c.Model
	opts.AnalysisPercentage = c.AnalysisPercentage
	opts.Temperature = c.Temperature
	opts.ClassificationBatchSize = c.ClassificationBatchSize

	name := strings.TrimSpace(c.Criterion)
	def := strings.TrimSpace(c.CriterionDefinition)
	if def == "" && name == digest.DefaultCriterion().Name {
		def = digest.DefaultCriterion().Definition
	}
	opts.Criterion = digest.Criterion{Name: name, Definition: def}

	if err := opts.Validate(); err != nil {
		return digest.Options{}, err
	}
	return opts, nil
}

// loadConfig resolves the configuration for cmd. Precedence, lowest first: defaults, config file,
// THREAD_DIGEST_* environment, flags.
func loadConfig(v *viper.Viper, cfgFile string, cmd *cobra.Command) (Config, error) {
	def := defaultConfig()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("threads", def.Threads)
	v.SetDefault("archive", def.Archive)
	v.SetDefault("model", def.Model)
	v.SetDefault("api_key", def.APIKey)
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("max_threads", def.MaxThreads)
	v.SetDefault("analysis_percentage", def.AnalysisPercentage)
	v.SetDefault("temperature", def.Temperature)
	v.SetDefault("classification_batch_size", def.ClassificationBatchSize)
	v.SetDefault("criterion", def.Criterion)
	v.SetDefault("criterion_definition", def.CriterionDefinition)
	v.SetDefault("lock", def.Lock)
	v.SetDefault("pretty", def.Pretty)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if err := v.BindEnv("api_key", envPrefix+"_API_KEY", "OPENAI_API_KEY"); err != nil {
		return Config{}, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := bindFlags(v, cmd.Flags()); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// bindFlags binds each flag to the config key of the same name with dashes as underscores.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" || f.Name == "help" {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}
