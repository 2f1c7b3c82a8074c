package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "JSHARNESS"

type Config struct {
	Verbose   bool   `mapstructure:"verbose"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
	// MetricsFile receives the run metrics in the Prometheus text format.
	MetricsFile string `mapstructure:"metrics_file"`

	Corpus  Corpus  `mapstructure:"corpus"`
	Bench   Bench   `mapstructure:"bench"`
	Profile Profile `mapstructure:"profile"`
}

type Corpus struct {
	Filter        string   `mapstructure:"filter"`
	FailFast      bool     `mapstructure:"fail_fast"`
	IncludesDir   string   `mapstructure:"includes_dir"`
	Prelude       []string `mapstructure:"prelude"`
	SkipPrefixes  []string `mapstructure:"skip_prefixes"`
	SkipFeatures  []string `mapstructure:"skip_features"`
	EngineVersion string   `mapstructure:"engine_version"`
}

type Bench struct {
	MinDuration   time.Duration `mapstructure:"min_duration"`
	MinIterations int           `mapstructure:"min_iterations"`
	DB            string        `mapstructure:"db"`
	SourceMaps    bool          `mapstructure:"source_maps"`
}

type Profile struct {
	CPU string `mapstructure:"cpu"`
	JS  string `mapstructure:"js"`
	Top int    `mapstructure:"top"`
}

// Error is returned for configuration that cannot be loaded or is invalid.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "config: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) ExitCode() int {
	return 2
}

// New returns a viper instance with the defaults and environment binding
// set up. Flags are bound to it by the caller before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("verbose", false)
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("corpus.filter", "")
	v.SetDefault("corpus.fail_fast", false)
	v.SetDefault("corpus.includes_dir", "")
	v.SetDefault("corpus.prelude", []string{})
	v.SetDefault("corpus.skip_prefixes", []string{})
	v.SetDefault("corpus.skip_features", []string{})
	v.SetDefault("corpus.engine_version", "")
	v.SetDefault("bench.min_duration", time.Second)
	v.SetDefault("bench.min_iterations", 32)
	v.SetDefault("bench.db", "")
	v.SetDefault("bench.source_maps", true)
	v.SetDefault("profile.cpu", "")
	v.SetDefault("profile.js", "")
	v.SetDefault("profile.top", 10)
	return v
}

type Options struct {
	// ConfigFile is an explicit config file; it must exist. Without it
	// jsharness.yaml is looked up in SearchPaths and may be absent.
	ConfigFile  string
	SearchPaths []string
	// EnvFile is loaded into the environment if it exists. Variables that
	// are already set win.
	EnvFile string
}

// Load reads the configuration into a Config.
func Load(v *viper.Viper, opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{fmt.Errorf("load %s: %w", opts.EnvFile, err)}
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("jsharness")
		v.SetConfigType("yaml")
		paths := opts.SearchPaths
		if len(paths) == 0 {
			paths = []string{"."}
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, &Error{err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{err}
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Bench.MinIterations < 1 {
		return fmt.Errorf("bench.min_iterations must be at least 1, got %d", c.Bench.MinIterations)
	}
	if c.Bench.MinDuration < 0 {
		return fmt.Errorf("bench.min_duration must not be negative, got %v", c.Bench.MinDuration)
	}
	if c.Profile.Top < 0 {
		return fmt.Errorf("profile.top must not be negative, got %d", c.Profile.Top)
	}
	return nil
}
