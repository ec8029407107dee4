// Package conf loads eegprep settings from config.yaml, EEGPREP_* environment
// variables and command line flags.
package conf

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/eegprep/eegprep/internal/errors"
	"github.com/eegprep/eegprep/internal/logger"
)

// EnvPrefix is the prefix of environment overrides, e.g. EEGPREP_DATA_ROOT.
const EnvPrefix = "EEGPREP"

// Settings contains all configuration options for eegprep.
type Settings struct {
	Debug bool // true to enable debug logging

	Data struct {
		Root string // directory holding one subdirectory per raw dataset
	}

	Output struct {
		Root     string // directory receiving one subdirectory per dataset
		Manifest bool   // true to record each run in <dataset>.manifest.db
	}

	Pipeline struct {
		Workers int // concurrent subjects, 0 sizes the pool automatically
	}

	Normalize struct {
		Noise float64 // noise coefficient added after z-scoring
		Seed  uint64  // base seed for the noise generator
	}

	Metrics struct {
		TextFile string // prometheus textfile collector path, empty disables
	}

	Telemetry struct {
		Enabled     bool   // true to report subject failures to Sentry
		DSN         string // Sentry project DSN
		Environment string
	}

	Logging LogSettings
}

// LogSettings holds console and file logging options.
type LogSettings struct {
	Level    string
	Timezone string
	Console  bool
	File     struct {
		Enabled    bool
		Path       string
		MaxSize    int
		MaxBackups int
		MaxAge     int
		Compress   bool
	}
}

// Load reads configuration into a new Settings. configFile overrides the
// search path when non-empty. Flags bound to v before calling Load take
// precedence over the file.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Debug {
		settings.Logging.Level = string(logger.LogLevelDebug)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	return settings, nil
}

// initViper sets defaults, environment binding and reads the config file.
// A missing config file is not an error; defaults apply.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configFile == "" {
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("config_file", configFile).
			Build()
	}

	return nil
}

// LoggerConfig converts the logging settings for logger.NewCentralLogger.
func (s *Settings) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:    s.Logging.Level,
		Timezone: s.Logging.Timezone,
		Console: logger.ConsoleOutput{
			Enabled: s.Logging.Console,
		},
		File: logger.FileOutput{
			Enabled:    s.Logging.File.Enabled,
			Path:       s.Logging.File.Path,
			MaxSize:    s.Logging.File.MaxSize,
			MaxBackups: s.Logging.File.MaxBackups,
			MaxAge:     s.Logging.File.MaxAge,
			Compress:   s.Logging.File.Compress,
		},
	}
}
