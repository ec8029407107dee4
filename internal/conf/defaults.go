package conf

import "github.com/spf13/viper"

// Default values shared with the command line flags.
const (
	DefaultDataRoot   = "./data"
	DefaultOutputRoot = "./preprocessed_data"
	DefaultNoise      = 0.01
	DefaultSeed       = 42
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("data.root", DefaultDataRoot)

	v.SetDefault("output.root", DefaultOutputRoot)
	v.SetDefault("output.manifest", true)

	// one subject at a time keeps a single recording in memory
	v.SetDefault("pipeline.workers", 1)

	v.SetDefault("normalize.noise", DefaultNoise)
	v.SetDefault("normalize.seed", DefaultSeed)

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file.enabled", false)
	v.SetDefault("logging.file.path", "logs/eegprep.log")
	v.SetDefault("logging.file.maxsize", 10)
	v.SetDefault("logging.file.maxbackups", 3)
	v.SetDefault("logging.file.maxage", 30)
	v.SetDefault("logging.file.compress", false)
}
