package conf

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if strings.TrimSpace(settings.Data.Root) == "" {
		ve.Errors = append(ve.Errors, "data.root must not be empty")
	}
	if strings.TrimSpace(settings.Output.Root) == "" {
		ve.Errors = append(ve.Errors, "output.root must not be empty")
	}

	if err := validatePipelineSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateNormalizeSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLogSettings(&settings.Logging); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if settings.Telemetry.Enabled && strings.TrimSpace(settings.Telemetry.DSN) == "" {
		ve.Errors = append(ve.Errors, "telemetry.dsn must be set when telemetry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validatePipelineSettings(settings *Settings) error {
	if settings.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must be >= 0, got %d", settings.Pipeline.Workers)
	}
	return nil
}

func validateNormalizeSettings(settings *Settings) error {
	noise := settings.Normalize.Noise
	if math.IsNaN(noise) || math.IsInf(noise, 0) || noise < 0 {
		return fmt.Errorf("normalize.noise must be a finite value >= 0, got %v", noise)
	}
	return nil
}

func validateLogSettings(settings *LogSettings) error {
	switch settings.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error", settings.Level)
	}
	if settings.File.Enabled && strings.TrimSpace(settings.File.Path) == "" {
		return fmt.Errorf("logging.file.path must be set when file logging is enabled")
	}
	if settings.File.MaxSize < 0 || settings.File.MaxBackups < 0 || settings.File.MaxAge < 0 {
		return fmt.Errorf("logging.file rotation limits must be >= 0")
	}
	return nil
}
