package conf

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/eegprep/eegprep/internal/logger"
)

// Context holds the state shared by all commands of one invocation.
type Context struct {
	Viper      *viper.Viper
	ConfigFile string // --config, empty searches the default paths
	Settings   *Settings
	Logger     *logger.CentralLogger
}

// NewContext returns a context with a private viper instance. Settings are
// nil until Init.
func NewContext() *Context {
	return &Context{Viper: viper.New()}
}

// Init loads settings and starts the logger. Flags must be bound to Viper
// beforehand so that they override the config file.
func (c *Context) Init() error {
	settings, err := Load(c.Viper, c.ConfigFile)
	if err != nil {
		return err
	}

	central, err := logger.NewCentralLogger(settings.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	c.Settings = settings
	c.Logger = central
	return nil
}

// Log returns a module logger, or a discarding one before Init.
func (c *Context) Log(module string) logger.Logger {
	if c.Logger == nil {
		return logger.NewSlogLogger(nil, logger.LogLevelInfo, nil).Module(module)
	}
	return c.Logger.Module(module)
}

// Close flushes and closes the logger.
func (c *Context) Close() error {
	if c.Logger == nil {
		return nil
	}
	return c.Logger.Close()
}
