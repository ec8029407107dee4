// Package buildinfo holds metadata injected at build time with
//
//	-ldflags "-X github.com/eegprep/eegprep/internal/buildinfo.version=... -X github.com/eegprep/eegprep/internal/buildinfo.buildDate=..."
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

var (
	version   string
	buildDate string
)

// Context is the build metadata of one binary.
type Context struct {
	Version   string
	BuildDate string
}

// NewContext creates a build context.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// Current returns the metadata linked into this binary.
func Current() *Context {
	return NewContext(version, buildDate)
}

// GetVersion returns the version tag or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release is the release identifier used in error reports.
func (c *Context) Release() string {
	return "eegprep@" + c.GetVersion()
}

func (c *Context) String() string {
	return fmt.Sprintf("eegprep %s (built %s, %s %s/%s)",
		c.GetVersion(), c.GetBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
