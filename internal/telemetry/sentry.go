// Package telemetry reports subject failures to Sentry. Reporting is opt-in.
// Events carry the error category, dataset and subject id; paths in error
// messages are reduced to their base names and host details are removed
// before sending.
package telemetry

import (
	"fmt"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/eegprep/eegprep/internal/errors"
)

// Options configures a Reporter.
type Options struct {
	DSN         string
	Environment string
	Release     string
	// Transport replaces the HTTP transport, for tests.
	Transport sentry.Transport
}

// Reporter sends errors to a private Sentry hub. A nil *Reporter discards
// everything.
type Reporter struct {
	hub *sentry.Hub
}

// New creates a reporter.
func New(opts Options) (*Reporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          opts.Release,
		SampleRate:       1.0,
		AttachStacktrace: false,
		ServerName:       "",
		Transport:        opts.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// CaptureError reports a failed subject.
func (r *Reporter) CaptureError(err error, dataset, subject string) {
	if r == nil || err == nil {
		return
	}

	category := string(errors.CategoryOf(err))
	message := ScrubPaths(err.Error())

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("dataset", dataset)
		scope.SetTag("subject", subject)
		scope.SetTag("category", category)
		scope.SetFingerprint([]string{dataset, category})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = message
		event.Exception = []sentry.Exception{{
			Type:  category,
			Value: message,
		}}
		r.hub.CaptureEvent(event)
	})
}

// Flush waits up to timeout for queued events to be sent.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if r == nil {
		return true
	}
	return r.hub.Flush(timeout)
}

// applyPrivacyFilters removes host details from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

var pathPattern = regexp.MustCompile(`(?:[A-Za-z]:)?(?:[/\\][^\s/\\:"']+)+[/\\]([^\s/\\:"']+)`)

// ScrubPaths replaces every multi-component path in s with its base name.
func ScrubPaths(s string) string {
	return pathPattern.ReplaceAllString(s, "${1}")
}
