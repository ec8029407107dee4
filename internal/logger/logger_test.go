package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     LogLevel
		emit      func(Logger)
		wantEmpty bool
	}{
		{"debug suppressed at info", LogLevelInfo, func(l Logger) { l.Debug("msg") }, true},
		{"info passes at info", LogLevelInfo, func(l Logger) { l.Info("msg") }, false},
		{"warn passes at info", LogLevelInfo, func(l Logger) { l.Warn("msg") }, false},
		{"info suppressed at error", LogLevelError, func(l Logger) { l.Info("msg") }, true},
		{"trace suppressed at debug", LogLevelDebug, func(l Logger) { l.Trace("msg") }, true},
		{"trace passes at trace", LogLevelTrace, func(l Logger) { l.Trace("msg") }, false},
		{"explicit level", LogLevelInfo, func(l Logger) { l.Log(LogLevelWarn, "msg") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := &bytes.Buffer{}
			tt.emit(NewSlogLogger(buf, tt.level, time.UTC))
			assert.Equal(t, tt.wantEmpty, buf.Len() == 0, buf.String())
		})
	}
}

func TestTraceLevelName(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	NewSlogLogger(buf, LogLevelTrace, time.UTC).Trace("sql")
	assert.Contains(t, buf.String(), "level=TRACE")
	assert.NotContains(t, buf.String(), "time=")
}

func TestModuleAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	base := NewSlogLogger(buf, LogLevelDebug, time.UTC)
	log := base.Module("pipeline").Module("bci2a").With(String("dataset", "BCI_IV_2a"))

	log.Info("subject written",
		String("subject", "S01"),
		Int("epochs", 144),
		Float64("noise", 0.0123456),
		Duration("elapsed", 1500*time.Millisecond),
		Error(errors.New("none")))

	out := buf.String()
	assert.Contains(t, out, "module=pipeline.bci2a")
	assert.Contains(t, out, "dataset=BCI_IV_2a")
	assert.Contains(t, out, "subject=S01")
	assert.Contains(t, out, "epochs=144")
	assert.Contains(t, out, "noise=0.012")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.Contains(t, out, "error=none")
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	parent := NewSlogLogger(buf, LogLevelInfo, time.UTC).Module("store")
	_ = parent.With(String("artifact", "PA01T.epo"))

	parent.Info("plain")
	assert.NotContains(t, buf.String(), "artifact")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.WithContext(WithTraceID(context.Background(), "run-42")).Info("started")
	assert.Contains(t, buf.String(), "trace_id=run-42")

	buf.Reset()
	log.WithContext(context.Background()).Info("started")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "eegprep.log")
	console := &bytes.Buffer{}

	cl, err := newCentralLogger(&Config{
		Level:    "debug",
		Timezone: "UTC",
		Console:  ConsoleOutput{Enabled: true, Level: "warn"},
		File:     FileOutput{Enabled: true, Path: path, MaxSize: 1},
	}, console)
	require.NoError(t, err)

	log := cl.Module("extract")
	log.Info("dataset started", String("dataset", "Physionet"))
	log.Warn("output root recreated")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "extract", rec["module"])
	assert.Equal(t, "Physionet", rec["dataset"])
	_, err = time.Parse(time.RFC3339, rec["time"].(string))
	require.NoError(t, err)

	// console only gets warn and above
	assert.NotContains(t, console.String(), "dataset started")
	assert.Contains(t, console.String(), "output root recreated")
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := newCentralLogger(&Config{Timezone: "Mars/Olympus"}, &bytes.Buffer{})
	require.Error(t, err)

	_, err = newCentralLogger(nil, &bytes.Buffer{})
	require.Error(t, err)
}
