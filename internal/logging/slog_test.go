package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"garbage", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestSlogManager_SetupWritesToFile(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(&buf, "debug", ""))

	m.Logger().Debug("marker pass", "operations", 3)

	out := buf.String()
	assert.Contains(t, out, "marker pass")
	assert.Contains(t, out, "operations=3")
}

func TestSlogManager_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	require.NoError(t, m.Setup(&buf, "warn", ""))

	m.Logger().Info("quiet")
	m.Logger().Warn("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
}

func TestSlogManager_LoggerBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.NotNil(t, m.Logger(), "unconfigured manager falls back to slog.Default")
}

func TestSlogManager_CloseWithoutGraylog(t *testing.T) {
	m := NewSlogManager()
	require.NoError(t, m.Setup(nil, "info", ""))
	assert.NoError(t, m.Close())
}

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return fmt.Errorf("sink down") }
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h failingHandler) WithGroup(string) slog.Handler           { return h }

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	mh := NewMultiHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
		nil, // dropped
	)

	logger := slog.New(mh)
	logger.Info("hello")

	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, b.String(), "hello")
}

func TestMultiHandler_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	var buf bytes.Buffer
	mh := NewMultiHandler(failingHandler{}, slog.NewTextHandler(&buf, nil))

	err := mh.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still delivered", 0))

	require.Error(t, err)
	assert.Contains(t, buf.String(), "still delivered")
}

func TestMultiHandler_RespectsLevels(t *testing.T) {
	var buf bytes.Buffer
	mh := NewMultiHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))

	assert.False(t, mh.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, mh.Enabled(context.Background(), slog.LevelError))

	logger := slog.New(mh)
	logger.Info("dropped")
	assert.False(t, strings.Contains(buf.String(), "dropped"))
}
