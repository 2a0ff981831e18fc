package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC)

	tests := []struct {
		name        string
		logsDir     string
		serviceName string
		want        string
	}{
		{
			name:        "basic path",
			logsDir:     "fleetmaplogs",
			serviceName: "fleetmapd",
			want:        filepath.Join("fleetmaplogs", "fleetmapd.20260830_091500.log"),
		},
		{
			name:        "relative path with dot",
			logsDir:     "./fleetmaplogs",
			serviceName: "fleetmapd",
			want:        filepath.Join(".", "fleetmaplogs", "fleetmapd.20260830_091500.log"),
		},
		{
			name:        "absolute path",
			logsDir:     filepath.Join("/var", "log", "fleetmap"),
			serviceName: "fleetmapd",
			want:        filepath.Join("/var", "log", "fleetmap", "fleetmapd.20260830_091500.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.serviceName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}
