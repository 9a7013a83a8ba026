package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/people-counter/mot"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Tracker.MaxDisappeared)
	assert.Equal(t, 50.0, cfg.Tracker.MaxDistance)
	assert.Equal(t, mot.MatchingAlgorithmGreedy, cfg.Tracker.MatchingAlgorithm())
	assert.Equal(t, 240.0, cfg.Counter.ResolvedLineY())
	assert.Equal(t, 30, cfg.Detector.SkipFrames)
	assert.Equal(t, "person", cfg.Detector.Class)
	assert.Equal(t, 40*time.Millisecond, cfg.Detector.FrameInterval)
	assert.Equal(t, 5*time.Second, cfg.Report.UpdateInterval)
	assert.Equal(t, "http://localhost:5000", cfg.Report.ServerURL)
	assert.Equal(t, ":5000", cfg.Collector.Listen)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
tracker:
  max_disappeared: 10
  max_distance: 35
  matching: hungarian
counter:
  line_y: 300
detector:
  skip_frames: 5
report:
  bus_id: BUS-001
  update_interval: 2s
collector:
  buses:
    - id: BUS-001
      bus_number: "001"
      route: Downtown
      capacity: 40
      alert_threshold: 35
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Tracker.MaxDisappeared)
	assert.Equal(t, 35.0, cfg.Tracker.MaxDistance)
	assert.Equal(t, mot.MatchingAlgorithmHungarian, cfg.Tracker.MatchingAlgorithm())
	assert.Equal(t, 300.0, cfg.Counter.ResolvedLineY())
	assert.Equal(t, 5, cfg.Detector.SkipFrames)
	assert.Equal(t, "BUS-001", cfg.Report.BusID)
	assert.Equal(t, 2*time.Second, cfg.Report.UpdateInterval)
	require.Len(t, cfg.Collector.Buses, 1)
	assert.Equal(t, "Downtown", cfg.Collector.Buses[0].Route)

	tracker := cfg.Tracker.NewTracker()
	assert.Equal(t, 10, tracker.MaxDisappeared())
	assert.Equal(t, mot.MatchingAlgorithmHungarian, tracker.Algorithm())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PEOPLE_COUNTER_TRACKER_MAX_DISTANCE", "42")
	t.Setenv("PEOPLE_COUNTER_REPORT_BUS_ID", "BUS-152")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 42.0, cfg.Tracker.MaxDistance)
	assert.Equal(t, "BUS-152", cfg.Report.BusID)
}

func TestResolvedLineY(t *testing.T) {
	cfg, err := Load(writeConfig(t, "counter:\n  line_y: 0\n  frame_height: 720\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Counter.ResolvedLineY())

	cfg, err = Load(writeConfig(t, "counter:\n  frame_height: 720\n"))
	require.NoError(t, err)
	assert.Equal(t, 360.0, cfg.Counter.ResolvedLineY())

	assert.Equal(t, 360.0, CounterConfig{LineY: -5, FrameHeight: 720}.ResolvedLineY())
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"matching":    "tracker:\n  matching: optimal\n",
		"distance":    "tracker:\n  max_distance: 0\n",
		"skip frames": "detector:\n  skip_frames: 0\n",
		"server url":  "report:\n  server_url: not a url\n",
		"bus":         "collector:\n  buses:\n    - id: BUS-1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
