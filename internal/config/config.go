package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/LdDl/people-counter/mot"
)

// EnvPrefix is prefix of environment variables overriding config file values,
// e.g. PEOPLE_COUNTER_TRACKER_MAX_DISTANCE=40
const EnvPrefix = "PEOPLE_COUNTER"

// TrackerConfig contains identity association parameters
type TrackerConfig struct {
	MaxDisappeared int     `mapstructure:"max_disappeared" validate:"gte=0"`
	MaxDistance    float64 `mapstructure:"max_distance" validate:"gt=0"`
	Matching       string  `mapstructure:"matching" validate:"oneof=greedy hungarian"`
}

// CounterConfig contains reference line parameters
type CounterConfig struct {
	// LineY is the reference row. Negative means the middle of the frame, so row 0 stays configurable.
	LineY       float64 `mapstructure:"line_y"`
	FrameHeight int     `mapstructure:"frame_height" validate:"gt=0"`
}

// DetectorConfig describes how detector output is consumed
type DetectorConfig struct {
	SkipFrames int     `mapstructure:"skip_frames" validate:"gte=1"`
	Confidence float64 `mapstructure:"confidence" validate:"gte=0,lte=1"`
	Class      string  `mapstructure:"class"`
	// FrameInterval is time step between frames used by interim box prediction
	FrameInterval time.Duration `mapstructure:"frame_interval" validate:"gt=0"`
}

// ReportConfig contains parameters of pushing totals to the collector
type ReportConfig struct {
	ServerURL      string        `mapstructure:"server_url" validate:"required,url"`
	BusID          string        `mapstructure:"bus_id"`
	UpdateInterval time.Duration `mapstructure:"update_interval" validate:"gt=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Location       string        `mapstructure:"location"`
}

// BusConfig is a bus registered by the collector at startup
type BusConfig struct {
	ID             string `mapstructure:"id" validate:"required"`
	BusNumber      string `mapstructure:"bus_number" validate:"required"`
	Route          string `mapstructure:"route" validate:"required"`
	Capacity       int    `mapstructure:"capacity" validate:"gte=0"`
	AlertThreshold int    `mapstructure:"alert_threshold" validate:"gte=0"`
}

// CollectorConfig contains collector service parameters
type CollectorConfig struct {
	Listen string      `mapstructure:"listen" validate:"required"`
	DBPath string      `mapstructure:"db_path" validate:"required"`
	Buses  []BusConfig `mapstructure:"buses" validate:"dive"`
}

// Config is the root configuration structure
type Config struct {
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Counter   CounterConfig   `mapstructure:"counter"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Report    ReportConfig    `mapstructure:"report"`
	Collector CollectorConfig `mapstructure:"collector"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tracker.max_disappeared", 50)
	v.SetDefault("tracker.max_distance", 50.0)
	v.SetDefault("tracker.matching", "greedy")

	v.SetDefault("counter.line_y", -1.0)
	v.SetDefault("counter.frame_height", 480)

	v.SetDefault("detector.skip_frames", 30)
	v.SetDefault("detector.confidence", 0.4)
	v.SetDefault("detector.class", "person")
	v.SetDefault("detector.frame_interval", "40ms")

	v.SetDefault("report.server_url", "http://localhost:5000")
	v.SetDefault("report.bus_id", "")
	v.SetDefault("report.update_interval", "5s")
	v.SetDefault("report.timeout", "10s")
	v.SetDefault("report.location", "Live tracking")

	v.SetDefault("collector.listen", ":5000")
	v.SetDefault("collector.db_path", "people-counter.db")
}

// Load reads configuration from YAML file at path (optional, empty path means defaults only),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "can't read config file '%s'", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "can't decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration against struct constraints
func (cfg *Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// ResolvedLineY returns reference row, falling back to the middle of the frame
func (cfg CounterConfig) ResolvedLineY() float64 {
	if cfg.LineY >= 0 {
		return cfg.LineY
	}
	return float64(cfg.FrameHeight) / 2.0
}

// MatchingAlgorithm converts configured matching name to tracker's algorithm
func (cfg TrackerConfig) MatchingAlgorithm() mot.MatchingAlgorithm {
	if cfg.Matching == mot.MatchingAlgorithmHungarian.String() {
		return mot.MatchingAlgorithmHungarian
	}
	return mot.MatchingAlgorithmGreedy
}

// NewTracker builds centroid tracker from configuration
func (cfg TrackerConfig) NewTracker() *mot.CentroidTracker {
	return mot.NewCentroidTracker(cfg.MaxDisappeared, cfg.MaxDistance, mot.WithMatchingAlgorithm(cfg.MatchingAlgorithm()))
}
