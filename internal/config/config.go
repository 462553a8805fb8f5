// Package config provides configuration loading and validation for the
// falldetect agent.
//
// Configuration file: /etc/falldetect/config.yaml (default).
// Schema version: 1.
//
// Hot-reload:
//   - Agent listens for SIGHUP.
//   - On SIGHUP: re-read and re-validate config.yaml, and log the result.
//   - No reloaded value is applied to the running agent; every change,
//     including delay_sec, re_notify_interval, thresholds and log level,
//     takes effect only after a restart.
//   - If the new config is invalid, an error is logged and the agent keeps
//     running. The agent does NOT crash on invalid hot-reload config.
//
// Environment substitution:
//   - Any "${NAME}" in the raw file text has NAME resolved from the
//     process environment before YAML parsing. Any unresolved variable,
//     in whatever field, makes Load fail (see envsubst.go), which is fatal
//     at startup.
//
// Validation:
//   - All required fields must be present.
//   - Numeric ranges enforced (e.g., thresholds >= 0, fps > 0).
//   - Invalid config on startup: agent refuses to start (fatal error).
//   - Invalid config on hot-reload: logged, old config retained.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kionce57/falldetect/internal/store"
)

// Version, GitCommit, BuildTime can be overridden at build time via -ldflags -X.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration structure for falldetect.
// All fields have defaults; see Defaults() for values.
type Config struct {
	// SchemaVersion must be "1". Future versions will trigger migration.
	SchemaVersion string `yaml:"schema_version"`

	// StoragePath is the BoltDB event database file location.
	StoragePath string `yaml:"storage_path"`

	Camera        CameraConfig        `yaml:"camera"`
	Detection     DetectionConfig     `yaml:"detection"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Recording     RecordingConfig     `yaml:"recording"`
	Notification  NotificationConfig  `yaml:"notification"`
	Lifecycle     LifecycleConfig     `yaml:"lifecycle"`
	CloudSync     CloudSyncConfig     `yaml:"cloud_sync"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CameraConfig configures the external camera collaborator (spec.md §1/§6).
type CameraConfig struct {
	// Source identifies the capture device: a numeric index or a URI
	// (rtsp://..., /dev/video0). Stored as a string; numeric sources are
	// numeric strings.
	Source string `yaml:"source"`

	// FPS is the nominal capture frame rate. Used to size the ring buffer.
	FPS int `yaml:"fps"`

	// Resolution is [width, height] in pixels.
	Resolution [2]int `yaml:"resolution"`
}

// DetectionConfig configures the detector port (C2).
type DetectionConfig struct {
	// Engine selects the registered contrib.InferenceEngine ("mock" for
	// local dev/CI; community engines register their own names).
	Engine             string  `yaml:"engine"`
	Model              string  `yaml:"model"`
	PoseModel          string  `yaml:"pose_model"`
	Confidence         float64 `yaml:"confidence"`
	Classes            []int   `yaml:"classes"`
	UsePose            bool    `yaml:"use_pose"`
	EnableSmoothing    bool    `yaml:"enable_smoothing"`
	SmoothingMinCutoff float64 `yaml:"smoothing_min_cutoff"`
	SmoothingBeta      float64 `yaml:"smoothing_beta"`
}

// AnalysisConfig configures the rule evaluator (C3) and state machine (C5).
type AnalysisConfig struct {
	FallThreshold    float64 `yaml:"fall_threshold"`
	DelaySec         float64 `yaml:"delay_sec"`
	SameEventWindow  float64 `yaml:"same_event_window"`
	ReNotifyInterval float64 `yaml:"re_notify_interval"`
}

// RecordingConfig configures the ring buffer (C1) and clip recorder (C7).
type RecordingConfig struct {
	BufferSeconds float64 `yaml:"buffer_seconds"`
	ClipBeforeSec float64 `yaml:"clip_before_sec"`
	ClipAfterSec  float64 `yaml:"clip_after_sec"`
	OutputDir     string  `yaml:"output_dir"`
}

// NotificationConfig configures the external notification transport.
type NotificationConfig struct {
	ChannelAccessToken string `yaml:"channel_access_token"`
	UserID             string `yaml:"user_id"`
	Enabled            bool   `yaml:"enabled"`
}

// LifecycleConfig configures retention (C10) and skeleton extraction (C8).
type LifecycleConfig struct {
	ClipRetentionDays     int    `yaml:"clip_retention_days"`
	SkeletonRetentionDays int    `yaml:"skeleton_retention_days"`
	CleanupEnabled        bool   `yaml:"cleanup_enabled"`
	CleanupScheduleHours  int    `yaml:"cleanup_schedule_hours"`
	AutoSkeletonExtract   bool   `yaml:"auto_skeleton_extract"`
	SkeletonOutputDir     string `yaml:"skeleton_output_dir"`
}

// CloudSyncConfig configures the uploader (C9).
type CloudSyncConfig struct {
	Enabled          bool   `yaml:"enabled"`
	GCSBucket        string `yaml:"gcs_bucket"`
	UploadOnExtract  bool   `yaml:"upload_on_extract"`
	RetryAttempts    int    `yaml:"retry_attempts"`
	RetryDelaySecond int    `yaml:"retry_delay_seconds"`
}

// ObservabilityConfig holds metrics and logging parameters.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// Defaults returns a Config populated with all default values, matching the
// thresholds named in spec.md §4.3/§4.5/§4.9/§4.10.
func Defaults() Config {
	return Config{
		SchemaVersion: "1",
		StoragePath:   store.DefaultDBPath,
		Camera: CameraConfig{
			Source:     "0",
			FPS:        15,
			Resolution: [2]int{1280, 720},
		},
		Detection: DetectionConfig{
			Engine:             "mock",
			Model:              "bbox-engine",
			PoseModel:          "pose-engine",
			Confidence:         0.5,
			UsePose:            false,
			EnableSmoothing:    true,
			SmoothingMinCutoff: 1.0,
			SmoothingBeta:      0.007,
		},
		Analysis: AnalysisConfig{
			FallThreshold:    1.3,
			DelaySec:         3.0,
			SameEventWindow:  60.0,
			ReNotifyInterval: 120.0,
		},
		Recording: RecordingConfig{
			BufferSeconds: 15,
			ClipBeforeSec: 5,
			ClipAfterSec:  5,
			OutputDir:     "/var/lib/falldetect/clips",
		},
		Notification: NotificationConfig{
			Enabled: false,
		},
		Lifecycle: LifecycleConfig{
			ClipRetentionDays:     30,
			SkeletonRetentionDays: 30,
			CleanupEnabled:        true,
			CleanupScheduleHours:  24,
			AutoSkeletonExtract:   true,
			SkeletonOutputDir:     "/var/lib/falldetect/skeletons",
		},
		CloudSync: CloudSyncConfig{
			Enabled:          false,
			RetryAttempts:    3,
			RetryDelaySecond: 5,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9092",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads, substitutes environment variables into, and validates a
// config file from the given path. Returns the merged config (defaults
// overridden by file values). Returns an error if the file cannot be read,
// parsed, substituted, or validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	substituted, err := substituteEnv(string(raw))
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks all config fields for correctness. Returns a descriptive
// error listing all violations found.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.SchemaVersion != "1" {
		errs = append(errs, fmt.Sprintf("schema_version must be \"1\", got %q", cfg.SchemaVersion))
	}
	if cfg.Camera.FPS <= 0 {
		errs = append(errs, fmt.Sprintf("camera.fps must be > 0, got %d", cfg.Camera.FPS))
	}
	if cfg.Detection.Confidence < 0.0 || cfg.Detection.Confidence > 1.0 {
		errs = append(errs, fmt.Sprintf("detection.confidence must be in [0.0, 1.0], got %f", cfg.Detection.Confidence))
	}
	if cfg.Detection.Engine == "" {
		errs = append(errs, "detection.engine must not be empty")
	}
	if cfg.Detection.EnableSmoothing && cfg.Detection.SmoothingMinCutoff <= 0 {
		errs = append(errs, "detection.smoothing_min_cutoff must be > 0 when smoothing is enabled")
	}
	if cfg.Analysis.FallThreshold <= 0 {
		errs = append(errs, fmt.Sprintf("analysis.fall_threshold must be > 0, got %f", cfg.Analysis.FallThreshold))
	}
	if cfg.Analysis.DelaySec < 0 {
		errs = append(errs, "analysis.delay_sec must be >= 0")
	}
	if cfg.Analysis.SameEventWindow < 0 {
		errs = append(errs, "analysis.same_event_window must be >= 0")
	}
	if cfg.Analysis.ReNotifyInterval < 0 {
		errs = append(errs, "analysis.re_notify_interval must be >= 0")
	}
	if cfg.Recording.BufferSeconds <= 0 {
		errs = append(errs, fmt.Sprintf("recording.buffer_seconds must be > 0, got %f", cfg.Recording.BufferSeconds))
	}
	if cfg.Recording.ClipBeforeSec < 0 || cfg.Recording.ClipAfterSec < 0 {
		errs = append(errs, "recording.clip_before_sec and clip_after_sec must be >= 0")
	}
	if cfg.Recording.OutputDir == "" {
		errs = append(errs, "recording.output_dir must not be empty")
	}
	if cfg.Lifecycle.ClipRetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("lifecycle.clip_retention_days must be >= 1, got %d", cfg.Lifecycle.ClipRetentionDays))
	}
	if cfg.Lifecycle.CleanupScheduleHours < 1 {
		errs = append(errs, fmt.Sprintf("lifecycle.cleanup_schedule_hours must be >= 1, got %d", cfg.Lifecycle.CleanupScheduleHours))
	}
	if cfg.CloudSync.Enabled {
		if cfg.CloudSync.GCSBucket == "" {
			errs = append(errs, "cloud_sync.gcs_bucket is required when cloud_sync.enabled=true")
		}
		if cfg.CloudSync.RetryAttempts < 1 {
			errs = append(errs, fmt.Sprintf("cloud_sync.retry_attempts must be >= 1, got %d", cfg.CloudSync.RetryAttempts))
		}
		if cfg.CloudSync.RetryDelaySecond < 0 {
			errs = append(errs, "cloud_sync.retry_delay_seconds must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", joinStrings(errs, "\n  - "))
	}
	return nil
}

func joinStrings(ss []string, sep string) string {
	if len(ss) == 0 {
		return ""
	}
	result := ss[0]
	for _, s := range ss[1:] {
		result += sep + s
	}
	return result
}
