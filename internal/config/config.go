package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the catdoor controller. Field names
// and defaults mirror the original Python implementation's settings modules
// (camera, YOLO, tracker, pipeline, prey-tracker, flap, prey API, runtime).
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Detector    DetectorConfig    `yaml:"detector"`
	Tracker     TrackerConfig     `yaml:"tracker"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	PreyTracker PreyTrackerConfig `yaml:"prey_tracker"`
	Dispatcher  DispatcherConfig  `yaml:"dispatcher"`
	Flap        FlapConfig        `yaml:"flap"`
	PreyAPI     PreyAPIConfig     `yaml:"prey_api"`
	Notifier    NotifierConfig    `yaml:"notifier"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
}

type CameraConfig struct {
	StreamURL  string `yaml:"stream_url"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FPS        int    `yaml:"fps"`
	WarmupTime float64 `yaml:"warmup_time_s"`
	VFlip      bool   `yaml:"vflip"`
	HFlip      bool   `yaml:"hflip"`
	SensorMode int    `yaml:"sensor_mode"`
}

type DetectorConfig struct {
	ModelPath          string             `yaml:"model_path"`
	InputHeight        int                `yaml:"input_height"`
	InputWidth         int                `yaml:"input_width"`
	ClassThresholds    map[string]float64 `yaml:"class_thresholds"`
	IOUThreshold       float64            `yaml:"iou_threshold"`
	ClassesOfInterest  []string           `yaml:"classes_of_interest"`
	MinDetectionArea   float64            `yaml:"min_detection_area_px2"`
}

type TrackerConfig struct {
	DetectionTimeWindow  float64 `yaml:"detection_time_window_s"`
	DetectionIOUThreshold float64 `yaml:"detection_iou_threshold"`
	SaveFrequency        float64 `yaml:"save_frequency"`
}

type PipelineConfig struct {
	TriggerClass            string `yaml:"trigger_class"`
	PreyDetectionEnabled     bool   `yaml:"prey_detection_enabled"`
	SaveImages               bool   `yaml:"save_images"`
	DetectionFollowupFrames int    `yaml:"detection_followup_frames"`
}

type PreyTrackerConfig struct {
	ResetTimeWindow         float64 `yaml:"reset_time_window_s"`
	CropWidth               int     `yaml:"crop_width"` // 0 = default 384; negative = pass-through, no crop
	Concurrency             int     `yaml:"concurrency"`
	SSIMThreshold           float64 `yaml:"ssim_threshold"`
	AllowedTriggerPositions []string `yaml:"allowed_trigger_positions"`
	RequireMiddleAfterRight bool    `yaml:"require_middle_after_right"`
	SaveImages              bool    `yaml:"save_images"`
}

type DispatcherConfig struct {
	QueueCapacity      int     `yaml:"queue_capacity"`
	IdleTimeoutSeconds float64 `yaml:"idle_timeout_seconds"`
}

type FlapConfig struct {
	Mode           string  `yaml:"mode"` // "local" or "remote"
	LockTime       float64 `yaml:"lock_time_s"`
	RemoteBaseURL  string  `yaml:"remote_base_url"`
	RecentExitWindow float64 `yaml:"recent_exit_window_s"`
}

type PreyAPIConfig struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`
}

type NotifierConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	NATSEnabled bool  `yaml:"nats_enabled"`
	NATSURL     string `yaml:"nats_url"`
}

type RuntimeConfig struct {
	RootDir               string `yaml:"root_dir"`
	DetectionImagesDir    string `yaml:"detection_images_dir"`
	PreyImagesDir         string `yaml:"prey_images_dir"`
	PreyDetectorImagesDir string `yaml:"prey_detector_images_dir"`
	ArtifactBackend       string `yaml:"artifact_backend"` // "filesystem" or "minio"
	HistoryEnabled        bool   `yaml:"history_enabled"`
	DatabaseDSN           string `yaml:"database_dsn"`
	MinIO                 MinIOConfig `yaml:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// Load reads config from a YAML file and applies environment variable
// overrides and defaults, in that order.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = 640
	}
	if cfg.Camera.Height == 0 {
		cfg.Camera.Height = 360
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = 30
	}
	if cfg.Camera.WarmupTime == 0 {
		cfg.Camera.WarmupTime = 2.0
	}

	if cfg.Detector.InputHeight == 0 {
		cfg.Detector.InputHeight = 384
	}
	if cfg.Detector.InputWidth == 0 {
		cfg.Detector.InputWidth = 640
	}
	if cfg.Detector.ClassThresholds == nil {
		cfg.Detector.ClassThresholds = map[string]float64{"cat": 0.45, "person": 0.75}
	}
	if cfg.Detector.IOUThreshold == 0 {
		cfg.Detector.IOUThreshold = 0.02
	}
	if len(cfg.Detector.ClassesOfInterest) == 0 {
		cfg.Detector.ClassesOfInterest = []string{"cat", "person"}
	}
	if cfg.Detector.MinDetectionArea == 0 {
		cfg.Detector.MinDetectionArea = 1.0
	}

	if cfg.Tracker.DetectionTimeWindow == 0 {
		cfg.Tracker.DetectionTimeWindow = 15.0
	}
	if cfg.Tracker.SaveFrequency == 0 {
		cfg.Tracker.SaveFrequency = 0.2
	}

	if cfg.Pipeline.TriggerClass == "" {
		cfg.Pipeline.TriggerClass = "cat"
	}
	if cfg.Pipeline.DetectionFollowupFrames == 0 {
		cfg.Pipeline.DetectionFollowupFrames = 20
	}

	if cfg.PreyTracker.ResetTimeWindow == 0 {
		cfg.PreyTracker.ResetTimeWindow = 5.0
	}
	if cfg.PreyTracker.CropWidth == 0 {
		cfg.PreyTracker.CropWidth = 384
	}
	if cfg.PreyTracker.Concurrency == 0 {
		cfg.PreyTracker.Concurrency = 10
	}
	if cfg.PreyTracker.SSIMThreshold == 0 {
		cfg.PreyTracker.SSIMThreshold = 0.9
	}
	if len(cfg.PreyTracker.AllowedTriggerPositions) == 0 {
		cfg.PreyTracker.AllowedTriggerPositions = []string{"left", "middle", "right"}
	}

	if cfg.Dispatcher.QueueCapacity == 0 {
		cfg.Dispatcher.QueueCapacity = 50
	}
	if cfg.Dispatcher.IdleTimeoutSeconds == 0 {
		cfg.Dispatcher.IdleTimeoutSeconds = 30.0
	}

	if cfg.Flap.Mode == "" {
		cfg.Flap.Mode = "local"
	}
	if cfg.Flap.LockTime == 0 {
		cfg.Flap.LockTime = 300.0
	}
	if cfg.Flap.RecentExitWindow == 0 {
		cfg.Flap.RecentExitWindow = 180.0
	}

	if cfg.PreyAPI.APIURL == "" {
		cfg.PreyAPI.APIURL = "https://prey-detection.example.workers.dev"
	}

	if cfg.Runtime.RootDir == "" {
		cfg.Runtime.RootDir = "runtime"
	}
	if cfg.Runtime.DetectionImagesDir == "" {
		cfg.Runtime.DetectionImagesDir = "runtime/detection_images"
	}
	if cfg.Runtime.PreyImagesDir == "" {
		cfg.Runtime.PreyImagesDir = "runtime/prey_images"
	}
	if cfg.Runtime.PreyDetectorImagesDir == "" {
		cfg.Runtime.PreyDetectorImagesDir = "runtime/prey_detector_images"
	}
	if cfg.Runtime.ArtifactBackend == "" {
		cfg.Runtime.ArtifactBackend = "filesystem"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CATDOOR_CAMERA_STREAM_URL"); v != "" {
		cfg.Camera.StreamURL = v
	}
	if v := os.Getenv("CATDOOR_DETECTOR_MODEL_PATH"); v != "" {
		cfg.Detector.ModelPath = v
	}
	if v := os.Getenv("CATDOOR_PREY_API_URL"); v != "" {
		cfg.PreyAPI.APIURL = v
	}
	if v := os.Getenv("CATDOOR_PREY_API_KEY"); v != "" {
		cfg.PreyAPI.APIKey = v
	}
	if v := os.Getenv("CATDOOR_FLAP_MODE"); v != "" {
		cfg.Flap.Mode = v
	}
	if v := os.Getenv("CATDOOR_FLAP_REMOTE_BASE_URL"); v != "" {
		cfg.Flap.RemoteBaseURL = v
	}
	if v := os.Getenv("CATDOOR_FLAP_LOCK_TIME"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Flap.LockTime = f
		}
	}
	if v := os.Getenv("CATDOOR_NOTIFIER_WEBHOOK_URL"); v != "" {
		cfg.Notifier.WebhookURL = v
	}
	if v := os.Getenv("CATDOOR_NATS_URL"); v != "" {
		cfg.Notifier.NATSURL = v
	}
	if v := os.Getenv("CATDOOR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CATDOOR_SERVER_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("CATDOOR_DATABASE_DSN"); v != "" {
		cfg.Runtime.DatabaseDSN = v
	}
	if v := os.Getenv("CATDOOR_MINIO_ENDPOINT"); v != "" {
		cfg.Runtime.MinIO.Endpoint = v
	}
	if v := os.Getenv("CATDOOR_MINIO_ACCESS_KEY"); v != "" {
		cfg.Runtime.MinIO.AccessKey = v
	}
	if v := os.Getenv("CATDOOR_MINIO_SECRET_KEY"); v != "" {
		cfg.Runtime.MinIO.SecretKey = v
	}
}

// WarmupDuration returns the configured camera warmup time as a time.Duration.
func (c CameraConfig) WarmupDuration() time.Duration {
	return time.Duration(c.WarmupTime * float64(time.Second))
}

// LockDuration returns the configured local-mode lock time as a time.Duration.
func (c FlapConfig) LockDuration() time.Duration {
	return time.Duration(c.LockTime * float64(time.Second))
}
