package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/catdoor/internal/api"
	"github.com/your-org/catdoor/internal/api/ws"
	"github.com/your-org/catdoor/internal/capture"
	"github.com/your-org/catdoor/internal/config"
	"github.com/your-org/catdoor/internal/flap"
	"github.com/your-org/catdoor/internal/notify"
	"github.com/your-org/catdoor/internal/observability"
	"github.com/your-org/catdoor/internal/pipeline"
	"github.com/your-org/catdoor/internal/prey"
	"github.com/your-org/catdoor/internal/storage"
	"github.com/your-org/catdoor/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting catdoor controller",
		"trigger_class", cfg.Pipeline.TriggerClass,
		"flap_mode", cfg.Flap.Mode,
		"cpu_cores", runtime.NumCPU(),
	)

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	source := capture.NewFFmpegSource(cfg.Camera.StreamURL, cfg.Camera.FPS, cfg.Camera.Width)
	warmupCtx, warmupCancel := context.WithTimeout(context.Background(), cfg.Camera.WarmupDuration()+10*time.Second)
	if err := source.Warmup(warmupCtx, cfg.Camera.WarmupDuration()); err != nil {
		warmupCancel()
		slog.Error("camera warmup", "error", err)
		os.Exit(1)
	}
	warmupCancel()
	defer source.Close()

	classThresholds := make(map[string]float32, len(cfg.Detector.ClassThresholds))
	for name, t := range cfg.Detector.ClassThresholds {
		classThresholds[name] = float32(t)
	}

	detector, err := vision.NewDetector(vision.DetectorConfig{
		ModelPath:         cfg.Detector.ModelPath,
		InputWidth:        cfg.Detector.InputWidth,
		InputHeight:       cfg.Detector.InputHeight,
		TotalModelClasses: len(vision.COCOClassNames),
		ClassesOfInterest: cfg.Detector.ClassesOfInterest,
		ClassIndex:        vision.COCOClassIndex,
		ClassThresholds:   classThresholds,
		IOUThreshold:      float32(cfg.Detector.IOUThreshold),
		MinDetectionArea:  float32(cfg.Detector.MinDetectionArea),
	}, nil)
	if err != nil {
		slog.Error("init detector", "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	artifacts, err := buildArtifactStore(cfg.Runtime)
	if err != nil {
		slog.Error("init artifact store", "error", err)
		os.Exit(1)
	}
	preyArchive := storage.NewPreyImageArchive(artifacts)

	var trackerSaver vision.ImageSaver
	if cfg.Pipeline.SaveImages {
		trackerSaver = storage.NewTrackerImageSaver(artifacts)
	}

	tracker := vision.NewTracker(
		"catdoor",
		cfg.Detector.ClassesOfInterest,
		secondsToDuration(cfg.Tracker.DetectionTimeWindow),
		float32(cfg.Tracker.DetectionIOUThreshold),
		cfg.Tracker.SaveFrequency,
		trackerSaver,
	)

	// Flap Actuator Client: local-timer XOR remote-HTTP, selected by
	// Flap.Mode. Exactly one backend is ever active.
	var actuator flap.Actuator
	var recentExit prey.RecentExitChecker
	switch cfg.Flap.Mode {
	case "remote":
		actuator = flap.NewRemote(cfg.Flap.RemoteBaseURL)
		recentExit = flap.NewRecentExitGate(cfg.Flap.RemoteBaseURL, secondsToDuration(cfg.Flap.RecentExitWindow))
	default:
		actuator = flap.NewLocal(cfg.Flap.LockDuration())
	}
	defer actuator.Close()

	var episodeStore *storage.EpisodeStore
	if cfg.Runtime.HistoryEnabled {
		ctx := context.Background()
		episodeStore, err = storage.NewEpisodeStore(ctx, cfg.Runtime.DatabaseDSN)
		if err != nil {
			slog.Error("connect episode store", "error", err)
			os.Exit(1)
		}
		if err := episodeStore.EnsureSchema(ctx); err != nil {
			slog.Error("ensure episode schema", "error", err)
			os.Exit(1)
		}
		defer episodeStore.Close()
	}

	hub := ws.NewHub()
	go hub.Run()

	sinks := []notify.Sink{notify.NewWebhookNotifier(cfg.Notifier.WebhookURL), notify.NewHubSink(hub)}
	if cfg.Notifier.NATSEnabled {
		jsPublisher, err := notify.NewJetStreamPublisher(cfg.Notifier.NATSURL)
		if err != nil {
			slog.Warn("nats publisher unavailable, continuing without episode fan-out", "error", err)
		} else {
			if err := jsPublisher.EnsureStream(context.Background()); err != nil {
				slog.Warn("ensure episodes stream", "error", err)
			}
			defer jsPublisher.Close()
			sinks = append(sinks, jsPublisher)
		}
	}
	sink := notify.NewMultiSink(sinks...)

	episodeState := prey.NewEpisodeState()
	classifier := prey.NewHTTPClassifier(cfg.PreyAPI.APIURL, cfg.PreyAPI.APIKey, actuator, preyArchive)
	engine := prey.NewEngine(episodeState, actuator, sink)

	allowedPositions := make(map[prey.TriggerPosition]bool, len(cfg.PreyTracker.AllowedTriggerPositions))
	for _, p := range cfg.PreyTracker.AllowedTriggerPositions {
		allowedPositions[prey.TriggerPosition(p)] = true
	}

	var detectorArchive prey.DetectorImageArchive
	if cfg.PreyTracker.SaveImages {
		detectorArchive = storage.NewPreyDetectorImageArchive(artifacts)
	}

	dispatcher := prey.NewDispatcher(prey.DispatcherConfig{
		QueueCapacity:           cfg.Dispatcher.QueueCapacity,
		MaxConcurrent:           cfg.PreyTracker.Concurrency,
		IdleTimeout:             secondsToDuration(cfg.Dispatcher.IdleTimeoutSeconds),
		SSIMThreshold:           cfg.PreyTracker.SSIMThreshold,
		CropWidth:               cfg.PreyTracker.CropWidth,
		AllowedTriggerPositions: allowedPositions,
		RequireMiddleAfterRight: cfg.PreyTracker.RequireMiddleAfterRight,
	}, classifier, episodeState, engine, recentExit, actuatorPauser{actuator}, detectorArchive)

	driver := pipeline.NewDriver(pipeline.Config{
		TriggerClass:   cfg.Pipeline.TriggerClass,
		FollowupFrames: cfg.Pipeline.DetectionFollowupFrames,
		InputWidth:     cfg.Detector.InputWidth,
		InputHeight:    cfg.Detector.InputHeight,
	}, source, detector, tracker, dispatcher, actuator, sink)

	router := api.NewRouter(api.RouterConfig{
		APIKey:       cfg.Server.APIKey,
		Actuator:     actuator,
		Source:       source,
		Hub:          hub,
		EpisodeStore: episodeStore,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := driver.Run(ctx); err != nil {
			slog.Error("pipeline driver stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("debug API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down catdoor controller...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	time.Sleep(2 * time.Second)
	slog.Info("catdoor controller stopped")
}

// actuatorPauser adapts a flap.Actuator directly to prey.DetectionPauser,
// avoiding a construction-order cycle with pipeline.Driver (which also
// implements DetectionPauser but needs the Dispatcher to already exist).
type actuatorPauser struct {
	actuator flap.Actuator
}

func (p actuatorPauser) ShouldPause() bool {
	return p.actuator.State() == flap.Locked
}

func buildArtifactStore(cfg config.RuntimeConfig) (storage.ArtifactStore, error) {
	switch cfg.ArtifactBackend {
	case "minio":
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		if err := minioStore.EnsureBucket(context.Background()); err != nil {
			return nil, fmt.Errorf("ensure minio bucket: %w", err)
		}
		return storage.NewMinIOArtifactStore(minioStore), nil
	default:
		return storage.NewFilesystemStore(cfg.RootDir), nil
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// getONNXLibPath returns the ONNX Runtime shared library path based on the
// operating system.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
