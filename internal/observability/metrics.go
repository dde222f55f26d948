package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catdoor",
		Name:      "frames_captured_total",
		Help:      "Total number of frames captured from the source",
	})

	DetectionsByClass = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catdoor",
		Name:      "detections_total",
		Help:      "Total number of object detections, by class",
	}, []string{"class"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catdoor",
		Name:      "inference_duration_seconds",
		Help:      "Duration of detector/classifier inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	DispatcherQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "catdoor",
		Name:      "dispatcher_queue_depth",
		Help:      "Number of admitted frames waiting in the dispatcher mailbox",
	})

	DispatcherInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "catdoor",
		Name:      "dispatcher_classifier_in_flight",
		Help:      "Number of classifier calls currently in flight",
	})

	DispatcherDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catdoor",
		Name:      "dispatcher_admissions_dropped_total",
		Help:      "Number of admitted frames dropped because the mailbox was full",
	})

	BatchesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catdoor",
		Name:      "episode_batches_total",
		Help:      "Total number of classifier batches processed, by outcome",
	}, []string{"outcome"}) // positive, empty, negative_pending, unlocked

	LockEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catdoor",
		Name:      "flap_lock_events_total",
		Help:      "Total number of flap lock/unlock events, by kind and reason",
	}, []string{"kind", "reason"})

	ActuatorRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catdoor",
		Name:      "actuator_request_duration_seconds",
		Help:      "Duration of remote actuator HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "status"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catdoor",
		Name:      "notifications_sent_total",
		Help:      "Total number of notifications sent, by outcome",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catdoor",
		Name:      "http_request_duration_seconds",
		Help:      "Debug API HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "catdoor",
		Name:      "ws_connections",
		Help:      "Number of active debug WebSocket connections",
	})
)
