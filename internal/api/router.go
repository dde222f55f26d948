package api

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/catdoor/internal/api/handlers"
	"github.com/your-org/catdoor/internal/api/ws"
	"github.com/your-org/catdoor/internal/auth"
	"github.com/your-org/catdoor/internal/capture"
	"github.com/your-org/catdoor/internal/flap"
	"github.com/your-org/catdoor/internal/storage"
)

// RouterConfig carries everything the debug/status HTTP surface needs.
// EpisodeStore is nil unless Runtime.HistoryEnabled is set.
type RouterConfig struct {
	APIKey       string
	Actuator     flap.Actuator
	Source       capture.Source
	Hub          *ws.Hub
	EpisodeStore *storage.EpisodeStore
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	var episodePing interface{ Ping(ctx context.Context) error }
	if cfg.EpisodeStore != nil {
		episodePing = cfg.EpisodeStore
	}

	systemH := handlers.NewSystemHandler(cfg.Actuator, episodePing)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	v1.GET("/ws", cfg.Hub.HandleWS)
	v1.GET("/status", systemH.Status)

	flapH := handlers.NewFlapHandler(cfg.Actuator)
	v1.POST("/flap/lock", flapH.Lock)
	v1.POST("/flap/unlock", flapH.Unlock)

	cameraH := handlers.NewCameraHandler(cfg.Source)
	v1.GET("/camera/snapshot", cameraH.Snapshot)

	if cfg.EpisodeStore != nil {
		episodeH := handlers.NewEpisodeHandler(cfg.EpisodeStore)
		v1.GET("/episodes", episodeH.List)
	}

	return r
}
