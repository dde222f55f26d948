package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/catdoor/internal/flap"
	"github.com/your-org/catdoor/pkg/dto"
)

// SystemHandler serves health and flap-status endpoints. episodeStore may
// be nil when history persistence is disabled.
type SystemHandler struct {
	actuator     flap.Actuator
	episodeStore interface{ Ping(ctx context.Context) error }
}

func NewSystemHandler(actuator flap.Actuator, episodeStore interface{ Ping(ctx context.Context) error }) *SystemHandler {
	return &SystemHandler{actuator: actuator, episodeStore: episodeStore}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"flap": "ok"}
	healthy := true

	if h.episodeStore != nil {
		if err := h.episodeStore.Ping(ctx); err != nil {
			checks["episode_store"] = err.Error()
			healthy = false
		} else {
			checks["episode_store"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}

func (h *SystemHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, dto.StatusResponse{FlapState: h.actuator.State().String()})
}
