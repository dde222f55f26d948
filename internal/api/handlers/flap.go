package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/catdoor/internal/flap"
)

// FlapHandler exposes a manual override surface, replacing the Telegram
// bot's /lock and /unlock commands from the reference implementation.
type FlapHandler struct {
	actuator flap.Actuator
}

func NewFlapHandler(actuator flap.Actuator) *FlapHandler {
	return &FlapHandler{actuator: actuator}
}

func (h *FlapHandler) Lock(c *gin.Context) {
	ok, err := h.actuator.Lock(c.Request.Context(), "manual override")
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": ok, "state": h.actuator.State().String()})
}

func (h *FlapHandler) Unlock(c *gin.Context) {
	ok, err := h.actuator.Unlock(c.Request.Context(), "manual override")
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlocked": ok, "state": h.actuator.State().String()})
}
