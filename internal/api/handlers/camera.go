package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/catdoor/internal/capture"
)

// CameraHandler serves the most recent captured frame as a JPEG snapshot.
type CameraHandler struct {
	source capture.Source
}

func NewCameraHandler(source capture.Source) *CameraHandler {
	return &CameraHandler{source: source}
}

func (h *CameraHandler) Snapshot(c *gin.Context) {
	data, err := h.source.CaptureJPEG(85)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}
