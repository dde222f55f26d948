package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/catdoor/internal/storage"
	"github.com/your-org/catdoor/pkg/dto"
)

// EpisodeHandler serves the supplemented episode-history feature. It is
// only wired up when Runtime.HistoryEnabled is set.
type EpisodeHandler struct {
	store *storage.EpisodeStore
}

func NewEpisodeHandler(store *storage.EpisodeStore) *EpisodeHandler {
	return &EpisodeHandler{store: store}
}

func (h *EpisodeHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := h.store.RecentEpisodes(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]dto.EpisodeRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, dto.EpisodeRecordResponse{
			ID:        r.ID.String(),
			OpenedAt:  r.OpenedAt.Format(time.RFC3339),
			ClosedAt:  r.ClosedAt.Format(time.RFC3339),
			Positions: r.Positions,
			Outcome:   r.Outcome,
			Notified:  r.Notified,
		})
	}
	c.JSON(http.StatusOK, gin.H{"episodes": out})
}
