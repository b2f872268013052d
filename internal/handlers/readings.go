package handlers

import (
	"net/http"
	"strconv"

	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"
)

const maxReadingsLimit = 5000

// @Summary      Telemetry history
// @Description  Rows of the periodic telemetry log, newest first.
// @Tags         greenhouse
// @Produce      json
// @Param        from   query   string  false  "Start of range"  example(2025-08-01)
// @Param        to     query   string  false  "End of range"    example(2025-08-31)
// @Param        limit  query   int     false  "Max rows (default 500)"
// @Success      200    {object}  map[string]interface{}  "count, readings"
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/readings [get]
// @Security     BearerAuth
func (h *Handler) getReadings(c *gin.Context) {
	from, to, ok := h.parseRange(c)
	if !ok {
		return
	}
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n <= 0 || n > maxReadingsLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 5000"})
			return
		}
		limit = n
	}

	rows, err := h.services.Monitoring.Readings(c.Request.Context(), service.ReadingFilter{From: from, To: to, Limit: limit})
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load readings", "readings_list_failed", err,
			"from", from, "to", to, "limit", limit)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(rows),
		"readings": rows,
	})
}
