package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"visual-search-platform/services"
	"visual-search-platform/utils"
)

// SetupHistoryRoutes wires scan-history listing. Only called when history
// persistence is enabled.
func SetupHistoryRoutes(router *gin.Engine, history *services.HistoryService) {
	router.GET("/scan-results", HandleListScans(history))
}

// HandleListScans returns a page of past scans, newest first.
func HandleListScans(history *services.HistoryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

		scans, total, err := history.ListScans(c.Request.Context(), page, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load scan history", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    scans,
			"total":   total,
			"page":    page,
			"limit":   limit,
		})
	}
}
