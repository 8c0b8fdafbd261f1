package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"visual-search-platform/internal/telemetry"
	"visual-search-platform/services"
	"visual-search-platform/utils"
)

// SetupIndexRoutes wires the catalog indexing endpoints.
func SetupIndexRoutes(router *gin.Engine, indexer *services.Indexer, store services.VectorIndex, metrics *telemetry.Metrics) {
	router.POST("/index/products", HandleIndexProducts(indexer, metrics))
	router.GET("/index/stats", HandleIndexStats(store))
	router.DELETE("/index/products", HandleClearIndex(store))
}

// HandleIndexProducts runs one catalog sync and returns its summary. Partial
// failures still produce a structured summary.
func HandleIndexProducts(indexer *services.Indexer, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		maxProducts := 0
		if v := c.Query("max_products"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				utils.RespondWithBadRequest(c, "max_products must be a non-negative integer", nil)
				return
			}
			maxProducts = n
		}

		summary, err := indexer.Run(c.Request.Context(), maxProducts)
		if err != nil {
			utils.RespondWithInternalError(c, fmt.Sprintf("Error indexing products: %v", err), nil)
			return
		}

		if metrics != nil {
			metrics.SyncRunsTotal.Add(c.Request.Context(), 1)
			metrics.SyncDuration.Record(c.Request.Context(), time.Since(start).Seconds())
			if summary.Run.FailedChunks > 0 {
				metrics.UpsertFailures.Add(c.Request.Context(), int64(summary.Run.FailedChunks))
			}
		}

		if summary.Run.Fetched == 0 {
			c.JSON(http.StatusOK, gin.H{
				"success":       false,
				"message":       "No products found to index",
				"indexed_count": 0,
			})
			return
		}

		message := fmt.Sprintf("Successfully indexed %d products", summary.Run.Upserted)
		if summary.Truncated {
			message += " (catalog fetch was incomplete)"
		}

		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"message":       message,
			"indexed_count": summary.Run.Upserted,
			"skipped_count": summary.Run.Skipped + summary.Run.Failed,
			"index_stats":   summary.Stats,
			"run":           summary.Run,
		})
	}
}

// HandleIndexStats reports aggregate statistics about the vector index.
func HandleIndexStats(store services.VectorIndex) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := store.DescribeStats(c.Request.Context())
		if err != nil {
			utils.RespondWithServiceUnavailable(c, "Search index is unavailable")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"stats":   stats,
		})
	}
}

// HandleClearIndex deletes every vector from the index.
func HandleClearIndex(store services.VectorIndex) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.DeleteAll(c.Request.Context()); err != nil {
			utils.RespondWithServiceUnavailable(c, "Search index is unavailable")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Index cleared",
		})
	}
}
