package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"visual-search-platform/internal/ai"
	"visual-search-platform/internal/logger"
	"visual-search-platform/internal/telemetry"
	"visual-search-platform/internal/vectorstore"
	"visual-search-platform/services"
	"visual-search-platform/utils"
)

// Product photos should never be this large; mirrors the indexer's
// download cap.
const maxUploadBytes = 20 << 20

// SetupScanRoutes wires the photo scan endpoint. history may be nil when
// scan persistence is disabled.
func SetupScanRoutes(router *gin.Engine, scanner *services.Scanner, history *services.HistoryService, metrics *telemetry.Metrics) {
	router.POST("/scan", HandleScan(scanner, history, metrics))
}

// HandleScan accepts a multipart image upload and returns the catalog
// products that look most similar.
func HandleScan(scanner *services.Scanner, history *services.HistoryService, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		file, err := c.FormFile("image")
		if err != nil {
			utils.RespondWithBadRequest(c, "No image uploaded", nil)
			return
		}

		if contentType := file.Header.Get("Content-Type"); contentType != "" && !utils.IsValidImageType(contentType) {
			utils.RespondWithBadRequest(c, "File must be an image", gin.H{"content_type": contentType})
			return
		}

		if file.Size > maxUploadBytes {
			utils.RespondWithBadRequest(c, "Image too large", gin.H{"max_bytes": maxUploadBytes})
			return
		}

		src, err := file.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}
		defer src.Close()

		data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}

		matches, err := scanner.Scan(c.Request.Context(), data)
		if err != nil {
			if ai.IsDecodeError(err) {
				utils.RespondWithBadRequest(c, "Invalid image file", nil)
				return
			}
			var unavailable *vectorstore.StoreUnavailableError
			if errors.As(err, &unavailable) {
				utils.RespondWithServiceUnavailable(c, "Search index is unavailable")
				return
			}
			utils.RespondWithInternalError(c, "Error processing image", nil)
			return
		}

		// History is best-effort; a storage hiccup must not fail the scan
		if history != nil {
			if _, err := history.SaveScan(c.Request.Context(), matches); err != nil {
				logger.Warn("Failed to save scan result", "error", err)
			}
		}

		if metrics != nil {
			metrics.ScansTotal.Add(c.Request.Context(), 1)
			metrics.ScanDuration.Record(c.Request.Context(), time.Since(start).Seconds())
		}

		message := "No matching products found"
		if len(matches) > 0 {
			message = fmt.Sprintf("Found %d matching products", len(matches))
		}

		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"matches_found": len(matches),
			"products":      matches,
			"message":       message,
		})
	}
}
