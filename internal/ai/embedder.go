package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"visual-search-platform/internal/logger"
)

// EmbedderClient talks to the external embedding service. The service holds
// the CLIP model; this client only decodes, normalizes and ships images.
type EmbedderClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

type embedResponse struct {
	Success    bool        `json:"success"`
	Embedding  []float32   `json:"embedding,omitempty"`
	Embeddings [][]float32 `json:"embeddings,omitempty"`
	Dimension  int         `json:"dimension"`
	Error      string      `json:"error,omitempty"`
}

type embedderHealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewEmbedderClient creates a client for the embedding service.
func NewEmbedderClient(baseURL string, timeout time.Duration) *EmbedderClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EmbedderService",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// The model server saturates quickly; keep request rate bounded
	limiter := rate.NewLimiter(rate.Limit(10), 20)

	return &EmbedderClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: breaker,
		limiter: limiter,
	}
}

// IsHealthy checks whether the embedding service is up with its model loaded.
func (c *EmbedderClient) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("embedder service unhealthy: status %d", resp.StatusCode)
	}

	var healthResp embedderHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return false, fmt.Errorf("failed to decode health response: %w", err)
	}

	return healthResp.Status == "healthy" && healthResp.ModelLoaded, nil
}

// Fingerprint returns the embedding vector for one image.
func (c *EmbedderClient) Fingerprint(ctx context.Context, image []byte) ([]float32, error) {
	normalized, err := NormalizeImage(image)
	if err != nil {
		return nil, err
	}

	resp, err := c.postEmbed(ctx, "/embed", [][]byte{normalized})
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, &EmbeddingError{Err: fmt.Errorf("service returned empty embedding")}
	}

	return resp.Embedding, nil
}

// FingerprintBatch embeds several images in one call. Output order matches
// input order: vector i belongs to image i.
func (c *EmbedderClient) FingerprintBatch(ctx context.Context, images [][]byte) ([][]float32, error) {
	normalized := make([][]byte, len(images))
	for i, img := range images {
		n, err := NormalizeImage(img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		normalized[i] = n
	}

	resp, err := c.postEmbed(ctx, "/embed/batch", normalized)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(images) {
		return nil, &EmbeddingError{Err: fmt.Errorf("service returned %d embeddings for %d images", len(resp.Embeddings), len(images))}
	}

	return resp.Embeddings, nil
}

func (c *EmbedderClient) postEmbed(ctx context.Context, path string, images [][]byte) (*embedResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &EmbeddingError{Err: err}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, img := range images {
		fileWriter, err := writer.CreateFormFile("image", fmt.Sprintf("image_%d.png", i))
		if err != nil {
			return nil, &EmbeddingError{Err: fmt.Errorf("failed to create form file: %w", err)}
		}
		if _, err := fileWriter.Write(img); err != nil {
			return nil, &EmbeddingError{Err: fmt.Errorf("failed to write image data: %w", err)}
		}
	}
	writer.Close()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, &buf)
		if err != nil {
			return nil, fmt.Errorf("failed to create embed request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embed request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("embed request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var embedResp embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
			return nil, fmt.Errorf("failed to decode embed response: %w", err)
		}
		if !embedResp.Success {
			return nil, fmt.Errorf("embedding service error: %s", embedResp.Error)
		}

		return &embedResp, nil
	})
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}

	return result.(*embedResponse), nil
}
