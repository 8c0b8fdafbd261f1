package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"visual-search-platform/internal/logger"
	"visual-search-platform/models"
)

// Vector is the persisted unit: a product id, its fingerprint and a bounded
// metadata projection of the catalog item. Upserting the same id overwrites
// the previous entry.
type Vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is one ordered result of a similarity query.
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// StoreUnavailableError means the vector store could not be reached or gave
// an unusable answer. Callers decide whether that degrades or fails the
// operation.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("vector store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// PineconeClient is a thin REST client for a Pinecone-compatible index.
// The index is created lazily with the configured dimension and cosine
// metric. Only success is cached: a failed initialization is retried on the
// next call, so a controller hiccup fails that call, not the process.
type PineconeClient struct {
	apiKey        string
	indexName     string
	controllerURL string
	indexHost     string
	dimension     int
	httpClient    *http.Client

	mu      sync.Mutex
	ensured bool
}

type PineconeConfig struct {
	APIKey        string
	IndexName     string
	ControllerURL string
	// IndexHost skips the controller round-trip when set
	IndexHost string
	Dimension int
}

func NewPineconeClient(cfg PineconeConfig) *PineconeClient {
	controllerURL := cfg.ControllerURL
	if controllerURL == "" {
		controllerURL = "https://api.pinecone.io"
	}

	return &PineconeClient{
		apiKey:        cfg.APIKey,
		indexName:     cfg.IndexName,
		controllerURL: strings.TrimSuffix(controllerURL, "/"),
		indexHost:     strings.TrimSuffix(cfg.IndexHost, "/"),
		dimension:     cfg.Dimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// EnsureIndex makes sure the index exists and resolves its data-plane host.
// Safe for concurrent callers; once a call has succeeded the rest are no-ops.
func (c *PineconeClient) EnsureIndex(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ensured {
		return nil
	}
	if err := c.ensureIndex(ctx); err != nil {
		return err
	}
	c.ensured = true
	return nil
}

func (c *PineconeClient) ensureIndex(ctx context.Context) error {
	if c.indexHost != "" {
		return nil
	}

	host, err := c.describeIndexHost(ctx)
	if err == nil {
		c.indexHost = host
		logger.Info("Using existing index", "index", c.indexName)
		return nil
	}

	logger.Info("Creating index", "index", c.indexName, "dimension", c.dimension)
	createBody := map[string]interface{}{
		"name":      c.indexName,
		"dimension": c.dimension,
		"metric":    "cosine",
		"spec": map[string]interface{}{
			"serverless": map[string]string{
				"cloud":  "aws",
				"region": "us-east-1",
			},
		},
	}

	var created struct {
		Host string `json:"host"`
	}
	if err := c.doJSON(ctx, "POST", c.controllerURL+"/indexes", createBody, &created); err != nil {
		return &StoreUnavailableError{Op: "create index", Err: err}
	}
	if created.Host == "" {
		return &StoreUnavailableError{Op: "create index", Err: fmt.Errorf("no host in create response")}
	}

	c.indexHost = hostURL(created.Host)
	return nil
}

func (c *PineconeClient) describeIndexHost(ctx context.Context) (string, error) {
	var desc struct {
		Host string `json:"host"`
	}
	err := c.doJSON(ctx, "GET", c.controllerURL+"/indexes/"+c.indexName, nil, &desc)
	if err != nil {
		return "", err
	}
	if desc.Host == "" {
		return "", fmt.Errorf("no host in describe response")
	}
	return hostURL(desc.Host), nil
}

func hostURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimSuffix(host, "/")
	}
	return "https://" + host
}

// Upsert writes one batch of vectors. The caller is responsible for keeping
// batches within the store's size limits.
func (c *PineconeClient) Upsert(ctx context.Context, vectors []Vector) error {
	if err := c.EnsureIndex(ctx); err != nil {
		return err
	}

	body := map[string]interface{}{"vectors": vectors}
	if err := c.doJSON(ctx, "POST", c.indexHost+"/vectors/upsert", body, nil); err != nil {
		return fmt.Errorf("upsert of %d vectors failed: %w", len(vectors), err)
	}
	return nil
}

// Query runs a single nearest-neighbor lookup and returns matches in the
// store's similarity order, highest first.
func (c *PineconeClient) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	if err := c.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": includeMetadata,
	}

	var result struct {
		Matches []Match `json:"matches"`
	}
	if err := c.doJSON(ctx, "POST", c.indexHost+"/query", body, &result); err != nil {
		return nil, &StoreUnavailableError{Op: "query", Err: err}
	}

	return result.Matches, nil
}

// DeleteAll removes every vector from the index.
func (c *PineconeClient) DeleteAll(ctx context.Context) error {
	if err := c.EnsureIndex(ctx); err != nil {
		return err
	}

	body := map[string]interface{}{"deleteAll": true}
	if err := c.doJSON(ctx, "POST", c.indexHost+"/vectors/delete", body, nil); err != nil {
		return &StoreUnavailableError{Op: "delete all", Err: err}
	}

	logger.Info("Deleted all vectors", "index", c.indexName)
	return nil
}

// DescribeStats reports aggregate index statistics.
func (c *PineconeClient) DescribeStats(ctx context.Context) (*models.IndexStats, error) {
	if err := c.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	var stats struct {
		TotalVectorCount int     `json:"totalVectorCount"`
		Dimension        int     `json:"dimension"`
		IndexFullness    float64 `json:"indexFullness"`
	}
	if err := c.doJSON(ctx, "POST", c.indexHost+"/describe_index_stats", map[string]interface{}{}, &stats); err != nil {
		return nil, &StoreUnavailableError{Op: "describe stats", Err: err}
	}

	return &models.IndexStats{
		TotalVectors:  stats.TotalVectorCount,
		Dimension:     stats.Dimension,
		IndexFullness: stats.IndexFullness,
	}, nil
}

func (c *PineconeClient) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
