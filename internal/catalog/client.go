package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"visual-search-platform/internal/logger"
	"visual-search-platform/models"
)

// FetchError reports that a catalog page could not be retrieved. The fetch
// stops at that page; whatever was accumulated before it is still returned.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("catalog fetch failed on page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client pulls product records from the remote catalog API and normalizes
// them into CatalogItems. Each FetchProducts call starts over from page 1.
type Client struct {
	apiURL     string
	baseURL    string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a catalog client. pageSize is the per_page value used
// while paging through the catalog.
func NewClient(apiURL string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 100
	}

	// Media lookups go against the API root, not the products endpoint
	baseURL := apiURL
	if i := strings.Index(apiURL, "/wp-json"); i > 0 {
		baseURL = apiURL[:i]
	}

	return &Client{
		apiURL:   strings.TrimSuffix(apiURL, "/") + "/",
		baseURL:  baseURL,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// FetchProducts pages through the catalog until it is exhausted or maxItems
// usable products have been collected. maxItems <= 0 means no cap. The
// second return value counts records dropped for lacking a resolvable image.
// A page failure stops the fetch and returns the accumulated items together
// with a *FetchError so the caller knows the catalog was not exhausted.
func (c *Client) FetchProducts(ctx context.Context, maxItems int) ([]models.CatalogItem, int, error) {
	var items []models.CatalogItem
	skipped := 0
	page := 1

	for {
		batch, totalPages, err := c.fetchRawPage(ctx, page, c.pageSize)
		if err != nil {
			return items, skipped, &FetchError{Page: page, Err: err}
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			item, ok := c.normalize(ctx, &batch[i])
			if !ok {
				skipped++
				continue
			}
			items = append(items, item)
			if maxItems > 0 && len(items) >= maxItems {
				logger.Info("Reached max products limit", "max", maxItems)
				return items, skipped, nil
			}
		}

		logger.Debug("Fetched catalog page", "page", page, "records", len(batch), "total_with_images", len(items))

		if totalPages > 0 && page >= totalPages {
			break
		}
		page++
	}

	return items, skipped, nil
}

// FetchPage fetches and normalizes a single catalog page. Used by the
// standalone indexer tool.
func (c *Client) FetchPage(ctx context.Context, page, perPage int) ([]models.CatalogItem, error) {
	batch, _, err := c.fetchRawPage(ctx, page, perPage)
	if err != nil {
		return nil, &FetchError{Page: page, Err: err}
	}

	var items []models.CatalogItem
	for i := range batch {
		if item, ok := c.normalize(ctx, &batch[i]); ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (c *Client) fetchRawPage(ctx context.Context, page, perPage int) ([]rawProduct, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	reqURL := fmt.Sprintf("%s?%s", c.apiURL, url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create catalog request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var batch []rawProduct
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, 0, fmt.Errorf("failed to decode catalog page: %w", err)
	}

	totalPages := 0
	if v := resp.Header.Get("X-WP-TotalPages"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			totalPages = n
		}
	}

	return batch, totalPages, nil
}

// normalize turns a raw record into a CatalogItem. Records without a
// resolvable image URL are dropped; they never enter the pipeline.
func (c *Client) normalize(ctx context.Context, raw *rawProduct) (models.CatalogItem, bool) {
	imageURL := extractImageURL(raw)
	if imageURL == "" && raw.FeaturedMedia > 0 {
		// Secondary lookup. A failure here is non-fatal: the record is
		// simply treated as having no image.
		resolved, err := c.mediaSourceURL(ctx, raw.FeaturedMedia)
		if err != nil {
			logger.Warn("Media lookup failed", "media_id", raw.FeaturedMedia, "error", err)
		} else {
			imageURL = resolved
		}
	}
	if imageURL == "" {
		return models.CatalogItem{}, false
	}

	price := string(raw.Price)
	if price == "" {
		price = string(raw.RegularPrice)
	}

	return models.CatalogItem{
		ID:          string(raw.ID),
		Name:        stripMarkup(raw.Title.Value),
		Price:       price,
		ImageURL:    imageURL,
		Permalink:   raw.Link,
		Description: stripMarkup(raw.Excerpt.Value),
	}, true
}

func (c *Client) mediaSourceURL(ctx context.Context, mediaID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	reqURL := fmt.Sprintf("%s/wp-json/wp/v2/media/%d", c.baseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create media request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media endpoint returned status %d", resp.StatusCode)
	}

	var media struct {
		SourceURL string `json:"source_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return "", fmt.Errorf("failed to decode media response: %w", err)
	}

	return media.SourceURL, nil
}
