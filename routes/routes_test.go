package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"visual-search-platform/internal/vectorstore"
	"visual-search-platform/models"
	"visual-search-platform/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Fingerprint(ctx context.Context, image []byte) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

type stubStore struct {
	mu       sync.Mutex
	vectors  map[string]vectorstore.Vector
	matches  []vectorstore.Match
	queryErr error
	statsErr error
	cleared  bool
}

func newStubStore() *stubStore {
	return &stubStore{vectors: make(map[string]vectorstore.Vector)}
}

func (s *stubStore) Upsert(ctx context.Context, vectors []vectorstore.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		s.vectors[v.ID] = v
	}
	return nil
}

func (s *stubStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]vectorstore.Match, error) {
	return s.matches, s.queryErr
}

func (s *stubStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = true
	s.vectors = make(map[string]vectorstore.Vector)
	return nil
}

func (s *stubStore) DescribeStats(ctx context.Context) (*models.IndexStats, error) {
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.IndexStats{TotalVectors: len(s.vectors), Dimension: 512}, nil
}

type stubCatalog struct {
	items []models.CatalogItem
	err   error
}

func (s *stubCatalog) FetchProducts(ctx context.Context, maxItems int) ([]models.CatalogItem, int, error) {
	return s.items, 0, s.err
}

func multipartImage(t *testing.T, fieldName, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="photo.jpg"`, fieldName))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create form part: %v", err)
	}
	part.Write([]byte("image bytes"))
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func scanRouter(store *stubStore, embedder *stubEmbedder) *gin.Engine {
	router := gin.New()
	scanner := services.NewScanner(embedder, store, 5, 0.6)
	SetupScanRoutes(router, scanner, nil, nil)
	return router
}

func TestHandleScanReturnsMatches(t *testing.T) {
	store := newStubStore()
	store.matches = []vectorstore.Match{
		{ID: "1", Score: 0.9, Metadata: map[string]string{"product_id": "1", "name": "Tote"}},
		{ID: "2", Score: 0.4},
	}
	router := scanRouter(store, &stubEmbedder{})

	body, contentType := multipartImage(t, "image", "image/jpeg")
	req := httptest.NewRequest("POST", "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success      bool                 `json:"success"`
		MatchesFound int                  `json:"matches_found"`
		Products     []models.MatchResult `json:"products"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.MatchesFound != 1 {
		t.Errorf("matches_found = %d, want 1 (the 0.4 match is below the floor)", resp.MatchesFound)
	}
	if len(resp.Products) != 1 || resp.Products[0].Name != "Tote" {
		t.Errorf("unexpected products: %+v", resp.Products)
	}
}

func TestHandleScanMissingFile(t *testing.T) {
	router := scanRouter(newStubStore(), &stubEmbedder{})

	req := httptest.NewRequest("POST", "/scan", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleScanRejectsNonImage(t *testing.T) {
	router := scanRouter(newStubStore(), &stubEmbedder{})

	body, contentType := multipartImage(t, "image", "application/pdf")
	req := httptest.NewRequest("POST", "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleScanRejectsOversizedUpload(t *testing.T) {
	router := scanRouter(newStubStore(), &stubEmbedder{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "huge.jpg")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	part.Write(bytes.Repeat([]byte("x"), maxUploadBytes+1))
	writer.Close()

	req := httptest.NewRequest("POST", "/scan", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleScanStoreDown(t *testing.T) {
	store := newStubStore()
	store.queryErr = &vectorstore.StoreUnavailableError{Op: "query", Err: errors.New("down")}
	router := scanRouter(store, &stubEmbedder{})

	body, contentType := multipartImage(t, "image", "image/png")
	req := httptest.NewRequest("POST", "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleScanNoMatches(t *testing.T) {
	router := scanRouter(newStubStore(), &stubEmbedder{})

	body, contentType := multipartImage(t, "image", "image/jpeg")
	req := httptest.NewRequest("POST", "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Success      bool                 `json:"success"`
		MatchesFound int                  `json:"matches_found"`
		Products     []models.MatchResult `json:"products"`
		Message      string               `json:"message"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.MatchesFound != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Products == nil {
		t.Error("products must render as an empty array, not null")
	}
	if resp.Message != "No matching products found" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestHandleIndexStats(t *testing.T) {
	store := newStubStore()
	store.vectors["1"] = vectorstore.Vector{ID: "1"}

	router := gin.New()
	router.GET("/index/stats", HandleIndexStats(store))

	req := httptest.NewRequest("GET", "/index/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Success bool              `json:"success"`
		Stats   models.IndexStats `json:"stats"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.Stats.TotalVectors != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleIndexStatsUnavailable(t *testing.T) {
	store := newStubStore()
	store.statsErr = &vectorstore.StoreUnavailableError{Op: "describe stats", Err: errors.New("down")}

	router := gin.New()
	router.GET("/index/stats", HandleIndexStats(store))

	req := httptest.NewRequest("GET", "/index/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleClearIndex(t *testing.T) {
	store := newStubStore()
	store.vectors["1"] = vectorstore.Vector{ID: "1"}

	router := gin.New()
	router.DELETE("/index/products", HandleClearIndex(store))

	req := httptest.NewRequest("DELETE", "/index/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !store.cleared || len(store.vectors) != 0 {
		t.Error("store was not cleared")
	}
}

func TestHandleIndexProductsBadMaxProducts(t *testing.T) {
	store := newStubStore()
	writer := services.NewIndexWriter(store, 100)
	indexer := services.NewIndexer(&stubCatalog{}, &stubEmbedder{}, writer, store, 2)

	router := gin.New()
	router.POST("/index/products", HandleIndexProducts(indexer, nil))

	for _, v := range []string{"abc", "-1"} {
		req := httptest.NewRequest("POST", "/index/products?max_products="+v, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("max_products=%s: status = %d, want 400", v, rec.Code)
		}
	}
}

func TestHandleIndexProductsEmptyCatalog(t *testing.T) {
	store := newStubStore()
	writer := services.NewIndexWriter(store, 100)
	indexer := services.NewIndexer(&stubCatalog{}, &stubEmbedder{}, writer, store, 2)

	router := gin.New()
	router.POST("/index/products", HandleIndexProducts(indexer, nil))

	req := httptest.NewRequest("POST", "/index/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Success      bool   `json:"success"`
		Message      string `json:"message"`
		IndexedCount int    `json:"indexed_count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Success {
		t.Error("success must be false for an empty catalog")
	}
	if resp.Message != "No products found to index" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestHandleIndexProducts(t *testing.T) {
	images := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake image"))
	}))
	t.Cleanup(images.Close)

	items := []models.CatalogItem{
		{ID: "1", Name: "Tote", ImageURL: images.URL + "/1.jpg"},
		{ID: "2", Name: "Brush", ImageURL: images.URL + "/2.jpg"},
	}
	store := newStubStore()
	writer := services.NewIndexWriter(store, 100)
	indexer := services.NewIndexer(&stubCatalog{items: items}, &stubEmbedder{}, writer, store, 2)

	router := gin.New()
	router.POST("/index/products", HandleIndexProducts(indexer, nil))

	req := httptest.NewRequest("POST", "/index/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success      bool `json:"success"`
		IndexedCount int  `json:"indexed_count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success || resp.IndexedCount != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(store.vectors) != 2 {
		t.Errorf("store holds %d vectors, want 2", len(store.vectors))
	}
}
