package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// embedSize is the longest side of the image sent to the embedding service.
const embedSize = 512

// HTTPEmbedder posts a JPEG rendition of an image to an embedding service
// and reads back {"embedding": [...]}.
type HTTPEmbedder struct {
	url        string
	httpClient *http.Client
}

// EmbedderOption configures an HTTPEmbedder.
type EmbedderOption func(*HTTPEmbedder)

// WithHTTPTimeout sets the per-request timeout.
func WithHTTPTimeout(timeout time.Duration) EmbedderOption {
	return func(e *HTTPEmbedder) {
		if timeout > 0 {
			e.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) EmbedderOption {
	return func(e *HTTPEmbedder) { e.httpClient = c }
}

// NewHTTPEmbedder returns an embedder calling url.
func NewHTTPEmbedder(url string, opts ...EmbedderOption) *HTTPEmbedder {
	e := &HTTPEmbedder{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	b := img.Bounds()
	if b.Dx() > embedSize || b.Dy() > embedSize {
		img = imaging.Fit(img, embedSize, embedSize, imaging.Lanczos)
	}

	var body bytes.Buffer
	if err := imaging.Encode(&body, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return out.Embedding, nil
}
