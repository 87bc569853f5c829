package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const searchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

// ImageSearch scrapes thumbnail URLs from an image search results page.
type ImageSearch struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

func NewImageSearch(baseURL string, logger *zap.Logger) *ImageSearch {
	return &ImageSearch{
		logger:  logger,
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
	}
}

// Search returns at most limit image URLs for query.
func (s *ImageSearch) Search(ctx context.Context, query string, limit int) ([]string, error) {
	ctx, span := otel.Tracer("Enrichment").Start(ctx, "ImageSearch", trace.WithAttributes(
		attribute.String("search.query", query),
	))
	defer span.End()

	if limit <= 0 {
		return []string{}, nil
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image search url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("form", "HDRSC2")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image search request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("image search request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("image search returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse image search page: %w", err)
	}

	urls := make([]string, 0, limit)
	doc.Find("img.mimg").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if src, ok := img.Attr("src"); ok && strings.HasPrefix(src, "http") {
			urls = append(urls, src)
		}
		return len(urls) < limit
	})

	s.logger.Debug("Image search finished", zap.String("query", query), zap.Int("count", len(urls)))
	span.SetAttributes(attribute.Int("images.count", len(urls)))
	return urls, nil
}
