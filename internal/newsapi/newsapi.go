// Package newsapi searches articles through the NewsAPI "everything"
// endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/newslens/internal/version"
	"github.com/HerbHall/newslens/pkg/models"
)

// DefaultBaseURL is the public NewsAPI endpoint.
const DefaultBaseURL = "https://newsapi.org"

// ErrNoAPIKey is returned by New when no API key is configured.
var ErrNoAPIKey = errors.New("newsapi: api key is empty")

// APIError is an error document returned by NewsAPI.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("newsapi: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	APIKey        string
	From          string  // earliest publish date, "YYYY-MM-DD"; optional
	SortBy        string  // "popularity" when empty
	RatePerSecond float64 // request pacing; unlimited when zero
}

// Client queries NewsAPI.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type everythingResponse struct {
	Status       string           `json:"status"`
	TotalResults int              `json:"totalResults"`
	Articles     []models.Article `json:"articles"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
}

// New returns a Client. A nil httpClient uses a client with a 30s timeout.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.SortBy == "" {
		cfg.SortBy = "popularity"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

// Search returns the articles matching query.
func (c *Client) Search(ctx context.Context, query string) ([]models.Article, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("newsapi: rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("q", query)
	if c.cfg.From != "" {
		q.Set("from", c.cfg.From)
	}
	q.Set("sortBy", c.cfg.SortBy)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v2/everything?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	defer resp.Body.Close()

	var body everythingResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("newsapi: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: body.Code, Message: body.Message}
	}

	c.logger.Debug("newsapi search",
		zap.String("query", query),
		zap.Int("articles", len(body.Articles)),
		zap.Int("total_results", body.TotalResults),
		zap.Duration("took", time.Since(start)),
	)
	if body.Articles == nil {
		body.Articles = []models.Article{}
	}
	return body.Articles, nil
}
