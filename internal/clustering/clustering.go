// Package clustering is the client of the news clustering service, which
// groups articles into clusters and finds articles similar to one.
package clustering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/HerbHall/newslens/internal/version"
	"github.com/HerbHall/newslens/pkg/models"
)

// Service paths.
const (
	TrainGetClustersPath = "/news-clustering/train-get-clusters"
	SimilarNewsPath      = "/news-clustering/get-similar-news"
)

// Client calls the clustering service.
type Client struct {
	baseURL string
	http    *http.Client
	policy  *bluemonday.Policy
	logger  *zap.Logger
}

// New returns a Client for the service at baseURL, e.g.
// "http://localhost:8000". A nil httpClient uses a 60s timeout.
func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		policy:  bluemonday.StrictPolicy(),
		logger:  logger,
	}
}

type newsDocument struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	ContainedURLs map[string]string `json:"contained_urls"`
}

type trainRequest struct {
	News                map[string]newsDocument `json:"news_json_obj"`
	ShouldFitSimilarity bool                    `json:"should_fit_similarity"`
}

type trainResponse struct {
	Clusters [][]string `json:"clusters"`
}

type similarRequest struct {
	URL     string            `json:"url"`
	Title   string            `json:"title"`
	Content string            `json:"content"`
	URLs    map[string]string `json:"urls"`
}

type similarResponse struct {
	SimilarNews []models.Article `json:"similar_news"`
}

// TrainGetClusters fits the service on articles and returns the clusters
// it forms. Cluster ids are the cluster's position in the response.
// URLs the service returns that are not among articles are dropped.
func (c *Client) TrainGetClusters(ctx context.Context, articles []models.Article) ([]models.Cluster, error) {
	byURL := make(map[string]models.Article, len(articles))
	docs := make(map[string]newsDocument, len(articles))
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		byURL[a.URL] = a
		docs[a.URL] = newsDocument{
			Title:         c.plain(a.Title),
			Content:       c.plain(a.Content),
			ContainedURLs: map[string]string{},
		}
	}

	var resp trainResponse
	if err := c.post(ctx, TrainGetClustersPath, trainRequest{News: docs, ShouldFitSimilarity: true}, &resp); err != nil {
		return nil, err
	}

	clusters := make([]models.Cluster, 0, len(resp.Clusters))
	for i, urls := range resp.Clusters {
		cl := models.Cluster{ID: strconv.Itoa(i), Articles: make([]models.Article, 0, len(urls))}
		for _, u := range urls {
			if a, ok := byURL[u]; ok {
				cl.Articles = append(cl.Articles, a)
			}
		}
		clusters = append(clusters, cl)
	}
	c.logger.Debug("clusters formed",
		zap.Int("articles", len(docs)),
		zap.Int("clusters", len(clusters)),
	)
	return clusters, nil
}

// GetSimilarNews returns the articles the service considers similar to a.
func (c *Client) GetSimilarNews(ctx context.Context, a models.Article) ([]models.Article, error) {
	var resp similarResponse
	req := similarRequest{URL: a.URL, Title: c.plain(a.Title), Content: c.plain(a.Content)}
	if err := c.post(ctx, SimilarNewsPath, req, &resp); err != nil {
		return nil, err
	}
	if resp.SimilarNews == nil {
		resp.SimilarNews = []models.Article{}
	}
	return resp.SimilarNews, nil
}

// plain strips markup from article text and unescapes entities.
func (c *Client) plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(s)))
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("clustering: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clustering: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("clustering %s %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("clustering: decode %s response: %w", path, err)
	}
	return nil
}
