// Package feedsearch turns an RSS or Atom feed URL into candidate
// articles for URL queries.
package feedsearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/HerbHall/newslens/internal/version"
	"github.com/HerbHall/newslens/pkg/models"
)

// Provider fetches and parses feeds.
type Provider struct {
	parser *gofeed.Parser
	logger *zap.Logger
}

// New returns a Provider. A nil httpClient uses a client with a 30s timeout.
func New(httpClient *http.Client, logger *zap.Logger) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := gofeed.NewParser()
	p.Client = httpClient
	p.UserAgent = version.UserAgent()
	return &Provider{parser: p, logger: logger}
}

// Search returns the items of the feed at feedURL as articles.
func (p *Provider) Search(ctx context.Context, feedURL string) ([]models.Article, error) {
	feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if a, ok := convertItem(feed, item); ok {
			articles = append(articles, a)
		}
	}
	p.logger.Debug("feed parsed",
		zap.String("feed", feedURL),
		zap.Int("items", len(feed.Items)),
		zap.Int("articles", len(articles)),
	)
	return articles, nil
}

// convertItem maps a feed item to an Article. Items without a link are
// skipped.
func convertItem(feed *gofeed.Feed, item *gofeed.Item) (models.Article, bool) {
	if item.Link == "" {
		return models.Article{}, false
	}

	var published string
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed.UTC().Format(time.RFC3339)
	default:
		published = item.Published
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	a := models.Article{
		Source:      &models.ArticleSource{Name: strings.TrimSpace(feed.Title)},
		Title:       item.Title,
		Description: item.Description,
		URL:         item.Link,
		PublishedAt: published,
		Content:     content,
	}
	switch {
	case item.Author != nil:
		a.Author = item.Author.Name
	case len(item.Authors) > 0 && item.Authors[0] != nil:
		a.Author = item.Authors[0].Name
	}
	if item.Image != nil {
		a.URLToImage = item.Image.URL
	}
	return a, true
}
