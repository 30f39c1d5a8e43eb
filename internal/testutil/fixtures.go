package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/newslens/pkg/models"
)

// NewArticle returns an Article with sensible defaults.
func NewArticle(opts ...func(*models.Article)) models.Article {
	id := uuid.NewString()[:8]
	a := models.Article{
		Source:      &models.ArticleSource{Name: "Example Times"},
		Author:      "Jane Doe",
		Title:       "Article " + id,
		URL:         "https://news.example.com/" + id,
		PublishedAt: time.Date(2023, 2, 20, 10, 15, 0, 0, time.UTC).Format(time.RFC3339),
		Content:     "Body of article " + id,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// WithTitle sets the article title.
func WithTitle(title string) func(*models.Article) {
	return func(a *models.Article) { a.Title = title }
}

// WithAuthor sets the article author.
func WithAuthor(author string) func(*models.Article) {
	return func(a *models.Article) { a.Author = author }
}

// WithPublishedAt sets the article publish time.
func WithPublishedAt(t time.Time) func(*models.Article) {
	return func(a *models.Article) { a.PublishedAt = t.Format(time.RFC3339) }
}

// NewArticles returns n default articles.
func NewArticles(n int) []models.Article {
	out := make([]models.Article, n)
	for i := range out {
		out[i] = NewArticle(WithTitle(fmt.Sprintf("Article %02d", i)))
	}
	return out
}
