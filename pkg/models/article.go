package models

import (
	"strings"

	"github.com/HerbHall/newslens/pkg/datefmt"
)

// ArticleSource names the outlet an article came from.
type ArticleSource struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Article is a news article returned by a search provider or the
// clustering service. The store treats it as opaque beyond sorting and
// paging.
type Article struct {
	Source      *ArticleSource `json:"source,omitempty"`
	Author      string         `json:"author"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url"`
	URLToImage  string         `json:"urlToImage,omitempty"`
	PublishedAt string         `json:"publishedAt"`
	Content     string         `json:"content,omitempty"`

	// SortableDate is the publish time in epoch milliseconds, derived for
	// ordering only. Zero when PublishedAt could not be parsed.
	SortableDate int64 `json:"-"`
}

// ForDisplay returns a copy of a with SortableDate derived from
// PublishedAt and PublishedAt rewritten as a display string. Articles
// with an unparseable timestamp keep their original text.
func (a Article) ForDisplay() Article {
	t, ok := datefmt.ParsePublished(a.PublishedAt)
	if !ok {
		return a
	}
	a.SortableDate = t.UnixMilli()
	a.PublishedAt = datefmt.Format(t.Local(), datefmt.Options{})
	return a
}

// SortValue implements listing.Sortable. Dates sort as epoch
// milliseconds; an unparseable date stays text, which orders after
// every parsed date.
func (a Article) SortValue(field string) any {
	switch field {
	case "url":
		return a.URL
	case "author":
		return a.Author
	case "title":
		return a.Title
	case "source":
		if a.Source == nil {
			return ""
		}
		return a.Source.Name
	case "publishedAt", "sortableDate":
		if a.SortableDate != 0 {
			return a.SortableDate
		}
		return a.PublishedAt
	default:
		return nil
	}
}

// MatchArticle reports whether query appears in the article's title,
// author or URL, ignoring case.
func MatchArticle(a Article, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(a.Title), q) ||
		strings.Contains(strings.ToLower(a.Author), q) ||
		strings.Contains(strings.ToLower(a.URL), q)
}

// Cluster groups the articles the clustering service placed together.
type Cluster struct {
	ID       string    `json:"id"`
	Articles []Article `json:"articles"`
}
