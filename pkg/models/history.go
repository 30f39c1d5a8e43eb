package models

import (
	"strings"

	"github.com/HerbHall/newslens/pkg/datefmt"
)

// QueryHistoryEntry records one search a user ran and what it produced.
// Entries are immutable once stored.
type QueryHistoryEntry struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	QueryLabel       string    `json:"queryLabel"` // search term or URL
	SearchedArticles []Article `json:"searchedArticles"`
	FormedClusters   []Cluster `json:"formedClusters,omitempty"`
	SimilarArticles  []Article `json:"similarArticles,omitempty"`
	CreatedAt        string    `json:"createdAt"`
}

// ArticlesCount is the number of articles the search returned.
func (e QueryHistoryEntry) ArticlesCount() int {
	return len(e.SearchedArticles)
}

// SortValue implements listing.Sortable. "url" and "date" are accepted
// as aliases used by the history table columns.
func (e QueryHistoryEntry) SortValue(field string) any {
	switch field {
	case "id":
		return e.ID
	case "queryLabel", "url":
		return e.QueryLabel
	case "createdAt", "date":
		if t, ok := datefmt.Parse(e.CreatedAt); ok {
			return t
		}
		return e.CreatedAt
	case "articlesCount":
		return e.ArticlesCount()
	case "clustersCount":
		return len(e.FormedClusters)
	default:
		return nil
	}
}

// MatchEntry reports whether query appears in the entry's label,
// ignoring case.
func MatchEntry(e QueryHistoryEntry, query string) bool {
	return strings.Contains(strings.ToLower(e.QueryLabel), strings.ToLower(query))
}
