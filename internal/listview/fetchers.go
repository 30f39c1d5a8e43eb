package listview

import (
	"context"

	"github.com/HerbHall/newslens/internal/apiclient"
	"github.com/HerbHall/newslens/internal/listing"
	"github.com/HerbHall/newslens/pkg/models"
)

// Compile-time interface guards.
var (
	_ Fetcher[models.Article]           = (*SliceFetcher[models.Article])(nil)
	_ Fetcher[models.QueryHistoryEntry] = (*HistoryFetcher)(nil)
)

// SliceFetcher serves pages of a local slice, filtering, sorting and
// paginating on every fetch.
type SliceFetcher[T listing.Sortable] struct {
	Items []T
	Match listing.Matcher[T] // nil disables filtering
}

func (f *SliceFetcher[T]) Fetch(ctx context.Context, req listing.RequestState) (listing.Page[T], error) {
	if err := ctx.Err(); err != nil {
		return listing.Page[T]{}, err
	}
	return listing.Apply(f.Items, req, f.Match), nil
}

// NewArticleFetcher returns a SliceFetcher over articles prepared for
// display, so "publishedAt" sorts chronologically.
func NewArticleFetcher(articles []models.Article) *SliceFetcher[models.Article] {
	items := make([]models.Article, len(articles))
	for i, a := range articles {
		items[i] = a.ForDisplay()
	}
	return &SliceFetcher[models.Article]{Items: items, Match: models.MatchArticle}
}

// HistoryFetcher loads one user's query history through the API.
type HistoryFetcher struct {
	Client *apiclient.Client
	UserID string
}

func (f *HistoryFetcher) Fetch(ctx context.Context, req listing.RequestState) (listing.Page[models.QueryHistoryEntry], error) {
	return f.Client.GetQueryHistory(ctx, f.UserID, req)
}
