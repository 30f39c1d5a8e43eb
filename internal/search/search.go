// Package search runs a user's query end to end: it fetches candidate
// articles, asks the clustering service to group them, and records the
// outcome in the user's query history.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/HerbHall/newslens/internal/history"
	"github.com/HerbHall/newslens/pkg/models"
)

// Sentinel errors returned by Run.
var (
	ErrEmptyQuery = errors.New("search query is empty")
	ErrNoArticles = errors.New("search returned no articles")
)

// Provider returns candidate articles for a query.
type Provider interface {
	Search(ctx context.Context, query string) ([]models.Article, error)
}

// Clusterer groups articles and finds similar ones.
type Clusterer interface {
	TrainGetClusters(ctx context.Context, articles []models.Article) ([]models.Cluster, error)
	GetSimilarNews(ctx context.Context, a models.Article) ([]models.Article, error)
}

// Recorder stores a finished search in the query history.
type Recorder interface {
	AddQueryHistory(ctx context.Context, req history.AddRequest) (*history.AddResult, error)
}

// Kind tells term searches from URL searches.
type Kind string

const (
	KindTerm Kind = "term"
	KindURL  Kind = "url"
)

// Result is the outcome of one search.
type Result struct {
	Kind     Kind
	Query    string
	Articles []models.Article
	Clusters []models.Cluster
	Similar  []models.Article
	Entry    models.QueryHistoryEntry
	Cached   bool
}

// outcome is the cacheable part of a Result.
type outcome struct {
	articles []models.Article
	clusters []models.Cluster
	similar  []models.Article
}

// Config configures a Service.
type Config struct {
	CacheSize int           // entries; caching is off when zero
	CacheTTL  time.Duration // 10 minutes when zero
}

// Service runs searches.
type Service struct {
	terms     Provider
	feeds     Provider // nil sends URL queries to terms
	clusterer Clusterer
	recorder  Recorder

	cache  *expirable.LRU[string, outcome]
	group  singleflight.Group
	logger *zap.Logger
}

// NewService returns a Service. feeds may be nil.
func NewService(terms, feeds Provider, clusterer Clusterer, recorder Recorder, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		terms:     terms,
		feeds:     feeds,
		clusterer: clusterer,
		recorder:  recorder,
		logger:    logger,
	}
	if cfg.CacheSize > 0 {
		if cfg.CacheTTL <= 0 {
			cfg.CacheTTL = 10 * time.Minute
		}
		s.cache = expirable.NewLRU[string, outcome](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

// Classify reports whether input is a URL query or a term query.
func Classify(input string) Kind {
	u, err := url.Parse(input)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return KindURL
	}
	return KindTerm
}

// Run searches for input on behalf of userID and records the result.
// Identical concurrent searches share one set of upstream calls.
func (s *Service) Run(ctx context.Context, userID, input string) (*Result, error) {
	q := strings.TrimSpace(input)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	kind := Classify(q)
	key := string(kind) + "\x00" + q

	out, cached := s.cached(key)
	if !cached {
		v, err, shared := s.group.Do(key, func() (any, error) {
			o, err := s.compute(ctx, kind, q)
			if err != nil {
				return nil, err
			}
			if s.cache != nil {
				s.cache.Add(key, o)
			}
			return o, nil
		})
		if err != nil {
			return nil, err
		}
		out = v.(outcome)
		if shared {
			s.logger.Debug("search shared with concurrent caller", zap.String("query", q))
		}
	}

	rec, err := s.recorder.AddQueryHistory(ctx, history.AddRequest{
		UserID:           userID,
		QueryLabel:       q,
		SearchedArticles: out.articles,
		FormedClusters:   out.clusters,
		SimilarArticles:  out.similar,
	})
	if err != nil {
		return nil, fmt.Errorf("record search: %w", err)
	}

	s.logger.Info("search recorded",
		zap.String("kind", string(kind)),
		zap.String("entry_id", rec.Entry.ID),
		zap.Int("articles", len(out.articles)),
		zap.Int("clusters", len(out.clusters)),
		zap.Bool("cached", cached),
	)
	return &Result{
		Kind:     kind,
		Query:    q,
		Articles: out.articles,
		Clusters: out.clusters,
		Similar:  out.similar,
		Entry:    rec.Entry,
		Cached:   cached,
	}, nil
}

func (s *Service) cached(key string) (outcome, bool) {
	if s.cache == nil {
		return outcome{}, false
	}
	return s.cache.Get(key)
}

// compute performs the upstream calls. Clustering and similarity
// failures are logged and leave those parts empty; a search that finds
// articles is still recorded.
func (s *Service) compute(ctx context.Context, kind Kind, q string) (outcome, error) {
	provider := s.terms
	if kind == KindURL && s.feeds != nil {
		provider = s.feeds
	}

	articles, err := provider.Search(ctx, q)
	if err != nil {
		return outcome{}, fmt.Errorf("search articles: %w", err)
	}
	if len(articles) == 0 {
		return outcome{}, ErrNoArticles
	}
	out := outcome{articles: articles}

	if s.clusterer == nil {
		return out, nil
	}
	clusters, err := s.clusterer.TrainGetClusters(ctx, articles)
	if err != nil {
		s.logger.Warn("clustering failed", zap.String("query", q), zap.Error(err))
	} else {
		out.clusters = clusters
	}

	if kind == KindURL {
		similar, err := s.clusterer.GetSimilarNews(ctx, models.Article{URL: q})
		if err != nil {
			s.logger.Warn("similar news lookup failed", zap.String("url", q), zap.Error(err))
		} else {
			out.similar = similar
		}
	}
	return out, nil
}
