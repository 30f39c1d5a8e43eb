// Package history records the searches each user runs and serves them
// back as filtered, sorted pages.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/newslens/internal/auth"
	"github.com/HerbHall/newslens/internal/listing"
	"github.com/HerbHall/newslens/internal/store"
	"github.com/HerbHall/newslens/pkg/datefmt"
	"github.com/HerbHall/newslens/pkg/models"
)

// Table is the store table holding history entries.
const Table = "queryHistory"

// IDPrefix prefixes the ids of stored entries.
const IDPrefix = "query"

// Sentinel errors returned by Service.
var (
	ErrUnknown      = errors.New("unknown error")
	ErrInvalidEntry = errors.New("invalid history entry")
)

// AddRequest is the body of an add-query-history call.
type AddRequest struct {
	UserID           string           `json:"userId"`
	QueryLabel       string           `json:"queryLabel"`
	SearchedArticles []models.Article `json:"searchedArticles"`
	FormedClusters   []models.Cluster `json:"formedClusters,omitempty"`
	SimilarArticles  []models.Article `json:"similarArticles,omitempty"`
}

// AddResult is returned by AddEntry.
type AddResult struct {
	Entry models.QueryHistoryEntry `json:"entry"`
	Token string                   `json:"token"`
}

// GetRequest is the body of a get-query-history call.
type GetRequest struct {
	UserID       string               `json:"userId"`
	RequestState listing.RequestState `json:"requestState"`
}

// Service implements the history operations.
type Service struct {
	store   *store.Store
	tokens  auth.TokenIssuer
	now     func() time.Time
	dateOpt datefmt.Options
	logger  *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDateOptions sets how CreatedAt is rendered.
func WithDateOptions(opts datefmt.Options) Option {
	return func(s *Service) { s.dateOpt = opts }
}

// NewService creates a Service over st. A nil tokens issuer issues the
// static placeholder token.
func NewService(st *store.Store, tokens auth.TokenIssuer, logger *zap.Logger, opts ...Option) *Service {
	if tokens == nil {
		tokens = auth.StaticIssuer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: st, tokens: tokens, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddEntry stamps and stores a new history entry for req.UserID.
func (s *Service) AddEntry(ctx context.Context, req AddRequest) (*AddResult, error) {
	if req.UserID == "" || req.QueryLabel == "" {
		return nil, fmt.Errorf("%w: userId and queryLabel are required", ErrInvalidEntry)
	}
	searched := req.SearchedArticles
	if searched == nil {
		searched = []models.Article{}
	}

	entry, err := store.Insert(s.store, Table, models.QueryHistoryEntry{
		UserID:           req.UserID,
		QueryLabel:       req.QueryLabel,
		SearchedArticles: searched,
		FormedClusters:   req.FormedClusters,
		SimilarArticles:  req.SimilarArticles,
		CreatedAt:        datefmt.Format(s.now(), s.dateOpt),
	})
	if err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}

	token, err := s.tokens.Issue(models.Profile{ID: req.UserID})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Debug("history entry added",
		zap.String("entry_id", entry.ID),
		zap.String("user_id", entry.UserID),
		zap.Int("articles", entry.ArticlesCount()),
	)
	return &AddResult{Entry: entry, Token: token}, nil
}

// GetHistory returns one page of userID's entries. The query filters on
// the entry label and Total counts the filtered entries, which is every
// entry of the user when no query is set. Entries of other users are
// never visible.
func (s *Service) GetHistory(ctx context.Context, userID string, req listing.RequestState) (listing.Page[models.QueryHistoryEntry], error) {
	entries, err := store.FindAll(s.store, Table, func(e models.QueryHistoryEntry) bool {
		return e.UserID == userID
	})
	if err != nil {
		s.logger.Error("history lookup failed", zap.String("user_id", userID), zap.Error(err))
		return listing.Page[models.QueryHistoryEntry]{}, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	return listing.Apply(entries, req, models.MatchEntry), nil
}
