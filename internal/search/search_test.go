package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HerbHall/newslens/internal/history"
	"github.com/HerbHall/newslens/internal/testutil"
	"github.com/HerbHall/newslens/pkg/models"
)

type fakeProvider struct {
	calls    atomic.Int32
	articles []models.Article
	err      error
	gate     chan struct{}
}

func (f *fakeProvider) Search(ctx context.Context, q string) ([]models.Article, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.articles, f.err
}

type fakeClusterer struct {
	clusterErr error
	similar    []models.Article
}

func (f *fakeClusterer) TrainGetClusters(_ context.Context, articles []models.Article) ([]models.Cluster, error) {
	if f.clusterErr != nil {
		return nil, f.clusterErr
	}
	return []models.Cluster{{ID: "0", Articles: articles}}, nil
}

func (f *fakeClusterer) GetSimilarNews(context.Context, models.Article) ([]models.Article, error) {
	return f.similar, nil
}

type fakeRecorder struct {
	mu   sync.Mutex
	reqs []history.AddRequest
}

func (f *fakeRecorder) AddQueryHistory(_ context.Context, req history.AddRequest) (*history.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return &history.AddResult{Entry: models.QueryHistoryEntry{ID: "query_x", UserID: req.UserID, QueryLabel: req.QueryLabel}}, nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"climate summit", KindTerm},
		{"https://news.example.com/feed.xml", KindURL},
		{"http://news.example.com", KindURL},
		{"ftp://files.example.com", KindTerm},
		{"news.example.com", KindTerm},
	}
	for _, tt := range tests {
		if got := Classify(tt.in); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRun_Term(t *testing.T) {
	terms := &fakeProvider{articles: testutil.NewArticles(3)}
	rec := &fakeRecorder{}
	svc := NewService(terms, nil, &fakeClusterer{}, rec, Config{}, testutil.Logger())

	res, err := svc.Run(context.Background(), "u1", "  climate  ")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != KindTerm || res.Query != "climate" {
		t.Errorf("Kind, Query = %s, %q", res.Kind, res.Query)
	}
	if len(res.Clusters) != 1 || len(res.Clusters[0].Articles) != 3 {
		t.Errorf("clusters = %+v, want one cluster of 3", res.Clusters)
	}
	if len(rec.reqs) != 1 {
		t.Fatalf("recorded %d searches, want 1", len(rec.reqs))
	}
	if got := rec.reqs[0]; got.UserID != "u1" || got.QueryLabel != "climate" || len(got.SearchedArticles) != 3 {
		t.Errorf("recorded %+v", got)
	}
}

func TestRun_URLUsesFeedsAndSimilar(t *testing.T) {
	terms := &fakeProvider{articles: testutil.NewArticles(1)}
	feeds := &fakeProvider{articles: testutil.NewArticles(2)}
	similar := testutil.NewArticles(4)
	svc := NewService(terms, feeds, &fakeClusterer{similar: similar}, &fakeRecorder{}, Config{}, nil)

	res, err := svc.Run(context.Background(), "u1", "https://news.example.com/feed.xml")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if terms.calls.Load() != 0 || feeds.calls.Load() != 1 {
		t.Errorf("terms calls = %d, feeds calls = %d; want 0, 1", terms.calls.Load(), feeds.calls.Load())
	}
	if len(res.Articles) != 2 || len(res.Similar) != 4 {
		t.Errorf("articles = %d, similar = %d; want 2, 4", len(res.Articles), len(res.Similar))
	}
}

func TestRun_Errors(t *testing.T) {
	rec := &fakeRecorder{}

	svc := NewService(&fakeProvider{}, nil, nil, rec, Config{}, nil)
	if _, err := svc.Run(context.Background(), "u1", "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("empty query error = %v, want ErrEmptyQuery", err)
	}
	if _, err := svc.Run(context.Background(), "u1", "nothing"); !errors.Is(err, ErrNoArticles) {
		t.Errorf("no articles error = %v, want ErrNoArticles", err)
	}

	boom := errors.New("upstream down")
	svc = NewService(&fakeProvider{err: boom}, nil, nil, rec, Config{}, nil)
	if _, err := svc.Run(context.Background(), "u1", "x"); !errors.Is(err, boom) {
		t.Errorf("provider error = %v, want %v", err, boom)
	}
	if len(rec.reqs) != 0 {
		t.Errorf("recorded %d failed searches, want 0", len(rec.reqs))
	}
}

func TestRun_ClusteringFailureStillRecords(t *testing.T) {
	rec := &fakeRecorder{}
	cl := &fakeClusterer{clusterErr: errors.New("not fitted")}
	svc := NewService(&fakeProvider{articles: testutil.NewArticles(2)}, nil, cl, rec, Config{}, nil)

	res, err := svc.Run(context.Background(), "u1", "markets")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Clusters != nil {
		t.Errorf("Clusters = %+v, want nil", res.Clusters)
	}
	if len(rec.reqs) != 1 {
		t.Errorf("recorded %d, want 1", len(rec.reqs))
	}
}

func TestRun_Cache(t *testing.T) {
	terms := &fakeProvider{articles: testutil.NewArticles(2)}
	rec := &fakeRecorder{}
	svc := NewService(terms, nil, nil, rec, Config{CacheSize: 8, CacheTTL: time.Minute}, nil)

	first, err := svc.Run(context.Background(), "u1", "markets")
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := svc.Run(context.Background(), "u2", "markets")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.Cached || !second.Cached {
		t.Errorf("Cached = %v, %v; want false, true", first.Cached, second.Cached)
	}
	if terms.calls.Load() != 1 {
		t.Errorf("provider calls = %d, want 1", terms.calls.Load())
	}
	if len(rec.reqs) != 2 {
		t.Errorf("recorded %d searches, want 2 (every run is recorded)", len(rec.reqs))
	}
}

func TestRun_ConcurrentIdenticalSearchesShareCalls(t *testing.T) {
	terms := &fakeProvider{articles: testutil.NewArticles(1), gate: make(chan struct{})}
	rec := &fakeRecorder{}
	svc := NewService(terms, nil, nil, rec, Config{}, nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Run(context.Background(), "u1", "elections"); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	for terms.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(terms.gate)
	wg.Wait()

	if got := terms.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
	if len(rec.reqs) != 5 {
		t.Errorf("recorded %d, want 5", len(rec.reqs))
	}
}
