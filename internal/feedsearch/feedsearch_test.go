package feedsearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example News</title>
  <link>https://news.example.com</link>
  <item>
    <title>First story</title>
    <link>https://news.example.com/first</link>
    <description>&lt;p&gt;Summary one&lt;/p&gt;</description>
    <author>jane@example.com (Jane Doe)</author>
    <pubDate>Tue, 14 Feb 2023 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>No link, skipped</title>
  </item>
  <item>
    <title>Second story</title>
    <link>https://news.example.com/second</link>
  </item>
</channel>
</rss>`

func TestSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssDoc))
	}))
	defer ts.Close()

	p := New(ts.Client(), nil)
	articles, err := p.Search(context.Background(), ts.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("len(articles) = %d, want 2", len(articles))
	}

	first := articles[0]
	if first.URL != "https://news.example.com/first" {
		t.Errorf("URL = %q", first.URL)
	}
	if first.PublishedAt != "2023-02-14T10:00:00Z" {
		t.Errorf("PublishedAt = %q, want 2023-02-14T10:00:00Z", first.PublishedAt)
	}
	if first.Source == nil || first.Source.Name != "Example News" {
		t.Errorf("Source = %+v, want Example News", first.Source)
	}
	if first.Author != "Jane Doe" {
		t.Errorf("Author = %q, want Jane Doe", first.Author)
	}
	if first.Content == "" {
		t.Error("Content is empty, want description fallback")
	}
}

func TestSearch_BadFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer ts.Close()

	if _, err := New(ts.Client(), nil).Search(context.Background(), ts.URL); err == nil {
		t.Error("Search error = nil, want parse error")
	}
}
