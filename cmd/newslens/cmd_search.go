package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/newslens/internal/apiclient"
	"github.com/HerbHall/newslens/internal/clustering"
	"github.com/HerbHall/newslens/internal/config"
	"github.com/HerbHall/newslens/internal/feedsearch"
	"github.com/HerbHall/newslens/internal/newsapi"
	"github.com/HerbHall/newslens/internal/search"
)

// runSearch signs in, runs one search and records it in the user's
// history through the in-process API.
func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configFile := fs.String("config", "", "path to configuration file")
	login := fs.String("login", "admin", "login name")
	secret := fs.String("secret", "", "credential secret")
	timeout := fs.Duration("timeout", 2*time.Minute, "overall timeout")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(os.Stderr, "usage: newslens search [flags] <terms or feed URL>")
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.close()

	api := apiclient.New(a.router.BaseURL(), apiclient.WithTransport(a.router))
	sess, err := api.SignIn(ctx, *login, *secret)
	if err != nil {
		logger.Fatal("sign-in failed", zap.Error(err))
	}

	na := cfg.Sub("newsapi")
	terms, err := newsapi.New(newsapi.Config{
		BaseURL:       na.GetString("base_url"),
		APIKey:        na.GetString("api_key"),
		From:          na.GetString("from"),
		RatePerSecond: na.GetFloat64("rate_per_second"),
	}, nil, logger.Named("newsapi"))
	if err != nil {
		logger.Fatal("failed to create news client", zap.Error(err))
	}

	svc := search.NewService(
		terms,
		feedsearch.New(nil, logger.Named("feeds")),
		clustering.New(cfg.GetString("clustering.base_url"), nil, logger.Named("clustering")),
		api,
		search.Config{
			CacheSize: cfg.GetInt("search.cache_size"),
			CacheTTL:  cfg.GetDuration("search.cache_ttl"),
		},
		logger.Named("search"),
	)

	res, err := svc.Run(ctx, sess.User.ID, query)
	if err != nil {
		logger.Fatal("search failed", zap.Error(err))
	}

	fmt.Printf("Recorded %s (%s search, %s)\n", res.Entry.ID, res.Kind, res.Entry.CreatedAt)
	fmt.Printf("  articles: %d\n", len(res.Articles))
	for _, c := range res.Clusters {
		fmt.Printf("  cluster %s: %d articles\n", c.ID, len(c.Articles))
	}
	if len(res.Similar) > 0 {
		fmt.Printf("  similar: %d\n", len(res.Similar))
	}
}
