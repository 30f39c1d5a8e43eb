package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/newslens/internal/auth"
	"github.com/HerbHall/newslens/internal/config"
	"github.com/HerbHall/newslens/internal/event"
	"github.com/HerbHall/newslens/internal/history"
	"github.com/HerbHall/newslens/internal/mockapi"
	"github.com/HerbHall/newslens/internal/seed"
	"github.com/HerbHall/newslens/internal/store"
	"github.com/HerbHall/newslens/pkg/datefmt"
)

// app holds the services shared by the serve and search commands.
type app struct {
	blobs   store.BlobStore
	store   *store.Store
	auth    *auth.Service
	history *history.Service
	router  *mockapi.Router
	events  *event.Bus
	close   func() error
}

// openBlobs opens the blob store selected by store.driver.
func openBlobs(ctx context.Context, cfg *config.Config) (store.BlobStore, func() error, error) {
	switch driver := cfg.GetString("store.driver"); driver {
	case "sqlite":
		b, err := store.NewSQLiteBlobStore(ctx, cfg.GetString("store.path"))
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case "memory":
		return store.NewMemoryBlobStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func tokenIssuer(cfg *config.Config) (auth.TokenIssuer, error) {
	switch mode := cfg.GetString("auth.token_mode"); mode {
	case "static", "":
		return auth.StaticIssuer{}, nil
	case "jwt":
		return auth.NewJWTIssuer(cfg.GetString("auth.jwt_secret"), cfg.GetDuration("auth.jwt_ttl"))
	default:
		return nil, fmt.Errorf("unknown token mode %q", mode)
	}
}

// newApp opens the store and wires the auth and history services behind
// the API router.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	cost := cfg.GetInt("auth.bcrypt_cost")
	initial, err := seed.Load(cost)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}

	blobs, closeBlobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	st, err := store.Open(ctx, blobs, initial, logger.Named("store"),
		store.WithIDPrefix(history.Table, history.IDPrefix))
	if err != nil {
		closeBlobs()
		return nil, fmt.Errorf("open store: %w", err)
	}

	tokens, err := tokenIssuer(cfg)
	if err != nil {
		closeBlobs()
		return nil, err
	}

	authSvc := auth.NewService(st, tokens, logger.Named("auth"), auth.WithBcryptCost(cost))
	historySvc := history.NewService(st, tokens, logger.Named("history"),
		history.WithDateOptions(datefmt.Options{
			YearFirst: cfg.GetBool("history.year_first"),
			OmitTime:  !cfg.GetBool("history.with_time"),
		}))

	bus := event.NewBus(logger.Named("events"))
	bus.SubscribeAll(auditLogger(logger.Named("audit")))

	router, err := mockapi.NewRouter(cfg.GetString("api.base_url"), st, authSvc, historySvc, logger.Named("api"),
		mockapi.WithEvents(bus))
	if err != nil {
		closeBlobs()
		return nil, fmt.Errorf("create api router: %w", err)
	}

	return &app{
		blobs:   blobs,
		store:   st,
		auth:    authSvc,
		history: historySvc,
		router:  router,
		events:  bus,
		close:   closeBlobs,
	}, nil
}

// auditLogger logs every persisted write.
func auditLogger(logger *zap.Logger) event.Handler {
	return func(_ context.Context, e event.Event) {
		fields := []zap.Field{zap.String("topic", e.Topic), zap.Time("at", e.Timestamp)}
		switch p := e.Payload.(type) {
		case *auth.Session:
			fields = append(fields, zap.String("user_id", p.User.ID))
		case *history.AddResult:
			fields = append(fields,
				zap.String("user_id", p.Entry.UserID),
				zap.String("entry_id", p.Entry.ID),
			)
		}
		logger.Info("store updated", fields...)
	}
}
