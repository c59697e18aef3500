package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davicafu/phoneregistry/internal/config"
	contactApp "github.com/davicafu/phoneregistry/internal/contact/application"
	contactHttp "github.com/davicafu/phoneregistry/internal/contact/infra/inbound/http"
	contactSetup "github.com/davicafu/phoneregistry/internal/contact/infra/setup"
	"github.com/davicafu/phoneregistry/internal/shared/infra/bootstrap"
	"github.com/davicafu/phoneregistry/internal/shared/infra/outbox"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
	"github.com/davicafu/phoneregistry/pkg/logger"
)

// ---------------- Main ----------------
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger.Init(cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- DB ----------------
	db, err := bootstrap.OpenDB(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	personRepo, err := contactSetup.NewPersonRepo(ctx, cfg, db)
	if err != nil {
		log.Fatal("failed to initialize person schema", zap.Error(err))
	}
	outboxStore := bootstrap.NewOutboxStore(cfg, db)

	// ---------------- Cache ----------------
	cache, closeCache := bootstrap.NewCache(ctx, cfg, log)
	defer closeCache()

	// ---------------- Bus ----------------
	bus, err := bootstrap.NewBus(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to the message bus", zap.Error(err))
	}
	defer bus.Close()

	// --------------- Servicio --------------
	personService := contactApp.NewPersonService(
		personRepo,
		persistence.NewSQLTxManager(db),
		outbox.NewWriter(outboxStore),
		cache,
		cfg.CacheTTL,
		log,
	)

	relay, err := bootstrap.NewRelay(cfg, outboxStore, bus, log)
	if err != nil {
		log.Fatal("failed to create outbox relay", zap.Error(err))
	}

	// ---------------- HTTP ----------------
	router := bootstrap.NewRouter(log)
	contactHttp.RegisterPersonRoutes(router, contactHttp.NewPersonHandler(personService))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		relay.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return bootstrap.ServeHTTP(gctx, router, cfg.HTTPPort, cfg.ShutdownTimeout, log)
	})

	if err := g.Wait(); err != nil {
		log.Error("contact api stopped with error", zap.Error(err))
		return
	}
	log.Info("👋 Contact API detenida")
}
