// Binario de desarrollo: contactos, reports y worker en un único proceso, de modo que
// BUS_DRIVER=memory funciona de extremo a extremo.
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
	reportApp "github.com/davicafu/phoneregistry/internal/report/application"
	reportEvents "github.com/davicafu/phoneregistry/internal/report/infra/inbound/events"
	reportHttp "github.com/davicafu/phoneregistry/internal/report/infra/inbound/http"
	reportSetup "github.com/davicafu/phoneregistry/internal/report/infra/setup"
	"github.com/davicafu/phoneregistry/internal/shared/infra/bootstrap"
	"github.com/davicafu/phoneregistry/internal/shared/infra/outbox"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/persistence"
	"github.com/davicafu/phoneregistry/pkg/logger"
)

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
	reportRepo, err := reportSetup.NewReportRepo(ctx, cfg, db)
	if err != nil {
		log.Fatal("failed to initialize report schema", zap.Error(err))
	}
	outboxStore := bootstrap.NewOutboxStore(cfg, db)
	txManager := persistence.NewSQLTxManager(db)
	writer := outbox.NewWriter(outboxStore)

	projection, closeProjection, err := reportSetup.OpenProjection(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open location projection", zap.Error(err))
	}
	defer closeProjection()

	sink, closeSink := reportSetup.OpenStatisticsSink(ctx, cfg, log)
	defer closeSink()

	cache, closeCache := bootstrap.NewCache(ctx, cfg, log)
	defer closeCache()

	bus, err := bootstrap.NewBus(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to the message bus", zap.Error(err))
	}
	defer bus.Close()

	// --------------- Servicios --------------
	personService := contactApp.NewPersonService(personRepo, txManager, writer, cache, cfg.CacheTTL, log)
	reportService := reportApp.NewReportService(reportRepo, txManager, writer, projection, cache, cfg.CacheTTL, log)
	processor := reportApp.NewReportProcessor(reportRepo, reportSetup.NewContactSource(cfg, log), sink, log)
	projector := reportApp.NewProjector(projection, log)

	// Un único relay: la tabla outbox es compartida y cada evento lleva su cola.
	relay, err := bootstrap.NewRelay(cfg, outboxStore, bus, log)
	if err != nil {
		log.Fatal("failed to create outbox relay", zap.Error(err))
	}

	// ---------------- HTTP ----------------
	router := bootstrap.NewRouter(log)
	contactHttp.RegisterPersonRoutes(router, contactHttp.NewPersonHandler(personService))
	reportHttp.RegisterReportRoutes(router, reportHttp.NewReportHandler(reportService))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		relay.Start(gctx)
		return nil
	})
	g.Go(func() error { return reportEvents.NewReportConsumer(processor, log).Run(gctx, bus) })
	g.Go(func() error { return reportEvents.NewContactConsumer(projector, log).Run(gctx, bus) })
	g.Go(func() error {
		return bootstrap.ServeHTTP(gctx, router, cfg.HTTPPort, cfg.ShutdownTimeout, log)
	})

	if err := g.Wait(); err != nil {
		log.Error("phoneregistry stopped with error", zap.Error(err))
		return
	}
	log.Info("👋 PhoneRegistry detenido")
}
