package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davicafu/phoneregistry/internal/config"
	reportApp "github.com/davicafu/phoneregistry/internal/report/application"
	reportEvents "github.com/davicafu/phoneregistry/internal/report/infra/inbound/events"
	reportSetup "github.com/davicafu/phoneregistry/internal/report/infra/setup"
	"github.com/davicafu/phoneregistry/internal/shared/infra/bootstrap"
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

	reportRepo, err := reportSetup.NewReportRepo(ctx, cfg, db)
	if err != nil {
		log.Fatal("failed to initialize report schema", zap.Error(err))
	}

	projection, closeProjection, err := reportSetup.OpenProjection(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open location projection", zap.Error(err))
	}
	defer closeProjection()

	sink, closeSink := reportSetup.OpenStatisticsSink(ctx, cfg, log)
	defer closeSink()

	// ---------------- Bus ----------------
	bus, err := bootstrap.NewBus(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to the message bus", zap.Error(err))
	}
	defer bus.Close()

	// --------------- Consumidores --------------
	processor := reportApp.NewReportProcessor(reportRepo, reportSetup.NewContactSource(cfg, log), sink, log)
	projector := reportApp.NewProjector(projection, log)

	reportConsumer := reportEvents.NewReportConsumer(processor, log)
	contactConsumer := reportEvents.NewContactConsumer(projector, log)

	// Subscribe vuelve cuando ctx se cancela y el mensaje en curso ha terminado;
	// los defers cierran después bus y bases de datos.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reportConsumer.Run(gctx, bus) })
	g.Go(func() error { return contactConsumer.Run(gctx, bus) })

	log.Info("👷 Worker escuchando eventos")
	if err := g.Wait(); err != nil {
		log.Error("worker stopped with error", zap.Error(err))
		return
	}
	log.Info("👋 Worker detenido")
}
