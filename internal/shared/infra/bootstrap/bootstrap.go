// Package bootstrap reúne el cableado común de los binarios: base de datos, outbox,
// bus, caché, relay y servidor HTTP, elegidos según la configuración.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/davicafu/phoneregistry/internal/config"
	sharedDomain "github.com/davicafu/phoneregistry/internal/shared/domain"
	infraEvents "github.com/davicafu/phoneregistry/internal/shared/infra/events"
	sharedBus "github.com/davicafu/phoneregistry/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/phoneregistry/internal/shared/infra/platform/cache"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/db/postgres"
	"github.com/davicafu/phoneregistry/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/phoneregistry/internal/shared/infra/relayer"
)

// ---------------- DB ----------------

// OpenDB abre la base transaccional indicada por DB_DRIVER y crea la tabla outbox.
func OpenDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err = sql.Open("pgx", cfg.PostgresDSN)
	default:
		db, err = OpenSQLite(cfg.SQLitePath)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.DBDriver, err)
	}

	initOutbox := sqlite.InitOutboxSchema
	if cfg.DBDriver == config.DriverPostgres {
		initOutbox = postgres.InitOutboxSchema
	}
	if err := initOutbox(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite abre un fichero SQLite compartible entre procesos (WAL + busy timeout).
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	return sql.Open("sqlite", dsn)
}

// NewOutboxStore devuelve el repositorio outbox del mismo driver que db.
func NewOutboxStore(cfg *config.Config, db *sql.DB) sharedDomain.OutboxRepository {
	if cfg.DBDriver == config.DriverPostgres {
		return postgres.NewOutboxRepoPostgres(db)
	}
	return sqlite.NewOutboxRepoSQLite(db)
}

// ---------------- Bus ----------------

// Bus es lo que necesitan los binarios de cualquier broker.
type Bus interface {
	sharedBus.Publisher
	sharedBus.Subscriber
	Close() error
}

// NewBus construye el adaptador de BUS_DRIVER. El bus en memoria sólo sirve dentro de un proceso.
func NewBus(cfg *config.Config, log *zap.Logger) (Bus, error) {
	switch cfg.BusDriver {
	case config.BusKafka:
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.KafkaBrokers))
		return infraEvents.NewKafkaBus(cfg.KafkaBrokers, cfg.KafkaGroupID, log), nil
	case config.BusMemory:
		log.Info("⚡️ Usando bus de eventos en memoria (canales de Go)")
		return infraEvents.NewInMemoryBus(256, log), nil
	default:
		log.Info("🐇 Usando RabbitMQ como bus de eventos")
		bus, err := infraEvents.NewRabbitMQBus(cfg.RabbitMQURL, cfg.RabbitMQPrefetch, log)
		if err != nil {
			return nil, err
		}
		return bus, nil
	}
}

// ---------------- Cache ----------------

// NewCache intenta Redis y cae a la caché en memoria si no responde. El cierre libera
// lo que se haya abierto.
func NewCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (sharedCache.Cache, func()) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	redisCache := sharedCache.NewRedisCache(rdb, cfg.CacheTTL)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisCache.Ping(pingCtx); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		_ = rdb.Close()
		memory := sharedCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
		return memory, func() { _ = memory.Close() }
	}

	log.Info("✅ Redis conectado, cache habilitado", zap.String("addr", cfg.RedisAddr))
	return redisCache, func() { _ = rdb.Close() }
}

// ---------------- Outbox relay ----------------

func NewRelay(cfg *config.Config, store sharedDomain.OutboxRepository, pub sharedBus.Publisher, log *zap.Logger) (*relayer.Worker, error) {
	metrics, err := relayer.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("outbox metrics: %w", err)
	}
	return relayer.NewOutboxWorker(store, pub, relayer.Config{
		Interval:     cfg.OutboxInterval,
		BatchSize:    cfg.OutboxBatchSize,
		ErrorBackoff: cfg.OutboxErrorBackoff,
		ClaimTimeout: cfg.OutboxClaimTimeout,
		Retention:    cfg.OutboxRetention,
	}, metrics, log), nil
}

// ---------------- HTTP ----------------

// NewRouter crea el engine gin con recovery, log de peticiones y /health.
func NewRouter(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// ServeHTTP sirve handler hasta que ctx se cancela y después apaga con timeout.
func ServeHTTP(ctx context.Context, handler http.Handler, port string, shutdownTimeout time.Duration, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	log.Info("🛑 Apagando servidor HTTP")
	return srv.Shutdown(shutdownCtx)
}
