package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/midfield-app/clover/config"
	"github.com/midfield-app/clover/internal/repositories/matchlog"
	"github.com/midfield-app/clover/internal/repositories/topic"
	"github.com/midfield-app/clover/pkg/candidates"
	"github.com/midfield-app/clover/pkg/database"
	"github.com/midfield-app/clover/pkg/events"
	"github.com/midfield-app/clover/pkg/kafka"
	"github.com/midfield-app/clover/pkg/matching"
	"github.com/midfield-app/clover/pkg/merging"
	clovermw "github.com/midfield-app/clover/pkg/middleware"
	"github.com/midfield-app/clover/pkg/processor"
	"github.com/midfield-app/clover/pkg/routes/health"
	"github.com/midfield-app/clover/pkg/routes/sync"
	"github.com/midfield-app/clover/pkg/startup"
	"github.com/midfield-app/clover/pkg/tracing"
	"github.com/midfield-app/clover/pkg/tracing/exporters"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger := newLogger(cfg)

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(&exporters.ConsoleExporter{}))
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db       *sqlx.DB
		producer *kafka.Producer
		consumer *kafka.Consumer
		server   *echo.Echo
		checker  *health.Checker
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	boot.AddDependency(&dependency{
		name: "postgres",
		start: func(ctx context.Context) error {
			conn, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, postgresDSN(cfg))
			if err != nil {
				return err
			}
			conn.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			conn.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			conn.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
			db = conn

			driver, err := migratepg.WithInstance(conn.DB, &migratepg.Config{})
			if err != nil {
				return err
			}
			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return migrations.Migrate(cfg.DatabaseName, driver)
		},
		stop: func(ctx context.Context) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
	})

	boot.AddDependency(&dependency{
		name:      "pipeline",
		dependsOn: []string{"postgres"},
		start: func(ctx context.Context) error {
			dbi := database.NewDatabaseInstance(db, logger)
			topicRepo := topic.NewRepository(dbi, logger)
			matchLogRepo := matchlog.NewRepository(dbi, logger, cfg.ReviewConfidenceCeiling)

			producer = kafka.NewProducer(kafka.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaOutputTopic,
				BatchSize:    cfg.KafkaBatchSize,
				BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
				RequiredAcks: cfg.KafkaRequiredAcks,
				Compression:  cfg.KafkaCompression,
			}, logger)
			emitter := events.NewEmitter(producer, logger, cfg.SourceTag)

			engine := matching.NewEngine(logger, topicRepo, matching.EngineConfig{
				SourceTag:                cfg.SourceTag,
				FuzzyThreshold:           cfg.FuzzyMatchThreshold,
				ExactConfidence:          cfg.ExactMatchConfidence,
				GlobalFallbackConfidence: cfg.GlobalFallbackConfidence,
				GlobalFallbackMinOverall: cfg.GlobalFallbackMinOverall,
			})

			proc := processor.NewProcessor(
				logger,
				candidates.NewBuilder(logger, topicRepo),
				engine,
				merging.NewEngine(logger, topicRepo, cfg.SourceTag),
				matchLogRepo,
				topicRepo,
				emitter,
				processor.Config{
					SourceTag:      cfg.SourceTag,
					WorkerCount:    cfg.MatchWorkerCount,
					HealingEnabled: cfg.HealingEnabled,
				},
			)

			container, err := ectoinject.NewDIDefaultContainer()
			if err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[config.Config](container, cfg); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*processor.Processor](container, proc); err != nil {
				return err
			}
			if err := ectoinject.RegisterInstance[*matchlog.Repository](container, matchLogRepo); err != nil {
				return err
			}
			if _, err := ectoinject.SetActiveContainer(ctx, container.GetContainerID()); err != nil {
				return err
			}

			if cfg.KafkaConsumerEnabled {
				consumer = kafka.NewConsumer(cfg, logger, proc.HandleMessage)
				return consumer.Start(ctx)
			}
			return nil
		},
		stop: func(ctx context.Context) error {
			if consumer != nil {
				if err := consumer.Stop(); err != nil {
					logger.WithError(err).Error("Failed to stop Kafka consumer")
				}
			}
			if producer != nil {
				return producer.Close()
			}
			return nil
		},
	})

	boot.AddDependency(&dependency{
		name:      "http",
		dependsOn: []string{"pipeline"},
		start: func(ctx context.Context) error {
			server = echo.New()
			server.HideBanner = true
			server.HidePort = true
			server.HTTPErrorHandler = clovermw.Error(logger)
			server.Use(otelecho.Middleware(cfg.AppName))
			server.Use(clovermw.Context())
			server.Use(clovermw.Logger(logger))
			server.Use(echomw.CORSWithConfig(echomw.CORSConfig{
				AllowOrigins: cfg.AllowOrigins,
				AllowMethods: cfg.AllowMethods,
			}))

			sync.Register(server.Group("/api/v1/sync"))

			var consumerHealth health.ConsumerHealth
			if consumer != nil {
				consumerHealth = consumer
			}
			checker = health.NewChecker(db, consumerHealth, version)
			checker.RegisterRoutes(server)

			httpServer := &http.Server{
				Addr:           fmt.Sprintf(":%d", cfg.Port),
				ReadTimeout:    time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
				WriteTimeout:   time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
				IdleTimeout:    time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
				MaxHeaderBytes: cfg.MaxHeaderBytes,
			}

			go func() {
				logger.WithField("port", cfg.Port).Info("Starting HTTP server")
				if err := server.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("HTTP server stopped unexpectedly")
				}
			}()
			return nil
		},
		stop: func(ctx context.Context) error {
			if server != nil {
				return server.Shutdown(ctx)
			}
			return nil
		},
	})

	if err := boot.Start(ctx); err != nil {
		return err
	}
	checker.SetReady(true)
	logger.WithField("version", version).Info("Service started")

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return boot.Stop(shutdownCtx)
}

// dependency adapts closures to the startup.Dependency interface
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string { return d.name }

func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	return d.start(ctx)
}

func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func newLogger(cfg config.Config) ectologger.Logger {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = level
	}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}

	return zapadapter.NewZapEctoLogger(zapLogger.Named(cfg.AppName), nil)
}

func postgresDSN(cfg config.Config) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost,
		cfg.DatabasePort,
		cfg.DatabaseUserName,
		cfg.DatabasePassword,
		cfg.DatabaseName,
		cfg.DatabaseSSLMode,
	)
}
