package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/totegamma/backline/client"
	"github.com/totegamma/backline/internal/config"
	"github.com/totegamma/backline/internal/domain"
	"github.com/totegamma/backline/internal/infra/database"
	"github.com/totegamma/backline/internal/infra/gateway"
	"github.com/totegamma/backline/internal/infra/repository"
	"github.com/totegamma/backline/internal/present/rest"
	"github.com/totegamma/backline/internal/present/rest/middleware"
	"github.com/totegamma/backline/internal/service"
	"github.com/totegamma/backline/internal/usecase"
)

func main() {
	configPath := os.Getenv("BACKLINE_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		shutdown, err := setupTracer(conf)
		if err != nil {
			slog.Error("failed to setup tracer", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdown()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)
	cl := client.New(conf.Server.IdentityResolver)
	identity := gateway.NewIdentityGateway(cl, mc)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	signal := service.NewSignalService(rdb, registry)

	entityRepo := repository.NewEntityRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	fanout := service.NewFanoutService(notificationRepo, signal, registry)

	entityUC := usecase.NewEntityUsecase(entityRepo, notificationRepo, identity, fanout, signal)
	candidateUC := usecase.NewCandidateUsecase(candidateRepo, entityRepo, identity, fanout, signal)
	notificationUC := usecase.NewNotificationUsecase(notificationRepo, identity)

	domainConf := domain.Config{
		FQDN:             conf.NodeInfo.FQDN,
		IdentityResolver: conf.Server.IdentityResolver,
	}
	handler := rest.NewHandler(domainConf, entityUC, candidateUC, notificationUC, signal)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(conf.NodeInfo.FQDN))
	}
	e.Use(middleware.IdentifyPersona)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.ListenAddr))
}

func setupTracer(conf config.Config) (func(), error) {
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(conf.Server.TraceEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("backline"),
			semconv.ServiceVersion("1.0"),
		)),
	)
	otel.SetTracerProvider(provider)

	return func() {
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}, nil
}
