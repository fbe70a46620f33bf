package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/UkralStul/threaded-comments/internal/api"
	"github.com/UkralStul/threaded-comments/internal/config"
	"github.com/UkralStul/threaded-comments/internal/logger"
	"github.com/UkralStul/threaded-comments/internal/seed"
	"github.com/UkralStul/threaded-comments/internal/storage"
	"github.com/UkralStul/threaded-comments/internal/storage/inmemory"
	"github.com/UkralStul/threaded-comments/internal/storage/postgres"
)

// initOTEL включает экспорт трасс, если задан OTLP endpoint.
func initOTEL(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", "comments-api"),
		attribute.String("deployment.environment", os.Getenv("ENV")),
	))
	if err != nil {
		return nil, err
	}
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func main() {
	storageType := flag.String("storage", "in-memory", "Storage type (in-memory or postgres)")
	seedDemo := flag.Bool("seed", false, "Fill storage with demo data")
	dev := flag.Bool("dev", false, "Human readable logs")
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, *dev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := initOTEL(ctx, cfg.OTLPEndpoint)
	if err != nil {
		lg.Fatal("otel exporter", zap.Error(err))
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	var store storage.Storage
	lg.Info("starting server", zap.String("storage", *storageType))
	switch *storageType {
	case "postgres":
		if cfg.DatabaseURL == "" {
			lg.Fatal("DATABASE_URL must be set for postgres storage")
		}
		store, err = postgres.New(cfg.DatabaseURL, *dev)
		if err != nil {
			lg.Fatal("failed to connect to postgres", zap.Error(err))
		}
	case "in-memory":
		store = inmemory.New()
	default:
		lg.Fatal("unknown storage type", zap.String("storage", *storageType))
	}

	if *seedDemo || cfg.SeedDemo {
		res, err := seed.Demo(ctx, store, seed.Options{MaxDepth: cfg.MaxDepth})
		if err != nil {
			lg.Fatal("seed demo data", zap.Error(err))
		}
		lg.Info("demo data seeded",
			zap.String("post_id", res.Post.ID),
			zap.String("disabled_post_id", res.DisabledPost.ID),
			zap.Int("comments", res.Comments))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv := api.NewServer(store, api.Options{
		MaxDepth: cfg.MaxDepth,
		Logger:   lg,
		Registry: registry,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(c)
	}()

	lg.Info("listening", zap.String("addr", httpServer.Addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("server failed to start", zap.Error(err))
	}
}
