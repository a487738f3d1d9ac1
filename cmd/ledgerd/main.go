// ledgerd hosts the game economy ledger: it opens the event store, wires the
// command service with its read models and process managers, optionally
// relays committed events to NATS, and serves prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	natsgo "github.com/nats-io/nats.go"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	boltstore "github.com/MyndPhreak/gamerp/adapters/bolt"
	natsrelay "github.com/MyndPhreak/gamerp/adapters/nats"
	promadapter "github.com/MyndPhreak/gamerp/adapters/prometheus"
	"github.com/MyndPhreak/gamerp/core/es"
	"github.com/MyndPhreak/gamerp/core/ledger"
	"github.com/MyndPhreak/gamerp/core/ledger/service"
)

type config struct {
	DBPath     string        `env:"LEDGER_DB_PATH" envDefault:"ledger.db"`
	HTTPAddr   string        `env:"LEDGER_HTTP_ADDR" envDefault:":9402"`
	NatsURL    string        `env:"LEDGER_NATS_URL"`
	NatsPrefix string        `env:"LEDGER_NATS_PREFIX" envDefault:"ledger.events"`
	RateLimit  float64       `env:"LEDGER_RATE_LIMIT" envDefault:"25"`
	RateBurst  int           `env:"LEDGER_RATE_BURST" envDefault:"50"`
	LogLevel   slog.Level    `env:"LEDGER_LOG_LEVEL" envDefault:"info"`
	Shutdown   time.Duration `env:"LEDGER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("exit", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := promclient.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := promadapter.New(reg)

	store, err := boltstore.Open(cfg.DBPath, boltstore.WithLog(log), boltstore.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("close store", slog.Any("error", err))
		}
	}()

	svc := service.New(
		log,
		store,
		service.WithMetrics(metrics),
		service.WithLimiter(ledger.NewActorLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)),
	)

	if cfg.NatsURL != "" {
		nc, err := natsgo.Connect(cfg.NatsURL, natsgo.Name("ledgerd"))
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer nc.Drain() //nolint:errcheck

		relay := natsrelay.NewRelay(nc, natsrelay.WithSubjectPrefix(cfg.NatsPrefix), natsrelay.WithLog(log))
		consumer := es.NewConsumer(
			svc.Store(),
			svc.Registry(),
			svc.Bus(),
			relay,
			es.WithConsumerName(relay.Name()),
			// checkpoint stays outermost so the consumer can read its cursor
			es.WithMiddlewares(
				es.NewCheckpointMiddleware(store.Checkpoints(relay.Name())),
				es.NewLogMiddleware(slog.String("subscriber", relay.Name())),
			),
			es.WithMetrics(metrics),
		)
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start relay consumer: %w", err)
		}
	}

	// projections fold the log before any command is accepted
	if err := svc.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("serving", slog.String("addr", cfg.HTTPAddr), slog.String("db", cfg.DBPath))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
