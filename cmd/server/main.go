package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carebridge/internal/evv/aggregator"
	"carebridge/internal/evv/compliance"
	evvhandler "carebridge/internal/evv/handler"
	"carebridge/internal/evv/metrics"
	"carebridge/internal/evv/orchestrator"
	"carebridge/internal/evv/ports"
	"carebridge/internal/evv/rules"
	"carebridge/internal/evv/store/record"
	"carebridge/internal/evv/submitlock"
	httpapi "carebridge/internal/http"
	"carebridge/internal/integration"
	"carebridge/internal/platform/config"
	"carebridge/internal/platform/httpserver"
	"carebridge/internal/platform/logger"
	platformpg "carebridge/internal/platform/postgres"
	platformredis "carebridge/internal/platform/redis"
	audit "carebridge/pkg/platform/audit"
	auditkafka "carebridge/pkg/platform/audit/publisher/kafka"
	auditmemory "carebridge/pkg/platform/audit/store/memory"
	auditpg "carebridge/pkg/platform/audit/store/postgres"
	auditworker "carebridge/pkg/platform/audit/worker"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := rules.NewCatalog()
	complianceSvc, err := compliance.New(catalog)
	if err != nil {
		log.Error("build compliance service", "error", err)
		os.Exit(1)
	}

	transport, err := aggregator.NewHTTPTransport(cfg.Aggregator.SigningSecret, cfg.Aggregator.AgencyID)
	if err != nil {
		log.Error("build aggregator transport", "error", err)
		os.Exit(1)
	}
	factory, err := aggregator.NewFactory(catalog, transport, aggregator.FactoryConfig{
		EndpointURLs: cfg.Aggregator.EndpointURLs,
		Timeout:      cfg.Aggregator.Timeout,
	}, log)
	if err != nil {
		log.Error("build aggregator providers", "error", err)
		os.Exit(1)
	}

	// Record store: Postgres when configured, in-memory otherwise.
	var records ports.RecordStore
	if cfg.PostgresDSN != "" {
		pool, err := platformpg.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pgStore := record.NewPostgresStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Error("migrate record store", "error", err)
			os.Exit(1)
		}
		records = pgStore
	} else {
		log.Warn("no postgres DSN configured, using in-memory record store")
		records = record.NewMemoryStore()
	}

	// Submission lock: Redis when configured, in-process otherwise.
	var lock ports.SubmissionLock
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		lock = submitlock.NewRedisLock(redisClient.Client, 30*time.Second)
	} else {
		log.Warn("no redis URL configured, using in-process submission lock")
		lock = submitlock.NewMemoryLock(30 * time.Second)
	}

	// Audit trail: Kafka when brokers are configured; otherwise an in-process
	// worker appending to the audit store.
	var publisher ports.AuditPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err := auditkafka.New(cfg.KafkaBrokers, cfg.AuditTopic, auditkafka.WithLogger(log))
		if err != nil {
			log.Error("connect kafka audit publisher", "error", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		publisher = kafkaPub
	} else {
		var auditStore audit.Store
		if cfg.PostgresDSN != "" {
			pgAudit, err := auditpg.Open(cfg.PostgresDSN)
			if err != nil {
				log.Error("open audit store", "error", err)
				os.Exit(1)
			}
			defer pgAudit.Close()
			if err := pgAudit.Migrate(ctx); err != nil {
				log.Error("migrate audit store", "error", err)
				os.Exit(1)
			}
			auditStore = pgAudit
		} else {
			auditStore = auditmemory.NewInMemoryStore()
		}
		channelPub := audit.NewChannelPublisher(256)
		defer channelPub.Close()
		worker := auditworker.NewWorker(auditStore, channelPub.Events(), log)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit worker stopped", "error", err)
			}
		}()
		publisher = channelPub
	}

	orch, err := orchestrator.New(catalog, complianceSvc, factory,
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(metrics.New()),
		orchestrator.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("build orchestrator", "error", err)
		os.Exit(1)
	}

	var visits integration.Client
	if cfg.SchedulingAPIURL != "" {
		visits, err = integration.NewHTTPClient(cfg.SchedulingAPIURL, 10*time.Second)
		if err != nil {
			log.Error("build scheduling client", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("no scheduling API configured, using in-memory visit context")
		visits = integration.NewMemoryClient()
	}

	handler := evvhandler.New(orch, records, visits, lock, publisher, log)
	router := httpapi.NewRouter(handler)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting carebridge EVV service", "addr", cfg.Addr, "states", catalog.Supported())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("carebridge EVV service stopped")
}
