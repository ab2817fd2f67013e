package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jobsift/jobsift/config"
	"github.com/jobsift/jobsift/internal/broker"
	"github.com/jobsift/jobsift/internal/data"
	"github.com/jobsift/jobsift/internal/domain/model"
	"github.com/jobsift/jobsift/internal/gateway"
	httpx "github.com/jobsift/jobsift/internal/http"
	"github.com/jobsift/jobsift/internal/loader"
	"github.com/jobsift/jobsift/internal/observability/metrics"
	"github.com/jobsift/jobsift/internal/observability/notify"
	"github.com/jobsift/jobsift/internal/observability/notify/slack"
	"github.com/jobsift/jobsift/internal/observability/statsd"
	"github.com/jobsift/jobsift/internal/scraper"
	"github.com/jobsift/jobsift/internal/status"
	"github.com/jobsift/jobsift/internal/ws"
)

// shutdownWaitTimeout is the maximum time to wait for services to stop
// after the context is canceled.
const shutdownWaitTimeout = 15 * time.Second

// ServiceOrchestrationConfig configures RunServicesWithShutdown.
type ServiceOrchestrationConfig struct {
	Config *config.AppConfig
	Logger *slog.Logger
}

// runtimeDeps holds the process-wide dependencies shared by whichever roles
// run in this process. One producer serves all roles; the database pool and
// page cache exist only when a role needs them.
type runtimeDeps struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	producer *broker.Producer
	db       *sql.DB
	cache    *data.JobListCache
	metrics  *statsd.Client
}

// Close releases shared dependencies in reverse startup order. The producer
// goes first so its final flush happens before the process loses storage.
func (d *runtimeDeps) Close() {
	if d.producer != nil {
		d.producer.Close()
	}
	if d.cache != nil {
		if err := d.cache.Close(); err != nil {
			d.logger.Warn("cache close failed", "error", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.logger.Warn("database close failed", "error", err)
		}
	}
	if d.metrics != nil {
		if err := d.metrics.Close(); err != nil {
			d.logger.Warn("metrics close failed", "error", err)
		}
	}
}

// RunServicesWithShutdown starts every enabled service mode and blocks until
// a termination signal arrives or a service fails.
func RunServicesWithShutdown(orch *ServiceOrchestrationConfig) error {
	if orch == nil || orch.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := orch.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := orch.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	logger.Info("starting services", "services", EnabledServiceNames(orch.Config))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := buildRuntimeDeps(ctx, orch.Config, logger, enabled)
	if err != nil {
		return err
	}
	defer deps.Close()

	g, gctx := errgroup.WithContext(ctx)
	if enabled[config.ServiceModeGateway] {
		g.Go(func() error { return runGateway(gctx, deps) })
	}
	if enabled[config.ServiceModeScraper] {
		g.Go(func() error { return runScraper(gctx, deps) })
	}
	if enabled[config.ServiceModeLoader] {
		g.Go(func() error { return runLoader(gctx, deps) })
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	waitErr := make(chan error, 1)
	go func() { waitErr <- g.Wait() }()

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
		select {
		case err := <-waitErr:
			return err
		case <-time.After(shutdownWaitTimeout):
			logger.Warn("timeout waiting for services to stop")
			return nil
		}
	case err := <-waitErr:
		if err != nil {
			logger.Error("service failed", "error", err)
		}
		return err
	}
}

func buildRuntimeDeps(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
	enabled map[config.ServiceMode]bool,
) (*runtimeDeps, error) {
	deps := &runtimeDeps{cfg: cfg, logger: logger}

	producer, err := broker.NewProducer(cfg.Kafka, logger)
	if err != nil {
		return nil, err
	}
	deps.producer = producer

	deps.metrics = buildMetrics(cfg.Observability.Metrics, logger)

	needsDB := enabled[config.ServiceModeGateway] || enabled[config.ServiceModeLoader]
	if !needsDB {
		return deps, nil
	}

	db, err := ConnectDB(cfg.Database, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.db = db

	if cfg.Database.RunMigrationsOnStart {
		if err := RunMigrations(ctx, db, logger); err != nil {
			deps.Close()
			return nil, err
		}
	}

	deps.cache = BuildCache(cfg.Cache, logger)
	return deps, nil
}

// buildMetrics builds the StatsD client, or nil when metrics are disabled or
// the client cannot be constructed. All emission paths tolerate nil.
func buildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  "jobsift",
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// buildFailureNotifier builds the Slack sink, or nil when notifications are
// not configured.
func buildFailureNotifier(cfg config.ObservabilityNotificationsConfig, logger *slog.Logger) notify.Sink {
	if cfg.SlackWebhookURL == "" {
		return nil
	}
	client, err := slack.NewClient(slack.Config{WebhookURL: cfg.SlackWebhookURL})
	if err != nil {
		logger.Error("failed to initialise slack notifier", "error", err)
		return nil
	}
	return client
}

// runGateway runs the HTTP gateway role: the REST surface, the push channel,
// and the background status consumer feeding both.
func runGateway(ctx context.Context, deps *runtimeDeps) error {
	cfg := deps.cfg
	logger := deps.logger.With("service", "gateway")

	tracker := status.NewTracker(logger)
	hub := ws.NewHub(ws.HubOptions{
		Logger:   logger,
		Snapshot: tracker.Snapshot,
	})
	listener := gateway.NewListener(gateway.ListenerOptions{
		Tracker:   tracker,
		Broadcast: hub,
		Metrics:   deps.metrics,
		Notifier:  buildFailureNotifier(cfg.Observability.Notifications, logger),
		Logger:    logger,
	})

	consumer, err := broker.NewConsumer(broker.ConsumerOptions{
		Kafka:  cfg.Kafka,
		Group:  broker.GroupGatewayStatus,
		Topics: []string{broker.TopicJobStatusUpdates, broker.TopicSystemNotifications},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	router := httpx.NewRouter(httpx.RouterServices{
		Publisher:         deps.producer,
		Tracker:           tracker,
		PushHub:           hub,
		Jobs:              data.NewJobRepo(deps.db),
		Cache:             deps.cache,
		KafkaBroker:       cfg.Kafka.BrokerURL,
		GoogleAPIKey:      cfg.Scraper.GoogleAPIKey,
		CORSAllowedOrigin: cfg.HTTP.CORSAllowedOrigin,
		Logger:            logger,
	})
	server := startServer(logger, router, cfg.HTTP.Addr)

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()
	consumerDone := consumeUntilDone(ctx, consumer, listener.Handle)

	<-ctx.Done()

	shutdownServer(server, logger)
	joinConsumer(consumer, consumerDone, cfg.Kafka.ConsumerStopTimeout, logger)
	<-hubDone
	return nil
}

// runScraper runs the scraping worker role.
func runScraper(ctx context.Context, deps *runtimeDeps) error {
	cfg := deps.cfg
	logger := deps.logger.With("service", "scraper")

	emitter := broker.NewEmitter(deps.producer, model.SourceScraper, logger)
	worker := scraper.NewWorker(scraper.WorkerOptions{
		Emitter: emitter,
		Site:    scraper.NewSiteClient(cfg.Scraper, logger),
		NewExtractor: func(apiKey string) (scraper.SkillExtractor, error) {
			return scraper.NewGeminiExtractor(apiKey, cfg.Scraper.LLMTimeout, logger), nil
		},
		Config: cfg.Scraper,
		Logger: logger,
	})

	return runWorkerConsumer(ctx, workerConsumerOptions{
		deps:        deps,
		logger:      logger,
		group:       broker.GroupScraper,
		topic:       broker.TopicScrapingJobs,
		handler:     worker.Handle,
		emitter:     emitter,
		terminalPct: 0,
	})
}

// runLoader runs the loading worker role.
func runLoader(ctx context.Context, deps *runtimeDeps) error {
	cfg := deps.cfg
	logger := deps.logger.With("service", "loader")

	emitter := broker.NewEmitter(deps.producer, model.SourceLoader, logger)
	worker := loader.NewWorker(loader.WorkerOptions{
		Emitter: emitter,
		Store:   data.NewJobRepo(deps.db),
		Cache:   deps.cache,
		DataDir: cfg.Loader.DataDir,
		Logger:  logger,
	})

	return runWorkerConsumer(ctx, workerConsumerOptions{
		deps:        deps,
		logger:      logger,
		group:       broker.GroupLoader,
		topic:       broker.TopicDataProcessing,
		handler:     worker.Handle,
		emitter:     emitter,
		terminalPct: 90,
	})
}

type workerConsumerOptions struct {
	deps    *runtimeDeps
	logger  *slog.Logger
	group   string
	topic   string
	handler broker.Handler
	emitter *broker.Emitter
	// terminalPct is the percentage reported on the terminal job_progress
	// when the consumer has to fail a job on the worker's behalf.
	terminalPct float64
}

// runWorkerConsumer runs one worker's consume loop until the context ends,
// then joins it within the configured stop timeout. Unhandled events fail
// the affected job so it still converges to FAILED.
func runWorkerConsumer(ctx context.Context, opts workerConsumerOptions) error {
	consumer, err := broker.NewConsumer(broker.ConsumerOptions{
		Kafka:  opts.deps.cfg.Kafka,
		Group:  opts.group,
		Topics: []string{opts.topic},
		Logger: opts.logger,
		OnFailure: func(ctx context.Context, jobID string, err error) {
			metrics.EmitConsumerFailure(opts.deps.metrics, opts.topic, err)
			opts.emitter.FailJob(ctx, jobID, err, opts.terminalPct)
		},
	})
	if err != nil {
		return err
	}

	done := consumeUntilDone(ctx, consumer, opts.handler)
	<-ctx.Done()
	joinConsumer(consumer, done, opts.deps.cfg.Kafka.ConsumerStopTimeout, opts.logger)
	return nil
}

// consumeUntilDone runs the consume loop in the background and returns its
// completion channel.
func consumeUntilDone(ctx context.Context, consumer *broker.Consumer, handler broker.Handler) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Run(ctx, handler)
	}()
	return done
}

// joinConsumer closes the consumer and waits for its loop to exit, bounded
// by the stop timeout.
func joinConsumer(consumer *broker.Consumer, done <-chan struct{}, timeout time.Duration, logger *slog.Logger) {
	consumer.Close()
	select {
	case <-done:
		logger.Info("consumer stopped")
	case <-time.After(timeout):
		logger.Warn("timeout waiting for consumer to stop")
	}
}
