package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	formauto "github.com/Safi643133/ai-immigration-services-sub003"
	"github.com/Safi643133/ai-immigration-services-sub003/api"
	"github.com/Safi643133/ai-immigration-services-sub003/artifact"
	"github.com/Safi643133/ai-immigration-services-sub003/blob"
	"github.com/Safi643133/ai-immigration-services-sub003/challenge"
	"github.com/Safi643133/ai-immigration-services-sub003/driver"
	"github.com/Safi643133/ai-immigration-services-sub003/engine"
	"github.com/Safi643133/ai-immigration-services-sub003/ext"
	"github.com/Safi643133/ai-immigration-services-sub003/janitor"
	"github.com/Safi643133/ai-immigration-services-sub003/middleware"
	"github.com/Safi643133/ai-immigration-services-sub003/orchestrator"
	"github.com/Safi643133/ai-immigration-services-sub003/progress"
	"github.com/Safi643133/ai-immigration-services-sub003/queue"
	"github.com/Safi643133/ai-immigration-services-sub003/relay"
	"github.com/Safi643133/ai-immigration-services-sub003/store"
	"github.com/Safi643133/ai-immigration-services-sub003/store/memory"
	"github.com/Safi643133/ai-immigration-services-sub003/store/postgres"
	"github.com/Safi643133/ai-immigration-services-sub003/store/sqlite"
	"github.com/Safi643133/ai-immigration-services-sub003/stream"
	"github.com/Safi643133/ai-immigration-services-sub003/worker"
)

var (
	serveAddr        string
	serveStore       string
	serveSQLitePath  string
	servePostgresDSN string
	serveRedisAddr   string
	serveArtifactDir string
	serveSecret      string
	serveConcurrency int
	serveRetention   time.Duration
	serveEmbassies   []string
	serveDriver      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the automation service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, newLogger())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveStore, "store", "memory", "store backend (memory|sqlite|postgres)")
	serveCmd.Flags().StringVar(&serveSQLitePath, "sqlite-path", "formauto.db", "SQLite database path")
	serveCmd.Flags().StringVar(&servePostgresDSN, "postgres-dsn", "", "Postgres connection string")
	serveCmd.Flags().StringVar(&serveRedisAddr, "redis-addr", "", "Redis address for cross-process event relay (disabled when empty)")
	serveCmd.Flags().StringVar(&serveArtifactDir, "artifact-dir", "artifacts", "directory for screenshot and confirmation blobs")
	serveCmd.Flags().StringVar(&serveSecret, "worker-secret", os.Getenv("FORMAUTOD_WORKER_SECRET"), "shared secret for the worker-update endpoint")
	serveCmd.Flags().IntVar(&serveConcurrency, "concurrency", 0, "worker pool size (0 uses the default)")
	serveCmd.Flags().DurationVar(&serveRetention, "retention", 24*time.Hour, "how long terminal jobs are kept before purge")
	serveCmd.Flags().StringArrayVar(&serveEmbassies, "embassy-limit", nil, "per-embassy limit NAME=maxConcurrency[:ratePerSec[:burst]] (repeatable)")
	serveCmd.Flags().StringVar(&serveDriver, "driver", "dryrun", "form driver (dryrun)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, logger *slog.Logger) error {
	st, err := openStore(ctx)
	if err != nil {
		return err
	}

	pub := progress.NewPublisher(st, logger)
	extensions := ext.NewRegistry(logger)

	broker := stream.NewBroker(logger)
	extensions.Register(broker)

	if serveRedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: serveRedisAddr})
		extensions.Register(relay.New(client, logger))
	}
	pub.SetEmitter(extensions)

	blobs, err := blob.NewLocalFS(serveArtifactDir)
	if err != nil {
		return fmt.Errorf("artifact dir: %w", err)
	}
	capture := artifact.NewCapture(st, blobs, logger)

	cfg := formauto.DefaultConfig()
	if serveConcurrency > 0 {
		cfg.Concurrency = serveConcurrency
	}

	coord := challenge.NewCoordinator(st, pub, logger,
		challenge.WithTTL(cfg.ChallengeTTL),
		challenge.WithCapturer(capture),
	)
	coord.SetEmitter(extensions)

	runner := engine.NewRunner(st, pub, coord, logger,
		engine.WithCapture(capture),
		engine.WithWaits(engine.Waits{
			Primary:   cfg.PrimaryWait,
			Secondary: cfg.SecondaryWait,
			Grace:     cfg.GraceDelay,
			Subfield:  cfg.SubfieldWait,
		}),
	)
	runner.SetEmitter(extensions)

	executor := worker.NewExecutor(st, runner, pub, extensions, logger,
		middleware.Recover(logger),
		middleware.Logging(logger),
		middleware.Metrics(),
		middleware.Tracing(),
	)

	sessions, err := sessionFactory()
	if err != nil {
		return err
	}

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(cfg.Concurrency),
		worker.WithHeartbeatInterval(cfg.HeartbeatInterval),
		worker.WithStaleJobThreshold(cfg.StaleJobThreshold),
	}
	queues, err := parseEmbassyLimits(serveEmbassies)
	if err != nil {
		return err
	}
	if queues != nil {
		poolOpts = append(poolOpts, worker.WithQueueManager(queues))
	}
	pool := worker.NewPool(st, sessions, executor, extensions, logger, poolOpts...)

	svc := orchestrator.NewService(st, pub, extensions, logger,
		orchestrator.WithPool(pool),
		orchestrator.WithSolver(coord),
	)

	jan := janitor.New(st, pub, extensions, logger,
		janitor.WithBlobs(blobs),
		janitor.WithRetention(serveRetention),
	)

	app, err := formauto.New(
		formauto.WithConfig(cfg),
		formauto.WithLogger(logger),
		formauto.WithStore(st),
	)
	if err != nil {
		return err
	}
	app.SetPool(pool)
	app.SetExtensions(extensions)

	srv := &http.Server{
		Addr:    serveAddr,
		Handler: api.NewServer(svc, broker, logger, api.WithWorkerSecret(serveSecret)).Handler(),
	}

	if err := app.Start(ctx); err != nil {
		return err
	}
	if err := jan.Start(ctx); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", serveAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errc:
		return err
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := jan.Stop(shutCtx); err != nil {
		logger.Warn("janitor shutdown", "error", err)
	}
	return app.Stop(shutCtx)
}

// openStore opens the configured persistence backend and runs its
// migrations.
func openStore(ctx context.Context) (store.Store, error) {
	switch serveStore {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		st, err := sqlite.New(serveSQLitePath)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		if servePostgresDSN == "" {
			return nil, errors.New("--postgres-dsn is required with --store postgres")
		}
		st, err := postgres.New(ctx, servePostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", serveStore)
	}
}

func sessionFactory() (driver.Factory, error) {
	switch serveDriver {
	case "dryrun":
		return driver.FactoryFunc(func(context.Context) (driver.Driver, error) {
			return dryRunDriver{}, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", serveDriver)
	}
}

// parseEmbassyLimits parses repeated NAME=maxConcurrency[:ratePerSec[:burst]]
// flags into a queue manager. Returns nil when no limits were given.
func parseEmbassyLimits(specs []string) (*queue.Manager, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	configs := make([]queue.Config, 0, len(specs))
	for _, spec := range specs {
		name, limits, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("embassy limit %q: want NAME=maxConcurrency[:ratePerSec[:burst]]", spec)
		}
		parts := strings.Split(limits, ":")
		cfg := queue.Config{Embassy: name}
		maxc, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("embassy limit %q: bad max concurrency: %w", spec, err)
		}
		cfg.MaxConcurrency = maxc
		if len(parts) > 1 {
			r, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				return nil, fmt.Errorf("embassy limit %q: bad rate: %w", spec, err)
			}
			cfg.RateLimit = r
		}
		if len(parts) > 2 {
			b, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("embassy limit %q: bad burst: %w", spec, err)
			}
			cfg.RateBurst = b
		}
		configs = append(configs, cfg)
	}
	return queue.NewManager(configs...), nil
}
