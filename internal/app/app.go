package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/laudo-backend/internal/adapter/notify/noop"
	"github.com/heartmarshall/laudo-backend/internal/adapter/notify/redisstream"
	"github.com/heartmarshall/laudo-backend/internal/adapter/postgres"
	"github.com/heartmarshall/laudo-backend/internal/adapter/postgres/anomaly"
	"github.com/heartmarshall/laudo-backend/internal/adapter/postgres/assessment"
	"github.com/heartmarshall/laudo-backend/internal/adapter/postgres/audit"
	"github.com/heartmarshall/laudo-backend/internal/adapter/postgres/batch"
	"github.com/heartmarshall/laudo-backend/internal/adapter/postgres/eligibility"
	"github.com/heartmarshall/laudo-backend/internal/adapter/postgres/report"
	"github.com/heartmarshall/laudo-backend/internal/adapter/provider/render"
	"github.com/heartmarshall/laudo-backend/internal/adapter/storage/gcs"
	"github.com/heartmarshall/laudo-backend/internal/adapter/storage/memory"
	"github.com/heartmarshall/laudo-backend/internal/auth"
	"github.com/heartmarshall/laudo-backend/internal/config"
	"github.com/heartmarshall/laudo-backend/internal/domain"
	batchsvc "github.com/heartmarshall/laudo-backend/internal/service/batch"
	"github.com/heartmarshall/laudo-backend/internal/service/emission"
	"github.com/heartmarshall/laudo-backend/internal/service/guard"
	"github.com/heartmarshall/laudo-backend/internal/service/monitoring"
	"github.com/heartmarshall/laudo-backend/internal/service/readiness"
	"github.com/heartmarshall/laudo-backend/internal/transport/middleware"
	"github.com/heartmarshall/laudo-backend/internal/transport/rest"
)

const rateLimitCleanupInterval = 5 * time.Minute

// Run is the application entry point. It loads configuration, connects to
// the database and the external collaborators, then serves HTTP and runs
// the emission poller until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)
	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.Bool("poller_enabled", cfg.Emission.PollerEnabled),
	)

	shutdownTracing, err := SetupTracing(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracing shutdown", slog.String("error", err.Error()))
		}
	}()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	st, err := NewStack(ctx, cfg, logger, pool, clockwork.NewRealClock())
	if err != nil {
		return err
	}
	defer st.Close()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      st.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Emission.PollerEnabled {
		g.Go(func() error {
			return st.Poller.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

// Stack is the assembled application: services, the emission pipeline and
// the HTTP handler. cmd tools and the e2e suite build it the same way the
// server does.
type Stack struct {
	Batches    *batchsvc.Service
	Readiness  *readiness.Service
	Scheduler  *emission.Scheduler
	Worker     *emission.Worker
	Poller     *emission.Poller
	Monitoring *monitoring.Service
	JWT        *auth.JWTManager
	Handler    http.Handler

	closers []func() error
	log     *slog.Logger
}

type artifactStore interface {
	Store(ctx context.Context, reportID int64, data []byte) (string, error)
}

type eventNotifier interface {
	NotifyEmitted(ctx context.Context, event domain.EmittedEvent) error
	Close() error
}

// NewStack wires repositories, adapters and services over an open pool.
func NewStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, clock clockwork.Clock) (*Stack, error) {
	st := &Stack{log: logger}
	txm := postgres.NewTxManager(pool)

	batchRepo := batch.New(pool)
	assessmentRepo := assessment.New(pool)
	reportRepo := report.New(pool)
	auditRepo := audit.New(pool)
	eligibilityRepo := eligibility.New(pool, clock)
	anomalyRepo := anomaly.New(pool)

	store, err := st.newArtifactStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	var deps []rest.Dependency
	notifier, err := st.newNotifier(ctx, cfg.Notify, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	if rn, ok := notifier.(*redisstream.Notifier); ok {
		deps = append(deps, rest.Dependency{Name: "notify", Pinger: rn})
	}

	renderer := render.NewProvider(cfg.Renderer.BaseURL, logger)

	st.Readiness = readiness.NewService(logger, batchRepo, assessmentRepo, eligibilityRepo, anomalyRepo, cfg.Emission.HighExclusionRatio)
	st.Scheduler = emission.NewScheduler(logger, batchRepo, reportRepo, auditRepo, st.Readiness, txm, clock,
		cfg.Emission.GraceDelay, cfg.Emission.ReprocessCooldown)

	immutability := guard.New(logger, reportRepo, auditRepo, clock)
	st.Batches = batchsvc.NewService(logger, batchRepo, assessmentRepo, reportRepo, auditRepo, immutability, st.Scheduler, txm, clock)

	st.Worker, err = emission.NewWorker(logger, batchRepo, reportRepo, auditRepo, st.Readiness, renderer, store, notifier, txm, clock,
		emission.WorkerConfig{
			RenderTimeout:   cfg.Emission.RenderTimeout,
			RenderCacheSize: cfg.Emission.RenderCacheSize,
		})
	if err != nil {
		st.Close()
		return nil, err
	}
	st.Poller = emission.NewPoller(logger, batchRepo, auditRepo, st.Worker, clock, emission.PollerConfig{
		Interval:   cfg.Emission.PollInterval,
		ClaimLimit: cfg.Emission.ClaimLimit,
		Workers:    cfg.Emission.Workers,
		StaleAfter: cfg.Emission.StaleAfter,
	})
	st.Monitoring = monitoring.NewService(logger, batchRepo, reportRepo, auditRepo, clock)

	st.JWT = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)

	limiter := middleware.NewRateLimiter(clock, rateLimitCleanupInterval)
	st.closers = append(st.closers, func() error { limiter.Stop(); return nil })

	mux := rest.NewRouter(rest.Handlers{
		Health:     rest.NewHealthHandler(pool, BuildVersion(), deps...),
		Batch:      rest.NewBatchHandler(st.Batches, st.Readiness, st.Scheduler, logger),
		Assessment: rest.NewAssessmentHandler(st.Batches, logger),
		Monitoring: rest.NewMonitoringHandler(st.Monitoring, logger),
	}, limiter.Limit(cfg.Server.RateLimitPerMinute))

	st.Handler = middleware.Chain(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Auth(st.JWT),
		middleware.Logger(logger),
	)(mux)

	return st, nil
}

func (st *Stack) newArtifactStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (artifactStore, error) {
	if cfg.Driver == config.StorageDriverMemory {
		logger.Warn("artifact store is in-memory; laudos are lost on restart")
		return memory.NewStore(cfg.Prefix), nil
	}
	s, err := gcs.NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	st.closers = append(st.closers, s.Close)
	return s, nil
}

func (st *Stack) newNotifier(ctx context.Context, cfg config.NotifyConfig, logger *slog.Logger) (eventNotifier, error) {
	if cfg.RedisAddr == "" {
		return noop.NewNotifier(logger), nil
	}
	n, err := redisstream.NewNotifier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	st.closers = append(st.closers, n.Close)
	return n, nil
}

// Close releases adapter clients in reverse order of creation.
func (st *Stack) Close() {
	for i := len(st.closers) - 1; i >= 0; i-- {
		if err := st.closers[i](); err != nil {
			st.log.Error("close", slog.String("error", err.Error()))
		}
	}
	st.closers = nil
}
