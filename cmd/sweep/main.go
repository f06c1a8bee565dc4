// Command sweep runs one emission cycle outside the server: it recovers stale
// claims and emits every due batch. With -batch it emits a single batch
// immediately. It is intended for cron or manual operator use when the
// in-process poller is disabled.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/laudo-backend/internal/adapter/postgres"
	"github.com/heartmarshall/laudo-backend/internal/app"
	"github.com/heartmarshall/laudo-backend/internal/config"
	"github.com/heartmarshall/laudo-backend/internal/domain"
)

func main() {
	batchID := flag.Int64("batch", 0, "emit this batch now instead of sweeping")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	st, err := app.NewStack(ctx, cfg, logger, pool, clockwork.NewRealClock())
	if err != nil {
		logger.Error("build stack", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	if *batchID > 0 {
		if err := emitBatch(ctx, logger, st.Worker, *batchID); err != nil {
			logger.Error("emit failed", slog.Int64("batch_id", *batchID), slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	res, err := st.Poller.Tick(ctx)
	if err != nil {
		logger.Error("sweep failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("sweep completed",
		slog.Int("recovered", res.Recovered),
		slog.Int("claimed", res.Claimed),
		slog.Int("emitted", res.Emitted),
		slog.Int("failed", res.Failed),
	)
	if res.Failed > 0 {
		os.Exit(1)
	}
}

type emitter interface {
	Emit(ctx context.Context, batchID int64) (domain.Report, error)
}

// emitBatch emits one batch. Losing the claim to another worker counts as done.
func emitBatch(ctx context.Context, logger *slog.Logger, w emitter, batchID int64) error {
	rep, err := w.Emit(ctx, batchID)
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		logger.Info("batch already claimed or emitted", slog.Int64("batch_id", batchID))
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("emitted",
		slog.Int64("batch_id", batchID),
		slog.Int64("report_id", rep.ID),
		slog.String("content_hash", rep.ContentHash),
	)
	return nil
}
