package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/activityladdr/laddr/internal/config"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/hibiken/asynq"
)

// Refresher is the part of the ladder the worker drives.
type Refresher interface {
	RefreshUserTotals(ctx context.Context, userID uint) (models.PeriodTotals, error)
	LinkedUserIDs(ctx context.Context) ([]uint, error)
}

// Enqueuer schedules a refresh for one user.
type Enqueuer func(ctx context.Context, userID uint) error

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, refresher Refresher, enqueue Enqueuer) error {
	srv, mux, err := newServer(cfg, refresher, enqueue)
	if err != nil {
		return err
	}

	// Run traps SIGINT/SIGTERM itself.
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, refresher Refresher, enqueue Enqueuer) (stop func(), err error) {
	srv, mux, err := newServer(cfg, refresher, enqueue)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, refresher Refresher, enqueue Enqueuer) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     5,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRefreshTotals, handleRefreshTotals(logger, refresher))
	mux.HandleFunc(TaskRefreshAllTotals, handleRefreshAll(logger, refresher, enqueue))

	logger.Info("Worker starting", "concurrency", 5, "redis", cfg.RedisURL)
	return srv, mux, nil
}

// handleRefreshTotals recomputes one user's monthly totals. Failures that a
// retry cannot fix (unknown user, revoked Strava access) skip the retry queue.
func handleRefreshTotals(logger *slog.Logger, refresher Refresher) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		userID, err := decodeRefreshPayload(task)
		if err != nil {
			return err
		}

		logger.Info("Processing totals:refresh task", "user_id", userID)

		totals, err := refresher.RefreshUserTotals(ctx, userID)
		if err != nil {
			switch apperr.KindOf(err) {
			case apperr.KindNotFound, apperr.KindUnauthenticated, apperr.KindInvalidInput:
				logger.Warn("Refresh not retryable", "user_id", userID, "error", err.Error())
				return fmt.Errorf("refresh user %d: %v: %w", userID, err, asynq.SkipRetry)
			}
			return fmt.Errorf("refresh user %d: %w", userID, err)
		}

		logger.Info(
			"Totals refresh completed",
			"user_id", userID,
			"period", totals.Period,
			"total_points", totals.TotalPoints,
		)
		return nil
	}
}

// handleRefreshAll fans out one refresh task per linked user so a single
// slow or failing athlete does not hold up the rest.
func handleRefreshAll(logger *slog.Logger, refresher Refresher, enqueue Enqueuer) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		ids, err := refresher.LinkedUserIDs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list linked users: %w", err)
		}

		var failed int
		for _, id := range ids {
			if err := enqueue(ctx, id); err != nil {
				failed++
				logger.Error("Failed to enqueue refresh", "user_id", id, "error", err.Error())
			}
		}

		logger.Info("Scheduled refresh for linked users", "users", len(ids), "failed", failed)
		if failed > 0 && failed == len(ids) {
			return fmt.Errorf("all %d refresh enqueues failed", failed)
		}
		return nil
	}
}

// makeErrorHandler logs failed task runs, flagging the run that exhausts
// the retries and sends the task to the archive.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		attrs := []any{
			"task_type", task.Type(),
			"payload", string(task.Payload()),
			"retry_count", retried,
			"max_retry", maxRetry,
			"error", err.Error(),
		}

		if retried >= maxRetry || errors.Is(err, asynq.SkipRetry) {
			logger.Error("Task archived", attrs...)
			return
		}
		logger.Warn("Task failed, will retry", attrs...)
	}
}
