package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/activityladdr/laddr/internal/config"
	"github.com/hibiken/asynq"
)

// StartScheduler registers the periodic refresh of all linked users on
// REFRESH_SCHEDULE. An empty schedule disables it and returns a no-op stop.
func StartScheduler(cfg *config.Config) (stop func(), err error) {
	if cfg.RefreshSchedule == "" {
		slog.Info("Periodic refresh disabled")
		return func() {}, nil
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	location := scheduleLocation(cfg.RefreshTimezone)
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: location,
		LogLevel: asynq.InfoLevel,
		Logger:   &asynqLoggerAdapter{logger: logger},
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Error("Periodic refresh enqueue failed", "error", err)
				return
			}
			logger.Info("Periodic refresh enqueued", "task_id", info.ID)
		},
	})

	entryID, err := scheduler.Register(cfg.RefreshSchedule, NewRefreshAllTask(), asynq.Unique(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to register refresh schedule: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info("Refresh scheduler started",
		"schedule", cfg.RefreshSchedule,
		"timezone", location.String(),
		"entry_id", entryID,
	)
	return scheduler.Shutdown, nil
}

// scheduleLocation resolves the cron timezone, falling back to UTC.
func scheduleLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("Invalid REFRESH_TIMEZONE, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}
