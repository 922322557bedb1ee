package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskRefreshTotals    = "totals:refresh"
	TaskRefreshAllTotals = "totals:refresh-all"
)

// refreshUniqueWindow collapses bursts of refresh requests for one user, such
// as several webhook deliveries for a single upload.
const refreshUniqueWindow = time.Minute

// taskEnqueuer is the part of asynq.Client the worker needs.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues worker tasks. Build one with NewClient and hand its
// EnqueueRefresh to whoever schedules refreshes.
type Client struct {
	tasks taskEnqueuer
}

// NewClient connects an asynq client to redisURL.
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Client{tasks: asynq.NewClient(opt)}, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	if c == nil || c.tasks == nil {
		return nil
	}
	return c.tasks.Close()
}

type refreshPayload struct {
	UserID uint `json:"user_id"`
}

// NewRefreshTask builds a totals refresh task for one user.
func NewRefreshTask(userID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(refreshPayload{UserID: userID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskRefreshTotals,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Retention(time.Hour),
		asynq.Unique(refreshUniqueWindow),
	), nil
}

// NewRefreshAllTask builds the fan-out task that schedules a refresh for
// every linked user.
func NewRefreshAllTask() *asynq.Task {
	return asynq.NewTask(
		TaskRefreshAllTotals,
		nil, // handler queries all linked users
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(time.Hour),
	)
}

// EnqueueRefresh schedules a totals refresh for userID. A refresh already
// queued for the same user is not an error.
func (c *Client) EnqueueRefresh(ctx context.Context, userID uint) error {
	if c == nil || c.tasks == nil {
		return errors.New("worker client not initialized")
	}

	task, err := NewRefreshTask(userID)
	if err != nil {
		return err
	}

	_, err = c.tasks.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue refresh: %w", err)
	}
	return nil
}

func decodeRefreshPayload(task *asynq.Task) (uint, error) {
	var payload refreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return 0, fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
	}
	if payload.UserID == 0 {
		return 0, fmt.Errorf("missing user_id: %w", asynq.SkipRetry)
	}
	return payload.UserID, nil
}
