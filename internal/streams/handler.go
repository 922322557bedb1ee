package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// ErrUnknownAthlete is returned by an AthleteResolver for unlinked athletes.
var ErrUnknownAthlete = errors.New("unknown athlete")

// AthleteResolver maps a Strava athlete id onto a ladder user id.
type AthleteResolver func(ctx context.Context, athleteID string) (uint, error)

// RefreshEnqueuer schedules a totals refresh for a user.
type RefreshEnqueuer func(ctx context.Context, userID uint) error

// HandleWebhookEvent returns a handler that schedules a refresh whenever one
// of a linked athlete's activities is created, updated or deleted.
func HandleWebhookEvent(resolve AthleteResolver, enqueue RefreshEnqueuer) EventHandler {
	return func(ctx context.Context, event WebhookEvent) error {
		if event.Deauthorized() {
			slog.Info("Athlete revoked access", "owner_id", event.OwnerID)
			return nil
		}
		if event.ObjectType != "activity" {
			return nil
		}

		userID, err := resolve(ctx, strconv.FormatInt(event.OwnerID, 10))
		if errors.Is(err, ErrUnknownAthlete) {
			slog.Debug("Ignoring webhook for unlinked athlete", "owner_id", event.OwnerID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve athlete %d: %w", event.OwnerID, err)
		}

		if err := enqueue(ctx, userID); err != nil {
			return fmt.Errorf("enqueue refresh for user %d: %w", userID, err)
		}

		slog.Info("Refresh scheduled from webhook",
			"user_id", userID,
			"activity_id", event.ObjectID,
			"aspect", event.AspectType,
		)
		return nil
	}
}
