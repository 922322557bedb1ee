package ladder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/scoring"
	"github.com/activityladdr/laddr/internal/strava"
	"github.com/activityladdr/laddr/internal/streams"
)

// PastYearMonths is how many months PastYearTotals covers.
const PastYearMonths = 12

// RefreshUserTotals recomputes the current month's totals of a user from the
// fitness provider and replaces the cached totals and overall points. If the
// activity listing fails the cache is left untouched.
func (l *Ladder) RefreshUserTotals(ctx context.Context, userID uint) (models.PeriodTotals, error) {
	started := time.Now()
	totals, err := l.refreshUserTotals(ctx, userID)
	l.metrics.RecordRefresh(outcomeOf(err), time.Since(started))
	return totals, err
}

func (l *Ladder) refreshUserTotals(ctx context.Context, userID uint) (models.PeriodTotals, error) {
	user, err := l.user(ctx, userID)
	if err != nil {
		return models.PeriodTotals{}, err
	}

	now := l.now()
	month := scoring.MonthOf(now, l.homeRegion(user.HomeCity).Location)

	events, err := l.eventsAround(ctx, month, month)
	if err != nil {
		return models.PeriodTotals{}, err
	}

	sess, err := l.openFitness(ctx, userID)
	if err != nil {
		return models.PeriodTotals{}, err
	}
	defer l.closeFitness(ctx, userID, sess)

	totals, err := l.scoreMonth(ctx, sess, user, month, events)
	if err != nil {
		return models.PeriodTotals{}, err
	}

	if err := l.store.SaveTotals(ctx, userID, totals, now); err != nil {
		return models.PeriodTotals{}, apperr.Wrap(apperr.KindInternal, "Failed to save totals.", err)
	}

	l.publish(ctx, streams.KindTotalsRefreshed, userID, map[string]interface{}{
		"period": totals.Period, "total_points": totals.TotalPoints,
	})
	slog.Info("Totals refreshed", "user_id", userID, "period", totals.Period, "total_points", totals.TotalPoints)
	return totals, nil
}

// PastYearTotals scores the last twelve calendar months in the user's home
// region, oldest first. A month whose activities cannot be listed reports
// zero totals instead of failing the whole request. Nothing is cached.
func (l *Ladder) PastYearTotals(ctx context.Context, userID uint) ([]models.PeriodTotals, error) {
	user, err := l.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	months := scoring.PastMonths(l.now(), l.homeRegion(user.HomeCity).Location, PastYearMonths)
	events, err := l.eventsAround(ctx, months[0], months[len(months)-1])
	if err != nil {
		return nil, err
	}

	sess, err := l.openFitness(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer l.closeFitness(ctx, userID, sess)

	out := make([]models.PeriodTotals, 0, len(months))
	for _, month := range months {
		totals, err := l.scoreMonth(ctx, sess, user, month, events)
		if err != nil {
			slog.Warn("Month totals unavailable", "user_id", userID, "period", month.Label, "error", err)
			totals = models.EmptyPeriodTotals(month.Label)
		}
		out = append(out, totals)
	}
	return out, nil
}

// scoreMonth lists a month's activities, fetches each qualifying track and
// aggregates. An activity whose track cannot be fetched contributes nothing.
func (l *Ladder) scoreMonth(ctx context.Context, sess FitnessSession, user *models.User, month scoring.Month, events []models.Event) (models.PeriodTotals, error) {
	activities, err := sess.ListActivities(ctx, month.Start, month.End)
	if err != nil {
		l.metrics.RecordUpstreamError("strava")
		return models.PeriodTotals{}, fitnessError(err)
	}

	scored := make([]models.Activity, 0, len(activities))
	for _, activity := range activities {
		if !activity.Qualifies() {
			continue
		}
		track, err := sess.Track(ctx, activity.ID)
		if err != nil {
			l.metrics.RecordUpstreamError("strava")
			slog.Warn("Skipping activity without track", "user_id", user.ID, "activity_id", activity.ID, "error", err)
			continue
		}
		activity.Track = track
		scored = append(scored, activity)
	}

	return scoring.AggregateEvents(month.Label, scored, events, user, l.matcher), nil
}

// eventsAround loads events from the day before first starts until last ends,
// so private windows opened late on the previous day are visible.
func (l *Ladder) eventsAround(ctx context.Context, first, last scoring.Month) ([]models.Event, error) {
	from, _ := models.AddDays(first.StartDate(), -1)
	events, err := l.store.EventsBetween(ctx, "", from, last.EndDate())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to load events.", err)
	}
	return events, nil
}

func (l *Ladder) openFitness(ctx context.Context, userID uint) (FitnessSession, error) {
	sess, err := l.fitness.Open(ctx, userID)
	if errors.Is(err, ErrNotLinked) {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "Connect your Strava account first.", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to open fitness session.", err)
	}
	return sess, nil
}

func (l *Ladder) closeFitness(ctx context.Context, userID uint, sess FitnessSession) {
	if err := sess.Close(ctx); err != nil {
		slog.Warn("Failed to persist refreshed credentials", "user_id", userID, "error", err)
	}
}

func fitnessError(err error) error {
	if errors.Is(err, strava.ErrUnauthorized) {
		return apperr.Wrap(apperr.KindUnauthenticated, "Strava authorization expired. Please reconnect.", err)
	}
	return apperr.Wrap(apperr.KindUpstreamUnavailable, "Failed to fetch activities from Strava.", err)
}
