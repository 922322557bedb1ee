package ladder

import (
	"context"
	"errors"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/slots"
	"github.com/activityladdr/laddr/internal/store"
)

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        uint   `json:"user_id"`
	Name          string `json:"name"`
	HomeCity      string `json:"home_city"`
	OverallPoints int    `json:"overall_points"`
}

// LeaderboardSnapshot ranks users by overall points, ties broken by
// registration order. limit <= 0 returns everyone.
func (l *Ladder) LeaderboardSnapshot(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	users, err := l.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to load leaderboard.", err)
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, LeaderboardEntry{
			Rank:          i + 1,
			UserID:        u.ID,
			Name:          u.DisplayName(),
			HomeCity:      u.HomeCity,
			OverallPoints: u.OverallPoints,
		})
	}
	return entries, nil
}

// AvailableTimeslots lists the free, not yet finished slots of a date.
func (l *Ladder) AvailableTimeslots(ctx context.Context, regionName, date string) ([]slots.Timeslot, error) {
	region, err := l.region(regionName)
	if err != nil {
		return nil, err
	}
	end, err := models.AddDays(date, 1)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "Invalid date format. Expected YYYY-MM-DD.", err)
	}

	booked, err := l.store.EventsBetween(ctx, region.Name, date, end)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to load events.", err)
	}

	available, err := slots.AvailableTimeslots(region, date, l.now(), booked)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "Invalid date format. Expected YYYY-MM-DD.", err)
	}
	return available, nil
}

// ValidDates returns today and tomorrow in the region.
func (l *Ladder) ValidDates(regionName string) ([]slots.DateOption, error) {
	region, err := l.region(regionName)
	if err != nil {
		return nil, err
	}
	return slots.ValidDates(region, l.now()), nil
}

// Suburbs lists the suburbs of a region.
func (l *Ladder) Suburbs(regionName string) ([]string, error) {
	region, err := l.region(regionName)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidInput, "City not found.")
	}
	return region.SuburbNames(), nil
}

// ListEvents returns every live event.
func (l *Ladder) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := l.store.ListEvents(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to load events.", err)
	}
	return events, nil
}

// DeleteAllEvents removes every event owned by userID.
func (l *Ladder) DeleteAllEvents(ctx context.Context, userID uint) (int64, error) {
	n, err := l.store.DeleteUserEvents(ctx, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "An error occurred while deleting events.", err)
	}
	return n, nil
}

// ListUsers returns every user for administration.
func (l *Ladder) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := l.store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to load users.", err)
	}
	return users, nil
}

// DeleteUser removes a user account.
func (l *Ladder) DeleteUser(ctx context.Context, userID uint) error {
	err := l.store.DeleteUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, "User not found.", err)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "An error occurred while trying to delete the user.", err)
	}
	return nil
}

// LinkedUserIDs lists users with a connected fitness account.
func (l *Ladder) LinkedUserIDs(ctx context.Context) ([]uint, error) {
	return l.store.LinkedUserIDs(ctx, models.ProviderStrava)
}
