package ladder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/activityladdr/laddr/internal/apperr"
	"github.com/activityladdr/laddr/internal/models"
	"github.com/activityladdr/laddr/internal/store"
	"github.com/activityladdr/laddr/internal/streams"
	"github.com/activityladdr/laddr/internal/wallet"
)

// AccountView is the wallet and totals summary shown on the account page.
type AccountView struct {
	UserID             uint                `json:"user_id"`
	Name               string              `json:"name"`
	HomeCity           string              `json:"home_city"`
	Bucks              int                 `json:"bucks"`
	BucksResetSeconds  int64               `json:"bucks_reset_seconds"`
	PrivateEventActive bool                `json:"private_event_active"`
	CanActivate        bool                `json:"can_activate"`
	PrivateEventEnds   *time.Time          `json:"private_event_ends,omitempty"`
	NextActivation     *time.Time          `json:"next_activation,omitempty"`
	OverallPoints      int                 `json:"overall_points"`
	Totals             models.PeriodTotals `json:"totals"`
	TotalsUpdatedAt    *time.Time          `json:"totals_updated_at,omitempty"`
}

func (l *Ladder) user(ctx context.Context, userID uint) (*models.User, error) {
	user, err := l.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, "User not found.", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to load user.", err)
	}
	return user, nil
}

// Account applies any due bucks regeneration and returns the account summary.
// Times are rendered in the user's home region.
func (l *Ladder) Account(ctx context.Context, userID uint) (*AccountView, error) {
	user, err := l.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	if wallet.NeedsRegeneration(user, now) {
		done, err := l.store.RegenerateBucks(ctx, userID, now, wallet.RegenerationInterval, models.StartingBucks)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "Failed to regenerate bucks.", err)
		}
		if done {
			slog.Info("Bucks regenerated", "user_id", userID)
		}
		if user, err = l.user(ctx, userID); err != nil {
			return nil, err
		}
	}

	loc := l.homeRegion(user.HomeCity).Location
	view := &AccountView{
		UserID:             user.ID,
		Name:               user.DisplayName(),
		HomeCity:           user.HomeCity,
		Bucks:              user.Bucks,
		BucksResetSeconds:  int64(wallet.BucksResetIn(user, now) / time.Second),
		PrivateEventActive: wallet.IsPrivateEventActive(user, now),
		CanActivate:        wallet.CanActivate(user, now),
		PrivateEventEnds:   inLocation(user.PrivateEventEnds, loc),
		NextActivation:     inLocation(wallet.NextActivation(user), loc),
		OverallPoints:      user.OverallPoints,
		Totals:             user.Totals(),
		TotalsUpdatedAt:    user.MonthlyUpdatedAt,
	}
	return view, nil
}

// ActivatePrivateEvent spends bucks on a 24-hour private bonus window that
// starts now on the user's home-region clock.
func (l *Ladder) ActivatePrivateEvent(ctx context.Context, userID uint) (*models.Event, error) {
	user, err := l.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	region := l.homeRegion(user.HomeCity)

	event, err := wallet.Activate(user, now, region.Location)
	if err != nil {
		l.metrics.RecordActivation("rejected")
		var cooldown *wallet.CooldownError
		if errors.As(err, &cooldown) {
			return nil, apperr.Wrap(apperr.KindConflict, "Cannot activate until cooldown ends. Time left: "+wallet.FormatRemaining(cooldown.Remaining), err)
		}
		return nil, apperr.Wrap(apperr.KindInsufficientFunds, "Insufficient bucks to activate a private event.", err)
	}

	err = l.store.ActivatePrivate(ctx, userID, wallet.ActivationCost, *user.LastActivated, *user.PrivateEventEnds, wallet.Cooldown, event)
	if errors.Is(err, store.ErrStaleWallet) {
		l.metrics.RecordActivation("conflict")
		return nil, apperr.Wrap(apperr.KindConflict, "Your wallet changed while activating. Please try again.", err)
	}
	if err != nil {
		l.metrics.RecordActivation("error")
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to activate private event.", err)
	}

	l.metrics.RecordActivation("ok")
	l.metrics.RecordSpend(wallet.ActivationCost)
	l.publish(ctx, streams.KindPrivateActivated, userID, map[string]interface{}{
		"event_id": event.ID, "ends_at": user.PrivateEventEnds.UTC(),
	})
	slog.Info("Private event activated", "user_id", userID, "event_id", event.ID, "ends_at", user.PrivateEventEnds)
	return event, nil
}

// ResetPrivateEventCooldown clears the cooldown and any open window.
func (l *Ladder) ResetPrivateEventCooldown(ctx context.Context, userID uint) error {
	err := l.store.ResetCooldown(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, "User not found.", err)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "Failed to reset cooldown.", err)
	}
	return nil
}

func inLocation(t *time.Time, loc *time.Location) *time.Time {
	if t == nil {
		return nil
	}
	local := t.In(loc)
	return &local
}
