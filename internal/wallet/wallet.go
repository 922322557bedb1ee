// Package wallet holds the bucks rules: weekly regeneration and the private
// event activation window with its cooldown. It only mutates the in-memory
// user; persisting the change atomically is the store's job.
package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/activityladdr/laddr/internal/models"
)

const (
	// RegenerationInterval is how long a balance lasts before it is reset.
	RegenerationInterval = 7 * 24 * time.Hour
	// Cooldown separates two private event activations.
	Cooldown = 7 * 24 * time.Hour
	// ActivationWindow is how long a private event stays active.
	ActivationWindow = 24 * time.Hour
	// ActivationCost is the price of a private event.
	ActivationCost = 5
)

var (
	ErrOnCooldown        = errors.New("private event is on cooldown")
	ErrInsufficientFunds = errors.New("insufficient bucks")
)

// CooldownError reports how long is left before the next activation.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v: %s left", ErrOnCooldown, FormatRemaining(e.Remaining))
}

func (e *CooldownError) Unwrap() error {
	return ErrOnCooldown
}

// NeedsRegeneration reports whether the balance is due for its weekly reset.
func NeedsRegeneration(user *models.User, now time.Time) bool {
	return user.LastBucksUpdate == nil || now.Sub(*user.LastBucksUpdate) >= RegenerationInterval
}

// RegenerateBucks resets the balance to exactly StartingBucks once the
// interval has passed. It returns whether anything changed; calling it again
// inside the same window is a no-op.
func RegenerateBucks(user *models.User, now time.Time) bool {
	if !NeedsRegeneration(user, now) {
		return false
	}
	user.Bucks = models.StartingBucks
	stamp := now
	user.LastBucksUpdate = &stamp
	return true
}

// BucksResetIn is the time left until the next regeneration, or 0 when one is due.
func BucksResetIn(user *models.User, now time.Time) time.Duration {
	if NeedsRegeneration(user, now) {
		return 0
	}
	return user.LastBucksUpdate.Add(RegenerationInterval).Sub(now)
}

// NextActivation is when the cooldown ends, or nil if the user never activated.
func NextActivation(user *models.User) *time.Time {
	if user.LastActivated == nil {
		return nil
	}
	next := user.LastActivated.Add(Cooldown)
	return &next
}

// CanActivate is the inverse of the cooldown check.
func CanActivate(user *models.User, now time.Time) bool {
	next := NextActivation(user)
	return next == nil || !now.Before(*next)
}

// IsPrivateEventActive reports whether the 24-hour window is still open.
func IsPrivateEventActive(user *models.User, now time.Time) bool {
	return user.PrivateEventEnds != nil && now.Before(*user.PrivateEventEnds)
}

// Activate checks cooldown then funds, debits the activation cost and opens
// the window. The returned event is dated at now on loc's wall clock and has
// no location. user is left untouched on error.
func Activate(user *models.User, now time.Time, loc *time.Location) (*models.Event, error) {
	if !CanActivate(user, now) {
		return nil, &CooldownError{Remaining: NextActivation(user).Sub(now)}
	}
	if user.Bucks < ActivationCost {
		return nil, ErrInsufficientFunds
	}

	local := now.In(loc)
	ends := now.Add(ActivationWindow)
	activated := now

	user.Bucks -= ActivationCost
	user.LastActivated = &activated
	user.PrivateEventEnds = &ends

	owner := user.ID
	return &models.Event{
		UserID:    &owner,
		MajorCity: models.PrivateRegion,
		Suburb:    models.PrivateSuburb,
		EventType: models.EventTypePrivate,
		Date:      models.FormatDate(local),
		StartHour: local.Hour(),
		Radius:    0,
	}, nil
}

// ResetCooldown clears both the cooldown and any open window.
func ResetCooldown(user *models.User) {
	user.LastActivated = nil
	user.PrivateEventEnds = nil
}

// FormatRemaining renders a duration as "1d 2h 3m 4s".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}
